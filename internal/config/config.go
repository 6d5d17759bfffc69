package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/burrow/scanner/internal/filter"
)

// Version is reported in the banner and in saved reports.
const Version = "1.0.0"

type Config struct {
	URLs        []string
	URLsFile    string
	ResultsFile string
	Wordlist    string
	Extensions  []string

	Concurrency   int
	Method        string
	Headers       []string
	Data          string
	HasData       bool
	Marker        string
	RequireMarker bool
	Timeout       int
	Delay         int
	RateLimit     int
	Depth         int
	UserAgent     string
	Insecure      bool
	MaxResponseMB int

	IncludeStatus string
	ExcludeStatus string
	MatchBytes    string
	MatchWords    string
	MatchChars    string
	MatchLines    string
	ExcludeBytes  string
	ExcludeWords  string
	ExcludeChars  string
	ExcludeLines  string
	AutoCalibrate bool

	OutputFile  string
	JSONLines   bool
	CSVFile     string
	HTMLReport  string
	Verbose     bool
	NoColor     bool
	LogLevel    string
	MetricsAddr string
	ConfigFile  string
	DryRun      bool
}

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ", ")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func envOrDefault(envKey string, defaultVal int) int {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func envOrDefaultStr(envKey string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return defaultVal
}

// Parse reads command line flags. Values from a -config file fill in flags
// that were not given on the command line; environment variables only move
// the defaults.
func Parse(args []string, stderr io.Writer) (Config, error) {
	var config Config
	var urls, headers stringSliceFlag
	var extensions string

	fs := flag.NewFlagSet("burrow", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.Var(&urls, "u", "Base target URL, may contain the marker (repeatable)")
	fs.StringVar(&config.URLsFile, "urls-file", "", "File with one target URL per line")
	fs.StringVar(&config.ResultsFile, "results-file", "", "Extract target URLs from a previous results file")
	fs.StringVar(&config.Wordlist, "w", "", "Wordlist path (required)")
	fs.StringVar(&extensions, "x", "", "Extensions (comma-separated, e.g., php,html,txt)")

	fs.IntVar(&config.Concurrency, "c", envOrDefault("BURROW_CONCURRENCY", 10), "Maximum concurrent requests")
	fs.StringVar(&config.Method, "X", "GET", "HTTP method")
	fs.Var(&headers, "H", "Request header \"Name: value\" (repeatable)")
	fs.Func("d", "Request body, may contain the marker", func(v string) error {
		config.Data = v
		config.HasData = true
		return nil
	})
	fs.StringVar(&config.Marker, "marker", "FUZZ", "Substitution marker")
	fs.BoolVar(&config.RequireMarker, "fuzz", false, "Require the marker to appear in url, headers or body")
	fs.IntVar(&config.Timeout, "timeout", envOrDefault("BURROW_TIMEOUT", 10), "Request timeout in seconds")
	fs.IntVar(&config.Delay, "delay", 0, "Delay in milliseconds before each request")
	fs.IntVar(&config.RateLimit, "rate-limit", envOrDefault("BURROW_RATE_LIMIT", 0), "Max requests per second per host (0=unlimited)")
	fs.IntVar(&config.Depth, "depth", 0, "Recursion depth (0=disabled)")
	fs.StringVar(&config.UserAgent, "user-agent", "burrow/1.0", "User-Agent header")
	fs.BoolVar(&config.Insecure, "k", false, "Accept invalid TLS certificates")
	fs.IntVar(&config.MaxResponseMB, "max-response-mb", 10, "Max response body size in MB")

	fs.StringVar(&config.IncludeStatus, "include-status", "", "Only report these statuses (e.g. 200,301,500-599)")
	fs.StringVar(&config.ExcludeStatus, "exclude-status", "", "Never report these statuses (default 404)")
	fs.StringVar(&config.MatchBytes, "match-bytes", "", "Only report bodies with these byte sizes")
	fs.StringVar(&config.MatchWords, "match-words", "", "Only report bodies with these word counts")
	fs.StringVar(&config.MatchChars, "match-chars", "", "Only report bodies with these character counts")
	fs.StringVar(&config.MatchLines, "match-lines", "", "Only report bodies with these line counts")
	fs.StringVar(&config.ExcludeBytes, "exclude-bytes", "", "Hide bodies with these byte sizes")
	fs.StringVar(&config.ExcludeWords, "exclude-words", "", "Hide bodies with these word counts")
	fs.StringVar(&config.ExcludeChars, "exclude-chars", "", "Hide bodies with these character counts")
	fs.StringVar(&config.ExcludeLines, "exclude-lines", "", "Hide bodies with these line counts")
	fs.BoolVar(&config.AutoCalibrate, "ac", false, "Suppress responses that look like the wildcard baseline")

	fs.StringVar(&config.OutputFile, "o", "", "Output file (JSON report)")
	fs.BoolVar(&config.JSONLines, "jsonl", false, "Print outcomes as JSON lines instead of text")
	fs.StringVar(&config.CSVFile, "csv", "", "Write findings as CSV")
	fs.StringVar(&config.HTMLReport, "html", "", "Generate HTML report")
	fs.BoolVar(&config.Verbose, "v", false, "Also print suppressed outcomes and errors")
	fs.BoolVar(&config.NoColor, "no-color", false, "Disable colored output")
	fs.StringVar(&config.LogLevel, "log-level", envOrDefaultStr("BURROW_LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	fs.StringVar(&config.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	fs.StringVar(&config.ConfigFile, "config", "", "YAML file with flag values")
	fs.BoolVar(&config.DryRun, "dry-run", false, "Show what would be scanned without scanning")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: burrow [options]\n\n")
		fmt.Fprintf(stderr, "Required:\n")
		fmt.Fprintf(stderr, "  -u string         Target URL, repeatable (or -urls-file, -results-file, STDIN)\n")
		fmt.Fprintf(stderr, "  -w string         Path to wordlist file\n\n")
		fmt.Fprintf(stderr, "Request:\n")
		fmt.Fprintf(stderr, "  -c int            Concurrent requests (default: 10, env: BURROW_CONCURRENCY)\n")
		fmt.Fprintf(stderr, "  -X string         Method (default: GET)\n")
		fmt.Fprintf(stderr, "  -H string         Header, repeatable\n")
		fmt.Fprintf(stderr, "  -d string         Request body\n")
		fmt.Fprintf(stderr, "  -marker string    Substitution marker (default: FUZZ)\n")
		fmt.Fprintf(stderr, "  -fuzz             Fail unless the marker is present\n")
		fmt.Fprintf(stderr, "  -x string         Extensions (comma-separated)\n")
		fmt.Fprintf(stderr, "  -depth int        Recursion depth (0=disabled)\n")
		fmt.Fprintf(stderr, "  -delay int        Delay per request in ms\n")
		fmt.Fprintf(stderr, "  -timeout int      Request timeout in seconds (default: 10, env: BURROW_TIMEOUT)\n")
		fmt.Fprintf(stderr, "  -rate-limit int   Max req/s per host (env: BURROW_RATE_LIMIT)\n")
		fmt.Fprintf(stderr, "  -k                Accept invalid certificates\n\n")
		fmt.Fprintf(stderr, "Filters:\n")
		fmt.Fprintf(stderr, "  -include-status   Allow-list of statuses, wins over -exclude-status\n")
		fmt.Fprintf(stderr, "  -exclude-status   Deny-list of statuses (default: 404)\n")
		fmt.Fprintf(stderr, "  -match-{bytes,words,chars,lines}    Exact counts to keep\n")
		fmt.Fprintf(stderr, "  -exclude-{bytes,words,chars,lines}  Exact counts to hide\n")
		fmt.Fprintf(stderr, "  -ac               Auto-calibrate against wildcard responses\n\n")
		fmt.Fprintf(stderr, "Output:\n")
		fmt.Fprintf(stderr, "  -o string         JSON report file\n")
		fmt.Fprintf(stderr, "  -jsonl            JSON lines on stdout\n")
		fmt.Fprintf(stderr, "  -csv string       CSV file\n")
		fmt.Fprintf(stderr, "  -html string      HTML report file\n")
		fmt.Fprintf(stderr, "  -v                Verbose mode\n")
		fmt.Fprintf(stderr, "  -log-level str    debug|info|warn|error (default: info, env: BURROW_LOG_LEVEL)\n")
		fmt.Fprintf(stderr, "  -metrics-addr     Prometheus listen address\n")
		fmt.Fprintf(stderr, "  -config string    YAML config file\n")
		fmt.Fprintf(stderr, "  -dry-run          Show scan plan without executing\n\n")
		fmt.Fprintf(stderr, "Examples:\n")
		fmt.Fprintf(stderr, "  burrow -u https://target.com -w wordlist.txt -depth 2\n")
		fmt.Fprintf(stderr, "  burrow -u https://FUZZ.target.com -w subdomains.txt -fuzz\n")
		fmt.Fprintf(stderr, "  burrow -u https://target.com/login -X POST -d 'user=FUZZ' -w users.txt\n")
		fmt.Fprintf(stderr, "  cat targets.txt | burrow -w words.txt -c 50\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return config, err
		}
		return config, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if config.ConfigFile != "" {
		explicit := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		if err := applyFile(fs, config.ConfigFile, explicit); err != nil {
			return config, err
		}
	}

	config.URLs = urls
	config.Headers = headers
	config.Extensions = parseExtensions(extensions)

	return config, nil
}

func parseExtensions(list string) []string {
	var exts []string
	for _, ext := range strings.Split(list, ",") {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return exts
}

// FilterConfig builds the classifier configuration from the filter flags.
func (c *Config) FilterConfig() (filter.Config, error) {
	var fc filter.Config
	var err error

	if fc.Include, err = filter.ParseStatusSet(c.IncludeStatus); err != nil {
		return fc, fmt.Errorf("%w: -include-status: %w", ErrInvalidConfig, err)
	}
	if fc.Exclude, err = filter.ParseStatusSet(c.ExcludeStatus); err != nil {
		return fc, fmt.Errorf("%w: -exclude-status: %w", ErrInvalidConfig, err)
	}

	counts := []struct {
		flag string
		spec string
		dst  *[]int
	}{
		{"match-bytes", c.MatchBytes, &fc.MatchBytes},
		{"match-words", c.MatchWords, &fc.MatchWords},
		{"match-chars", c.MatchChars, &fc.MatchChars},
		{"match-lines", c.MatchLines, &fc.MatchLines},
		{"exclude-bytes", c.ExcludeBytes, &fc.ExcludeBytes},
		{"exclude-words", c.ExcludeWords, &fc.ExcludeWords},
		{"exclude-chars", c.ExcludeChars, &fc.ExcludeChars},
		{"exclude-lines", c.ExcludeLines, &fc.ExcludeLines},
	}
	for _, rule := range counts {
		if *rule.dst, err = filter.ParseCounts(rule.spec); err != nil {
			return fc, fmt.Errorf("%w: -%s: %w", ErrInvalidConfig, rule.flag, err)
		}
	}

	return fc, nil
}

func Validate(config *Config, targets []string) error {
	if len(targets) == 0 {
		return fmt.Errorf("%w: no targets specified. Use -u, -urls-file, -results-file or pipe targets via STDIN", ErrMissingRequired)
	}

	for i := range targets {
		if !strings.HasPrefix(targets[i], "http://") && !strings.HasPrefix(targets[i], "https://") {
			targets[i] = "http://" + targets[i]
		}
	}

	if config.Wordlist == "" {
		return fmt.Errorf("%w: wordlist is required (-w). Provide a wordlist file path", ErrMissingRequired)
	}

	if _, err := os.Stat(config.Wordlist); os.IsNotExist(err) {
		return fmt.Errorf("%w: wordlist file not found: %s. Check the path and try again", ErrInvalidConfig, config.Wordlist)
	}

	if config.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d. Use -c to set (default: 10)", ErrInvalidConfig, config.Concurrency)
	}

	if config.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %d. Use -timeout to set (default: 10)", ErrInvalidConfig, config.Timeout)
	}

	if config.Depth < 0 {
		return fmt.Errorf("%w: depth must not be negative, got %d", ErrInvalidConfig, config.Depth)
	}

	if config.Delay < 0 {
		return fmt.Errorf("%w: delay must not be negative, got %d", ErrInvalidConfig, config.Delay)
	}

	if config.Marker == "" {
		return fmt.Errorf("%w: marker must not be empty. Use -marker to set (default: FUZZ)", ErrInvalidConfig)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[config.LogLevel] {
		return fmt.Errorf("%w: invalid log level %q. Valid values: debug, info, warn, error", ErrInvalidConfig, config.LogLevel)
	}

	if _, err := config.FilterConfig(); err != nil {
		return err
	}

	return nil
}
