package filter

import (
	"fmt"
	"net/http"
	"slices"
)

type Verdict int

const (
	Suppressed Verdict = iota
	Interesting
)

func (v Verdict) String() string {
	if v == Interesting {
		return "interesting"
	}
	return "suppressed"
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(text []byte) error {
	switch string(text) {
	case "interesting":
		*v = Interesting
	case "suppressed":
		*v = Suppressed
	default:
		return fmt.Errorf("%w: unknown verdict %q", ErrInvalidFilter, text)
	}
	return nil
}

// UnknownRedirect is reported for 3xx responses without a Location header.
const UnknownRedirect = "unknown"

var DefaultExclude = NewStatusSet(http.StatusNotFound)

// Config decides which responses are interesting. Include always wins over
// Exclude. The Match* lists require the count to be one of the listed
// values, the Exclude* lists reject listed values. Size rules only ever
// suppress.
type Config struct {
	Include StatusSet
	Exclude StatusSet

	MatchBytes []int
	MatchWords []int
	MatchChars []int
	MatchLines []int

	ExcludeBytes []int
	ExcludeWords []int
	ExcludeChars []int
	ExcludeLines []int
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Classification struct {
	Verdict  Verdict
	Counts   Counts
	Redirect string
}

func Classify(resp Response, cfg Config) Classification {
	c := Classification{
		Verdict: StatusVerdict(resp.StatusCode, cfg),
		Counts:  Count(resp.Body),
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		c.Redirect = RedirectTarget(resp.Header)
	}

	if c.Verdict == Interesting && !cfg.sizeAllowed(c.Counts) {
		c.Verdict = Suppressed
	}
	return c
}

func StatusVerdict(code int, cfg Config) Verdict {
	switch {
	case cfg.Include.Contains(code):
		return Interesting
	case cfg.Exclude.Contains(code):
		return Suppressed
	case cfg.Include != nil:
		return Suppressed
	case cfg.Exclude == nil && DefaultExclude.Contains(code):
		return Suppressed
	}
	return Interesting
}

func RedirectTarget(h http.Header) string {
	if loc := h.Get("Location"); loc != "" {
		return loc
	}
	return UnknownRedirect
}

func (cfg Config) sizeAllowed(c Counts) bool {
	rules := []struct {
		value   int
		match   []int
		exclude []int
	}{
		{c.Bytes, cfg.MatchBytes, cfg.ExcludeBytes},
		{c.Words, cfg.MatchWords, cfg.ExcludeWords},
		{c.Chars, cfg.MatchChars, cfg.ExcludeChars},
		{c.Lines, cfg.MatchLines, cfg.ExcludeLines},
	}

	for _, r := range rules {
		if len(r.match) > 0 && !slices.Contains(r.match, r.value) {
			return false
		}
		if slices.Contains(r.exclude, r.value) {
			return false
		}
	}
	return true
}
