package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/burrow/scanner/internal/config"
	"github.com/burrow/scanner/internal/input"
	"github.com/burrow/scanner/internal/logging"
	"github.com/burrow/scanner/internal/metrics"
	"github.com/burrow/scanner/internal/reporting"
	"github.com/burrow/scanner/internal/scanner"
	"github.com/burrow/scanner/internal/target"
	"github.com/burrow/scanner/internal/ui"
)

const (
	exitOK        = 0
	exitError     = 1
	exitCancelled = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin, stdout, stderr *os.File) int {
	cfg, err := config.Parse(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitError
	}

	logger := logging.New(cfg.LogLevel, stderr)
	color := ui.ColorEnabled(stdout, cfg.NoColor)
	uiColor := ui.ColorEnabled(stderr, cfg.NoColor)

	targets, err := gatherTargets(cfg, stdin, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitError
	}

	if err := config.Validate(&cfg, targets); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitError
	}

	words, err := input.LoadWordlist(cfg.Wordlist, cfg.Extensions)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to load wordlist: %s\n", err)
		return exitError
	}

	templates := make([]*target.Template, 0, len(targets))
	for _, u := range targets {
		tmpl, err := target.New(target.Spec{
			Method:        cfg.Method,
			URL:           u,
			Headers:       cfg.Headers,
			Body:          cfg.Data,
			HasBody:       cfg.HasData,
			Marker:        cfg.Marker,
			RequireMarker: cfg.RequireMarker,
		})
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return exitError
		}
		templates = append(templates, tmpl)
	}

	if cfg.DryRun {
		ui.PrintPlan(stdout, templates, words, cfg.Depth)
		return exitOK
	}

	ui.PrintBanner(stderr, uiColor)
	ui.PrintConfig(stderr, cfg, len(targets), len(words), uiColor)

	opts := []scanner.Option{scanner.WithLogger(logger)}
	if cfg.MetricsAddr != "" {
		recorder, err := metrics.NewRecorder()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return exitError
		}
		if err := recorder.Serve(cfg.MetricsAddr, logger); err != nil {
			fmt.Fprintf(stderr, "Error: %s\n", err)
			return exitError
		}
		defer recorder.Close()
		logger.Info("serving metrics", "addr", recorder.Addr())
		opts = append(opts, scanner.WithObserver(recorder))
	}

	engine, err := scanner.NewEngine(cfg, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	progressCtx, stopProgress := context.WithCancel(ctx)
	progressDone := make(chan struct{})
	if uiColor {
		go func() {
			defer close(progressDone)
			ui.StartProgressReporter(progressCtx, stderr, engine.Stats())
		}()
	} else {
		close(progressDone)
	}

	sink := make(chan scanner.Outcome, cfg.Concurrency)
	collected := make(chan []scanner.Outcome, 1)
	go func() {
		collected <- consume(sink, stdout, cfg, color, logger)
	}()

	stats, runErr := engine.Run(ctx, templates, words, sink)
	close(sink)
	findings := <-collected
	stopProgress()
	<-progressDone

	cancelled := runErr != nil && ctx.Err() != nil
	if runErr != nil && !cancelled {
		fmt.Fprintf(stderr, "Scan error: %s\n", runErr)
		return exitError
	}
	if cancelled {
		fmt.Fprintln(stderr, "[!] Scan cancelled, writing partial results")
	}

	ui.PrintSummary(stderr, stats, uiColor)

	if failed := writeReports(cfg, findings, targets, stats, stderr); failed {
		return exitError
	}
	if cancelled {
		return exitCancelled
	}
	return exitOK
}

// gatherTargets merges -u, -urls-file, -results-file and piped STDIN.
func gatherTargets(cfg config.Config, stdin *os.File, logger *slog.Logger) ([]string, error) {
	targets := append([]string{}, cfg.URLs...)

	if cfg.URLsFile != "" {
		list, err := input.LoadTargets(cfg.URLsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read urls file: %w", err)
		}
		targets = append(targets, list...)
	}

	if cfg.ResultsFile != "" {
		list, err := input.LoadResultURLs(cfg.ResultsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read results file: %w", err)
		}
		logger.Info("loaded targets from results", "file", cfg.ResultsFile, "count", len(list))
		targets = append(targets, list...)
	}

	if stat, err := stdin.Stat(); err == nil && stat.Mode()&os.ModeCharDevice == 0 {
		list, err := input.ReadTargets(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read targets from STDIN: %w", err)
		}
		logger.Info("loaded targets from STDIN", "count", len(list))
		targets = append(targets, list...)
	}

	return input.Dedupe(targets), nil
}

// consume prints outcomes as they arrive and returns the interesting ones.
// Suppressed outcomes and errors are printed only in verbose mode.
func consume(sink <-chan scanner.Outcome, out io.Writer, cfg config.Config, color bool, logger *slog.Logger) []scanner.Outcome {
	var findings []scanner.Outcome
	var jsonl *reporting.JSONLWriter
	if cfg.JSONLines {
		jsonl = reporting.NewJSONLWriter(out)
	}

	for o := range sink {
		if o.Interesting() {
			findings = append(findings, o)
		} else if !cfg.Verbose {
			continue
		}

		if jsonl != nil {
			if err := jsonl.Write(o); err != nil {
				logger.Error("failed to write outcome", "url", o.URL, "error", err)
			}
			continue
		}
		ui.PrintOutcome(out, o, color)
	}
	return findings
}

func writeReports(cfg config.Config, findings []scanner.Outcome, targets []string, stats *scanner.Stats, stderr io.Writer) bool {
	failed := false

	if cfg.OutputFile != "" {
		if err := reporting.SaveJSONReport(findings, cfg.OutputFile, targets, reporting.GenerateRunID(), stats); err != nil {
			fmt.Fprintf(stderr, "Failed to save JSON: %s\n", err)
			failed = true
		} else {
			fmt.Fprintf(stderr, "JSON report saved: %s\n", cfg.OutputFile)
		}
	}

	if cfg.CSVFile != "" {
		if err := reporting.SaveCSV(findings, cfg.CSVFile); err != nil {
			fmt.Fprintf(stderr, "Failed to save CSV: %s\n", err)
			failed = true
		} else {
			fmt.Fprintf(stderr, "CSV report saved: %s\n", cfg.CSVFile)
		}
	}

	if cfg.HTMLReport != "" {
		if err := reporting.GenerateHTML(findings, cfg.HTMLReport); err != nil {
			fmt.Fprintf(stderr, "Failed to generate HTML: %s\n", err)
			failed = true
		} else {
			fmt.Fprintf(stderr, "HTML report saved: %s\n", cfg.HTMLReport)
		}
	}

	return failed
}
