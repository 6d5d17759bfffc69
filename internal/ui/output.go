package ui

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/burrow/scanner/internal/config"
	"github.com/burrow/scanner/internal/scanner"
	"github.com/burrow/scanner/internal/target"
)

const rule = "───────────────────────────────"

func paint(color bool, style interface{ Render(...string) string }, s string) string {
	if !color {
		return s
	}
	return style.Render(s)
}

func PrintBanner(w io.Writer, color bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, paint(color, BannerStyle, "   burrow "+config.Version))
	fmt.Fprintln(w, paint(color, LabelStyle, "   web content discovery"))
	fmt.Fprintln(w)
}

func PrintConfig(w io.Writer, cfg config.Config, targetCount, wordCount int, color bool) {
	row := func(label, value string) {
		fmt.Fprintf(w, "  %s %s\n", paint(color, LabelStyle, fmt.Sprintf("%-11s", label)), paint(color, ValueStyle, value))
	}

	fmt.Fprintln(w, paint(color, SectionStyle, " Scan Configuration"))
	fmt.Fprintln(w, paint(color, LabelStyle, rule))
	row("Targets", fmt.Sprint(targetCount))
	row("Words", fmt.Sprint(wordCount))
	row("Method", cfg.Method)
	row("Concurrency", fmt.Sprint(cfg.Concurrency))
	row("Timeout", fmt.Sprintf("%ds", cfg.Timeout))
	row("Wordlist", cfg.Wordlist)
	row("Max Body", formatSize(cfg.MaxResponseMB*1024*1024))
	if cfg.RateLimit > 0 {
		row("Rate Limit", fmt.Sprintf("%d req/s", cfg.RateLimit))
	}
	if cfg.Delay > 0 {
		row("Delay", fmt.Sprintf("%dms", cfg.Delay))
	}
	if cfg.Depth > 0 {
		row("Max Depth", fmt.Sprint(cfg.Depth))
	}
	if len(cfg.Extensions) > 0 {
		row("Extensions", strings.Join(cfg.Extensions, ", "))
	}
	if cfg.AutoCalibrate {
		row("Calibrate", "on")
	}
	if cfg.Insecure {
		row("TLS", "certificate checks disabled")
	}
	fmt.Fprintln(w)
}

// PrintPlan lists what a scan would send without sending anything.
func PrintPlan(w io.Writer, templates []*target.Template, words []string, depth int) {
	sample := "FUZZ"
	if len(words) > 0 {
		sample = words[0]
	}
	var total int64
	for _, tmpl := range templates {
		levels := 0
		if tmpl.Recursive() {
			levels = depth
		}
		bound := RequestBound(len(words), levels)
		total = saturatingAdd(total, bound)

		first := tmpl.Fill(sample)
		fmt.Fprintf(w, "%s %s mode=%s recursive=%t max-requests=%d first=%s\n",
			tmpl.Method(), tmpl.URL(), tmpl.Mode(), tmpl.Recursive(), bound, first.URL)
	}
	fmt.Fprintf(w, "templates=%d words=%d depth=%d max-requests=%d\n", len(templates), len(words), depth, total)
}

// RequestBound is the most requests one template can produce with w words
// and depth levels of recursion: w + w^2 + ... + w^(depth+1). It saturates
// at math.MaxInt64.
func RequestBound(w, depth int) int64 {
	var total, level int64 = 0, 1
	for k := 0; k <= depth; k++ {
		if w > 0 && level > math.MaxInt64/int64(w) {
			return math.MaxInt64
		}
		level *= int64(w)
		total = saturatingAdd(total, level)
	}
	return total
}

func saturatingAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// FormatOutcome renders one outcome as a single plain line:
// [<code> <reason>] <url>[ -> <redirect>] [<W>W, <C>C, <L>L]
func FormatOutcome(o scanner.Outcome) string {
	if o.Failed() {
		return fmt.Sprintf("[ERR %s] %s %s", o.ErrorKind, o.URL, o.Error)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", o.Status, o.URL)
	if o.Redirect != "" {
		fmt.Fprintf(&b, " -> %s", o.Redirect)
	}
	fmt.Fprintf(&b, " [%dW, %dC, %dL]", o.Words, o.Chars, o.Lines)
	return b.String()
}

func PrintOutcome(w io.Writer, o scanner.Outcome, color bool) {
	line := FormatOutcome(o)
	if !color {
		fmt.Fprintln(w, line)
		return
	}

	end := strings.Index(line, "]") + 1
	style := statusStyle(o.StatusCode)
	if o.Failed() {
		style = ErrorStyle
	}
	rest := line[end:]
	if o.WAF != "" {
		rest += " " + paint(color, ErrorStyle, "waf:"+o.WAF)
	}
	fmt.Fprintln(w, style.Render(line[:end])+rest)
}

// StartProgressReporter redraws a one-line progress bar on w until ctx is
// done. It must only be used when w is a terminal.
func StartProgressReporter(ctx context.Context, w io.Writer, stats *scanner.Stats) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	spinner := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	frame := 0

	for {
		select {
		case <-ctx.Done():
			fmt.Fprint(w, "\r\033[K")
			return
		case <-ticker.C:
			fmt.Fprint(w, "\r\033[K"+progressLine(stats, spinner[frame%len(spinner)]))
			frame++
		}
	}
}

func progressLine(stats *scanner.Stats, spin string) string {
	elapsed := stats.Elapsed().Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}
	processed := stats.GetProcessed()
	total := stats.GetTotal()
	reqPerSec := float64(processed) / elapsed

	var progress float64
	if total > 0 {
		progress = float64(processed) / float64(total) * 100
	}

	barWidth := 20
	filled := int(progress / 100 * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	line := fmt.Sprintf("  %s %s %3.0f%%  %d/%d  %d req/s  found: %s",
		spin,
		LabelStyle.Render(bar),
		progress,
		processed, total,
		int(reqPerSec),
		FoundStyle.Render(fmt.Sprint(stats.GetFound())))
	if errs := stats.GetErrors(); errs > 0 {
		line += "  " + ErrorStyle.Render(fmt.Sprintf("errors: %d", errs))
	}
	return line
}

func PrintSummary(w io.Writer, stats *scanner.Stats, color bool) {
	elapsed := stats.Elapsed()
	var reqPerSec float64
	if elapsed > 0 {
		reqPerSec = float64(stats.GetProcessed()) / elapsed.Seconds()
	}

	row := func(label, value string) {
		fmt.Fprintf(w, "  %s %s\n", paint(color, LabelStyle, fmt.Sprintf("%-11s", label)), paint(color, ValueStyle, value))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, paint(color, SectionStyle, " Scan Complete"))
	fmt.Fprintln(w, paint(color, LabelStyle, rule))
	row("Requests", fmt.Sprint(stats.GetProcessed()))
	row("Findings", fmt.Sprint(stats.GetFound()))
	row("Suppressed", fmt.Sprint(stats.GetSuppressed()))
	if stats.GetExpansions() > 0 {
		row("Recursed", fmt.Sprint(stats.GetExpansions()))
	}
	if stats.GetWAFHits() > 0 {
		row("WAF Hits", fmt.Sprint(stats.GetWAFHits()))
	}
	if stats.GetErrors() > 0 {
		row("Errors", fmt.Sprint(stats.GetErrors()))
	}
	row("Peak", fmt.Sprintf("%d in flight", stats.GetPeakInFlight()))
	row("Duration", elapsed.Round(time.Millisecond).String())
	row("Speed", fmt.Sprintf("%.0f req/s", reqPerSec))
	fmt.Fprintln(w)
}

func formatSize(bytes int) string {
	switch {
	case bytes >= 1024*1024:
		return fmt.Sprintf("%.1fMB", float64(bytes)/1024/1024)
	case bytes >= 1024:
		return fmt.Sprintf("%.1fKB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}
