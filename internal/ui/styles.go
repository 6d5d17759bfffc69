package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	Primary = lipgloss.Color("#D97706")
	Muted   = lipgloss.Color("#6B7280")

	Status2xx = lipgloss.Color("#00D26A")
	Status3xx = lipgloss.Color("#4D96FF")
	Status4xx = lipgloss.Color("#FFD93D")
	Status5xx = lipgloss.Color("#FF3838")
	Errored   = lipgloss.Color("#FFB800")
)

var (
	BannerStyle  = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	SectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Bold(true)
	LabelStyle   = lipgloss.NewStyle().Foreground(Muted)
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(Errored)
	FoundStyle   = lipgloss.NewStyle().Foreground(Status2xx).Bold(true)
)

// ColorEnabled reports whether styled output should be written to f.
func ColorEnabled(f *os.File, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func statusStyle(code int) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch {
	case code >= 200 && code < 300:
		return style.Foreground(Status2xx)
	case code >= 300 && code < 400:
		return style.Foreground(Status3xx)
	case code >= 400 && code < 500:
		return style.Foreground(Status4xx)
	case code >= 500:
		return style.Foreground(Status5xx)
	default:
		return style.Foreground(Errored)
	}
}
