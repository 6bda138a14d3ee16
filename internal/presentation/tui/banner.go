package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var deskStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#2dd4bf")).
	Padding(0, 1).
	MarginLeft(1)

// PrintBanner writes the InsurAI banner, colored when w supports it.
func PrintBanner(w io.Writer, flow string) {
	out := termenv.NewOutput(w)
	lines := []struct{ text, color string }{
		{"  ___                          _    ___ ", "#38bdf8"},
		{" |_ _|_ __  ___ _   _ _ __    / \\  |_ _|", "#22d3ee"},
		{"  | || '_ \\/ __| | | | '__|  / _ \\  | | ", "#2dd4bf"},
		{"  | || | | \\__ \\ |_| | |    / ___ \\ | | ", "#34d399"},
		{" |___|_| |_|___/\\__,_|_|   /_/   \\_\\___|", "#4ade80"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	if flow != "" {
		fmt.Fprintln(w, deskStyle.Render(flow+" desk"))
	}
	fmt.Fprintln(w)
}
