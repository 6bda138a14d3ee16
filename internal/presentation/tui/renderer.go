package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewRenderer returns a markdown renderer for assistant messages.
// Off a terminal it returns nil, so piped output stays plain text.
func NewRenderer(out *os.File) func(string) (string, error) {
	if !IsInteractive(out) {
		return nil
	}
	width := 80
	if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 20 {
		width = w - 4
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r.Render
}
