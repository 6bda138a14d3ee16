package runner

import (
	"context"

	"github.com/aretw0/insurai"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents the messages and prompt of a turn.
	Output(ctx context.Context, res insurai.Result) error

	// Input reads the answer to the current prompt.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (session id, status updates).
	SystemOutput(ctx context.Context, msg string) error
}
