package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/insurai"
	"github.com/aretw0/insurai/internal/logging"
	"github.com/aretw0/insurai/pkg/domain"
)

// Engine is the part of insurai.Engine the runner drives.
type Engine interface {
	StartSession(ctx context.Context, flow string, inputs ...domain.Input) (insurai.Result, error)
	Advance(ctx context.Context, sessionID string, inputs ...domain.Input) (insurai.Result, error)
	Session(ctx context.Context, sessionID string) (*domain.SessionRecord, error)
}

// Runner handles the conversation loop of one session.
type Runner struct {
	engine    Engine
	handler   IOHandler
	logger    *slog.Logger
	flow      string
	sessionID string
}

// New creates a Runner for engine.
func New(engine Engine, opts ...Option) *Runner {
	r := &Runner{engine: engine}
	for _, opt := range opts {
		opt(r)
	}
	if r.handler == nil {
		r.handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	return r
}

// Run plays the session until it finishes, the input ends or ctx is done.
// It returns the last result seen.
func (r *Runner) Run(ctx context.Context) (insurai.Result, error) {
	res, err := r.begin(ctx)
	if err != nil {
		return insurai.Result{}, err
	}
	if err := r.handler.SystemOutput(ctx, fmt.Sprintf("Session %s (%s)", res.SessionID, res.Flow)); err != nil {
		return res, err
	}

	for {
		if err := r.handler.Output(ctx, res); err != nil {
			return res, fmt.Errorf("output error: %w", err)
		}
		if res.Status.Finished() {
			return res, nil
		}

		text, err := r.handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				r.logger.Info("conversation interrupted", "session", res.SessionID, "awaiting", res.Awaiting)
				_ = r.handler.SystemOutput(ctx, fmt.Sprintf("Session %s saved. Resume it with --session %s.", res.SessionID, res.SessionID))
				return res, nil
			}
			return res, fmt.Errorf("input error: %w", err)
		}

		next, err := r.engine.Advance(ctx, res.SessionID, domain.Input{Name: res.Awaiting, Value: text})
		if err != nil {
			return res, err
		}
		res = next
	}
}

// begin starts a new session or replays the prompt of a stored one.
func (r *Runner) begin(ctx context.Context) (insurai.Result, error) {
	if r.sessionID == "" {
		if r.flow == "" {
			return insurai.Result{}, errors.New("runner needs a flow or a session id")
		}
		return r.engine.StartSession(ctx, r.flow)
	}

	rec, err := r.engine.Session(ctx, r.sessionID)
	if err != nil {
		return insurai.Result{}, err
	}
	if rec.Status.Finished() {
		return insurai.Result{}, fmt.Errorf("%w: %s", domain.ErrSessionFinished, rec.SessionID)
	}
	return insurai.Result{
		SessionID: rec.SessionID,
		Flow:      rec.Flow,
		Status:    rec.Status,
		Awaiting:  rec.Awaiting,
		Prompt:    rec.Prompt,
		State:     rec.State,
	}, nil
}
