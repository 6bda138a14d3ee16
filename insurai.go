package insurai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/insurai/internal/logging"
	"github.com/aretw0/insurai/internal/runtime"
	"github.com/aretw0/insurai/pkg/adapters/memory"
	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/graph"
	"github.com/aretw0/insurai/pkg/ports"
	"github.com/aretw0/insurai/pkg/session"
	"github.com/oklog/ulid/v2"
)

// Result is what a caller sees after starting or advancing a session.
type Result struct {
	SessionID string        `json:"session_id"`
	Flow      string        `json:"flow"`
	Status    domain.Status `json:"status"`

	// Awaiting names the input the session is suspended on.
	Awaiting string `json:"awaiting,omitempty"`
	// Prompt is the question to show for the awaited input.
	Prompt string `json:"prompt,omitempty"`
	// Messages are the outputs produced during this call.
	Messages []string `json:"messages,omitempty"`

	State *domain.State `json:"state"`
	// Diff holds the fields this call changed.
	Diff *domain.StateDiff `json:"diff,omitempty"`
}

// Engine is the session boundary: it owns the compiled flows, runs them
// with the executor and persists every session between calls.
type Engine struct {
	executor *runtime.Executor
	sessions *session.Manager

	mu    sync.RWMutex
	flows map[string]*graph.Graph

	store       ports.SessionStore
	locker      ports.DistributedLocker
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	runtimeOpts []runtime.Option
	newID       func() string
	now         func() time.Time
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the session store (default: in-memory without expiry).
func WithStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables distributed session locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithMaxSelfLoops sets the default consecutive self-loop bound.
func WithMaxSelfLoops(bound int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxSelfLoops(bound))
	}
}

// WithMaxSteps caps node applications per call.
func WithMaxSteps(steps int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxSteps(steps))
	}
}

// WithCapabilityTimeout bounds each capability call.
func WithCapabilityTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithCapabilityTimeout(d))
	}
}

// WithIDGenerator replaces the ULID session id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// New creates an engine. Flows are added with Register.
func New(opts ...Option) *Engine {
	e := &Engine{
		flows: make(map[string]*graph.Graph),
		newID: func() string { return ulid.Make().String() },
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}

	managerOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(e.store, managerOpts...)

	runtimeOpts := []runtime.Option{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
	}
	e.executor = runtime.NewExecutor(append(runtimeOpts, e.runtimeOpts...)...)
	return e
}

// Register adds compiled flows. Flow names must be unique.
func (e *Engine) Register(flows ...*graph.Graph) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, g := range flows {
		if g == nil {
			return errors.New("cannot register a nil flow")
		}
		if _, dup := e.flows[g.Name()]; dup {
			return fmt.Errorf("flow %q is already registered", g.Name())
		}
		e.flows[g.Name()] = g
	}
	return nil
}

// Flows returns the registered flow names in order.
func (e *Engine) Flows() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.flows))
	for name := range e.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flow returns a registered flow.
func (e *Engine) Flow(name string) (*graph.Graph, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.flows[name]
	return g, ok
}

func (e *Engine) flow(name string) (*graph.Graph, error) {
	g, ok := e.Flow(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownFlow, name)
	}
	return g, nil
}

// StartSession creates a session of the named flow and runs it until it
// first suspends or finishes. Inputs, if any, are consumed along the way.
func (e *Engine) StartSession(ctx context.Context, flow string, inputs ...domain.Input) (Result, error) {
	g, err := e.flow(flow)
	if err != nil {
		return Result{}, err
	}

	now := e.now()
	rec := &domain.SessionRecord{
		SessionID: e.newID(),
		Flow:      g.Name(),
		State:     domain.NewState(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	var res Result
	err = e.sessions.WithLock(ctx, rec.SessionID, func(ctx context.Context) error {
		res, err = e.step(ctx, g, rec, inputs)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	e.logger.Info("session started", "session", rec.SessionID, "flow", rec.Flow, "status", res.Status)
	return res, nil
}

// Advance resumes a suspended session with the supplied inputs.
// It returns domain.ErrSessionNotFound for unknown or expired sessions and
// domain.ErrSessionFinished once the flow has reached its end.
func (e *Engine) Advance(ctx context.Context, sessionID string, inputs ...domain.Input) (Result, error) {
	var res Result
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		rec, err := e.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}
		if rec.Status.Finished() {
			return fmt.Errorf("%w: %s", domain.ErrSessionFinished, sessionID)
		}
		g, err := e.flow(rec.Flow)
		if err != nil {
			return err
		}
		res, err = e.step(ctx, g, rec, inputs)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// step runs the flow from where the record stands and saves the outcome.
// The caller holds the session lock.
func (e *Engine) step(ctx context.Context, g *graph.Graph, rec *domain.SessionRecord, inputs []domain.Input) (Result, error) {
	ctx = domain.ContextWithSession(ctx, rec.SessionID)
	before := rec.State.Clone()

	out, err := e.executor.Run(ctx, g, rec.State, rec.SuspendedAt, inputs...)
	if err != nil {
		return Result{}, err
	}

	rec.State = out.State
	rec.Status = out.Status
	rec.Awaiting = out.Awaiting
	rec.SuspendedAt = out.SuspendedAt
	rec.Prompt = out.Prompt
	rec.UpdatedAt = e.now()

	if err := e.sessions.Store().Save(ctx, rec.SessionID, rec); err != nil {
		return Result{}, fmt.Errorf("failed to save session %s: %w", rec.SessionID, err)
	}

	diff := domain.Diff(before, out.State)
	if diff != nil {
		e.logger.Debug("state changed", "session", rec.SessionID, "revision", diff.Revision, "fields", len(diff.Fields))
	}

	return Result{
		SessionID: rec.SessionID,
		Flow:      rec.Flow,
		Status:    out.Status,
		Awaiting:  out.Awaiting,
		Prompt:    out.Prompt,
		Messages:  out.Messages,
		State:     out.State,
		Diff:      diff,
	}, nil
}

// Session returns the stored record of a session.
func (e *Engine) Session(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	return e.sessions.Load(ctx, sessionID)
}

// Sessions lists the live session IDs.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// EndSession deletes a session and returns its last state.
func (e *Engine) EndSession(ctx context.Context, sessionID string) (*domain.State, error) {
	var state *domain.State
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		rec, err := e.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := e.sessions.Store().Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
		}
		state = rec.State
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("session ended", "session", sessionID)
	return state, nil
}
