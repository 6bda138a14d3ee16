package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/insurai/internal/logging"
	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/graph"
)

const (
	// DefaultMaxSelfLoops bounds consecutive self-routings of a node.
	DefaultMaxSelfLoops = 5
	// DefaultMaxSteps bounds node applications within a single run.
	DefaultMaxSteps = 1000
	// DefaultCapabilityTimeout bounds each capability call.
	DefaultCapabilityTimeout = 20 * time.Second
)

// Result is the outcome of a run.
type Result struct {
	State  *domain.State
	Status domain.Status

	// Awaiting is the input name a suspended run waits for.
	Awaiting string
	// SuspendedAt is the node the next run must resume from.
	SuspendedAt string
	// Prompt is the question rendered for the awaited input.
	Prompt string
	// Messages are the outputs produced by the nodes applied in this run.
	Messages []string
}

// Executor runs compiled graphs one node at a time.
// It holds no per-session data and is safe for concurrent use.
type Executor struct {
	logger            *slog.Logger
	hooks             domain.LifecycleHooks
	maxSelfLoops      int
	maxSteps          int
	capabilityTimeout time.Duration
}

// Option configures the Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) {
		e.hooks = hooks
	}
}

// WithMaxSelfLoops sets the default consecutive self-loop bound.
func WithMaxSelfLoops(bound int) Option {
	return func(e *Executor) {
		if bound > 0 {
			e.maxSelfLoops = bound
		}
	}
}

// WithMaxSteps sets the number of node applications allowed per run.
func WithMaxSteps(steps int) Option {
	return func(e *Executor) {
		if steps > 0 {
			e.maxSteps = steps
		}
	}
}

// WithCapabilityTimeout sets the timeout applied to capability nodes and
// conditional routing.
func WithCapabilityTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.capabilityTimeout = d
		}
	}
}

// NewExecutor creates an executor with the given options.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		logger:            logging.NewNop(),
		maxSelfLoops:      DefaultMaxSelfLoops,
		maxSteps:          DefaultMaxSteps,
		capabilityTimeout: DefaultCapabilityTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes g starting at resumeAt (or the start node when empty) until
// the flow suspends on a missing input or reaches the end.
//
// Node failures never surface as Go errors: they latch state.error, and the
// run short-circuits to the terminal node. The only error returned is
// domain.ErrUnknownNode for a resumeAt the graph does not declare.
func (e *Executor) Run(ctx context.Context, g *graph.Graph, state *domain.State, resumeAt string, inputs ...domain.Input) (Result, error) {
	if state == nil {
		state = domain.NewState()
	}
	if state.Fields == nil {
		state.Fields = make(map[string]any)
	}
	if state.Loops == nil {
		state.Loops = make(map[string]int)
	}
	state.Outbox = nil

	current := g.Start()
	if resumeAt != "" {
		if _, ok := g.Node(resumeAt); !ok {
			return Result{}, fmt.Errorf("%w: %q in flow %q", domain.ErrUnknownNode, resumeAt, g.Name())
		}
		current = resumeAt
	}

	pending := append([]domain.Input(nil), inputs...)

	if state.Failed() {
		return e.finish(ctx, g, state, current), nil
	}

	for steps := 0; ; steps++ {
		if current == domain.End || current == g.Terminal() {
			return e.finish(ctx, g, state, current), nil
		}
		if steps >= e.maxSteps {
			e.logger.Warn("step limit reached", "flow", g.Name(), "node", current, "limit", e.maxSteps)
			state.Fail(fmt.Sprintf("The conversation ran for too long without finishing (limit %d steps).", e.maxSteps))
			return e.finish(ctx, g, state, current), nil
		}

		node, _ := g.Node(current)

		if node.Kind == domain.KindInput {
			value, ok := take(&pending, node.Input)
			if !ok {
				return e.suspend(ctx, g, state, node), nil
			}
			if err := state.Set(node.Input, value); err != nil {
				state.Fail(domain.UserMessage(err))
			}
		}

		if !state.Failed() {
			e.apply(ctx, g, node, state)
		}
		state.Revision++

		if state.Failed() {
			msg, _ := state.Failure()
			e.logger.Warn("short-circuit to terminal node", "flow", g.Name(), "node", current, "err", msg)
			return e.finish(ctx, g, state, current), nil
		}

		// Classifier-driven selectors share the capability timeout; a late
		// answer falls back to the edge default.
		routeCtx, cancel := context.WithTimeout(ctx, e.capabilityTimeout)
		next := g.Route(routeCtx, current, state)
		cancel()
		if next == current {
			state.Loops[current]++
			bound := e.maxSelfLoops
			if node.MaxLoops > 0 {
				bound = node.MaxLoops
			}
			if state.Loops[current] > bound {
				state.Fail(domain.NewRetryBoundExceeded(current, bound).Message)
				e.logger.Warn("self-loop bound exceeded", "flow", g.Name(), "node", current, "bound", bound)
				return e.finish(ctx, g, state, current), nil
			}
		} else {
			delete(state.Loops, current)
		}

		e.logger.Debug("transition", "flow", g.Name(), "from", current, "to", next)
		current = next
	}
}

// apply runs the node transform, enforcing preconditions and the capability contract.
func (e *Executor) apply(ctx context.Context, g *graph.Graph, node domain.Node, state *domain.State) {
	e.emitNode(ctx, e.hooks.OnNodeEnter, domain.EventNodeEnter, g, node)
	defer e.emitNode(ctx, e.hooks.OnNodeLeave, domain.EventNodeLeave, g, node)

	for _, field := range node.Requires {
		if !state.Has(field) {
			verr := &domain.ValidationError{
				Field:   field,
				Message: fmt.Sprintf("Missing required information (%s) at step %s.", field, node.Name),
			}
			state.Fail(verr.Message)
			return
		}
	}

	if node.Transform == nil {
		return
	}

	if node.Capability == "" {
		if err := node.Transform(ctx, state); err != nil {
			state.Fail(domain.UserMessage(err))
		}
		return
	}

	event := &domain.CapabilityEvent{
		EventBase:  e.base(ctx, domain.EventCapabilityCall, g),
		Node:       node.Name,
		Capability: node.Capability,
	}
	if e.hooks.OnCapabilityCall != nil {
		e.hooks.OnCapabilityCall(ctx, event)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.capabilityTimeout)
	start := time.Now()
	err := node.Transform(callCtx, state)
	cancel()

	ret := &domain.CapabilityEvent{
		EventBase:  e.base(ctx, domain.EventCapabilityReturn, g),
		Node:       node.Name,
		Capability: node.Capability,
		Duration:   time.Since(start),
	}
	if err != nil {
		msg := domain.UserMessage(err)
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("The %s service took too long to respond. Please try again later.", node.Capability)
		}
		state.Fail(msg)
		ret.IsError = true
		ret.Message = msg
		e.logger.Warn("capability failed", "flow", g.Name(), "node", node.Name, "capability", node.Capability, "err", err)
	}
	if e.hooks.OnCapabilityReturn != nil {
		e.hooks.OnCapabilityReturn(ctx, ret)
	}
}

// suspend returns the state unchanged, waiting for the node's input.
func (e *Executor) suspend(ctx context.Context, g *graph.Graph, state *domain.State, node domain.Node) Result {
	prompt := ""
	if node.Prompt != nil {
		prompt = node.Prompt(state)
	}
	if e.hooks.OnSuspend != nil {
		e.hooks.OnSuspend(ctx, &domain.RunEvent{
			EventBase: e.base(ctx, domain.EventSuspend, g),
			Node:      node.Name,
			Status:    domain.StatusSuspended,
			Awaiting:  node.Input,
		})
	}
	e.logger.Debug("suspended", "flow", g.Name(), "node", node.Name, "awaiting", node.Input)
	return Result{
		State:       state,
		Status:      domain.StatusSuspended,
		Awaiting:    node.Input,
		SuspendedAt: node.Name,
		Prompt:      prompt,
		Messages:    state.Outbox,
	}
}

// finish runs the terminal node once. The terminal node may only speak:
// every field it touches is restored, then session_complete is set.
func (e *Executor) finish(ctx context.Context, g *graph.Graph, state *domain.State, last string) Result {
	if term := g.Terminal(); term != "" {
		node, _ := g.Node(term)
		snapshot := state.Clone()

		e.emitNode(ctx, e.hooks.OnNodeEnter, domain.EventNodeEnter, g, node)
		if node.Transform != nil {
			runCtx := ctx
			if node.Capability != "" {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, e.capabilityTimeout)
				defer cancel()
			}
			if err := node.Transform(runCtx, state); err != nil {
				e.logger.Warn("terminal node failed", "flow", g.Name(), "node", term, "err", err)
			}
		}
		e.emitNode(ctx, e.hooks.OnNodeLeave, domain.EventNodeLeave, g, node)

		state.Fields = snapshot.Fields
		state.Loops = snapshot.Loops
		last = term
	}
	state.Fields[domain.FieldSessionComplete] = true
	state.Revision++

	status := domain.StatusDone
	if state.Failed() {
		status = domain.StatusDoneWithError
	}
	if e.hooks.OnFinish != nil {
		e.hooks.OnFinish(ctx, &domain.RunEvent{
			EventBase: e.base(ctx, domain.EventFinish, g),
			Node:      last,
			Status:    status,
		})
	}
	e.logger.Debug("finished", "flow", g.Name(), "status", status)
	return Result{
		State:    state,
		Status:   status,
		Messages: state.Outbox,
	}
}

func (e *Executor) emitNode(ctx context.Context, hook func(context.Context, *domain.NodeEvent), typ domain.EventType, g *graph.Graph, node domain.Node) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.NodeEvent{
		EventBase: e.base(ctx, typ, g),
		Node:      node.Name,
		Kind:      node.Kind,
	})
}

func (e *Executor) base(ctx context.Context, typ domain.EventType, g *graph.Graph) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now(),
		Type:      typ,
		SessionID: domain.SessionFromContext(ctx),
		Flow:      g.Name(),
	}
}

// take removes and returns the first pending input with the given name.
func take(pending *[]domain.Input, name string) (any, bool) {
	for i, in := range *pending {
		if in.Name == name {
			*pending = append((*pending)[:i], (*pending)[i+1:]...)
			return in.Value, true
		}
	}
	return nil, false
}
