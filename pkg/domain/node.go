package domain

import "context"

// NodeKind defines how the executor treats a node.
type NodeKind string

const (
	// KindPure transforms the state and never suspends.
	KindPure NodeKind = "pure"
	// KindInput suspends until the caller supplies the named input.
	KindInput NodeKind = "input"
	// KindCapability calls an external collaborator under a timeout.
	// A failure is recorded into the state instead of being raised.
	KindCapability NodeKind = "capability"
)

// End is the terminal marker an edge may route to.
const End = "__end__"

// Transform mutates the shared session state.
type Transform func(ctx context.Context, s *State) error

// Selector picks the next node from the post-transform state.
type Selector func(ctx context.Context, s *State) string

// PromptFunc renders the question shown while a session waits for input.
type PromptFunc func(s *State) string

// Prompt returns a PromptFunc for a fixed text.
func Prompt(text string) PromptFunc {
	return func(*State) string { return text }
}

// Node is a named unit of work inside a flow.
type Node struct {
	Name string
	Kind NodeKind

	// Input is the name of the value a KindInput node awaits.
	// The supplied value is stored under the same field name.
	Input string

	// Prompt is rendered when the session suspends on this node.
	Prompt PromptFunc

	// Capability labels the collaborator the transform calls. It is set on
	// every KindCapability node and on input nodes that call out once their
	// value arrives.
	Capability string

	// Requires lists the fields that must be present before Transform runs.
	Requires []string

	// MaxLoops overrides the engine's consecutive self-loop bound (0 = default).
	MaxLoops int

	Transform Transform
}

// Edge is the outgoing rule of a node.
// An edge with a nil Selector routes unconditionally to To.
type Edge struct {
	From string
	To   string

	Selector Selector
	// Targets is the closed set a Selector may route to.
	Targets []string
	// Default receives any selector result outside Targets.
	Default string
}

// Conditional reports whether the edge is selector-driven.
func (e Edge) Conditional() bool {
	return e.Selector != nil
}

// Destinations lists every node the edge can route to.
func (e Edge) Destinations() []string {
	if !e.Conditional() {
		return []string{e.To}
	}
	return e.Targets
}

// Input is a value supplied by the caller for a suspended node.
type Input struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}
