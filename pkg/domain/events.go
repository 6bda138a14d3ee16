package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter        EventType = "node_enter"
	EventNodeLeave        EventType = "node_leave"
	EventCapabilityCall   EventType = "capability_call"
	EventCapabilityReturn EventType = "capability_return"
	EventSuspend          EventType = "suspend"
	EventFinish           EventType = "finish"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Flow      string    `json:"flow"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	Node string   `json:"node"`
	Kind NodeKind `json:"kind"`
}

// CapabilityEvent represents a call to an external collaborator.
type CapabilityEvent struct {
	EventBase
	Node       string        `json:"node"`
	Capability string        `json:"capability"`
	Duration   time.Duration `json:"duration,omitempty"`
	IsError    bool          `json:"is_error,omitempty"`
	Message    string        `json:"message,omitempty"`
}

// RunEvent represents a run ending, either suspended or finished.
type RunEvent struct {
	EventBase
	Node     string `json:"node"`
	Status   Status `json:"status"`
	Awaiting string `json:"awaiting,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter        func(context.Context, *NodeEvent)
	OnNodeLeave        func(context.Context, *NodeEvent)
	OnCapabilityCall   func(context.Context, *CapabilityEvent)
	OnCapabilityReturn func(context.Context, *CapabilityEvent)
	OnSuspend          func(context.Context, *RunEvent)
	OnFinish           func(context.Context, *RunEvent)
}

// CombineHooks fans every callback out to each of the given hook sets.
func CombineHooks(all ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *NodeEvent) {
			for _, h := range all {
				if h.OnNodeEnter != nil {
					h.OnNodeEnter(ctx, e)
				}
			}
		},
		OnNodeLeave: func(ctx context.Context, e *NodeEvent) {
			for _, h := range all {
				if h.OnNodeLeave != nil {
					h.OnNodeLeave(ctx, e)
				}
			}
		},
		OnCapabilityCall: func(ctx context.Context, e *CapabilityEvent) {
			for _, h := range all {
				if h.OnCapabilityCall != nil {
					h.OnCapabilityCall(ctx, e)
				}
			}
		},
		OnCapabilityReturn: func(ctx context.Context, e *CapabilityEvent) {
			for _, h := range all {
				if h.OnCapabilityReturn != nil {
					h.OnCapabilityReturn(ctx, e)
				}
			}
		},
		OnSuspend: func(ctx context.Context, e *RunEvent) {
			for _, h := range all {
				if h.OnSuspend != nil {
					h.OnSuspend(ctx, e)
				}
			}
		},
		OnFinish: func(ctx context.Context, e *RunEvent) {
			for _, h := range all {
				if h.OnFinish != nil {
					h.OnFinish(ctx, e)
				}
			}
		},
	}
}

type sessionKey struct{}

// ContextWithSession tags ctx with the session being executed.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFromContext returns the session tagged by ContextWithSession.
func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
