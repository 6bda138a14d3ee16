package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/insurai/pkg/domain"
)

// LoggingHooks writes lifecycle events to logger. Node transitions are
// logged at Debug, capability failures at Warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "session", e.SessionID, "flow", e.Flow, "node", e.Node, "kind", e.Kind)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave", "session", e.SessionID, "flow", e.Flow, "node", e.Node)
		},
		OnCapabilityCall: func(ctx context.Context, e *domain.CapabilityEvent) {
			logger.DebugContext(ctx, "capability_call", "session", e.SessionID, "flow", e.Flow, "node", e.Node, "capability", e.Capability)
		},
		OnCapabilityReturn: func(ctx context.Context, e *domain.CapabilityEvent) {
			if e.IsError {
				logger.WarnContext(ctx, "capability_return", "session", e.SessionID, "flow", e.Flow, "capability", e.Capability,
					"duration", e.Duration, "error", e.Message)
				return
			}
			logger.DebugContext(ctx, "capability_return", "session", e.SessionID, "flow", e.Flow, "capability", e.Capability, "duration", e.Duration)
		},
		OnSuspend: func(ctx context.Context, e *domain.RunEvent) {
			logger.DebugContext(ctx, "suspend", "session", e.SessionID, "flow", e.Flow, "node", e.Node, "awaiting", e.Awaiting)
		},
		OnFinish: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "finish", "session", e.SessionID, "flow", e.Flow, "node", e.Node, "status", e.Status)
		},
	}
}
