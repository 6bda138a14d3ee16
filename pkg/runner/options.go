package runner

import "log/slog"

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithHandler configures the IOHandler. Defaults to a TextHandler on stdio.
func WithHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.handler = handler
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithFlow names the flow a new session runs.
func WithFlow(flow string) Option {
	return func(r *Runner) {
		r.flow = flow
	}
}

// WithSessionID resumes an existing session instead of starting one.
func WithSessionID(id string) Option {
	return func(r *Runner) {
		r.sessionID = id
	}
}
