package lazyfield

import "time"

// HookLogEvent describes one hook invocation for logging. Kind is the hook
// slot ("builder", "filter", "trigger") or "eval" for ad hoc evaluation.
type HookLogEvent struct {
	Engine   string
	Kind     string
	Type     string
	Field    string
	Expr     string
	Duration time.Duration
	Err      error
}

// HookLogger records hook invocation events.
type HookLogger interface {
	LogHook(HookLogEvent)
}

// HookLoggerFunc adapts a function to HookLogger.
type HookLoggerFunc func(HookLogEvent)

// LogHook implements HookLogger.
func (f HookLoggerFunc) LogHook(event HookLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopHookLogger struct{}

func (noopHookLogger) LogHook(HookLogEvent) {}

// WithHookLogger attaches a hook logger to the field set.
func WithHookLogger(logger HookLogger) SetOption {
	return func(cfg *setConfig) {
		if logger == nil {
			cfg.logger = noopHookLogger{}
			return
		}
		cfg.logger = logger
	}
}
