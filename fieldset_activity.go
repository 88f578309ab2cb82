package lazyfield

import (
	"context"

	"github.com/goliatone/go-lazyfield/pkg/activity"
)

// InstanceIdentifier supplies a stable instance id for emitted field events.
// Receivers that implement it get per-instance event paths; Record does.
type InstanceIdentifier interface {
	InstanceID() string
}

// WithActivityHooks attaches activity hooks to the set configuration and
// enables emission. Hooks are cloned and nil entries dropped to preserve
// immutability.
func WithActivityHooks(hooks activity.Hooks) SetOption {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *setConfig) {
		cfg.activityHooks = normalized
		if len(normalized) > 0 {
			cfg.activityConfig.Enabled = true
		}
	}
}

// WithActivityConfig replaces the emitter configuration, including the enabled
// switch and channel routing. Options apply in order, so place it after
// WithActivityHooks to keep hooks attached while emission stays off.
func WithActivityConfig(cfg activity.Config) SetOption {
	return func(sc *setConfig) {
		sc.activityConfig = cfg
	}
}

// ActivityHooks returns a cloned slice of the hooks configured on the set. The
// returned slice can be safely mutated by the caller.
func (s *FieldSet) ActivityHooks() activity.Hooks {
	if s == nil {
		return nil
	}
	return cloneActivityHooks(s.cfg.activityHooks)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}

// emitFieldEvent renders one lifecycle event and forwards it to the emitter.
// Emission failures surface to the caller; the store they describe stands.
func (s *FieldSet) emitFieldEvent(verb string, input activity.FieldEventInput) error {
	if s == nil || !s.emitter.Enabled() {
		return nil
	}
	var event activity.Event
	switch verb {
	case activity.VerbFieldBuilt:
		event = activity.BuildFieldBuiltEvent(input)
	case activity.VerbFieldCleared:
		event = activity.BuildFieldClearedEvent(input)
	case activity.VerbFieldRejected:
		event = activity.BuildFieldRejectedEvent(input)
	default:
		event = activity.BuildFieldStoredEvent(input)
	}
	return s.emitter.Emit(context.Background(), event)
}
