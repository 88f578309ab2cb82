package lazyfield

import layering "github.com/goliatone/go-lazyfield/layering"

const (
	// Recommended priorities for common initialization patterns. Higher
	// numbers win.
	SourcePriorityDefaults = 100
	SourcePriorityConfig   = 200
	SourcePriorityCaller   = 300
)

// DefaultsConfigCaller assembles the canonical three-source stack (defaults →
// config → caller), with caller values taking precedence. Nil maps are valid
// and simply contribute nothing.
func DefaultsConfigCaller(defaults, config, caller map[string]any) (*SourceStack, error) {
	return NewSourceStack(
		NewSource("caller", SourcePriorityCaller, caller,
			WithSourceLabel("Caller Arguments"),
			WithSourceLevel(layering.SourceLevelCaller)),
		NewSource("config", SourcePriorityConfig, config,
			WithSourceLabel("Configuration"),
			WithSourceLevel(layering.SourceLevelConfig)),
		NewSource("defaults", SourcePriorityDefaults, defaults,
			WithSourceLabel("Defaults"),
			WithSourceLevel(layering.SourceLevelDefaults)),
	)
}

// CallerValues wraps one map of caller-supplied values in a single-source
// stack, the common case when constructing an instance directly.
func CallerValues(values map[string]any) (*SourceStack, error) {
	return NewSourceStack(
		NewSource("caller", SourcePriorityCaller, values,
			WithSourceLabel("Caller Arguments"),
			WithSourceLevel(layering.SourceLevelCaller)),
	)
}
