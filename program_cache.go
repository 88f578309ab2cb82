package lazyfield

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache registers a program cache shared by expression hooks.
func WithProgramCache(cache ProgramCache) SetOption {
	return func(cfg *setConfig) {
		cfg.programCache = cache
	}
}
