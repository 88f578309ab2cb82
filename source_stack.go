package lazyfield

import (
	"errors"
	"fmt"
	"sort"

	layering "github.com/goliatone/go-lazyfield/layering"
)

// Source models one named bucket of externally supplied field values (caller
// arguments, configuration, defaults, etc.). Higher priority values represent
// stronger sources.
type Source struct {
	Name       string
	Label      string
	Priority   int
	Level      layering.SourceLevel
	Values     map[string]any
	Metadata   map[string]any
	SnapshotID string
}

// SourceOption configures metadata on Source creation.
type SourceOption func(*sourceConfig)

type sourceConfig struct {
	label      string
	level      layering.SourceLevel
	metadata   map[string]any
	snapshotID string
}

// WithSourceLabel sets a human-friendly label on the source.
func WithSourceLabel(label string) SourceOption {
	return func(cfg *sourceConfig) {
		cfg.label = label
	}
}

// WithSourceLevel tags the source with its layering level.
func WithSourceLevel(level layering.SourceLevel) SourceOption {
	return func(cfg *sourceConfig) {
		cfg.level = level
	}
}

// WithSourceMetadata attaches arbitrary metadata to the source. The map is
// copied so the resulting Source remains immutable even if the caller mutates
// their reference.
func WithSourceMetadata(metadata map[string]any) SourceOption {
	return func(cfg *sourceConfig) {
		if len(metadata) == 0 {
			return
		}
		cfg.metadata = copyMetadata(metadata)
	}
}

// WithSourceSnapshotID sets the snapshot identifier used for auditing.
func WithSourceSnapshotID(id string) SourceOption {
	return func(cfg *sourceConfig) {
		cfg.snapshotID = id
	}
}

// NewSource builds a Source with the supplied configuration. Validation is
// deferred to SourceStack construction so callers can assemble sources before
// deciding precedence.
func NewSource(name string, priority int, values map[string]any, opts ...SourceOption) Source {
	cfg := sourceConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return Source{
		Name:       name,
		Label:      cfg.label,
		Priority:   priority,
		Level:      cfg.level,
		Values:     layering.Clone(values),
		Metadata:   copyMetadata(cfg.metadata),
		SnapshotID: cfg.snapshotID,
	}
}

// clone returns a copy of s, ensuring Values and Metadata are detached from
// the original.
func (s Source) clone() Source {
	return Source{
		Name:       s.Name,
		Label:      s.Label,
		Priority:   s.Priority,
		Level:      s.Level,
		Values:     layering.Clone(s.Values),
		Metadata:   copyMetadata(s.Metadata),
		SnapshotID: s.SnapshotID,
	}
}

func (s Source) ref() layering.SourceRef {
	return layering.SourceRef{Key: s.Name, Level: s.Level, Origin: s.Label}
}

var (
	// ErrSourceNameRequired indicates a missing source name.
	ErrSourceNameRequired = errors.New("source: name must be provided")
	// ErrDuplicateSourceName indicates SourceStack construction received
	// multiple sources with the same name.
	ErrDuplicateSourceName = errors.New("source: names must be unique")
	// ErrPriorityOrder indicates SourceStack construction detected duplicate
	// or unsorted priorities.
	ErrPriorityOrder = errors.New("source: priorities must be strictly ordered")
)

// SourceStack represents an immutable, precedence-aware collection of value
// sources ordered from strongest to weakest.
type SourceStack struct {
	sources []Source
}

// NewSourceStack validates and sorts the supplied sources so that the
// strongest source (highest priority) is first. Sources and their values are
// deep copied to guarantee read-only safety after construction.
func NewSourceStack(sources ...Source) (*SourceStack, error) {
	if len(sources) == 0 {
		return &SourceStack{}, nil
	}

	seenNames := make(map[string]struct{}, len(sources))
	copied := make([]Source, len(sources))
	for i, source := range sources {
		source := source.clone()
		if source.Name == "" {
			return nil, ErrSourceNameRequired
		}
		if _, ok := seenNames[source.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSourceName, source.Name)
		}
		seenNames[source.Name] = struct{}{}
		copied[i] = source
	}

	sort.Slice(copied, func(i, j int) bool {
		if copied[i].Priority == copied[j].Priority {
			return copied[i].Name < copied[j].Name
		}
		return copied[i].Priority > copied[j].Priority
	})

	for i := 1; i < len(copied); i++ {
		if copied[i-1].Priority <= copied[i].Priority {
			return nil, fmt.Errorf("%w: %d", ErrPriorityOrder, copied[i].Priority)
		}
	}

	return &SourceStack{sources: copied}, nil
}

// Sources returns a defensive copy of the underlying sources to preserve
// immutability guarantees.
func (s *SourceStack) Sources() []Source {
	if s == nil || len(s.sources) == 0 {
		return nil
	}
	out := make([]Source, len(s.sources))
	for i := range s.sources {
		out[i] = s.sources[i].clone()
	}
	return out
}

// Len returns the number of sources in the stack.
func (s *SourceStack) Len() int {
	if s == nil {
		return 0
	}
	return len(s.sources)
}

// Lookup finds the first value for any of names, checking sources from
// strongest to weakest and, within each source, names in the given order.
func (s *SourceStack) Lookup(names ...string) (any, Source, bool) {
	if s == nil {
		return nil, Source{}, false
	}
	for i := range s.sources {
		for _, name := range names {
			if value, ok := s.sources[i].Values[name]; ok {
				return value, s.sources[i].clone(), true
			}
		}
	}
	return nil, Source{}, false
}

// Effective resolves the stack into a single merged view where stronger
// sources override weaker ones key by key.
func (s *SourceStack) Effective() map[string]any {
	if s == nil || len(s.sources) == 0 {
		return map[string]any{}
	}
	snapshots := make([]map[string]any, len(s.sources))
	for i := range s.sources {
		snapshots[i] = s.sources[i].Values
	}
	merged := layering.Merge(snapshots...)
	if merged == nil {
		return map[string]any{}
	}
	return merged
}

// Chain describes the stack as an ordered layering chain for adapters that
// compose storage keys.
func (s *SourceStack) Chain() layering.SourceChain {
	if s == nil || len(s.sources) == 0 {
		return layering.NewSourceChain()
	}
	refs := make([]layering.SourceRef, len(s.sources))
	for i := range s.sources {
		refs[i] = s.sources[i].ref()
	}
	return layering.NewSourceChain(refs...)
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
