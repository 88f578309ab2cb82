package lazyfield

import (
	"fmt"
	"slices"
)

// SourceLevel identifies the precedence of an initialization source. Higher
// levels override lower levels when layering.
type SourceLevel int

const (
	// SourceLevelUnknown guards against misconfiguration so call sites can
	// detect missing metadata.
	SourceLevelUnknown SourceLevel = iota
	// SourceLevelDefaults represents the weakest layer (declared defaults).
	SourceLevelDefaults
	// SourceLevelConfig represents values loaded from configuration.
	SourceLevelConfig
	// SourceLevelCaller represents the strongest layer, values handed in by
	// the constructing caller.
	SourceLevelCaller
)

func (l SourceLevel) String() string {
	switch l {
	case SourceLevelDefaults:
		return "defaults"
	case SourceLevelConfig:
		return "config"
	case SourceLevelCaller:
		return "caller"
	default:
		return "unknown"
	}
}

// ParseSourceLevel converts a string representation into the corresponding
// SourceLevel. Returns SourceLevelUnknown for unrecognised values.
func ParseSourceLevel(value string) SourceLevel {
	switch value {
	case "defaults", "DEFAULTS":
		return SourceLevelDefaults
	case "config", "CONFIG":
		return SourceLevelConfig
	case "caller", "CALLER":
		return SourceLevelCaller
	default:
		return SourceLevelUnknown
	}
}

// SourceRef names an initialization source within a layering chain.
type SourceRef struct {
	Key    string      // logical key for the value domain (e.g., "profile")
	Level  SourceLevel // precedence category
	Origin string      // config path or caller identifier, when applicable
}

// Identifier returns a stable slug adapters can use when composing
// deterministic storage keys (e.g., "config/settings.json/profile").
func (r SourceRef) Identifier() string {
	switch r.Level {
	case SourceLevelCaller:
		return fmt.Sprintf("caller/%s/%s", r.Origin, r.Key)
	case SourceLevelConfig:
		return fmt.Sprintf("config/%s/%s", r.Origin, r.Key)
	case SourceLevelDefaults:
		return fmt.Sprintf("defaults/%s", r.Key)
	default:
		return fmt.Sprintf("unknown/%s", r.Key)
	}
}

// SourceChain describes the ordered layering sequence from strongest to
// weakest.
type SourceChain struct {
	ordered []SourceRef
}

// NewSourceChain constructs a chain and deduplicates refs using their
// Identifier. The resulting order always places stronger levels before weaker
// ones while keeping relative ordering for peers.
func NewSourceChain(refs ...SourceRef) SourceChain {
	filtered := make([]SourceRef, 0, len(refs))
	seen := map[string]struct{}{}

	for _, ref := range refs {
		if ref.Level == SourceLevelUnknown {
			continue
		}
		id := ref.Identifier()
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		filtered = append(filtered, ref)
	}

	slices.SortStableFunc(filtered, func(a, b SourceRef) int {
		if a.Level == b.Level {
			return 0
		}
		if a.Level > b.Level {
			return -1
		}
		return 1
	})

	return SourceChain{ordered: filtered}
}

// Ordered returns the layering sequence from strongest (index 0) to weakest.
func (c SourceChain) Ordered() []SourceRef {
	out := make([]SourceRef, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Strongest returns the first ref in the chain (zero ref if empty).
func (c SourceChain) Strongest() SourceRef {
	if len(c.ordered) == 0 {
		return SourceRef{}
	}
	return c.ordered[0]
}

// Weakest returns the final ref in the chain (zero ref if empty).
func (c SourceChain) Weakest() SourceRef {
	if len(c.ordered) == 0 {
		return SourceRef{}
	}
	return c.ordered[len(c.ordered)-1]
}
