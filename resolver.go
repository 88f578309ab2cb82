package lazyfield

import (
	"unicode"
	"unicode/utf8"
)

// Visibility classifies a field or generated accessor by Go naming convention:
// an exported leading rune is public, anything else private.
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityPrivate
)

func (v Visibility) String() string {
	if v == VisibilityPublic {
		return "public"
	}
	return "private"
}

func (v Visibility) opposite() Visibility {
	if v == VisibilityPublic {
		return VisibilityPrivate
	}
	return VisibilityPublic
}

// ResolveMode controls which casings of a hook name are considered when
// resolving it against the method registry.
type ResolveMode int

const (
	// ResolveAuto tries the field's own visibility first, then the opposite.
	ResolveAuto ResolveMode = iota
	// ResolveMatchField tries only the field's own visibility.
	ResolveMatchField
	// ResolveForcePublic tries only the exported casing.
	ResolveForcePublic
	// ResolveForcePrivate tries only the unexported casing.
	ResolveForcePrivate
)

// HookKind names the hook slots a field can declare.
type HookKind int

const (
	KindBuilder HookKind = iota
	KindFilter
	KindTrigger
	KindPredicate
	KindClearer
)

func (k HookKind) String() string {
	switch k {
	case KindBuilder:
		return "builder"
	case KindFilter:
		return "filter"
	case KindTrigger:
		return "trigger"
	case KindPredicate:
		return "predicate"
	case KindClearer:
		return "clearer"
	default:
		return "hook"
	}
}

// conventionalPrefix returns the generated-name prefix for a hook kind.
func conventionalPrefix(kind HookKind) string {
	switch kind {
	case KindBuilder:
		return "build"
	case KindFilter:
		return "filter"
	case KindTrigger:
		return "trigger"
	case KindPredicate:
		return "has"
	case KindClearer:
		return "clear"
	default:
		return ""
	}
}

type refKind int

const (
	refDisabled refKind = iota
	refConventional
	refNamed
	refFunc
	refExpr
)

// hookRef records how one hook slot was declared. Typed funcs and expressions
// bypass registry resolution entirely.
type hookRef struct {
	kind refKind
	name string
	expr string
}

func (r hookRef) enabled() bool { return r.kind != refDisabled }

// deriveVisibility classifies a name by its leading rune.
func deriveVisibility(name string) Visibility {
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return VisibilityPublic
	}
	return VisibilityPrivate
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size <= 1 {
		return s
	}
	up := unicode.ToUpper(r)
	if up == r {
		return s
	}
	return string(up) + s[size:]
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size <= 1 {
		return s
	}
	low := unicode.ToLower(r)
	if low == r {
		return s
	}
	return string(low) + s[size:]
}

// recase maps a method name into the requested visibility by flipping its
// leading rune.
func recase(name string, vis Visibility) string {
	if vis == VisibilityPublic {
		return upperFirst(name)
	}
	return lowerFirst(name)
}

// candidateNames derives the registry names to try for one hook slot. The
// resolve mode recases both conventional and explicitly named hooks; names
// whose leading rune has no case collapse to a single candidate.
func candidateNames(kind HookKind, ref hookRef, base string, fieldVis Visibility, mode ResolveMode) []string {
	raw := ref.name
	if ref.kind == refConventional {
		raw = conventionalPrefix(kind) + upperFirst(base)
	}
	switch mode {
	case ResolveForcePublic:
		return []string{recase(raw, VisibilityPublic)}
	case ResolveForcePrivate:
		return []string{recase(raw, VisibilityPrivate)}
	case ResolveMatchField:
		return []string{recase(raw, fieldVis)}
	default:
		first := recase(raw, fieldVis)
		second := recase(raw, fieldVis.opposite())
		if first == second {
			return []string{first}
		}
		return []string{first, second}
	}
}

// resolveHook finds the registry method for a named or conventional hook.
// Strict resolution turns a miss into a MethodNotFoundError; non-strict
// resolution reports a miss as absence, which is how optional predicate and
// clearer lookups behave.
func resolveHook(reg *MethodRegistry, typeName, base string, fieldVis Visibility, mode ResolveMode, kind HookKind, ref hookRef, strict bool) (Method, error) {
	cands := candidateNames(kind, ref, base, fieldVis, mode)
	for _, name := range cands {
		if fn, ok := reg.Lookup(typeName, name); ok {
			return fn, nil
		}
	}
	if strict {
		return nil, &MethodNotFoundError{Type: typeName, Field: base, Kind: kind, Candidates: cands}
	}
	return nil, nil
}
