package lazyfield

import (
	"errors"
	"fmt"
)

// ErrNoValue indicates a field access that found no stored value and no way to
// produce one.
var ErrNoValue = errors.New("lazyfield: field has no value")

// NoValue is the sentinel a registry-backed filter returns to reject a store.
// The cell keeps its previous state, distinguishing "no value" from storing a
// nil domain value.
var NoValue = noValue{}

type noValue struct{}

func (noValue) String() string { return "<no value>" }

// ConfigurationError reports invalid field or set declarations. It is raised
// once at setup time, never per instance.
type ConfigurationError struct {
	Type   string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Type != "" && e.Field != "":
		return fmt.Sprintf("lazyfield: %s.%s: %s", e.Type, e.Field, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("lazyfield: field %s: %s", e.Field, e.Reason)
	case e.Type != "":
		return fmt.Sprintf("lazyfield: %s: %s", e.Type, e.Reason)
	default:
		return fmt.Sprintf("lazyfield: %s", e.Reason)
	}
}

func newConfigError(typeName, field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Type:   typeName,
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}

// MethodNotFoundError reports a named or conventional hook whose method could
// not be resolved against the registry.
type MethodNotFoundError struct {
	Type       string
	Field      string
	Kind       HookKind
	Candidates []string
}

func (e *MethodNotFoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	label := e.Field
	if e.Type != "" {
		label = e.Type + "." + e.Field
	}
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("lazyfield: no %s method for %s", e.Kind, label)
	}
	return fmt.Sprintf("lazyfield: no %s method for %s (tried %s)", e.Kind, label, joinNames(e.Candidates))
}

// BuildError wraps a builder invocation failure. The cell is left unset and
// waiting readers retry.
type BuildError struct {
	Type  string
	Field string
	Err   error
}

func (e *BuildError) Error() string {
	if e == nil {
		return "<nil>"
	}
	label := e.Field
	if e.Type != "" {
		label = e.Type + "." + e.Field
	}
	return fmt.Sprintf("lazyfield: build %s: %v", label, e.Err)
}

func (e *BuildError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func joinNames(names []string) string {
	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += name
	}
	return out
}
