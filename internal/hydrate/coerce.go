package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context carries identifiers tied to a coerced value.
type Context struct {
	Field  string
	Source string
}

// PreHook lets callers mutate or normalise the raw value before coercion.
type PreHook func(Context, any) (any, error)

// PostHook lets callers adjust or validate the typed value after coercion.
type PostHook[T any] func(Context, *T) error

// CustomCoercer replaces the default JSON-based conversion when provided.
type CustomCoercer[T any] func(Context, any) (T, error)

// CoercerOption configures a Coercer instance.
type CoercerOption[T any] func(*Coercer[T])

// Coercer converts loosely typed values (constructor payloads, hook results,
// expression outputs) into a concrete field type. Values that already carry
// the target type pass through without a JSON round trip.
type Coercer[T any] struct {
	preHooks     []PreHook
	postHooks    []PostHook[T]
	configureDec []func(*json.Decoder)
	custom       CustomCoercer[T]
}

// WithPreHook applies hook prior to conversion.
func WithPreHook[T any](hook PreHook) CoercerOption[T] {
	return func(c *Coercer[T]) {
		c.preHooks = append(c.preHooks, hook)
	}
}

// WithPostHook applies hook after conversion completes.
func WithPostHook[T any](hook PostHook[T]) CoercerOption[T] {
	return func(c *Coercer[T]) {
		c.postHooks = append(c.postHooks, hook)
	}
}

// WithUseNumber enables json.Decoder.UseNumber during conversion.
func WithUseNumber[T any]() CoercerOption[T] {
	return func(c *Coercer[T]) {
		c.configureDec = append(c.configureDec, func(dec *json.Decoder) {
			dec.UseNumber()
		})
	}
}

// WithDisallowUnknownFields invokes json.Decoder.DisallowUnknownFields.
func WithDisallowUnknownFields[T any]() CoercerOption[T] {
	return func(c *Coercer[T]) {
		c.configureDec = append(c.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

// WithDecoderConfig allows callers to configure the json.Decoder directly.
func WithDecoderConfig[T any](configure func(*json.Decoder)) CoercerOption[T] {
	return func(c *Coercer[T]) {
		if configure != nil {
			c.configureDec = append(c.configureDec, configure)
		}
	}
}

// WithCustomCoercer replaces the default conversion path.
func WithCustomCoercer[T any](coercer CustomCoercer[T]) CoercerOption[T] {
	return func(c *Coercer[T]) {
		c.custom = coercer
	}
}

func NewCoercer[T any](opts ...CoercerOption[T]) *Coercer[T] {
	c := &Coercer[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Coerce converts value into T applying configured hooks.
func (c *Coercer[T]) Coerce(ctx Context, value any) (T, error) {
	var zero T

	current := value
	if payload, ok := value.(map[string]any); ok {
		cloned, err := clonePayload(payload)
		if err != nil {
			return zero, fmt.Errorf("hydrate: clone payload for field %q: %w", ctx.Field, err)
		}
		current = cloned
	}

	for _, hook := range c.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for field %q failed: %w", ctx.Field, err)
		}
		if next != nil {
			current = next
		}
	}

	var result T
	switch {
	case c.custom != nil:
		var err error
		result, err = c.custom(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: custom coercer for field %q failed: %w", ctx.Field, err)
		}
	case current == nil:
		// JSON null semantics: absent data coerces to the zero value.
	default:
		if typed, ok := current.(T); ok {
			result = typed
			break
		}
		buffer, err := json.Marshal(current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: marshal value for field %q: %w", ctx.Field, err)
		}
		decoder := json.NewDecoder(bytes.NewReader(buffer))
		for _, configure := range c.configureDec {
			if configure != nil {
				configure(decoder)
			}
		}
		if err := decoder.Decode(&result); err != nil {
			return zero, fmt.Errorf("hydrate: coerce field %q: %w", ctx.Field, err)
		}
	}

	for _, hook := range c.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for field %q failed: %w", ctx.Field, err)
		}
	}

	return result, nil
}

// Value converts a single value with a throwaway coercer.
func Value[T any](ctx Context, value any) (T, error) {
	return NewCoercer[T]().Coerce(ctx, value)
}

func clonePayload(payload map[string]any) (map[string]any, error) {
	buffer, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, err
	}
	return out, nil
}
