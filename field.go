package lazyfield

import (
	"reflect"

	"github.com/goliatone/go-lazyfield/internal/hydrate"
)

// BuilderFunc produces a field's value on first read.
type BuilderFunc[T any] func(recv any) (T, error)

// FilterFunc normalises or rejects a candidate value before it is stored.
// Returning false rejects the store and leaves the cell unchanged.
type FilterFunc[T any] func(recv any, value T, ctx FilterContext[T]) (T, bool, error)

// TriggerFunc observes a value after it was stored. Trigger failures surface
// to the caller but never undo the store.
type TriggerFunc[T any] func(recv any, value T, ctx TriggerContext[T]) error

// FilterContext carries the named options handed to a filter.
type FilterContext[T any] struct {
	Field       string
	OldValue    T
	HasOld      bool
	FromBuilder bool
	FromInit    bool
}

// TriggerContext carries the named options handed to a trigger.
type TriggerContext[T any] struct {
	Field       string
	OldValue    T
	HasOld      bool
	FromBuilder bool
	FromInit    bool
}

// Field describes one lazily computed attribute of a declaring type. A Field
// is a shared, immutable descriptor; per-instance state lives in the Cell
// handed to each operation. Hooks can be typed funcs, registry method names,
// conventional names derived from the field name, or expressions.
type Field[T any] struct {
	name       string
	aliases    []string
	vis        Visibility
	mode       ResolveMode
	builder    hookRef
	builderFn  BuilderFunc[T]
	filter     hookRef
	filterFn   FilterFunc[T]
	trigger    hookRef
	triggerFn  TriggerFunc[T]
	predicate  bool
	predName   string
	clearer    bool
	clearName  string
	skipInit   bool
	defaultFn  func() T
	hasDefault bool
	coercer    *hydrate.Coercer[T]
	set        *FieldSet
}

// FieldOption configures a field declaration.
type FieldOption[T any] func(*Field[T])

// NewField declares a field. Visibility derives from the name's leading rune
// unless WithVisibility overrides it. Validation runs when the field joins a
// FieldSet.
func NewField[T any](name string, opts ...FieldOption[T]) *Field[T] {
	f := &Field[T]{
		name:    name,
		vis:     deriveVisibility(name),
		coercer: hydrate.NewCoercer[T](),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// WithAliases registers alternate names that resolve to the same cell.
func WithAliases[T any](aliases ...string) FieldOption[T] {
	return func(f *Field[T]) {
		f.aliases = append(f.aliases, aliases...)
	}
}

// WithVisibility overrides the visibility derived from the field name.
func WithVisibility[T any](vis Visibility) FieldOption[T] {
	return func(f *Field[T]) {
		f.vis = vis
	}
}

// WithResolveMode sets how hook names resolve against the method registry.
func WithResolveMode[T any](mode ResolveMode) FieldOption[T] {
	return func(f *Field[T]) {
		f.mode = mode
	}
}

// WithBuilderFunc installs fn as the field's builder.
func WithBuilderFunc[T any](fn BuilderFunc[T]) FieldOption[T] {
	return func(f *Field[T]) {
		f.builder = hookRef{kind: refFunc}
		f.builderFn = fn
	}
}

// WithBuilder enables the conventional builder, resolved from the registry
// under the generated build name.
func WithBuilder[T any]() FieldOption[T] {
	return func(f *Field[T]) {
		f.builder = hookRef{kind: refConventional}
		f.builderFn = nil
	}
}

// WithBuilderName resolves the builder from the registry under name.
func WithBuilderName[T any](name string) FieldOption[T] {
	return func(f *Field[T]) {
		f.builder = hookRef{kind: refNamed, name: name}
		f.builderFn = nil
	}
}

// WithBuilderExpr evaluates expr as the builder.
func WithBuilderExpr[T any](expr string) FieldOption[T] {
	return func(f *Field[T]) {
		f.builder = hookRef{kind: refExpr, expr: expr}
		f.builderFn = nil
	}
}

// WithFilterFunc installs fn as the field's filter.
func WithFilterFunc[T any](fn FilterFunc[T]) FieldOption[T] {
	return func(f *Field[T]) {
		f.filter = hookRef{kind: refFunc}
		f.filterFn = fn
	}
}

// WithFilter enables the conventional filter, resolved from the registry under
// the generated filter name.
func WithFilter[T any]() FieldOption[T] {
	return func(f *Field[T]) {
		f.filter = hookRef{kind: refConventional}
		f.filterFn = nil
	}
}

// WithFilterName resolves the filter from the registry under name.
func WithFilterName[T any](name string) FieldOption[T] {
	return func(f *Field[T]) {
		f.filter = hookRef{kind: refNamed, name: name}
		f.filterFn = nil
	}
}

// WithFilterExpr evaluates expr as the filter. A nil result rejects the store.
func WithFilterExpr[T any](expr string) FieldOption[T] {
	return func(f *Field[T]) {
		f.filter = hookRef{kind: refExpr, expr: expr}
		f.filterFn = nil
	}
}

// WithTriggerFunc installs fn as the field's trigger.
func WithTriggerFunc[T any](fn TriggerFunc[T]) FieldOption[T] {
	return func(f *Field[T]) {
		f.trigger = hookRef{kind: refFunc}
		f.triggerFn = fn
	}
}

// WithTrigger enables the conventional trigger, resolved from the registry
// under the generated trigger name.
func WithTrigger[T any]() FieldOption[T] {
	return func(f *Field[T]) {
		f.trigger = hookRef{kind: refConventional}
		f.triggerFn = nil
	}
}

// WithTriggerName resolves the trigger from the registry under name.
func WithTriggerName[T any](name string) FieldOption[T] {
	return func(f *Field[T]) {
		f.trigger = hookRef{kind: refNamed, name: name}
		f.triggerFn = nil
	}
}

// WithTriggerExpr evaluates expr as the trigger.
func WithTriggerExpr[T any](expr string) FieldOption[T] {
	return func(f *Field[T]) {
		f.trigger = hookRef{kind: refExpr, expr: expr}
		f.triggerFn = nil
	}
}

// WithPredicate plans a conventionally named predicate accessor.
func WithPredicate[T any]() FieldOption[T] {
	return func(f *Field[T]) {
		f.predicate = true
		f.predName = ""
	}
}

// WithPredicateName plans a predicate accessor under a custom name.
func WithPredicateName[T any](name string) FieldOption[T] {
	return func(f *Field[T]) {
		f.predicate = true
		f.predName = name
	}
}

// WithClearer plans a conventionally named clearer accessor.
func WithClearer[T any]() FieldOption[T] {
	return func(f *Field[T]) {
		f.clearer = true
		f.clearName = ""
	}
}

// WithClearerName plans a clearer accessor under a custom name.
func WithClearerName[T any](name string) FieldOption[T] {
	return func(f *Field[T]) {
		f.clearer = true
		f.clearName = name
	}
}

// WithSkipInit excludes the field from initialization against external
// sources.
func WithSkipInit[T any]() FieldOption[T] {
	return func(f *Field[T]) {
		f.skipInit = true
	}
}

// WithDefault declares a non-lazy default, materialized during initialization
// when no source supplies a value. Mutually exclusive with builders.
func WithDefault[T any](value T) FieldOption[T] {
	return func(f *Field[T]) {
		f.defaultFn = func() T { return value }
		f.hasDefault = true
	}
}

// WithDefaultFunc declares a non-lazy default produced per instance.
func WithDefaultFunc[T any](fn func() T) FieldOption[T] {
	return func(f *Field[T]) {
		f.defaultFn = fn
		f.hasDefault = fn != nil
	}
}

// Name returns the field's base name.
func (f *Field[T]) Name() string { return f.name }

// Aliases returns a copy of the field's alias names.
func (f *Field[T]) Aliases() []string {
	if len(f.aliases) == 0 {
		return nil
	}
	out := make([]string, len(f.aliases))
	copy(out, f.aliases)
	return out
}

// Visibility returns the field's visibility.
func (f *Field[T]) Visibility() Visibility { return f.vis }

// Lazy reports whether the field has a builder configured.
func (f *Field[T]) Lazy() bool { return f.builder.enabled() }

// SkipInit reports whether the field ignores external initialization.
func (f *Field[T]) SkipInit() bool { return f.skipInit }

// PredicateName returns the planned predicate accessor name.
func (f *Field[T]) PredicateName() (string, bool) {
	if !f.predicate {
		return "", false
	}
	return f.accessorName(KindPredicate, f.predName), true
}

// ClearerName returns the planned clearer accessor name.
func (f *Field[T]) ClearerName() (string, bool) {
	if !f.clearer {
		return "", false
	}
	return f.accessorName(KindClearer, f.clearName), true
}

func (f *Field[T]) accessorName(kind HookKind, custom string) string {
	if custom != "" {
		return custom
	}
	return recase(conventionalPrefix(kind)+upperFirst(f.name), f.vis)
}

// ValueType returns the reflect type of the field's values.
func (f *Field[T]) ValueType() reflect.Type {
	var zero T
	return reflect.TypeOf(&zero).Elem()
}

// DefaultValue materializes the declared default, reporting false when none
// was declared.
func (f *Field[T]) DefaultValue() (any, bool) {
	if !f.hasDefault {
		return nil, false
	}
	return f.defaultFn(), true
}

// Descriptor summarises the declaration for schema generation.
func (f *Field[T]) Descriptor() FieldDescriptor {
	desc := FieldDescriptor{
		Name:       f.name,
		Aliases:    f.Aliases(),
		Type:       f.ValueType().String(),
		Visibility: f.vis.String(),
		Lazy:       f.Lazy(),
		HasDefault: f.hasDefault,
		SkipInit:   f.skipInit,
	}
	if name, ok := f.PredicateName(); ok {
		desc.Predicate = name
	}
	if name, ok := f.ClearerName(); ok {
		desc.Clearer = name
	}
	return desc
}

func (f *Field[T]) bind(set *FieldSet) error {
	if f.set != nil && f.set != set {
		return newConfigError(set.typeName, f.name, "field already bound to %s", f.set.typeName)
	}
	f.set = set
	return nil
}

func (f *Field[T]) validate() error {
	if f.name == "" {
		return newConfigError("", "", "field name must not be empty")
	}
	seen := map[string]struct{}{f.name: {}}
	for _, alias := range f.aliases {
		if alias == "" {
			return newConfigError("", f.name, "alias must not be empty")
		}
		if _, dup := seen[alias]; dup {
			return newConfigError("", f.name, "duplicate alias %q", alias)
		}
		seen[alias] = struct{}{}
	}
	if f.builder.enabled() && f.hasDefault {
		return newConfigError("", f.name, "builder and default are mutually exclusive")
	}
	if err := f.validateRef(KindBuilder, f.builder, f.builderFn != nil); err != nil {
		return err
	}
	if err := f.validateRef(KindFilter, f.filter, f.filterFn != nil); err != nil {
		return err
	}
	return f.validateRef(KindTrigger, f.trigger, f.triggerFn != nil)
}

func (f *Field[T]) validateRef(kind HookKind, ref hookRef, hasFn bool) error {
	switch ref.kind {
	case refFunc:
		if !hasFn {
			return newConfigError("", f.name, "%s func must not be nil", kind)
		}
	case refNamed:
		if ref.name == "" {
			return newConfigError("", f.name, "%s name must not be empty", kind)
		}
	case refExpr:
		if ref.expr == "" {
			return newConfigError("", f.name, "%s expression must not be empty", kind)
		}
	}
	return nil
}

// lookupNames returns the initialization lookup order: base name first, then
// aliases in declared order.
func (f *Field[T]) lookupNames() []string {
	names := make([]string, 0, len(f.aliases)+1)
	names = append(names, f.name)
	return append(names, f.aliases...)
}

func (f *Field[T]) label() string {
	if f.set != nil {
		return f.set.typeName + "." + f.name
	}
	return f.name
}

func (f *Field[T]) ownerName() string {
	if f.set != nil {
		return f.set.typeName
	}
	return ""
}

func (f *Field[T]) newCell() any { return new(Cell[T]) }
