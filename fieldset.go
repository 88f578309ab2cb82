package lazyfield

import (
	"reflect"

	"github.com/goliatone/go-lazyfield/pkg/activity"
)

// AnyField is the type-erased view a FieldSet keeps over its typed fields.
// Only Field[T] implements it; the unexported methods keep the interface
// closed to this package.
type AnyField interface {
	Name() string
	Aliases() []string
	Visibility() Visibility
	Lazy() bool
	SkipInit() bool
	PredicateName() (string, bool)
	ClearerName() (string, bool)
	ValueType() reflect.Type
	DefaultValue() (any, bool)
	Descriptor() FieldDescriptor

	bind(set *FieldSet) error
	validate() error
	newCell() any
	getAny(recv any, cell any) (any, bool, error)
	peekAny(cell any) (any, bool)
	setAny(recv any, cell any, value any) (bool, error)
	clearAny(recv any, cell any) error
	isSetAny(cell any) bool
	initAny(recv any, cell any, sources *SourceStack) (bool, error)
	provenanceAny(cell any) (Provenance, bool)
}

// Accessor is one planned entry point generated for a declaring type.
type Accessor struct {
	Field string `json:"field"`
	Kind  string `json:"kind"`
	Name  string `json:"name"`
}

// FieldSet is the immutable registry of field declarations for one declaring
// type. Construction validates every declaration up front; afterwards the set
// is safe for concurrent use and shared by all instances of the type.
type FieldSet struct {
	typeName  string
	cfg       setConfig
	fields    []AnyField
	byName    map[string]AnyField
	accessors []Accessor
	emitter   *activity.Emitter
}

// NewFieldSet validates fields and binds them into a registry for typeName.
// Base names and aliases share one namespace; planned predicate and clearer
// accessors must neither collide with each other nor shadow a method already
// registered for the type. Declaration order is preserved and drives
// initialization and schema output.
func NewFieldSet(typeName string, fields []AnyField, opts ...SetOption) (*FieldSet, error) {
	if typeName == "" {
		return nil, newConfigError("", "", "type name must not be empty")
	}
	set := &FieldSet{
		typeName: typeName,
		cfg:      applySetOptions(opts),
		fields:   make([]AnyField, 0, len(fields)),
		byName:   make(map[string]AnyField, len(fields)),
	}
	planned := map[string]string{}
	for _, field := range fields {
		if field == nil {
			return nil, newConfigError(typeName, "", "field must not be nil")
		}
		if err := fillConfigType(field.validate(), typeName); err != nil {
			return nil, err
		}
		if err := field.bind(set); err != nil {
			return nil, err
		}
		for _, name := range append([]string{field.Name()}, field.Aliases()...) {
			if prior, taken := set.byName[name]; taken {
				return nil, newConfigError(typeName, field.Name(), "name %q already used by field %q", name, prior.Name())
			}
			set.byName[name] = field
		}
		if err := set.plan(planned, field, KindPredicate, field.PredicateName); err != nil {
			return nil, err
		}
		if err := set.plan(planned, field, KindClearer, field.ClearerName); err != nil {
			return nil, err
		}
		set.fields = append(set.fields, field)
	}
	if _, err := set.resolveEvaluator(); err != nil {
		return nil, err
	}
	set.emitter = activity.NewEmitter(set.cfg.activityHooks, set.cfg.activityConfig)
	return set, nil
}

// plan reserves one generated accessor name, rejecting duplicates and names
// the method registry already owns for this type.
func (s *FieldSet) plan(planned map[string]string, field AnyField, kind HookKind, nameOf func() (string, bool)) error {
	name, ok := nameOf()
	if !ok {
		return nil
	}
	if owner, taken := planned[name]; taken {
		return newConfigError(s.typeName, field.Name(), "%s accessor %q already planned for field %q", kind, name, owner)
	}
	if s.cfg.registry != nil && s.cfg.registry.Has(s.typeName, name) {
		return newConfigError(s.typeName, field.Name(), "%s accessor %q shadows a registered method", kind, name)
	}
	planned[name] = field.Name()
	s.accessors = append(s.accessors, Accessor{
		Field: field.Name(),
		Kind:  kind.String(),
		Name:  name,
	})
	return nil
}

// TypeName returns the declaring type the set was built for.
func (s *FieldSet) TypeName() string { return s.typeName }

// Len returns the number of declared fields.
func (s *FieldSet) Len() int { return len(s.fields) }

// Fields returns the declared fields in declaration order.
func (s *FieldSet) Fields() []AnyField {
	out := make([]AnyField, len(s.fields))
	copy(out, s.fields)
	return out
}

// Lookup resolves name against base names and aliases.
func (s *FieldSet) Lookup(name string) (AnyField, bool) {
	field, ok := s.byName[name]
	return field, ok
}

// Accessors returns the planned accessor surface in declaration order.
func (s *FieldSet) Accessors() []Accessor {
	out := make([]Accessor, len(s.accessors))
	copy(out, s.accessors)
	return out
}

// Schema renders the set through the configured generator, falling back to the
// descriptor generator.
func (s *FieldSet) Schema() (SchemaDocument, error) {
	return s.schemaGenerator().Generate(s)
}

func (s *FieldSet) evaluator() Evaluator { return s.cfg.evaluator }

func (s *FieldSet) withEvaluator(e Evaluator) { s.cfg.evaluator = e }

func (s *FieldSet) programCache() ProgramCache { return s.cfg.programCache }

func (s *FieldSet) functionRegistry() *FunctionRegistry { return s.cfg.functions }

func (s *FieldSet) hookLogger() HookLogger {
	if s.cfg.logger != nil {
		return s.cfg.logger
	}
	return noopHookLogger{}
}

func (s *FieldSet) schemaGenerator() SchemaGenerator {
	if s.cfg.schemaGenerator != nil {
		return s.cfg.schemaGenerator
	}
	return DefaultSchemaGenerator()
}

// WithEvaluator configures the expression engine hooks run on. Without it the
// set falls back to the expr engine.
func WithEvaluator(e Evaluator) SetOption {
	return func(cfg *setConfig) {
		cfg.evaluator = e
	}
}

// fillConfigType stamps typeName onto configuration errors raised before the
// field knew its owner.
func fillConfigType(err error, typeName string) error {
	if err == nil {
		return nil
	}
	if cfgErr, ok := err.(*ConfigurationError); ok && cfgErr.Type == "" {
		cfgErr.Type = typeName
	}
	return err
}
