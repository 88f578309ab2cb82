package lazyfield

import (
	"time"

	"github.com/goliatone/go-lazyfield/pkg/activity"
)

// SchemaFormat identifies the representation a schema document encodes.
type SchemaFormat string

const (
	// SchemaFormatDescriptors represents the flattened field descriptors.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatOpenAPI represents OpenAPI-compatible JSON Schema documents.
	SchemaFormatOpenAPI SchemaFormat = "openapi"
)

// SchemaDocument encapsulates a generated schema output alongside its format
// identifier. Implementations must ensure Document is JSON-serialisable.
type SchemaDocument struct {
	Format   SchemaFormat
	Document any
	Fields   []SchemaField
}

// SchemaField describes a single field entry included in a schema document.
type SchemaField struct {
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases,omitempty"`
	Type       string   `json:"type"`
	Visibility string   `json:"visibility"`
	Lazy       bool     `json:"lazy"`
	SkipInit   bool     `json:"skip_init,omitempty"`
}

// SchemaGenerator transforms a field set into a schema document. All
// implementations MUST be safe for concurrent use and handle nil inputs by
// returning an empty schema document.
type SchemaGenerator interface {
	Generate(set *FieldSet) (SchemaDocument, error)
}

// HookContext carries inputs needed when evaluating a hook expression. Engines
// bind its fields as the variables value, old, has_old, field, now, args and
// metadata, plus the keys of a map-shaped receiver snapshot.
type HookContext struct {
	// Type and Field label the hook's owner for logs and errors.
	Type  string
	Field string

	// Value is the candidate for filters and the stored value for triggers.
	Value    any
	HasValue bool

	// OldValue is only meaningful while HasOld is true.
	OldValue any
	HasOld   bool

	FromBuilder bool
	FromInit    bool

	// Recv is the owning instance. Map-shaped receivers are exposed to
	// expressions key by key.
	Recv any

	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx HookContext) withDefaultNow() HookContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx HookContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx HookContext) withDefaultMaps() HookContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx HookContext) withDefaults() HookContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx HookContext) fieldLabel() string {
	switch {
	case ctx.Type != "" && ctx.Field != "":
		return ctx.Type + "." + ctx.Field
	case ctx.Field != "":
		return ctx.Field
	default:
		return "field"
	}
}

// snapshot exposes the receiver to expression engines key by key. Map
// receivers are used as-is; Record receivers contribute their currently set
// fields. Other shapes stay opaque to expressions.
func (ctx HookContext) snapshot() map[string]any {
	switch recv := ctx.Recv.(type) {
	case map[string]any:
		return recv
	case *Record:
		return recv.Values()
	default:
		return nil
	}
}

// HookArgs is the option payload passed positionally to registry-backed
// filters and triggers, after the value argument. Builders receive no
// positional arguments at all.
type HookArgs struct {
	Field       string
	OldValue    any
	HasOld      bool
	FromBuilder bool
	FromInit    bool
}

// Evaluator executes expressions against a hook context.
type Evaluator interface {
	Evaluate(ctx HookContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx HookContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// SetOption configures a field set at construction time.
type SetOption func(*setConfig)

type setConfig struct {
	registry        *MethodRegistry
	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	logger          HookLogger
	schemaGenerator SchemaGenerator
	activityHooks   activity.Hooks
	activityConfig  activity.Config
}

func applySetOptions(opts []SetOption) setConfig {
	cfg := setConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithMethodRegistry configures the registry used to resolve named and
// conventional hook methods.
func WithMethodRegistry(reg *MethodRegistry) SetOption {
	return func(cfg *setConfig) {
		cfg.registry = reg
	}
}

// WithSchemaGenerator configures a custom schema generator implementation.
func WithSchemaGenerator(generator SchemaGenerator) SetOption {
	return func(cfg *setConfig) {
		cfg.schemaGenerator = generator
	}
}
