package lazyfield

import (
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-lazyfield/internal/hydrate"
	"github.com/goliatone/go-lazyfield/pkg/activity"
)

type buildOutcome int

const (
	buildFailed buildOutcome = iota
	buildStored
	buildRejected
	buildDiscarded
)

// hookEnv threads the named options through one pipeline pass.
type hookEnv[T any] struct {
	old         T
	hasOld      bool
	fromBuilder bool
	fromInit    bool
	origin      Origin
	src         *Source
}

// Get returns the field's value for one instance, running the builder on
// first access. At most one builder runs per cell; concurrent readers wait
// for its outcome. ok is false when the cell is unset and no builder is
// configured, or when the filter rejected the built value. err may accompany
// ok == true when a post-store trigger or activity hook failed after the
// value was committed.
func (f *Field[T]) Get(recv any, cell *Cell[T]) (T, bool, error) {
	var zero T
	if cell == nil {
		return zero, false, newConfigError(f.ownerName(), f.name, "cell must not be nil")
	}
	for {
		if value, _, ok := cell.load(); ok {
			return value, true, nil
		}
		if !f.Lazy() {
			return zero, false, nil
		}
		tok, acquired := cell.beginBuild()
		if !acquired {
			if tok == nil {
				continue
			}
			<-tok.done
			continue
		}
		value, outcome, err := f.buildAndStore(recv, cell, tok)
		switch outcome {
		case buildStored:
			return value, true, err
		case buildRejected:
			return zero, false, err
		case buildDiscarded:
			// A clear or an explicit store raced the build and dropped
			// its result. Prefer what the race left behind; after a
			// clear this caller keeps the value it produced.
			if stored, _, ok := cell.load(); ok {
				return stored, true, nil
			}
			return value, true, nil
		default:
			return zero, false, err
		}
	}
}

// MustGet is Get for callers that treat absence as an error. When the cell
// stays unset, because no builder is configured or the filter rejected the
// built value, it returns ErrNoValue naming the field.
func (f *Field[T]) MustGet(recv any, cell *Cell[T]) (T, error) {
	value, ok, err := f.Get(recv, cell)
	if err != nil {
		return value, err
	}
	if !ok {
		return value, fmt.Errorf("%w: %s", ErrNoValue, f.label())
	}
	return value, nil
}

// Peek returns the current value without triggering a build.
func (f *Field[T]) Peek(cell *Cell[T]) (T, bool) {
	if cell == nil {
		var zero T
		return zero, false
	}
	value, _, ok := cell.load()
	return value, ok
}

// IsSet reports whether the cell holds a value. Predicate accessors delegate
// here; the check never triggers a build.
func (f *Field[T]) IsSet(cell *Cell[T]) bool {
	return cell != nil && cell.isSet()
}

// Set stores value through the write pipeline: filter, store, trigger.
// stored is false when the filter rejected the candidate, leaving the cell
// unchanged. err may accompany stored == true when a post-store trigger or
// activity hook failed; the stored value stands.
func (f *Field[T]) Set(recv any, cell *Cell[T], value T) (bool, error) {
	if cell == nil {
		return false, newConfigError(f.ownerName(), f.name, "cell must not be nil")
	}
	return f.write(recv, cell, value, hookEnv[T]{origin: OriginWrite})
}

// Clear returns the cell to unset and advances its generation. A build in
// flight keeps running but its result is discarded, so the next read starts
// fresh. The cleared event carries the provenance the discarded value was
// stored under, not the advanced generation. Clearer accessors delegate here.
func (f *Field[T]) Clear(recv any, cell *Cell[T]) error {
	if cell == nil {
		return newConfigError(f.ownerName(), f.name, "cell must not be nil")
	}
	old, oldProv, had := cell.load()
	cell.clear()
	if !had {
		return nil
	}
	return f.emit(recv, activity.VerbFieldCleared, nil, old, true, oldProv, nil)
}

// Init seeds the cell from external sources, trying the base name first and
// then aliases in declared order within each source, strongest source first.
// When no source matches, the field's default is materialized instead, if one
// was declared. initialized reports whether a value was stored; a filter
// rejection leaves the cell unset and reports false.
func (f *Field[T]) Init(recv any, cell *Cell[T], sources *SourceStack) (bool, error) {
	if cell == nil {
		return false, newConfigError(f.ownerName(), f.name, "cell must not be nil")
	}
	if f.skipInit {
		return false, nil
	}
	if cell.isSet() {
		return false, nil
	}
	if raw, source, ok := sources.Lookup(f.lookupNames()...); ok {
		value, err := f.coerceValue(raw, source.Name)
		if err != nil {
			return false, err
		}
		return f.write(recv, cell, value, hookEnv[T]{origin: OriginInit, fromInit: true, src: &source})
	}
	if f.hasDefault {
		return f.write(recv, cell, f.defaultFn(), hookEnv[T]{origin: OriginDefault, fromInit: true})
	}
	return false, nil
}

// Provenance returns how the cell acquired its current value.
func (f *Field[T]) Provenance(cell *Cell[T]) (Provenance, bool) {
	if cell == nil {
		return Provenance{}, false
	}
	_, prov, ok := cell.load()
	return prov, ok
}

// Generation returns the cell's clear counter.
func (f *Field[T]) Generation(cell *Cell[T]) uint64 {
	if cell == nil {
		return 0
	}
	return cell.generation()
}

func (f *Field[T]) write(recv any, cell *Cell[T], value T, env hookEnv[T]) (bool, error) {
	env.old, _, env.hasOld = cell.load()
	filtered, ok, err := f.runFilter(recv, value, env)
	if err != nil {
		return false, err
	}
	if !ok {
		prov := Provenance{Origin: env.origin, Generation: cell.generation()}
		return false, f.emit(recv, activity.VerbFieldRejected, value, nil, false, prov, env.src)
	}
	prov := cell.store(filtered, f.newProv(env))
	return true, f.afterStore(recv, filtered, prov, env)
}

func (f *Field[T]) buildAndStore(recv any, cell *Cell[T], tok *buildToken) (T, buildOutcome, error) {
	defer cell.endBuild(tok)

	var zero T
	env := hookEnv[T]{fromBuilder: true, origin: OriginBuilder}
	built, err := f.runBuilder(recv)
	if err != nil {
		return zero, buildFailed, &BuildError{Type: f.ownerName(), Field: f.name, Err: err}
	}
	value, ok, err := f.runFilter(recv, built, env)
	if err != nil {
		return zero, buildFailed, err
	}
	if !ok {
		prov := Provenance{Origin: OriginBuilder, Generation: cell.generation()}
		return zero, buildRejected, f.emit(recv, activity.VerbFieldRejected, built, nil, false, prov, nil)
	}
	prov, committed := cell.storeBuilt(tok, value, f.newProv(env))
	if !committed {
		return value, buildDiscarded, nil
	}
	return value, buildStored, f.afterStore(recv, value, prov, env)
}

func (f *Field[T]) newProv(env hookEnv[T]) Provenance {
	source := ""
	if env.src != nil {
		source = env.src.Name
	}
	return newProvenance(env.origin, source)
}

// afterStore runs the trigger and emits the stored event. Failures surface to
// the caller joined together; the committed value is never rolled back.
func (f *Field[T]) afterStore(recv any, value T, prov Provenance, env hookEnv[T]) error {
	trigErr := f.runTrigger(recv, value, env)
	verb := activity.VerbFieldStored
	if env.fromBuilder {
		verb = activity.VerbFieldBuilt
	}
	var old any
	if env.hasOld {
		old = env.old
	}
	emitErr := f.emit(recv, verb, value, old, env.hasOld, prov, env.src)
	return errors.Join(trigErr, emitErr)
}

func (f *Field[T]) runBuilder(recv any) (T, error) {
	var zero T
	switch f.builder.kind {
	case refFunc:
		start := time.Now()
		value, err := f.builderFn(recv)
		f.logHook("go", KindBuilder, "", start, err)
		return value, err
	case refNamed, refConventional:
		method, err := f.resolveMethod(KindBuilder, f.builder, true)
		if err != nil {
			return zero, err
		}
		start := time.Now()
		raw, err := method(recv)
		f.logHook("method", KindBuilder, "", start, err)
		if err != nil {
			return zero, err
		}
		return f.coerceValue(raw, "")
	case refExpr:
		if f.set == nil {
			return zero, newConfigError("", f.name, "expression builder requires a field set")
		}
		raw, err := f.set.evaluateExpr(KindBuilder.String(), f.exprContext(recv, nil, false, hookEnv[T]{fromBuilder: true}), f.builder.expr)
		if err != nil {
			return zero, err
		}
		return f.coerceValue(raw, "")
	default:
		return zero, newConfigError(f.ownerName(), f.name, "no builder configured")
	}
}

func (f *Field[T]) runFilter(recv any, value T, env hookEnv[T]) (T, bool, error) {
	var zero T
	switch f.filter.kind {
	case refDisabled:
		return value, true, nil
	case refFunc:
		start := time.Now()
		filtered, ok, err := f.filterFn(recv, value, FilterContext[T]{
			Field:       f.name,
			OldValue:    env.old,
			HasOld:      env.hasOld,
			FromBuilder: env.fromBuilder,
			FromInit:    env.fromInit,
		})
		f.logHook("go", KindFilter, "", start, err)
		if err != nil {
			return zero, false, err
		}
		return filtered, ok, nil
	case refNamed, refConventional:
		method, err := f.resolveMethod(KindFilter, f.filter, true)
		if err != nil {
			return zero, false, err
		}
		start := time.Now()
		raw, err := method(recv, value, f.hookArgs(env))
		f.logHook("method", KindFilter, "", start, err)
		if err != nil {
			return zero, false, err
		}
		if raw == any(NoValue) {
			return zero, false, nil
		}
		filtered, err := f.coerceValue(raw, "")
		if err != nil {
			return zero, false, err
		}
		return filtered, true, nil
	case refExpr:
		if f.set == nil {
			return zero, false, newConfigError("", f.name, "expression filter requires a field set")
		}
		raw, err := f.set.evaluateExpr(KindFilter.String(), f.exprContext(recv, value, true, env), f.filter.expr)
		if err != nil {
			return zero, false, err
		}
		if raw == nil {
			return zero, false, nil
		}
		filtered, err := f.coerceValue(raw, "")
		if err != nil {
			return zero, false, err
		}
		return filtered, true, nil
	default:
		return value, true, nil
	}
}

func (f *Field[T]) runTrigger(recv any, value T, env hookEnv[T]) error {
	switch f.trigger.kind {
	case refDisabled:
		return nil
	case refFunc:
		start := time.Now()
		err := f.triggerFn(recv, value, TriggerContext[T]{
			Field:       f.name,
			OldValue:    env.old,
			HasOld:      env.hasOld,
			FromBuilder: env.fromBuilder,
			FromInit:    env.fromInit,
		})
		f.logHook("go", KindTrigger, "", start, err)
		return err
	case refNamed, refConventional:
		method, err := f.resolveMethod(KindTrigger, f.trigger, true)
		if err != nil {
			return err
		}
		start := time.Now()
		_, err = method(recv, value, f.hookArgs(env))
		f.logHook("method", KindTrigger, "", start, err)
		return err
	case refExpr:
		if f.set == nil {
			return newConfigError("", f.name, "expression trigger requires a field set")
		}
		_, err := f.set.evaluateExpr(KindTrigger.String(), f.exprContext(recv, value, true, env), f.trigger.expr)
		return err
	default:
		return nil
	}
}

func (f *Field[T]) resolveMethod(kind HookKind, ref hookRef, strict bool) (Method, error) {
	if f.set == nil || f.set.cfg.registry == nil {
		if !strict {
			return nil, nil
		}
		return nil, &MethodNotFoundError{
			Type:       f.ownerName(),
			Field:      f.name,
			Kind:       kind,
			Candidates: candidateNames(kind, ref, f.name, f.vis, f.mode),
		}
	}
	return resolveHook(f.set.cfg.registry, f.set.typeName, f.name, f.vis, f.mode, kind, ref, strict)
}

func (f *Field[T]) hookArgs(env hookEnv[T]) HookArgs {
	args := HookArgs{
		Field:       f.name,
		HasOld:      env.hasOld,
		FromBuilder: env.fromBuilder,
		FromInit:    env.fromInit,
	}
	if env.hasOld {
		args.OldValue = env.old
	}
	return args
}

func (f *Field[T]) exprContext(recv any, value any, hasValue bool, env hookEnv[T]) HookContext {
	ctx := HookContext{
		Type:        f.ownerName(),
		Field:       f.name,
		Value:       value,
		HasValue:    hasValue,
		FromBuilder: env.fromBuilder,
		FromInit:    env.fromInit,
		Recv:        recv,
	}
	if env.hasOld {
		ctx.OldValue = env.old
		ctx.HasOld = true
	}
	return ctx
}

func (f *Field[T]) coerceValue(raw any, source string) (T, error) {
	return f.coercer.Coerce(hydrate.Context{Field: f.label(), Source: source}, raw)
}

func (f *Field[T]) hookLogger() HookLogger {
	if f.set != nil {
		return f.set.hookLogger()
	}
	return noopHookLogger{}
}

func (f *Field[T]) logHook(engine string, kind HookKind, expr string, start time.Time, err error) {
	f.hookLogger().LogHook(HookLogEvent{
		Engine:   engine,
		Kind:     kind.String(),
		Type:     f.ownerName(),
		Field:    f.name,
		Expr:     expr,
		Duration: time.Since(start),
		Err:      err,
	})
}

func (f *Field[T]) emit(recv any, verb string, newValue, oldValue any, hasOld bool, prov Provenance, src *Source) error {
	if f.set == nil {
		return nil
	}
	input := activity.FieldEventInput{
		TypeName:   f.set.typeName,
		Field:      f.name,
		Origin:     string(prov.Origin),
		Generation: prov.Generation,
		SnapshotID: prov.SnapshotID,
		NewValue:   newValue,
		OldValue:   oldValue,
		HasOld:     hasOld,
	}
	if src != nil {
		input.Source = activity.SourceContext{
			Name:       src.Name,
			Label:      src.Label,
			Priority:   src.Priority,
			Metadata:   src.Metadata,
			SnapshotID: src.SnapshotID,
		}
	}
	if ident, ok := recv.(InstanceIdentifier); ok {
		input.InstanceID = ident.InstanceID()
	}
	return f.set.emitFieldEvent(verb, input)
}

func (f *Field[T]) cellOf(cell any) (*Cell[T], error) {
	typed, ok := cell.(*Cell[T])
	if !ok {
		return nil, newConfigError(f.ownerName(), f.name, "cell type mismatch")
	}
	return typed, nil
}

func (f *Field[T]) getAny(recv any, cell any) (any, bool, error) {
	typed, err := f.cellOf(cell)
	if err != nil {
		return nil, false, err
	}
	value, ok, err := f.Get(recv, typed)
	if !ok {
		return nil, false, err
	}
	return value, true, err
}

func (f *Field[T]) peekAny(cell any) (any, bool) {
	typed, err := f.cellOf(cell)
	if err != nil {
		return nil, false
	}
	value, ok := f.Peek(typed)
	if !ok {
		return nil, false
	}
	return value, true
}

func (f *Field[T]) setAny(recv any, cell any, value any) (bool, error) {
	typed, err := f.cellOf(cell)
	if err != nil {
		return false, err
	}
	coerced, err := f.coerceValue(value, "")
	if err != nil {
		return false, err
	}
	return f.Set(recv, typed, coerced)
}

func (f *Field[T]) clearAny(recv any, cell any) error {
	typed, err := f.cellOf(cell)
	if err != nil {
		return err
	}
	return f.Clear(recv, typed)
}

func (f *Field[T]) isSetAny(cell any) bool {
	typed, err := f.cellOf(cell)
	if err != nil {
		return false
	}
	return f.IsSet(typed)
}

func (f *Field[T]) initAny(recv any, cell any, sources *SourceStack) (bool, error) {
	typed, err := f.cellOf(cell)
	if err != nil {
		return false, err
	}
	return f.Init(recv, typed, sources)
}

func (f *Field[T]) provenanceAny(cell any) (Provenance, bool) {
	typed, err := f.cellOf(cell)
	if err != nil {
		return Provenance{}, false
	}
	return f.Provenance(typed)
}
