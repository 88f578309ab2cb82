package lazyfield

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFieldFilterRejectKeepsOldValue(t *testing.T) {
	var contexts []FilterContext[float64]
	field := NewField[float64]("bar3", WithFilterFunc[float64](func(_ any, value float64, ctx FilterContext[float64]) (float64, bool, error) {
		contexts = append(contexts, ctx)
		if value < 0.5 {
			return 0, false, nil
		}
		return value, true, nil
	}))
	cell := &Cell[float64]{}

	stored, err := field.Set(nil, cell, 0.7)
	if err != nil || !stored {
		t.Fatalf("expected first store to pass the filter, got stored=%v err=%v", stored, err)
	}

	stored, err = field.Set(nil, cell, 0.2)
	if err != nil {
		t.Fatalf("rejection must not error: %v", err)
	}
	if stored {
		t.Fatal("expected filter to reject 0.2")
	}
	if value, ok := field.Peek(cell); !ok || value != 0.7 {
		t.Fatalf("expected old value to survive rejection, got %v (ok=%v)", value, ok)
	}

	if len(contexts) != 2 {
		t.Fatalf("expected two filter invocations, got %d", len(contexts))
	}
	if contexts[0].HasOld {
		t.Fatal("first store should have no old value")
	}
	if !contexts[1].HasOld || contexts[1].OldValue != 0.7 {
		t.Fatalf("second store should see old value 0.7, got %+v", contexts[1])
	}
	if contexts[1].Field != "bar3" || contexts[1].FromBuilder || contexts[1].FromInit {
		t.Fatalf("unexpected filter context: %+v", contexts[1])
	}
}

func TestFieldFilterNormalizesValue(t *testing.T) {
	field := NewField[string]("code", WithFilterFunc[string](func(_ any, value string, _ FilterContext[string]) (string, bool, error) {
		return strings.ToUpper(strings.TrimSpace(value)), true, nil
	}))
	cell := &Cell[string]{}

	if _, err := field.Set(nil, cell, "  abc "); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if value, _ := field.Peek(cell); value != "ABC" {
		t.Fatalf("expected normalized value, got %q", value)
	}
}

func TestFieldFilterErrorAbortsStore(t *testing.T) {
	boom := errors.New("bad candidate")
	field := NewField[int]("count", WithFilterFunc[int](func(any, int, FilterContext[int]) (int, bool, error) {
		return 0, false, boom
	}))
	cell := &Cell[int]{}

	stored, err := field.Set(nil, cell, 3)
	if stored || !errors.Is(err, boom) {
		t.Fatalf("expected filter error to abort, got stored=%v err=%v", stored, err)
	}
	if cell.isSet() {
		t.Fatal("expected cell to stay unset after filter error")
	}
}

func TestFieldTriggerObservesStores(t *testing.T) {
	var triggered []TriggerContext[int]
	var values []int
	field := NewField[int]("count", WithTriggerFunc[int](func(_ any, value int, ctx TriggerContext[int]) error {
		values = append(values, value)
		triggered = append(triggered, ctx)
		return nil
	}))
	cell := &Cell[int]{}

	if _, err := field.Set(nil, cell, 1); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if _, err := field.Set(nil, cell, 2); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	if len(values) != 2 || values[0] != 1 || values[1] != 2 {
		t.Fatalf("expected trigger to observe both stores, got %v", values)
	}
	if triggered[0].HasOld {
		t.Fatal("first trigger should have no old value")
	}
	if !triggered[1].HasOld || triggered[1].OldValue != 1 {
		t.Fatalf("second trigger should see old value 1, got %+v", triggered[1])
	}
}

func TestFieldTriggerErrorKeepsStoredValue(t *testing.T) {
	boom := errors.New("webhook down")
	field := NewField[int]("count", WithTriggerFunc[int](func(any, int, TriggerContext[int]) error {
		return boom
	}))
	cell := &Cell[int]{}

	stored, err := field.Set(nil, cell, 5)
	if !stored {
		t.Fatal("expected value to be stored despite trigger failure")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected trigger error to surface, got %v", err)
	}
	if value, ok := field.Peek(cell); !ok || value != 5 {
		t.Fatalf("expected stored value to stand, got %v (ok=%v)", value, ok)
	}
}

func TestFieldConventionalBuilderFromRegistry(t *testing.T) {
	type account struct{ plan string }

	registry := NewMethodRegistry()
	if err := registry.Register("Account", "buildQuota", func(recv any, args ...any) (any, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("builders take no positional args, got %d", len(args))
		}
		if acct, ok := recv.(*account); ok && acct.plan == "pro" {
			return 100, nil
		}
		return 10, nil
	}); err != nil {
		t.Fatalf("register buildQuota: %v", err)
	}

	quota := NewField[int]("quota", WithBuilder[int]())
	set, err := NewFieldSet("Account", []AnyField{quota}, WithMethodRegistry(registry))
	if err != nil {
		t.Fatalf("NewFieldSet returned error: %v", err)
	}

	record := set.NewRecord(&account{plan: "pro"})
	value, ok, err := Get(record, quota)
	if err != nil || !ok || value != 100 {
		t.Fatalf("expected builder to resolve for the receiver, got %d (ok=%v, err=%v)", value, ok, err)
	}

	free := set.NewRecord(&account{plan: "free"})
	if value, _, _ := Get(free, quota); value != 10 {
		t.Fatalf("expected per-instance build, got %d", value)
	}
}

func TestFieldBuilderMissingMethod(t *testing.T) {
	quota := NewField[int]("quota", WithBuilder[int]())
	set, err := NewFieldSet("Account", []AnyField{quota})
	if err != nil {
		t.Fatalf("NewFieldSet returned error: %v", err)
	}

	record := set.NewRecord(nil)
	_, ok, err := Get(record, quota)
	if ok {
		t.Fatal("expected unresolved builder to report no value")
	}
	var notFound *MethodNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected MethodNotFoundError, got %v", err)
	}
	if len(notFound.Candidates) != 2 || notFound.Candidates[0] != "buildQuota" {
		t.Fatalf("expected conventional candidates, got %v", notFound.Candidates)
	}
}

func TestFieldNamedFilterAndNoValue(t *testing.T) {
	var gotArgs []HookArgs
	registry := NewMethodRegistry()
	if err := registry.Register("Review", "clampScore", func(_ any, args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("filter expects value and options, got %d args", len(args))
		}
		opts, ok := args[1].(HookArgs)
		if !ok {
			return nil, fmt.Errorf("expected HookArgs, got %T", args[1])
		}
		gotArgs = append(gotArgs, opts)
		value := args[0].(float64)
		if value < 0 {
			return NoValue, nil
		}
		if value > 1 {
			return 1.0, nil
		}
		return value, nil
	}); err != nil {
		t.Fatalf("register clampScore: %v", err)
	}

	score := NewField[float64]("score", WithFilterName[float64]("clampScore"))
	set, err := NewFieldSet("Review", []AnyField{score}, WithMethodRegistry(registry))
	if err != nil {
		t.Fatalf("NewFieldSet returned error: %v", err)
	}
	record := set.NewRecord(nil)

	if stored, err := Set(record, score, 1.8); err != nil || !stored {
		t.Fatalf("expected clamp to store, got stored=%v err=%v", stored, err)
	}
	if value, _ := Peek(record, score); value != 1.0 {
		t.Fatalf("expected clamped value 1.0, got %v", value)
	}

	stored, err := Set(record, score, -0.3)
	if err != nil {
		t.Fatalf("NoValue rejection must not error: %v", err)
	}
	if stored {
		t.Fatal("expected NoValue to reject the store")
	}
	if value, _ := Peek(record, score); value != 1.0 {
		t.Fatalf("expected previous value to survive, got %v", value)
	}

	if len(gotArgs) != 2 {
		t.Fatalf("expected two filter calls, got %d", len(gotArgs))
	}
	if gotArgs[0].Field != "score" || gotArgs[0].HasOld {
		t.Fatalf("unexpected first hook args: %+v", gotArgs[0])
	}
	if !gotArgs[1].HasOld || gotArgs[1].OldValue != 1.0 {
		t.Fatalf("expected second call to carry old value, got %+v", gotArgs[1])
	}
}

func TestFieldNamedTriggerFromRegistry(t *testing.T) {
	var notified []any
	registry := NewMethodRegistry()
	if err := registry.Register("Review", "auditScore", func(_ any, args ...any) (any, error) {
		notified = append(notified, args[0])
		return nil, nil
	}); err != nil {
		t.Fatalf("register auditScore: %v", err)
	}

	score := NewField[float64]("score", WithTriggerName[float64]("auditScore"))
	set, err := NewFieldSet("Review", []AnyField{score}, WithMethodRegistry(registry))
	if err != nil {
		t.Fatalf("NewFieldSet returned error: %v", err)
	}
	record := set.NewRecord(nil)

	if _, err := Set(record, score, 0.9); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if len(notified) != 1 || notified[0] != 0.9 {
		t.Fatalf("expected trigger to observe 0.9, got %v", notified)
	}
}

func TestFieldRegistryBuilderResultCoerced(t *testing.T) {
	registry := NewMethodRegistry()
	if err := registry.Register("Job", "buildRetries", func(any, ...any) (any, error) {
		// JSON-shaped result, as a dynamic backend would produce.
		return float64(7), nil
	}); err != nil {
		t.Fatalf("register buildRetries: %v", err)
	}

	retries := NewField[int]("retries", WithBuilder[int]())
	set, err := NewFieldSet("Job", []AnyField{retries}, WithMethodRegistry(registry))
	if err != nil {
		t.Fatalf("NewFieldSet returned error: %v", err)
	}
	record := set.NewRecord(nil)

	value, ok, err := Get(record, retries)
	if err != nil || !ok || value != 7 {
		t.Fatalf("expected coerced builder result 7, got %d (ok=%v, err=%v)", value, ok, err)
	}
}

func TestFieldInitPrecedence(t *testing.T) {
	caller := NewSource("caller", 300, map[string]any{"fubar": 9})
	config := NewSource("config", 200, map[string]any{"bar": 5})
	stack, err := NewSourceStack(caller, config)
	if err != nil {
		t.Fatalf("NewSourceStack returned error: %v", err)
	}

	field := NewField[int]("bar", WithAliases[int]("fubar", "baz"))
	cell := &Cell[int]{}
	initialized, err := field.Init(nil, cell, stack)
	if err != nil || !initialized {
		t.Fatalf("Init returned initialized=%v err=%v", initialized, err)
	}
	value, _ := field.Peek(cell)
	if value != 9 {
		t.Fatalf("expected alias hit in the strongest source to win, got %d", value)
	}
	prov, _ := field.Provenance(cell)
	if prov.Origin != OriginInit || prov.Source != "caller" {
		t.Fatalf("expected init provenance from caller, got %+v", prov)
	}
}

func TestFieldInitBaseNameBeforeAliases(t *testing.T) {
	caller := NewSource("caller", 300, map[string]any{"bar": 1, "fubar": 2})
	stack, err := NewSourceStack(caller)
	if err != nil {
		t.Fatalf("NewSourceStack returned error: %v", err)
	}

	field := NewField[int]("bar", WithAliases[int]("fubar"))
	cell := &Cell[int]{}
	if _, err := field.Init(nil, cell, stack); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if value, _ := field.Peek(cell); value != 1 {
		t.Fatalf("expected base name to win within one source, got %d", value)
	}
}

func TestFieldInitMaterializesDefault(t *testing.T) {
	field := NewField[int]("retries", WithDefault[int](3))
	cell := &Cell[int]{}

	initialized, err := field.Init(nil, cell, nil)
	if err != nil || !initialized {
		t.Fatalf("Init returned initialized=%v err=%v", initialized, err)
	}
	value, _ := field.Peek(cell)
	if value != 3 {
		t.Fatalf("expected default 3, got %d", value)
	}
	prov, _ := field.Provenance(cell)
	if prov.Origin != OriginDefault || prov.Source != "" {
		t.Fatalf("expected default provenance, got %+v", prov)
	}
}

func TestFieldInitSourceBeatsDefault(t *testing.T) {
	field := NewField[int]("retries", WithDefault[int](3))
	stack, err := NewSourceStack(NewSource("caller", 300, map[string]any{"retries": 8}))
	if err != nil {
		t.Fatalf("NewSourceStack returned error: %v", err)
	}
	cell := &Cell[int]{}
	if _, err := field.Init(nil, cell, stack); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if value, _ := field.Peek(cell); value != 8 {
		t.Fatalf("expected source value to beat the default, got %d", value)
	}
}

func TestFieldInitSkipsSetCells(t *testing.T) {
	field := NewField[int]("retries")
	cell := &Cell[int]{}
	if _, err := field.Set(nil, cell, 1); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	stack, err := NewSourceStack(NewSource("caller", 300, map[string]any{"retries": 8}))
	if err != nil {
		t.Fatalf("NewSourceStack returned error: %v", err)
	}
	initialized, err := field.Init(nil, cell, stack)
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if initialized {
		t.Fatal("expected Init to leave an already set cell alone")
	}
	if value, _ := field.Peek(cell); value != 1 {
		t.Fatalf("expected existing value to survive, got %d", value)
	}
}

func TestFieldSkipInit(t *testing.T) {
	field := NewField[int]("cache", WithSkipInit[int](), WithDefault[int](64))
	stack, err := NewSourceStack(NewSource("caller", 300, map[string]any{"cache": 8}))
	if err != nil {
		t.Fatalf("NewSourceStack returned error: %v", err)
	}
	cell := &Cell[int]{}
	initialized, err := field.Init(nil, cell, stack)
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if initialized || cell.isSet() {
		t.Fatal("expected skip-init field to be left unset by Init")
	}
}

func TestFieldInitFilterRejectionLeavesUnset(t *testing.T) {
	field := NewField[float64]("bar3", WithFilterFunc[float64](func(_ any, value float64, _ FilterContext[float64]) (float64, bool, error) {
		return value, value >= 0.5, nil
	}))
	stack, err := NewSourceStack(NewSource("caller", 300, map[string]any{"bar3": 0.2}))
	if err != nil {
		t.Fatalf("NewSourceStack returned error: %v", err)
	}
	cell := &Cell[float64]{}
	initialized, err := field.Init(nil, cell, stack)
	if err != nil {
		t.Fatalf("rejection must not error: %v", err)
	}
	if initialized || cell.isSet() {
		t.Fatal("expected rejected init value to leave the cell unset")
	}
}

func TestFieldInitCoercionFailure(t *testing.T) {
	field := NewField[int]("retries")
	stack, err := NewSourceStack(NewSource("caller", 300, map[string]any{"retries": "plenty"}))
	if err != nil {
		t.Fatalf("NewSourceStack returned error: %v", err)
	}
	cell := &Cell[int]{}
	initialized, err := field.Init(nil, cell, stack)
	if initialized || err == nil {
		t.Fatalf("expected coercion failure, got initialized=%v err=%v", initialized, err)
	}
	if !strings.Contains(err.Error(), "hydrate:") {
		t.Fatalf("expected hydrate error, got %v", err)
	}
	if cell.isSet() {
		t.Fatal("expected cell to stay unset after coercion failure")
	}
}

func TestFieldProvenanceOrigins(t *testing.T) {
	write := NewField[int]("count")
	cell := &Cell[int]{}
	if _, err := write.Set(nil, cell, 1); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	prov, ok := write.Provenance(cell)
	if !ok || prov.Origin != OriginWrite {
		t.Fatalf("expected write origin, got %+v", prov)
	}
	if prov.SnapshotID == "" || prov.At.IsZero() {
		t.Fatalf("expected stamped snapshot id and time, got %+v", prov)
	}

	lazy := NewField[int]("total", WithBuilderFunc[int](func(any) (int, error) { return 9, nil }))
	lazyCell := &Cell[int]{}
	if _, _, err := lazy.Get(nil, lazyCell); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if prov, _ := lazy.Provenance(lazyCell); prov.Origin != OriginBuilder {
		t.Fatalf("expected builder origin, got %+v", prov)
	}
}

func TestFieldClearThenRebuildStampsGeneration(t *testing.T) {
	builds := 0
	field := NewField[int]("total", WithBuilderFunc[int](func(any) (int, error) {
		builds++
		return builds * 10, nil
	}))
	cell := &Cell[int]{}

	if _, _, err := field.Get(nil, cell); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if err := field.Clear(nil, cell); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if field.IsSet(cell) {
		t.Fatal("expected cleared cell to be unset")
	}

	value, ok, err := field.Get(nil, cell)
	if err != nil || !ok || value != 20 {
		t.Fatalf("expected rebuild after clear, got %d (ok=%v, err=%v)", value, ok, err)
	}
	prov, _ := field.Provenance(cell)
	if prov.Generation != 1 {
		t.Fatalf("expected generation 1 after one clear, got %d", prov.Generation)
	}
}

func TestFieldGetWithoutBuilder(t *testing.T) {
	field := NewField[int]("plain")
	cell := &Cell[int]{}
	value, ok, err := field.Get(nil, cell)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if ok || value != 0 {
		t.Fatalf("expected unset non-lazy field to miss, got %d (ok=%v)", value, ok)
	}
}

func TestFieldMustGet(t *testing.T) {
	field := NewField[int]("plain")
	cell := &Cell[int]{}

	if _, err := field.MustGet(nil, cell); !errors.Is(err, ErrNoValue) {
		t.Fatalf("expected ErrNoValue for an unset field, got %v", err)
	}

	if _, err := field.Set(nil, cell, 4); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	value, err := field.MustGet(nil, cell)
	if err != nil || value != 4 {
		t.Fatalf("expected stored value 4, got %d (err=%v)", value, err)
	}

	rejected := NewField[float64]("score",
		WithBuilderFunc[float64](func(any) (float64, error) { return -1, nil }),
		WithFilterFunc[float64](func(_ any, value float64, _ FilterContext[float64]) (float64, bool, error) {
			return value, value >= 0, nil
		}))
	if _, err := rejected.MustGet(nil, &Cell[float64]{}); !errors.Is(err, ErrNoValue) {
		t.Fatalf("expected ErrNoValue when the filter rejects the build, got %v", err)
	}
}

func TestFieldNilCellErrors(t *testing.T) {
	field := NewField[int]("count")
	if _, _, err := field.Get(nil, nil); err == nil {
		t.Fatal("expected Get with nil cell to error")
	}
	if _, err := field.Set(nil, nil, 1); err == nil {
		t.Fatal("expected Set with nil cell to error")
	}
	if err := field.Clear(nil, nil); err == nil {
		t.Fatal("expected Clear with nil cell to error")
	}
	if _, err := field.Init(nil, nil, nil); err == nil {
		t.Fatal("expected Init with nil cell to error")
	}
	if field.IsSet(nil) {
		t.Fatal("expected IsSet with nil cell to be false")
	}
	if _, ok := field.Peek(nil); ok {
		t.Fatal("expected Peek with nil cell to miss")
	}
}

func TestFieldExprFilterRejectsOnNil(t *testing.T) {
	score := NewField[float64]("score", WithFilterExpr[float64]("value >= 0.5 ? value : nil"))
	set, err := NewFieldSet("Review", []AnyField{score})
	if err != nil {
		t.Fatalf("NewFieldSet returned error: %v", err)
	}
	record := set.NewRecord(nil)

	stored, err := Set(record, score, 0.2)
	if err != nil {
		t.Fatalf("nil expression result must reject silently: %v", err)
	}
	if stored {
		t.Fatal("expected expression filter to reject 0.2")
	}
	if _, ok := Peek(record, score); ok {
		t.Fatal("expected cell to stay unset after rejection")
	}

	if stored, err := Set(record, score, 0.7); err != nil || !stored {
		t.Fatalf("expected 0.7 to pass, got stored=%v err=%v", stored, err)
	}
	if value, _ := Peek(record, score); value != 0.7 {
		t.Fatalf("expected stored value 0.7, got %v", value)
	}
}

func TestFieldExprBuilderSeesSiblingFields(t *testing.T) {
	price := NewField[float64]("price")
	quantity := NewField[int]("quantity")
	total := NewField[float64]("total", WithBuilderExpr[float64]("price * quantity"))
	set, err := NewFieldSet("Invoice", []AnyField{price, quantity, total})
	if err != nil {
		t.Fatalf("NewFieldSet returned error: %v", err)
	}

	record := set.NewRecord(nil)
	if _, err := Set(record, price, 19.5); err != nil {
		t.Fatalf("Set price returned error: %v", err)
	}
	if _, err := Set(record, quantity, 2); err != nil {
		t.Fatalf("Set quantity returned error: %v", err)
	}

	value, ok, err := Get(record, total)
	if err != nil || !ok || value != 39.0 {
		t.Fatalf("expected expression builder to read sibling fields, got %v (ok=%v, err=%v)", value, ok, err)
	}
}

func TestFieldExprTriggerCallsCustomFunction(t *testing.T) {
	var audited []any
	score := NewField[float64]("score", WithTriggerExpr[float64]("audit(value)"))
	set, err := NewFieldSet("Review", []AnyField{score},
		WithCustomFunction("audit", func(args ...any) (any, error) {
			audited = append(audited, args...)
			return true, nil
		}))
	if err != nil {
		t.Fatalf("NewFieldSet returned error: %v", err)
	}
	record := set.NewRecord(nil)

	if _, err := Set(record, score, 0.9); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if len(audited) != 1 || audited[0] != 0.9 {
		t.Fatalf("expected trigger expression to call audit(0.9), got %v", audited)
	}
}
