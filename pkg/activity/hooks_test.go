package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	recipients := []string{" a ", "b ", " "}
	evt := Event{
		Verb:           " field.stored ",
		ActorID:        " actor ",
		UserID:         " user ",
		TenantID:       " tenant ",
		ObjectType:     " field ",
		ObjectID:       " 42 ",
		Channel:        " fields ",
		DefinitionCode: " def ",
		Recipients:     recipients,
		Metadata:       meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "field.stored" || got.ObjectType != "field" || got.ObjectID != "42" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.UserID != "user" || got.TenantID != "tenant" || got.Channel != "fields" || got.DefinitionCode != "def" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatal("expected OccurredAt to be set")
	}
	if len(got.Recipients) != 2 || got.Recipients[0] != "a" || got.Recipients[1] != "b" {
		t.Fatalf("expected blank recipients dropped, got %v", got.Recipients)
	}
	if got.Metadata["k"] != "v" {
		t.Fatalf("expected metadata value preserved: %+v", got.Metadata)
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
	got.Recipients[0] = "changed"
	if recipients[0] != " a " {
		t.Fatalf("expected original recipients untouched: %+v", recipients)
	}
}

func TestHooksNotifyShortCircuitsMissingRequired(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}

	cases := []Event{
		{},
		{ObjectType: "field", ObjectID: "1"},
		{Verb: "field.stored", ObjectID: "1"},
		{Verb: "field.stored", ObjectType: "field"},
	}
	for _, evt := range cases {
		if err := hooks.Notify(context.Background(), evt); err != nil {
			t.Fatalf("expected nil error for unaddressable event, got %v", err)
		}
	}
	if capture.Len() != 0 {
		t.Fatalf("expected no events captured, got %d", capture.Len())
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	capture := &CaptureHook{}
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, _ Event) error {
			if ctx != nil {
				ctxSeen = true
			}
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	err := hooks.Notify(nil, Event{Verb: "field.stored", ObjectType: "field", ObjectID: "1"})
	if err == nil || !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatal("expected context fallback to be non-nil")
	}
	if capture.Len() != 1 {
		t.Fatalf("expected event to be captured once, got %d", capture.Len())
	}
}

func TestHooksEnabled(t *testing.T) {
	if (Hooks{}).Enabled() {
		t.Fatal("expected empty hooks to be disabled")
	}
	if !(Hooks{&CaptureHook{}}).Enabled() {
		t.Fatal("expected non-empty hooks to be enabled")
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatal("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), Event{Verb: "field.stored", ObjectType: "field", ObjectID: "1"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if capture.Len() != 0 {
		t.Fatal("expected no events captured when disabled")
	}

	hookless := NewEmitter(nil, Config{Enabled: true})
	if hookless.Enabled() {
		t.Fatal("expected emitter without hooks to stay disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: ""})
	if !enabled.Enabled() {
		t.Fatal("expected emitter to be enabled")
	}
	if err := enabled.Emit(context.Background(), Event{Verb: "field.stored", ObjectType: "field", ObjectID: "1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Captured()
	if len(events) != 1 {
		t.Fatalf("expected one event captured, got %d", len(events))
	}
	if events[0].Channel != "fields" {
		t.Fatalf("expected default channel applied, got %q", events[0].Channel)
	}
}

func TestEmitterPreservesExplicitChannel(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default"})

	occurred := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := emitter.Emit(context.Background(), Event{
		Verb:       "field.stored",
		ObjectType: "field",
		ObjectID:   "1",
		Channel:    "custom",
		OccurredAt: occurred,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Captured()
	if events[0].Channel != "custom" {
		t.Fatalf("expected explicit channel preserved, got %q", events[0].Channel)
	}
	if !events[0].OccurredAt.Equal(occurred) {
		t.Fatalf("expected occurred_at preserved, got %v", events[0].OccurredAt)
	}
}

func TestEmitterDropsNilHooks(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{nil, capture, nil}, Config{Enabled: true})

	if err := emitter.Emit(context.Background(), Event{Verb: "field.stored", ObjectType: "field", ObjectID: "1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if capture.Len() != 1 {
		t.Fatalf("expected one event, got %d", capture.Len())
	}
}
