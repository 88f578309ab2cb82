package lazyfield

import (
	"strings"
	"testing"
	"time"
)

func TestProvenanceJSONRoundTrip(t *testing.T) {
	original := Provenance{
		Origin:     OriginInit,
		Source:     "config",
		Generation: 3,
		SnapshotID: "snap-1",
		At:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := original.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON returned error: %v", err)
	}
	restored, err := ProvenanceFromJSON(data)
	if err != nil {
		t.Fatalf("ProvenanceFromJSON returned error: %v", err)
	}
	if restored != original {
		t.Fatalf("expected %+v, got %+v", original, restored)
	}
}

func TestProvenanceJSONOmitsEmptySource(t *testing.T) {
	prov := Provenance{Origin: OriginBuilder, Generation: 1, SnapshotID: "snap-2"}
	data, err := prov.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON returned error: %v", err)
	}
	if strings.Contains(string(data), "source") {
		t.Fatalf("expected source to be omitted, got %s", data)
	}
}

func TestProvenanceFromJSONRejectsMalformedInput(t *testing.T) {
	if _, err := ProvenanceFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected malformed payload to error")
	}
}

func TestProvenanceTracksPipelineTransitions(t *testing.T) {
	score := NewField[float64]("score", WithBuilderFunc[float64](func(any) (float64, error) {
		return 0.5, nil
	}))
	set, err := NewFieldSet("Gauge", []AnyField{score})
	if err != nil {
		t.Fatalf("NewFieldSet returned error: %v", err)
	}
	record := set.NewRecord(nil)

	if _, ok := record.Provenance("score"); ok {
		t.Fatal("expected no provenance before any store")
	}

	if _, _, err := Get(record, score); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	built, ok := record.Provenance("score")
	if !ok || built.Origin != OriginBuilder {
		t.Fatalf("expected builder provenance, got %+v (ok=%v)", built, ok)
	}
	if built.SnapshotID == "" || built.At.IsZero() {
		t.Fatalf("expected stamped provenance, got %+v", built)
	}

	if _, err := Set(record, score, 0.9); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	written, _ := record.Provenance("score")
	if written.Origin != OriginWrite {
		t.Fatalf("expected write provenance, got %+v", written)
	}
	if written.Generation != built.Generation {
		t.Fatalf("expected a direct write to stay in generation %d, got %d", built.Generation, written.Generation)
	}
	if written.SnapshotID == built.SnapshotID {
		t.Fatal("expected each store to mint a fresh snapshot id")
	}

	if err := Clear(record, score); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if _, _, err := Get(record, score); err != nil {
		t.Fatalf("Get after clear returned error: %v", err)
	}
	rebuilt, _ := record.Provenance("score")
	if rebuilt.Origin != OriginBuilder {
		t.Fatalf("expected builder provenance after the rebuild, got %+v", rebuilt)
	}
	if rebuilt.Generation != written.Generation+1 {
		t.Fatalf("expected clear to advance the generation to %d, got %d", written.Generation+1, rebuilt.Generation)
	}
}
