package lazyfield

import (
	"encoding/json"
	"testing"
)

func TestDefaultSchemaGeneratorNilSet(t *testing.T) {
	doc, err := DefaultSchemaGenerator().Generate(nil)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if doc.Format != SchemaFormatDescriptors {
		t.Fatalf("expected descriptors format, got %q", doc.Format)
	}
	descriptors, ok := doc.Document.([]FieldDescriptor)
	if !ok || len(descriptors) != 0 {
		t.Fatalf("expected empty descriptor list, got %#v", doc.Document)
	}
}

func TestSchemaDocumentMarshals(t *testing.T) {
	set, err := NewFieldSet("Widget", []AnyField{
		NewField[string]("label", WithAliases[string]("title")),
		NewField[int]("count", WithDefault[int](1)),
	})
	if err != nil {
		t.Fatalf("NewFieldSet returned error: %v", err)
	}

	doc, err := set.Schema()
	if err != nil {
		t.Fatalf("Schema returned error: %v", err)
	}
	data, err := json.Marshal(doc.Document)
	if err != nil {
		t.Fatalf("descriptors failed to marshal: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("descriptors failed to round trip: %v", err)
	}
	if len(decoded) != 2 || decoded[0]["name"] != "label" {
		t.Fatalf("unexpected descriptor payload: %v", decoded)
	}
}

func TestWithSchemaGeneratorOverride(t *testing.T) {
	custom := schemaGeneratorFunc(func(set *FieldSet) (SchemaDocument, error) {
		return SchemaDocument{Format: "custom", Document: set.TypeName()}, nil
	})
	set, err := NewFieldSet("Widget", []AnyField{
		NewField[string]("label"),
	}, WithSchemaGenerator(custom))
	if err != nil {
		t.Fatalf("NewFieldSet returned error: %v", err)
	}

	doc, err := set.Schema()
	if err != nil {
		t.Fatalf("Schema returned error: %v", err)
	}
	if doc.Format != "custom" || doc.Document != "Widget" {
		t.Fatalf("expected custom generator output, got %+v", doc)
	}
}

type schemaGeneratorFunc func(*FieldSet) (SchemaDocument, error)

func (f schemaGeneratorFunc) Generate(set *FieldSet) (SchemaDocument, error) {
	return f(set)
}
