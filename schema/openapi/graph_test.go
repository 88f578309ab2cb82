package openapi

import (
	"reflect"
	"testing"

	lazyfield "github.com/goliatone/go-lazyfield"
)

type endpoint struct {
	Host string `json:"host" default:"localhost" minLength:"3"`
	Port int    `json:"port" minimum:"1" maximum:"65535"`
	Note *string `json:"note,omitempty"`
}

func serviceFieldSet(t *testing.T) *lazyfield.FieldSet {
	t.Helper()
	set, err := lazyfield.NewFieldSet("Service", []lazyfield.AnyField{
		lazyfield.NewField[string]("name"),
		lazyfield.NewField[int]("retries", lazyfield.WithDefault[int](3)),
		lazyfield.NewField[float64]("score", lazyfield.WithBuilderFunc[float64](func(any) (float64, error) {
			return 0.5, nil
		})),
		lazyfield.NewField[endpoint]("endpoint", lazyfield.WithAliases[endpoint]("addr")),
		lazyfield.NewField[[]string]("tags", lazyfield.WithSkipInit[[]string]()),
		lazyfield.NewField[map[string]int]("limits", lazyfield.WithDefault[map[string]int](map[string]int{})),
	})
	if err != nil {
		t.Fatalf("NewFieldSet returned error: %v", err)
	}
	return set
}

func TestBuildFieldGraphAnnotations(t *testing.T) {
	node, summaries, err := buildFieldGraph(serviceFieldSet(t))
	if err != nil {
		t.Fatalf("buildFieldGraph returned error: %v", err)
	}

	schema := node.inlineOpenAPI()
	if schema["type"] != "object" {
		t.Fatalf("expected object type, got %v", schema["type"])
	}
	required, ok := schema["required"].([]string)
	if !ok {
		t.Fatalf("expected required slice, got %T", schema["required"])
	}
	expectedRequired := []string{"endpoint", "name"}
	if !reflect.DeepEqual(expectedRequired, required) {
		t.Fatalf("unexpected required fields\nwant: %v\ngot:  %v", expectedRequired, required)
	}

	props := schema["properties"].(map[string]any)

	retries := props["retries"].(map[string]any)
	if retries["type"] != "integer" {
		t.Fatalf("expected retries integer type, got %v", retries["type"])
	}
	if retries["default"] != 3 {
		t.Fatalf("expected retries default 3, got %v", retries["default"])
	}
	retriesMeta := retries["x-lazyfield"].(map[string]any)
	if retriesMeta["visibility"] != "private" {
		t.Fatalf("expected retries visibility private, got %v", retriesMeta["visibility"])
	}

	score := props["score"].(map[string]any)
	scoreMeta := score["x-lazyfield"].(map[string]any)
	if scoreMeta["lazy"] != "true" {
		t.Fatalf("expected score marked lazy, got %v", scoreMeta["lazy"])
	}

	ep := props["endpoint"].(map[string]any)
	epMeta := ep["x-lazyfield"].(map[string]any)
	if epMeta["aliases"] != "addr" {
		t.Fatalf("expected endpoint aliases addr, got %v", epMeta["aliases"])
	}
	epRequired := ep["required"].([]string)
	if !reflect.DeepEqual([]string{"host", "port"}, epRequired) {
		t.Fatalf("unexpected endpoint required fields %v", epRequired)
	}
	epProps := ep["properties"].(map[string]any)
	host := epProps["host"].(map[string]any)
	if host["default"] != "localhost" {
		t.Fatalf("expected host default localhost, got %v", host["default"])
	}
	if host["minLength"].(int) != 3 {
		t.Fatalf("expected host minLength 3, got %v", host["minLength"])
	}
	port := epProps["port"].(map[string]any)
	if port["minimum"].(float64) != 1 {
		t.Fatalf("expected port minimum 1, got %v", port["minimum"])
	}
	if port["maximum"].(float64) != 65535 {
		t.Fatalf("expected port maximum 65535, got %v", port["maximum"])
	}

	tags := props["tags"].(map[string]any)
	if tags["type"] != "array" {
		t.Fatalf("expected tags array type, got %v", tags["type"])
	}
	items := tags["items"].(map[string]any)
	if items["type"] != "string" {
		t.Fatalf("expected tags items string type, got %v", items["type"])
	}
	tagsMeta := tags["x-lazyfield"].(map[string]any)
	if tagsMeta["skip_init"] != "true" {
		t.Fatalf("expected tags marked skip_init, got %v", tagsMeta["skip_init"])
	}

	limits := props["limits"].(map[string]any)
	additional := limits["additionalProperties"].(map[string]any)
	if additional["type"] != "integer" {
		t.Fatalf("expected limits values integer type, got %v", additional["type"])
	}

	if len(summaries) != 6 {
		t.Fatalf("expected 6 field summaries, got %d", len(summaries))
	}
	if summaries[0].Name != "name" || summaries[3].Name != "endpoint" {
		t.Fatalf("expected summaries in declaration order, got %v", summaries)
	}
	if !summaries[2].Lazy {
		t.Fatalf("expected score summary marked lazy")
	}
}

func TestBuildFieldGraphNilSet(t *testing.T) {
	node, summaries, err := buildFieldGraph(nil)
	if err != nil {
		t.Fatalf("buildFieldGraph returned error: %v", err)
	}
	if summaries != nil {
		t.Fatalf("expected no summaries for nil set, got %v", summaries)
	}
	schema := node.inlineOpenAPI()
	if schema["type"] != "object" {
		t.Fatalf("expected object root, got %v", schema["type"])
	}
	props := schema["properties"].(map[string]any)
	if len(props) != 0 {
		t.Fatalf("expected empty properties, got %v", props)
	}
}

func TestSchemaNodeDigest(t *testing.T) {
	setA := func() *lazyfield.FieldSet {
		set, err := lazyfield.NewFieldSet("A", []lazyfield.AnyField{
			lazyfield.NewField[string]("value"),
		})
		if err != nil {
			t.Fatalf("NewFieldSet(A) returned error: %v", err)
		}
		return set
	}
	setB, err := lazyfield.NewFieldSet("B", []lazyfield.AnyField{
		lazyfield.NewField[int]("value"),
	})
	if err != nil {
		t.Fatalf("NewFieldSet(B) returned error: %v", err)
	}

	nodeA1, _, err := buildFieldGraph(setA())
	if err != nil {
		t.Fatalf("buildFieldGraph(A) error: %v", err)
	}
	nodeA2, _, err := buildFieldGraph(setA())
	if err != nil {
		t.Fatalf("buildFieldGraph(A) second error: %v", err)
	}
	if nodeA1.Digest() != nodeA2.Digest() {
		t.Fatalf("expected identical digests for equivalent schemas")
	}

	nodeB, _, err := buildFieldGraph(setB)
	if err != nil {
		t.Fatalf("buildFieldGraph(B) error: %v", err)
	}
	if nodeA1.Digest() == nodeB.Digest() {
		t.Fatalf("expected differing digests for differing schemas")
	}
}
