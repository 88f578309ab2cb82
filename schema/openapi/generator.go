package openapi

import (
	lazyfield "github.com/goliatone/go-lazyfield"
)

type generator struct {
	config generatorConfig
}

// NewGenerator constructs an OpenAPI-compatible schema generator. The
// generated document describes the initialization payload for a field set:
// one property per declared field, with fields that neither build lazily nor
// carry a default marked required.
func NewGenerator(opts ...GeneratorOption) lazyfield.SchemaGenerator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg}
}

// Option wires the OpenAPI schema generator into a field set.
func Option(opts ...GeneratorOption) lazyfield.SetOption {
	return lazyfield.WithSchemaGenerator(NewGenerator(opts...))
}

func (g generator) Generate(set *lazyfield.FieldSet) (lazyfield.SchemaDocument, error) {
	root, summaries, err := buildFieldGraph(set)
	if err != nil {
		return lazyfield.SchemaDocument{}, err
	}
	registry := newComponentRegistry()
	document, err := newDocumentBuilder(g.config, registry, root).build()
	if err != nil {
		return lazyfield.SchemaDocument{}, err
	}
	return lazyfield.SchemaDocument{
		Format:   lazyfield.SchemaFormatOpenAPI,
		Document: document,
		Fields:   summaries,
	}, nil
}
