package lazyfield

// FieldDescriptor describes one declared field within a schema document.
type FieldDescriptor struct {
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases,omitempty"`
	Type       string   `json:"type"`
	Visibility string   `json:"visibility"`
	Lazy       bool     `json:"lazy"`
	HasDefault bool     `json:"has_default,omitempty"`
	SkipInit   bool     `json:"skip_init,omitempty"`
	Predicate  string   `json:"predicate,omitempty"`
	Clearer    string   `json:"clearer,omitempty"`
}

func (d FieldDescriptor) summary() SchemaField {
	return SchemaField{
		Name:       d.Name,
		Aliases:    d.Aliases,
		Type:       d.Type,
		Visibility: d.Visibility,
		Lazy:       d.Lazy,
		SkipInit:   d.SkipInit,
	}
}

// DefaultSchemaGenerator returns the built-in descriptor-based schema
// generator.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(set *FieldSet) (SchemaDocument, error) {
	if set == nil {
		return SchemaDocument{
			Format:   SchemaFormatDescriptors,
			Document: []FieldDescriptor{},
		}, nil
	}
	fields := set.Fields()
	descriptors := make([]FieldDescriptor, 0, len(fields))
	summaries := make([]SchemaField, 0, len(fields))
	for _, field := range fields {
		desc := field.Descriptor()
		descriptors = append(descriptors, desc)
		summaries = append(summaries, desc.summary())
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Document: descriptors,
		Fields:   summaries,
	}, nil
}
