package openapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	lazyfield "github.com/goliatone/go-lazyfield"
)

type schemaNode struct {
	Type             string
	Format           string
	Properties       map[string]*schemaNode
	Required         []string
	Items            *schemaNode
	AdditionalProps  *schemaNode
	Enum             []any
	Default          any
	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum *float64
	ExclusiveMaximum *float64
	MinLength        *int
	MaxLength        *int
	Pattern          string
	fieldMeta        map[string]string
}

func newObjectNode() *schemaNode {
	return &schemaNode{
		Type:       "object",
		Properties: map[string]*schemaNode{},
	}
}

func (n *schemaNode) baseMap() map[string]any {
	result := map[string]any{}
	if n.Type != "" {
		result["type"] = n.Type
	}
	if n.Format != "" {
		result["format"] = n.Format
	}
	if n.Default != nil {
		result["default"] = n.Default
	}
	if len(n.Enum) > 0 {
		result["enum"] = n.Enum
	}
	if n.Minimum != nil {
		result["minimum"] = *n.Minimum
	}
	if n.Maximum != nil {
		result["maximum"] = *n.Maximum
	}
	if n.ExclusiveMinimum != nil {
		result["exclusiveMinimum"] = *n.ExclusiveMinimum
	}
	if n.ExclusiveMaximum != nil {
		result["exclusiveMaximum"] = *n.ExclusiveMaximum
	}
	if n.MinLength != nil {
		result["minLength"] = *n.MinLength
	}
	if n.MaxLength != nil {
		result["maxLength"] = *n.MaxLength
	}
	if n.Pattern != "" {
		result["pattern"] = n.Pattern
	}
	return result
}

func (n *schemaNode) inlineOpenAPI() map[string]any {
	result := n.baseMap()

	if len(n.Properties) > 0 || n.Type == "object" {
		props := make(map[string]any, len(n.Properties))
		names := make([]string, 0, len(n.Properties))
		for name := range n.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			props[name] = n.Properties[name].inlineOpenAPI()
		}
		result["properties"] = props
	}

	if len(n.Required) > 0 {
		names := append([]string{}, n.Required...)
		sort.Strings(names)
		result["required"] = names
	}

	if n.Items != nil {
		result["items"] = n.Items.inlineOpenAPI()
	}

	if n.AdditionalProps != nil {
		result["additionalProperties"] = n.AdditionalProps.inlineOpenAPI()
	}

	if len(n.fieldMeta) > 0 {
		result["x-lazyfield"] = orderedStringMap(n.fieldMeta)
	}

	return result
}

func (n *schemaNode) ensureFieldMeta() map[string]string {
	if n.fieldMeta == nil {
		n.fieldMeta = map[string]string{}
	}
	return n.fieldMeta
}

func (n *schemaNode) Digest() string {
	payload := n.inlineOpenAPI()
	data, err := json.Marshal(payload)
	if err != nil {
		// json.Marshal should never fail for the constructed payload; fall
		// back to an empty digest to avoid panics.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// buildFieldGraph renders a field set into the root schema node plus the
// flattened field summaries. Properties follow declaration order before the
// document builder sorts them for output.
func buildFieldGraph(set *lazyfield.FieldSet) (*schemaNode, []lazyfield.SchemaField, error) {
	root := newObjectNode()
	if set == nil {
		return root, nil, nil
	}
	builder := newSchemaBuilder()
	fields := set.Fields()
	summaries := make([]lazyfield.SchemaField, 0, len(fields))
	for _, field := range fields {
		desc := field.Descriptor()
		node, err := builder.buildType(field.ValueType())
		if err != nil {
			return nil, nil, fmt.Errorf("openapi: field %s: %w", desc.Name, err)
		}
		annotateField(node, field, desc)
		root.Properties[desc.Name] = node
		if fieldRequired(desc) {
			root.Required = append(root.Required, desc.Name)
		}
		summaries = append(summaries, lazyfield.SchemaField{
			Name:       desc.Name,
			Aliases:    desc.Aliases,
			Type:       desc.Type,
			Visibility: desc.Visibility,
			Lazy:       desc.Lazy,
			SkipInit:   desc.SkipInit,
		})
	}
	return root, summaries, nil
}

// fieldRequired reports whether a payload must supply the field: nothing else
// can produce a value for it.
func fieldRequired(desc lazyfield.FieldDescriptor) bool {
	return !desc.Lazy && !desc.HasDefault && !desc.SkipInit
}

func annotateField(node *schemaNode, field lazyfield.AnyField, desc lazyfield.FieldDescriptor) {
	meta := node.ensureFieldMeta()
	meta["visibility"] = desc.Visibility
	if desc.Lazy {
		meta["lazy"] = "true"
	}
	if desc.SkipInit {
		meta["skip_init"] = "true"
	}
	if len(desc.Aliases) > 0 {
		meta["aliases"] = strings.Join(desc.Aliases, ",")
	}
	if desc.Predicate != "" {
		meta["predicate"] = desc.Predicate
	}
	if desc.Clearer != "" {
		meta["clearer"] = desc.Clearer
	}
	if value, ok := field.DefaultValue(); ok && value != nil {
		node.Default = value
	}
}

// schemaBuilder walks value types. Declarations carry no instance data, so the
// walk is purely type driven; recursion through self-referential structs stops
// at an empty object node.
type schemaBuilder struct {
	visited map[reflect.Type]bool
}

func newSchemaBuilder() *schemaBuilder {
	return &schemaBuilder{
		visited: map[reflect.Type]bool{},
	}
}

func (b *schemaBuilder) buildType(rt reflect.Type) (*schemaNode, error) {
	if rt == nil {
		return newObjectNode(), nil
	}

	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}

	if rt.Kind() == reflect.Interface {
		return newObjectNode(), nil
	}

	if rt == reflect.TypeOf(time.Time{}) {
		return &schemaNode{
			Type:   "string",
			Format: "date-time",
		}, nil
	}

	switch rt.Kind() {
	case reflect.Bool:
		return &schemaNode{Type: "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return &schemaNode{Type: "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return &schemaNode{Type: "number"}, nil
	case reflect.String:
		return &schemaNode{Type: "string"}, nil
	case reflect.Struct:
		return b.buildStruct(rt)
	case reflect.Map:
		return b.buildMap(rt)
	case reflect.Slice, reflect.Array:
		if rt.Kind() == reflect.Slice && rt.Elem().Kind() == reflect.Uint8 {
			return &schemaNode{
				Type:   "string",
				Format: "byte",
			}, nil
		}
		return b.buildSlice(rt)
	default:
		return &schemaNode{
			Type:   "string",
			Format: fmt.Sprintf("go:%s", rt.String()),
		}, nil
	}
}

func (b *schemaBuilder) buildStruct(rt reflect.Type) (*schemaNode, error) {
	if b.visited[rt] {
		return newObjectNode(), nil
	}
	b.visited[rt] = true
	defer delete(b.visited, rt)

	node := newObjectNode()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		name, omitEmpty, skip := parseJSONName(field)
		if skip {
			continue
		}

		child, err := b.buildType(field.Type)
		if err != nil {
			return nil, err
		}

		if err := applyStructTags(child, field); err != nil {
			return nil, err
		}

		node.Properties[name] = child

		if structFieldRequired(field, omitEmpty) {
			node.Required = append(node.Required, name)
		}
	}

	return node, nil
}

func (b *schemaBuilder) buildMap(rt reflect.Type) (*schemaNode, error) {
	if rt.Key().Kind() != reflect.String {
		return nil, fmt.Errorf("openapi: map key type %s unsupported", rt.Key())
	}

	node := newObjectNode()
	if rt.Elem().Kind() == reflect.Interface {
		return node, nil
	}
	child, err := b.buildType(rt.Elem())
	if err != nil {
		return nil, err
	}
	node.AdditionalProps = child
	return node, nil
}

func (b *schemaBuilder) buildSlice(rt reflect.Type) (*schemaNode, error) {
	child, err := b.buildType(rt.Elem())
	if err != nil {
		return nil, err
	}
	return &schemaNode{
		Type:  "array",
		Items: child,
	}, nil
}

func parseJSONName(field reflect.StructField) (name string, omitEmpty bool, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name, false, false
	}

	segments := strings.Split(tag, ",")
	if segments[0] == "-" {
		return "", false, true
	}

	name = segments[0]
	if name == "" {
		name = field.Name
	}
	for _, segment := range segments[1:] {
		if segment == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

func structFieldRequired(field reflect.StructField, omitEmpty bool) bool {
	if omitEmpty {
		return false
	}
	return field.Type.Kind() != reflect.Pointer
}

// applyStructTags folds schema constraint tags declared on nested struct
// fields into the node: format, default, enum, numeric bounds, and string
// length bounds.
func applyStructTags(node *schemaNode, field reflect.StructField) error {
	baseType := field.Type
	for baseType.Kind() == reflect.Pointer {
		baseType = baseType.Elem()
	}

	if format := field.Tag.Get("format"); format != "" {
		node.Format = format
	}

	if def := field.Tag.Get("default"); def != "" {
		value, err := parseScalar(baseType, def)
		if err != nil {
			return fmt.Errorf("openapi: parse default for field %s: %w", field.Name, err)
		}
		node.Default = value
	}

	if enum := field.Tag.Get("enum"); enum != "" {
		values, err := parseEnum(baseType, enum)
		if err != nil {
			return fmt.Errorf("openapi: parse enum for field %s: %w", field.Name, err)
		}
		node.Enum = values
	}

	if err := applyNumericConstraints(node, baseType, field); err != nil {
		return err
	}

	return applyStringConstraints(node, baseType, field)
}

func applyNumericConstraints(node *schemaNode, baseType reflect.Type, field reflect.StructField) error {
	if !isNumericKind(baseType.Kind()) {
		return nil
	}

	assign := func(target **float64, raw string) error {
		if raw == "" {
			return nil
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*target = &value
		return nil
	}

	if err := assign(&node.Minimum, field.Tag.Get("minimum")); err != nil {
		return fmt.Errorf("openapi: parse minimum for field %s: %w", field.Name, err)
	}
	if err := assign(&node.Maximum, field.Tag.Get("maximum")); err != nil {
		return fmt.Errorf("openapi: parse maximum for field %s: %w", field.Name, err)
	}
	if err := assign(&node.ExclusiveMinimum, field.Tag.Get("exclusiveMinimum")); err != nil {
		return fmt.Errorf("openapi: parse exclusiveMinimum for field %s: %w", field.Name, err)
	}
	if err := assign(&node.ExclusiveMaximum, field.Tag.Get("exclusiveMaximum")); err != nil {
		return fmt.Errorf("openapi: parse exclusiveMaximum for field %s: %w", field.Name, err)
	}

	return nil
}

func applyStringConstraints(node *schemaNode, baseType reflect.Type, field reflect.StructField) error {
	if baseType.Kind() != reflect.String {
		return nil
	}

	assign := func(target **int, raw string) error {
		if raw == "" {
			return nil
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*target = &value
		return nil
	}

	if err := assign(&node.MinLength, field.Tag.Get("minLength")); err != nil {
		return fmt.Errorf("openapi: parse minLength for field %s: %w", field.Name, err)
	}
	if err := assign(&node.MaxLength, field.Tag.Get("maxLength")); err != nil {
		return fmt.Errorf("openapi: parse maxLength for field %s: %w", field.Name, err)
	}
	if pattern := field.Tag.Get("pattern"); pattern != "" {
		node.Pattern = pattern
	}

	return nil
}

func parseScalar(t reflect.Type, raw string) (any, error) {
	switch t.Kind() {
	case reflect.Bool:
		return strconv.ParseBool(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value, err := strconv.ParseInt(raw, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		return value, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		value, err := strconv.ParseUint(raw, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		return value, nil
	case reflect.Float32, reflect.Float64:
		return strconv.ParseFloat(raw, t.Bits())
	case reflect.String:
		return raw, nil
	default:
		// Fallback to string representation
		return raw, nil
	}
}

func parseEnum(t reflect.Type, raw string) ([]any, error) {
	parts := strings.Split(raw, ",")
	values := make([]any, 0, len(parts))
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := parseScalar(base, part)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func isNumericKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func orderedStringMap(values map[string]string) map[string]any {
	out := make(map[string]any, len(values))
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		out[key] = values[key]
	}
	return out
}
