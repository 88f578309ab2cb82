package lazyfield

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Record is one instance of a declaring type: a receiver paired with one cell
// per declared field. The cell map is fixed at construction, so a Record is as
// safe for concurrent use as its cells.
type Record struct {
	set   *FieldSet
	recv  any
	id    string
	cells map[string]any
}

// NewRecord allocates an instance of the set's declaring type. recv is the
// receiver handed to hooks and registry methods; when nil, the Record itself
// becomes the receiver so hooks can read sibling fields through it.
func (s *FieldSet) NewRecord(recv any) *Record {
	record := &Record{
		set:   s,
		id:    uuid.NewString(),
		cells: make(map[string]any, len(s.fields)),
	}
	record.recv = recv
	if recv == nil {
		record.recv = record
	}
	for _, field := range s.fields {
		record.cells[field.Name()] = field.newCell()
	}
	return record
}

// InstanceID returns the record's stable identifier, stamped into emitted
// events.
func (r *Record) InstanceID() string { return r.id }

// FieldSet returns the registry the record was built from.
func (r *Record) FieldSet() *FieldSet { return r.set }

// Receiver returns the value hooks are invoked against.
func (r *Record) Receiver() any { return r.recv }

// Get reads a field by base name or alias, running the builder on first
// access.
func (r *Record) Get(name string) (any, bool, error) {
	field, cell, err := r.field(name)
	if err != nil {
		return nil, false, err
	}
	return field.getAny(r.recv, cell)
}

// Peek returns the field's current value without triggering a build.
func (r *Record) Peek(name string) (any, bool) {
	field, cell, err := r.field(name)
	if err != nil {
		return nil, false
	}
	return field.peekAny(cell)
}

// Set writes a field through its filter and trigger pipeline. Raw values are
// coerced to the field's declared type first.
func (r *Record) Set(name string, value any) (bool, error) {
	field, cell, err := r.field(name)
	if err != nil {
		return false, err
	}
	return field.setAny(r.recv, cell, value)
}

// Clear returns the field to unset, discarding any build in flight.
func (r *Record) Clear(name string) error {
	field, cell, err := r.field(name)
	if err != nil {
		return err
	}
	return field.clearAny(r.recv, cell)
}

// IsSet reports whether the field currently holds a value. It never triggers
// a build.
func (r *Record) IsSet(name string) bool {
	field, cell, err := r.field(name)
	if err != nil {
		return false
	}
	return field.isSetAny(cell)
}

// Provenance reports how the field acquired its current value.
func (r *Record) Provenance(name string) (Provenance, bool) {
	field, cell, err := r.field(name)
	if err != nil {
		return Provenance{}, false
	}
	return field.provenanceAny(cell)
}

// Init seeds every field from sources in declaration order. Fields that opted
// out or already hold a value are left alone; a nil stack still materializes
// declared defaults. Failures are collected so one bad source value does not
// stop the remaining fields.
func (r *Record) Init(sources *SourceStack) error {
	var errs []error
	for _, field := range r.set.fields {
		if _, err := field.initAny(r.recv, r.cells[field.Name()], sources); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Values returns the currently set fields keyed by base name. Unset fields are
// omitted and no builders run. Expression hooks see this map when the Record
// is the receiver.
func (r *Record) Values() map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, len(r.set.fields))
	for _, field := range r.set.fields {
		if value, ok := field.peekAny(r.cells[field.Name()]); ok {
			out[field.Name()] = value
		}
	}
	return out
}

func (r *Record) field(name string) (AnyField, any, error) {
	field, ok := r.set.Lookup(name)
	if !ok {
		return nil, nil, fmt.Errorf("lazyfield: unknown field %q on %s", name, r.set.typeName)
	}
	return field, r.cells[field.Name()], nil
}

// Get reads field on record through its typed declaration, preserving the
// value type across the dynamic cell storage.
func Get[T any](record *Record, field *Field[T]) (T, bool, error) {
	var zero T
	cell, err := recordCell(record, field)
	if err != nil {
		return zero, false, err
	}
	return field.Get(record.recv, cell)
}

// MustGet reads field on record, treating absence as ErrNoValue.
func MustGet[T any](record *Record, field *Field[T]) (T, error) {
	cell, err := recordCell(record, field)
	if err != nil {
		var zero T
		return zero, err
	}
	return field.MustGet(record.recv, cell)
}

// Peek reads field's current value on record without triggering a build.
func Peek[T any](record *Record, field *Field[T]) (T, bool) {
	cell, err := recordCell(record, field)
	if err != nil {
		var zero T
		return zero, false
	}
	return field.Peek(cell)
}

// Set writes value to field on record through the filter and trigger pipeline.
func Set[T any](record *Record, field *Field[T], value T) (bool, error) {
	cell, err := recordCell(record, field)
	if err != nil {
		return false, err
	}
	return field.Set(record.recv, cell, value)
}

// Clear returns field on record to unset.
func Clear[T any](record *Record, field *Field[T]) error {
	cell, err := recordCell(record, field)
	if err != nil {
		return err
	}
	return field.Clear(record.recv, cell)
}

func recordCell[T any](record *Record, field *Field[T]) (*Cell[T], error) {
	if record == nil || field == nil {
		return nil, newConfigError("", "", "record and field must not be nil")
	}
	if field.set != record.set {
		return nil, newConfigError(record.set.typeName, field.name, "field belongs to a different set")
	}
	raw, ok := record.cells[field.name]
	if !ok {
		return nil, newConfigError(record.set.typeName, field.name, "field not declared on record")
	}
	return field.cellOf(raw)
}
