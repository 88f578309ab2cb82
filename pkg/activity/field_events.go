package activity

import (
	"strings"
	"time"
)

// Verbs emitted by the field lifecycle.
const (
	VerbFieldStored   = "field.stored"
	VerbFieldBuilt    = "field.built"
	VerbFieldCleared  = "field.cleared"
	VerbFieldRejected = "field.rejected"
)

// SourceContext captures metadata about the external source that supplied a
// value during initialization.
type SourceContext struct {
	Name       string
	Label      string
	Priority   int
	Metadata   map[string]any
	SnapshotID string
}

// FieldEventInput describes the common fields for field lifecycle events.
type FieldEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any

	TypeName   string
	Field      string
	InstanceID string
	Origin     string
	Generation uint64
	SnapshotID string
	OldValue   any
	HasOld     bool
	NewValue   any
	Source     SourceContext
	OccurredAt time.Time
}

// Path returns the event's field path ("Type.field").
func (input FieldEventInput) Path() string {
	switch {
	case input.TypeName != "" && input.Field != "":
		return input.TypeName + "." + input.Field
	case input.Field != "":
		return input.Field
	default:
		return ""
	}
}

// BuildFieldStoredEvent constructs a normalized activity event for a direct
// or initialization store.
func BuildFieldStoredEvent(input FieldEventInput) Event {
	return buildFieldEvent(VerbFieldStored, "field", input)
}

// BuildFieldBuiltEvent constructs a normalized activity event for a value
// produced by a lazy builder.
func BuildFieldBuiltEvent(input FieldEventInput) Event {
	return buildFieldEvent(VerbFieldBuilt, "field", input)
}

// BuildFieldClearedEvent constructs a normalized activity event for a cleared
// cell.
func BuildFieldClearedEvent(input FieldEventInput) Event {
	return buildFieldEvent(VerbFieldCleared, "field", input)
}

// BuildFieldRejectedEvent constructs a normalized activity event for a
// candidate value the filter refused to store.
func BuildFieldRejectedEvent(input FieldEventInput) Event {
	return buildFieldEvent(VerbFieldRejected, "field", input)
}

func buildFieldEvent(verb, objectType string, input FieldEventInput) Event {
	metadata := cloneMap(input.Metadata)
	path := input.Path()
	if path != "" {
		metadata = ensureMetadata(metadata)
		metadata["path"] = path
	}
	if input.InstanceID != "" {
		metadata = ensureMetadata(metadata)
		metadata["instance_id"] = input.InstanceID
	}
	if input.Origin != "" {
		metadata = ensureMetadata(metadata)
		metadata["origin"] = input.Origin
	}
	metadata = ensureMetadata(metadata)
	metadata["generation"] = input.Generation
	if input.SnapshotID != "" {
		metadata["snapshot_id"] = input.SnapshotID
	}
	if input.Source.Name != "" {
		metadata["source_name"] = input.Source.Name
		metadata["source_priority"] = input.Source.Priority
		if input.Source.Label != "" {
			metadata["source_label"] = input.Source.Label
		}
		if len(input.Source.Metadata) > 0 {
			metadata["source_metadata"] = cloneMap(input.Source.Metadata)
		}
		if input.Source.SnapshotID != "" {
			metadata["source_snapshot_id"] = input.Source.SnapshotID
		}
	}
	if input.HasOld {
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata["new_value"] = input.NewValue
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.InstanceID)
	}
	if objectID == "" {
		objectID = strings.TrimSpace(input.SnapshotID)
	}
	if objectID == "" {
		objectID = path
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
