package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	lazyfield "github.com/goliatone/go-lazyfield"
	layering "github.com/goliatone/go-lazyfield/layering"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// Snapshot is the persisted shape of one source's values.
type Snapshot = map[string]any

// Ref identifies one persisted snapshot for one value domain. The source
// carries the level and name that compose the storage key; its values are
// irrelevant to the reference.
type Ref struct {
	Domain string
	Source lazyfield.Source
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one snapshot for a single source reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Resolver orchestrates per-source loads and assembles them into a stack
// ready for Record.Init. When Fields is set, mutations are checked against
// the declared field names before saving.
type Resolver struct {
	Store  Store[Snapshot]
	Fields *lazyfield.FieldSet
}

// Mutator edits one snapshot in place. The pointer allows wholesale
// replacement of the map.
type Mutator func(*Snapshot) error

// Identifier returns the canonical storage key for the reference, derived
// from the source's level and name plus the domain.
func (r Ref) Identifier() (string, error) {
	if r.Domain == "" {
		return "", fmt.Errorf("state: domain is required")
	}
	if r.Source.Name == "" {
		return "", fmt.Errorf("state: source name is required")
	}
	if r.Source.Level == layering.SourceLevelUnknown {
		return "", fmt.Errorf("state: source %q has no level", r.Source.Name)
	}
	ref := layering.SourceRef{Key: r.Domain, Level: r.Source.Level, Origin: r.Source.Name}
	return ref.Identifier(), nil
}

// Resolve loads a snapshot per requested source and assembles the stack.
// Sources act as templates: their Values are ignored in favor of the stored
// snapshot, and sources with nothing stored are skipped.
func (r Resolver) Resolve(ctx context.Context, domain string, sources ...lazyfield.Source) (*lazyfield.SourceStack, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if domain == "" {
		return nil, fmt.Errorf("state: domain is required")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("state: at least one source is required")
	}

	loaded, err := r.load(ctx, domain, sources)
	if err != nil {
		return nil, err
	}
	if len(loaded) == 0 {
		return nil, fmt.Errorf("state: no snapshots found for domain %q", domain)
	}
	return lazyfield.NewSourceStack(loaded...)
}

// ResolveWithDefaults resolves like Resolve but appends defaults as the
// weakest source, so records always have a base layer even when nothing was
// persisted yet. The source name "defaults" is reserved for that layer.
func (r Resolver) ResolveWithDefaults(ctx context.Context, domain string, defaults Snapshot, sources ...lazyfield.Source) (*lazyfield.SourceStack, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if domain == "" {
		return nil, fmt.Errorf("state: domain is required")
	}

	prioritySet := make(map[int]struct{}, len(sources)+1)
	minPriority := 0
	if len(sources) > 0 {
		minPriority = sources[0].Priority
	}
	for _, source := range sources {
		if source.Name == "defaults" {
			return nil, fmt.Errorf("state: source name %q is reserved", "defaults")
		}
		prioritySet[source.Priority] = struct{}{}
		if source.Priority < minPriority {
			minPriority = source.Priority
		}
	}

	defaultsPriority := 0
	if len(sources) > 0 {
		defaultsPriority = minPriority - 1
		for {
			if _, ok := prioritySet[defaultsPriority]; !ok {
				break
			}
			defaultsPriority--
		}
	}

	loaded, err := r.load(ctx, domain, sources)
	if err != nil {
		return nil, err
	}
	loaded = append(loaded, lazyfield.NewSource("defaults", defaultsPriority, defaults,
		lazyfield.WithSourceLabel("Defaults"),
		lazyfield.WithSourceLevel(layering.SourceLevelDefaults)))

	return lazyfield.NewSourceStack(loaded...)
}

func (r Resolver) load(ctx context.Context, domain string, sources []lazyfield.Source) ([]lazyfield.Source, error) {
	loaded := make([]lazyfield.Source, 0, len(sources))
	for _, source := range sources {
		snapshot, meta, ok, err := r.Store.Load(ctx, Ref{Domain: domain, Source: source})
		if err != nil {
			return nil, fmt.Errorf("state: load %q for source %q: %w", domain, source.Name, err)
		}
		if !ok {
			continue
		}
		loaded = append(loaded, hydrateSource(source, snapshot, meta))
	}
	return loaded, nil
}

// hydrateSource rebuilds a stack-ready source from its template plus the
// stored snapshot and metadata.
func hydrateSource(template lazyfield.Source, snapshot Snapshot, meta Meta) lazyfield.Source {
	opts := []lazyfield.SourceOption{
		lazyfield.WithSourceLevel(template.Level),
	}
	if template.Label != "" {
		opts = append(opts, lazyfield.WithSourceLabel(template.Label))
	}
	if len(template.Metadata) > 0 {
		opts = append(opts, lazyfield.WithSourceMetadata(template.Metadata))
	}
	if meta.SnapshotID != "" {
		opts = append(opts, lazyfield.WithSourceSnapshotID(meta.SnapshotID))
	}
	return lazyfield.NewSource(template.Name, template.Priority, snapshot, opts...)
}

// Mutate loads one snapshot, applies fn, checks the result against declared
// fields when configured, then saves. A missing snapshot starts empty. The
// saved metadata always carries a snapshot id and update time.
func (r Resolver) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator) (lazyfield.Source, Meta, error) {
	if r.Store == nil {
		return lazyfield.Source{}, Meta{}, fmt.Errorf("state: store is required")
	}
	if ref.Domain == "" {
		return lazyfield.Source{}, Meta{}, fmt.Errorf("state: domain is required")
	}
	if ref.Source.Name == "" {
		return lazyfield.Source{}, Meta{}, fmt.Errorf("state: source name is required")
	}
	if fn == nil {
		return lazyfield.Source{}, Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return lazyfield.Source{}, Meta{}, fmt.Errorf("state: load %q for source %q: %w", ref.Domain, ref.Source.Name, err)
	}
	if !ok {
		snapshot = Snapshot{}
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return lazyfield.Source{}, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(&snapshot); err != nil {
		return lazyfield.Source{}, loadedMeta, err
	}

	if err := r.check(snapshot); err != nil {
		return lazyfield.Source{}, loadedMeta, err
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	if meta.SnapshotID == "" {
		saveMeta.SnapshotID = uuid.NewString()
	}
	if saveMeta.UpdatedAt.IsZero() {
		saveMeta.UpdatedAt = time.Now().UTC()
	}
	savedMeta, err := r.Store.Save(ctx, ref, snapshot, saveMeta)
	if err != nil {
		return lazyfield.Source{}, loadedMeta, fmt.Errorf("state: save %q for source %q: %w", ref.Domain, ref.Source.Name, err)
	}

	return hydrateSource(ref.Source, snapshot, savedMeta), savedMeta, nil
}

// check rejects snapshot keys that resolve to no declared field.
func (r Resolver) check(snapshot Snapshot) error {
	if r.Fields == nil {
		return nil
	}
	for name := range snapshot {
		if _, ok := r.Fields.Lookup(name); !ok {
			return fmt.Errorf("state: snapshot key %q matches no field on %s", name, r.Fields.TypeName())
		}
	}
	return nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}
