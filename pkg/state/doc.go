// Package state defines persistence-facing contracts for loading and saving
// per-source value snapshots, plus a small resolver that orchestrates source
// loading and hands the assembled stack to the core lazyfield primitives.
//
// Responsibilities:
//   - Store[T] only loads/saves a single snapshot for a single Ref.
//   - Resolver loads snapshots for multiple sources and assembles them into a
//     lazyfield.SourceStack ready for Record.Init.
//   - The core lazyfield package remains persistence-agnostic; all persistence
//     logic stays behind Store implementations supplied by consumers.
//
// Data flow:
//
//	Store -> Resolver -> lazyfield.NewSourceStack(...) -> Record.Init(stack)
//
// Provenance:
//
//	Meta.SnapshotID is mapped onto the hydrated Source's SnapshotID, which
//	then flows into each initialized field's Provenance.
//
// Deterministic keys:
//
//	Ref.Identifier() composes a canonical storage key from the source level,
//	source name, and domain (e.g. "config/app/profile"). Adapters that
//	persisted keys under another layout should translate in their Store
//	implementation.
package state
