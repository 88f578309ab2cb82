package lazyfield

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Origin identifies which pipeline stored a value.
type Origin string

const (
	// OriginBuilder marks values produced by a lazy builder on first read.
	OriginBuilder Origin = "builder"
	// OriginWrite marks values stored through a direct write.
	OriginWrite Origin = "write"
	// OriginInit marks values seeded from external construction data.
	OriginInit Origin = "init"
	// OriginDefault marks values materialized from a declared default.
	OriginDefault Origin = "default"
)

// Provenance records how and when a cell acquired its current value. A fresh
// Provenance is stamped on every successful store.
type Provenance struct {
	Origin     Origin    `json:"origin"`
	Source     string    `json:"source,omitempty"`
	Generation uint64    `json:"generation"`
	SnapshotID string    `json:"snapshot_id"`
	At         time.Time `json:"at"`
}

func newProvenance(origin Origin, source string) Provenance {
	return Provenance{
		Origin:     origin,
		Source:     source,
		SnapshotID: uuid.NewString(),
		At:         time.Now().UTC(),
	}
}

// ToJSON serializes the provenance for audit trails.
func (p Provenance) ToJSON() ([]byte, error) {
	type alias Provenance
	return json.Marshal(alias(p))
}

// ProvenanceFromJSON restores a provenance produced by ToJSON.
func ProvenanceFromJSON(data []byte) (Provenance, error) {
	type alias Provenance
	var out alias
	if err := json.Unmarshal(data, &out); err != nil {
		return Provenance{}, err
	}
	return Provenance(out), nil
}
