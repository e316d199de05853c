package ports

import (
	"context"

	"gosva/domain/core"
	"gosva/domain/run"
)

// LedgerWriterPort provides append-only write access to run manifests
type LedgerWriterPort interface {
	StoreManifest(ctx context.Context, manifest *run.Manifest) error
}

// LedgerReaderPort provides read-only access to stored manifests for replay
type LedgerReaderPort interface {
	GetManifest(ctx context.Context, runID core.RunID) (*run.Manifest, error)
	ListManifests(ctx context.Context, filters ManifestFilters) ([]*run.Manifest, error)
}

// ManifestFilters for querying manifests
type ManifestFilters struct {
	Operation   *run.Operation
	Fingerprint *core.Hash
	Limit       int
}

// Matches reports whether m passes every set filter
func (f ManifestFilters) Matches(m *run.Manifest) bool {
	if f.Operation != nil && m.Operation != *f.Operation {
		return false
	}
	if f.Fingerprint != nil && m.Fingerprint.Fingerprint != *f.Fingerprint {
		return false
	}
	return true
}

// LedgerPort combines read and write access
type LedgerPort interface {
	LedgerWriterPort
	LedgerReaderPort
}
