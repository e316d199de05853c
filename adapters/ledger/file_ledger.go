package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gosva/domain/core"
	"gosva/domain/run"
	"gosva/ports"
)

// FileLedgerAdapter implements ports.LedgerPort as an append-only JSON
// lines file, one manifest per line in the order runs were stored.
type FileLedgerAdapter struct {
	path string
	mu   sync.Mutex
}

// NewFileLedgerAdapter creates the parent directory if needed. The file
// itself is created on the first store.
func NewFileLedgerAdapter(path string) (*FileLedgerAdapter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	return &FileLedgerAdapter{path: path}, nil
}

// Path returns the ledger file location
func (l *FileLedgerAdapter) Path() string {
	return l.path
}

// StoreManifest validates and appends a manifest
func (l *FileLedgerAdapter) StoreManifest(ctx context.Context, manifest *run.Manifest) error {
	if err := manifest.Validate(); err != nil {
		return err
	}
	line, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.readAll(ctx)
	if err != nil {
		return err
	}
	for _, m := range existing {
		if m.RunID == manifest.RunID {
			return fmt.Errorf("manifest already stored: %s", manifest.RunID)
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append manifest: %w", err)
	}
	return nil
}

// GetManifest looks a run up by ID
func (l *FileLedgerAdapter) GetManifest(ctx context.Context, runID core.RunID) (*run.Manifest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.readAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		if m.RunID == runID {
			return m, nil
		}
	}
	return nil, fmt.Errorf("manifest not found: %s", runID)
}

// ListManifests returns stored manifests matching filters, oldest first
func (l *FileLedgerAdapter) ListManifests(ctx context.Context, filters ports.ManifestFilters) ([]*run.Manifest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.readAll(ctx)
	if err != nil {
		return nil, err
	}
	var results []*run.Manifest
	for _, m := range all {
		if !filters.Matches(m) {
			continue
		}
		results = append(results, m)
		if filters.Limit > 0 && len(results) >= filters.Limit {
			break
		}
	}
	return results, nil
}

func (l *FileLedgerAdapter) readAll(ctx context.Context) ([]*run.Manifest, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	var out []*run.Manifest
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var m run.Manifest
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", line, err)
		}
		out = append(out, &m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return out, nil
}

var _ ports.LedgerPort = (*FileLedgerAdapter)(nil)
