package testkit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gosva/adapters/rng"
	"gosva/domain/core"
	"gosva/domain/run"
	"gosva/internal/config"
	"gosva/ports"
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	ledger *InMemoryLedgerAdapter // Shared ledger instance
	rng    *rng.SeededAdapter
	config *config.Config
}

// NewTestKit creates a new test kit with default configuration and two workers
func NewTestKit() *TestKit {
	cfg := config.Default()
	cfg.Runtime.Workers = 2
	return &TestKit{
		ledger: NewInMemoryLedgerAdapter(),
		rng:    rng.NewSeededAdapter(),
		config: cfg,
	}
}

// Config returns the kit configuration
func (t *TestKit) Config() *config.Config {
	return t.config
}

// RNGAdapter returns the seeded RNG adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return t.rng
}

// LedgerAdapter returns the shared in-memory ledger
func (t *TestKit) LedgerAdapter() *InMemoryLedgerAdapter {
	return t.ledger
}

// Expression generates a fixture, failing loudly on a bad config
func (t *TestKit) Expression(cfg ExpressionGeneratorConfig) *Expression {
	data, err := NewExpressionGenerator(cfg).Generate()
	if err != nil {
		panic(fmt.Sprintf("testkit: %v", err))
	}
	return data
}

// InMemoryLedgerAdapter implements ports.LedgerPort with in-memory storage
type InMemoryLedgerAdapter struct {
	manifests map[core.RunID]*run.Manifest
	order     []core.RunID
	mu        sync.RWMutex
}

func NewInMemoryLedgerAdapter() *InMemoryLedgerAdapter {
	return &InMemoryLedgerAdapter{
		manifests: make(map[core.RunID]*run.Manifest),
	}
}

func (s *InMemoryLedgerAdapter) StoreManifest(ctx context.Context, manifest *run.Manifest) error {
	if err := manifest.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.manifests[manifest.RunID]; exists {
		return fmt.Errorf("manifest already stored: %s", manifest.RunID)
	}
	s.manifests[manifest.RunID] = manifest
	s.order = append(s.order, manifest.RunID)
	return nil
}

func (s *InMemoryLedgerAdapter) GetManifest(ctx context.Context, runID core.RunID) (*run.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.manifests[runID]
	if !exists {
		return nil, fmt.Errorf("manifest not found: %s", runID)
	}
	return m, nil
}

func (s *InMemoryLedgerAdapter) ListManifests(ctx context.Context, filters ports.ManifestFilters) ([]*run.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*run.Manifest
	for _, id := range s.order {
		m := s.manifests[id]
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

// Operations returns the distinct operations recorded so far, sorted
func (s *InMemoryLedgerAdapter) Operations() []run.Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[run.Operation]bool{}
	var ops []run.Operation
	for _, m := range s.manifests {
		if !seen[m.Operation] {
			seen[m.Operation] = true
			ops = append(ops, m.Operation)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
