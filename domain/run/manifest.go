package run

import (
	"sort"

	"gosva/domain/core"
)

// CodeVersion is recorded in every fingerprint
const CodeVersion = "1.0.0"

// Manifest records everything needed to reproduce one correction run
// and a summary of what it produced.
type Manifest struct {
	RunID       core.RunID         `json:"run_id"`
	Operation   Operation          `json:"operation"`
	Method      string             `json:"method,omitempty"`
	Features    int                `json:"features"`
	Samples     int                `json:"samples"`
	Seed        int64              `json:"seed"`
	Parameters  map[string]float64 `json:"parameters,omitempty"`
	Fingerprint RunFingerprint     `json:"fingerprint"`
	Outcome     Outcome            `json:"outcome"`
	CreatedAt   core.Timestamp     `json:"created_at"`
}

// Outcome summarizes a finished run
type Outcome struct {
	SurrogateCount int     `json:"surrogate_count,omitempty"`
	Iterations     int     `json:"iterations,omitempty"`
	Converged      bool    `json:"converged"`
	Delta          float64 `json:"delta,omitempty"`
	Warning        string  `json:"warning,omitempty"`
}

// Inputs are the data a run was computed from
type Inputs struct {
	Matrix core.MatrixHash
	Design core.MatrixHash
	Labels core.Hash
	// Dims of the input matrix
	Features, Samples int
}

// NewManifest creates a manifest with a fresh run ID
func NewManifest(op Operation, method string, in Inputs, seed int64) *Manifest {
	return &Manifest{
		RunID:       core.NewRunID(),
		Operation:   op,
		Method:      method,
		Features:    in.Features,
		Samples:     in.Samples,
		Seed:        seed,
		Parameters:  map[string]float64{},
		Fingerprint: NewRunFingerprint(op, in.Matrix, in.Design, in.Labels, seed, CodeVersion),
		CreatedAt:   core.Now(),
	}
}

// SetParameter records a numeric setting that influenced the result
func (m *Manifest) SetParameter(name string, value float64) *Manifest {
	if m.Parameters == nil {
		m.Parameters = map[string]float64{}
	}
	m.Parameters[name] = value
	return m
}

// ParameterNames returns the recorded parameter names in sorted order
func (m *Manifest) ParameterNames() []string {
	names := make([]string, 0, len(m.Parameters))
	for name := range m.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewInvalidInputError("run_manifest", "run_id cannot be empty")
	}
	if m.Operation == "" {
		return core.NewInvalidInputError("run_manifest", "operation cannot be empty")
	}
	if m.Fingerprint.InputHash == "" {
		return core.NewInvalidInputError("run_manifest", "input hash cannot be empty")
	}
	if m.Fingerprint.Fingerprint.IsEmpty() {
		return core.NewInvalidInputError("run_manifest", "fingerprint cannot be empty")
	}
	if m.Features < 1 || m.Samples < 1 {
		return core.NewInvalidInputError("run_manifest", "input dimensions must be positive")
	}
	return nil
}
