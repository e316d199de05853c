package run

import (
	"errors"
	"testing"

	"gosva/domain/core"
)

func TestRunFingerprint_Deterministic(t *testing.T) {
	input := core.MatrixHash("input")
	design := core.MatrixHash("design")
	labels := core.Hash("labels")

	fp1 := NewRunFingerprint(OpSurrogates, input, design, labels, 42, "1.0.0")
	fp2 := NewRunFingerprint(OpSurrogates, input, design, labels, 42, "1.0.0")

	if fp1.Fingerprint != fp2.Fingerprint {
		t.Errorf("Fingerprints not identical: %s vs %s", fp1.Fingerprint, fp2.Fingerprint)
	}
	if fp1.InputHash != input {
		t.Errorf("InputHash mismatch: %s vs %s", fp1.InputHash, input)
	}
	if fp1.Seed != 42 {
		t.Errorf("Seed mismatch: %d vs 42", fp1.Seed)
	}
}

func TestRunFingerprint_Unique(t *testing.T) {
	base := NewRunFingerprint(OpSurrogates, "input", "design", "labels", 42, "1.0.0")

	testCases := []struct {
		name string
		fp   RunFingerprint
	}{
		{"different operation", NewRunFingerprint(OpCombat, "input", "design", "labels", 42, "1.0.0")},
		{"different input", NewRunFingerprint(OpSurrogates, "other", "design", "labels", 42, "1.0.0")},
		{"different design", NewRunFingerprint(OpSurrogates, "input", "other", "labels", 42, "1.0.0")},
		{"different labels", NewRunFingerprint(OpSurrogates, "input", "design", "other", 42, "1.0.0")},
		{"different seed", NewRunFingerprint(OpSurrogates, "input", "design", "labels", 43, "1.0.0")},
		{"different code", NewRunFingerprint(OpSurrogates, "input", "design", "labels", 42, "2.0.0")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.fp.Fingerprint == base.Fingerprint {
				t.Errorf("Fingerprint should be different for %s", tc.name)
			}
		})
	}
}

func TestManifest_Complete(t *testing.T) {
	in := Inputs{Matrix: "input", Design: "design", Features: 100, Samples: 20}
	manifest := NewManifest(OpCount, "permutation", in, 7)

	if manifest.RunID == "" {
		t.Errorf("RunID not generated")
	}
	if manifest.Fingerprint.Fingerprint == "" {
		t.Errorf("Fingerprint not computed")
	}
	if manifest.Fingerprint.CodeVersion != CodeVersion {
		t.Errorf("CodeVersion not recorded")
	}
	if manifest.CreatedAt.IsZero() {
		t.Errorf("CreatedAt not set")
	}
	if err := manifest.Validate(); err != nil {
		t.Errorf("Manifest validation failed: %v", err)
	}
}

func TestManifest_DistinctRunIDs(t *testing.T) {
	in := Inputs{Matrix: "input", Features: 1, Samples: 2}
	a := NewManifest(OpFTest, "", in, 0)
	b := NewManifest(OpFTest, "", in, 0)
	if a.RunID == b.RunID {
		t.Errorf("run IDs should be unique")
	}
	if a.Fingerprint.Fingerprint != b.Fingerprint.Fingerprint {
		t.Errorf("same inputs should share a fingerprint")
	}
}

func TestManifest_Parameters(t *testing.T) {
	m := &Manifest{}
	m.SetParameter("tolerance", 1e-4).SetParameter("max_iterations", 10)
	names := m.ParameterNames()
	if len(names) != 2 || names[0] != "max_iterations" || names[1] != "tolerance" {
		t.Errorf("unexpected parameter names %v", names)
	}
}

func TestManifest_ValidateRejectsIncomplete(t *testing.T) {
	valid := NewManifest(OpClean, "", Inputs{Matrix: "input", Features: 3, Samples: 4}, 1)

	testCases := []struct {
		name   string
		mutate func(m *Manifest)
	}{
		{"empty run id", func(m *Manifest) { m.RunID = "" }},
		{"empty operation", func(m *Manifest) { m.Operation = "" }},
		{"empty input hash", func(m *Manifest) { m.Fingerprint.InputHash = "" }},
		{"empty fingerprint", func(m *Manifest) { m.Fingerprint.Fingerprint = "" }},
		{"no samples", func(m *Manifest) { m.Samples = 0 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := *valid
			tc.mutate(&m)
			err := m.Validate()
			if !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("expected invalid input error, got %v", err)
			}
		})
	}
}
