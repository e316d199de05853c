package run

import (
	"crypto/sha256"
	"fmt"

	"gosva/domain/core"
)

// Operation names one public entry point of the confounder service
type Operation string

const (
	OpCount      Operation = "num_sv"
	OpSurrogates Operation = "sva"
	OpClean      Operation = "clean"
	OpCombat     Operation = "combat"
	OpPopulation Operation = "psva"
	OpFTest      Operation = "ftest"
)

// RunFingerprint ensures deterministic replay
type RunFingerprint struct {
	Operation   Operation       `json:"operation"`
	InputHash   core.MatrixHash `json:"input_hash"`
	DesignHash  core.MatrixHash `json:"design_hash,omitempty"`
	LabelHash   core.Hash       `json:"label_hash,omitempty"`
	Seed        int64           `json:"seed"`
	CodeVersion string          `json:"code_version"`
	Fingerprint core.Hash       `json:"fingerprint"` // Hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(op Operation, inputHash, designHash core.MatrixHash,
	labelHash core.Hash, seed int64, codeVersion string) RunFingerprint {

	return RunFingerprint{
		Operation:   op,
		InputHash:   inputHash,
		DesignHash:  designHash,
		LabelHash:   labelHash,
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: computeRunFingerprint(op, inputHash, designHash, labelHash, seed, codeVersion),
	}
}

// computeRunFingerprint generates deterministic hash from all determinism parameters
func computeRunFingerprint(op Operation, inputHash, designHash core.MatrixHash,
	labelHash core.Hash, seed int64, codeVersion string) core.Hash {

	data := fmt.Sprintf("op:%s|input:%s|design:%s|labels:%s|seed:%d|code:%s",
		op, inputHash, designHash, labelHash, seed, codeVersion)

	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}
