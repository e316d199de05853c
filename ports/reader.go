package ports

import (
	"context"

	"gosva/domain/dataset"
)

// MatrixReaderPort loads measurement matrices and sample metadata
type MatrixReaderPort interface {
	// ReadMatrix reads a features × samples matrix; header row holds sample
	// keys and the first column holds feature keys
	ReadMatrix(ctx context.Context, path string) (*dataset.ExpressionSet, error)

	// ReadSampleSheet reads one row per sample; the first column is the sample key
	ReadSampleSheet(ctx context.Context, path string) (*dataset.SampleSheet, error)
}

// MatrixWriterPort persists corrected matrices in the same layout ReadMatrix accepts
type MatrixWriterPort interface {
	WriteMatrix(ctx context.Context, path string, set *dataset.ExpressionSet) error
}
