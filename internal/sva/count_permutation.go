package sva

import (
	"context"
	"fmt"

	"gosva/domain/core"
	"gosva/internal/linalg"
	"gosva/internal/workers"
	"gosva/ports"

	"gonum.org/v1/gonum/mat"
)

const permutationStream = "sva.permutation"

// PermutationCount estimates the number of surrogate variables by
// comparing the residual spectrum of x against spectra obtained after
// permuting every feature independently across samples.
//
// Round b draws from rngs.Stream(ctx, "sva.permutation", seed, b), so the
// result depends only on (x, mod, seed, cfg) and not on the worker count.
func PermutationCount(ctx context.Context, x, mod mat.Matrix, rngs ports.RNGPort, seed int64, cfg PermutationConfig) (*CountResult, error) {
	if cfg.Permutations < 1 {
		return nil, core.NewInvalidInputError("permutations", fmt.Sprintf("%d, need at least 1", cfg.Permutations))
	}
	if cfg.SignificanceLevel <= 0 || cfg.SignificanceLevel > 1 {
		return nil, core.NewInvalidInputError("significance level", fmt.Sprintf("%g outside (0, 1]", cfg.SignificanceLevel))
	}
	resid, proj, observed, err := residualSpectrum(x, mod)
	if err != nil {
		return nil, err
	}
	q := len(observed)
	if q == 0 {
		return &CountResult{Method: MethodPermutation, Threshold: cfg.SignificanceLevel}, nil
	}

	null := make([][]float64, cfg.Permutations)
	err = workers.Run(ctx, cfg.Workers, cfg.Permutations, func(ctx context.Context, b int) error {
		rng, err := rngs.Stream(ctx, permutationStream, seed, b)
		if err != nil {
			return err
		}
		perm := mat.DenseCopyOf(resid)
		m, _ := perm.Dims()
		for i := 0; i < m; i++ {
			row := perm.RawRowView(i)
			rng.Shuffle(len(row), func(a, c int) { row[a], row[c] = row[c], row[a] })
		}
		reresid, err := proj.Residuals(perm)
		if err != nil {
			return err
		}
		sv, err := linalg.SingularValues(reresid)
		if err != nil {
			return fmt.Errorf("permutation %d: %w", b, err)
		}
		null[b] = varianceShares(sv, q)
		return nil
	})
	if err != nil {
		return nil, err
	}

	pvalues := make([]float64, q)
	for i := range pvalues {
		exceed := 0
		for _, shares := range null {
			if i < len(shares) && shares[i] >= observed[i] {
				exceed++
			}
		}
		pvalues[i] = float64(exceed) / float64(cfg.Permutations)
		if i > 0 && pvalues[i-1] > pvalues[i] {
			pvalues[i] = pvalues[i-1]
		}
	}

	count := 0
	for _, p := range pvalues {
		if p <= cfg.SignificanceLevel {
			count++
		}
	}
	logger.Debug("permutation count %d from %d rounds", count, cfg.Permutations)
	return &CountResult{
		Count:      count,
		Method:     MethodPermutation,
		Statistics: observed,
		PValues:    pvalues,
		Threshold:  cfg.SignificanceLevel,
	}, nil
}
