// Package sva estimates surrogate variables: latent sample-level factors
// that carry systematic variation not explained by the known design.
//
// The number of factors comes from either a permutation test on the
// singular value spectrum of the design residuals (PermutationCount) or an
// asymptotic random-matrix threshold (AsymptoticCount). Estimate then runs
// an iteratively reweighted SVD that down-weights features associated
// with the primary variable, so the primary signal is not absorbed into
// the surrogates. PopulationAverageAdjust removes only known batch
// coefficients from a batch + surrogate fit.
package sva
