package main

import (
	"context"
	"fmt"
	"time"

	"gosva/app"
	"gosva/internal/errors"
	"gosva/internal/sva"

	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

func addInputFlags(cmd *cobra.Command, f *inputFlags, withDesign bool) {
	cmd.Flags().StringVar(&f.matrix, "matrix", "", "Features × samples matrix (.xlsx, .csv or .tsv)")
	cmd.Flags().StringVar(&f.samples, "samples", "", "Sample sheet keyed by sample name")
	if withDesign {
		cmd.Flags().StringSliceVar(&f.primary, "primary", nil, "Sample sheet column(s) of interest")
	}
	cmd.Flags().StringSliceVar(&f.covariates, "covariates", nil, "Sample sheet column(s) to adjust for")
}

func newNumSVCmd(opts *globalOptions) *cobra.Command {
	var f inputFlags
	req := app.CountRequest{}

	cmd := &cobra.Command{
		Use:   "num-sv",
		Short: "Estimate how many surrogate variables the residuals carry",
		Long: `Estimate the number of surrogate variables left after fitting the full design.

The permutation method compares the residual spectrum against row-shuffled
residuals; the asymptotic method compares variance shares against the
Marchenko-Pastur edge.

Example: gosva num-sv --matrix expr.csv --samples pheno.csv --primary condition --method permutation --permutations 50 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNumSV(cmd.Context(), opts, f, req)
		},
	}

	addInputFlags(cmd, &f, true)
	cmd.Flags().StringVar(&req.Method, "method", "", "permutation|asymptotic (default from SVA_COUNT_METHOD)")
	cmd.Flags().IntVar(&req.B, "permutations", 0, "Permutation rounds (default from PERMUTATIONS)")
	cmd.Flags().Int64Var(&req.Seed, "seed", 42, "Random seed for deterministic operations")
	return cmd
}

func runNumSV(ctx context.Context, opts *globalOptions, f inputFlags, req app.CountRequest) error {
	s, err := newSession(opts)
	if err != nil {
		return err
	}
	f = splitInputs(f)
	in, err := s.loadInputs(ctx, f)
	if err != nil {
		return err
	}
	mod, mod0, err := in.designs(f)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := s.service.CountSurrogates(ctx, in.set.Data, mod.Matrix, mod0.Matrix, req)
	if err != nil {
		return errors.Classify("surrogate count failed", err)
	}

	fmt.Printf("Method: %s (threshold %s)\n", res.Method, formatFloat(res.Threshold))
	fmt.Printf("Design: %v\n", mod.Columns)
	shown := min(len(res.Statistics), max(res.Count+3, 5))
	for i := 0; i < shown; i++ {
		line := fmt.Sprintf("  rank %2d  share %-10s", i+1, formatFloat(res.Statistics[i]))
		if res.PValues != nil {
			line += fmt.Sprintf("  p %s", formatFloat(res.PValues[i]))
		}
		fmt.Println(line)
	}
	if len(res.Statistics) > 0 {
		median, _ := stats.Median(res.Statistics)
		fmt.Printf("Median share over %d ranks: %s\n", len(res.Statistics), formatFloat(median))
	}
	fmt.Printf("Surrogate variables: %d (%s)\n", res.Count, time.Since(start).Round(time.Millisecond))
	return nil
}

func newSVACmd(opts *globalOptions) *cobra.Command {
	var f inputFlags
	var k int
	var out string

	cmd := &cobra.Command{
		Use:   "sva",
		Short: "Estimate surrogate variables",
		Long: `Estimate surrogate variables with iteratively reweighted SVA and write them
one per row with sample names as columns.

A negative -k counts the surrogate variables first with the configured method.

Example: gosva sva --matrix expr.csv --samples pheno.csv --primary condition -k 2 --out sv.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSVA(cmd.Context(), opts, f, k, out)
		},
	}

	addInputFlags(cmd, &f, true)
	cmd.Flags().IntVarP(&k, "count", "k", -1, "Number of surrogate variables; negative estimates it")
	cmd.Flags().StringVar(&out, "out", "", "Write surrogate variables to this file")
	return cmd
}

func runSVA(ctx context.Context, opts *globalOptions, f inputFlags, k int, out string) error {
	s, in, res, err := estimate(ctx, opts, f, k)
	if err != nil {
		return err
	}
	printEstimate(res)
	if out == "" {
		return nil
	}
	return s.writeSurrogates(ctx, out, in, res.Surrogates)
}

func newCleanCmd(opts *globalOptions) *cobra.Command {
	var f inputFlags
	var k int
	var out string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove surrogate variables from the matrix",
		Long: `Estimate surrogate variables, fit each feature on the full design plus the
surrogates, and subtract only the surrogate contribution. The primary and
covariate effects stay in the output.

Example: gosva clean --matrix expr.xlsx --samples pheno.xlsx --primary condition --out clean.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.InvalidInput("--out is required")
			}
			return runClean(cmd.Context(), opts, f, k, out)
		},
	}

	addInputFlags(cmd, &f, true)
	cmd.Flags().IntVarP(&k, "count", "k", -1, "Number of surrogate variables; negative estimates it")
	cmd.Flags().StringVar(&out, "out", "", "Write the cleaned matrix to this file")
	return cmd
}

func runClean(ctx context.Context, opts *globalOptions, f inputFlags, k int, out string) error {
	s, in, res, err := estimate(ctx, opts, f, k)
	if err != nil {
		return err
	}
	printEstimate(res)

	mod, _, err := in.designs(splitInputs(f))
	if err != nil {
		return err
	}
	cleaned, err := s.service.RemoveSurrogates(in.set.Data, mod.Matrix, res.Surrogates)
	if err != nil {
		return errors.Classify("surrogate removal failed", err)
	}
	return s.writeMatrix(ctx, out, in, cleaned)
}

// estimate is shared by sva and clean
func estimate(ctx context.Context, opts *globalOptions, f inputFlags, k int) (*session, *inputs, *sva.Result, error) {
	s, err := newSession(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	f = splitInputs(f)
	in, err := s.loadInputs(ctx, f)
	if err != nil {
		return nil, nil, nil, err
	}
	mod, mod0, err := in.designs(f)
	if err != nil {
		return nil, nil, nil, err
	}
	res, err := s.service.EstimateSurrogates(ctx, in.set.Data, mod.Matrix, mod0.Matrix, k)
	if err != nil {
		return nil, nil, nil, errors.Classify("surrogate estimation failed", err)
	}
	return s, in, res, nil
}

func printEstimate(res *sva.Result) {
	fmt.Printf("Surrogate variables: %d", res.K)
	if res.Requested != res.K {
		fmt.Printf(" (requested %d)", res.Requested)
	}
	fmt.Println()
	if res.K == 0 {
		return
	}
	fmt.Printf("Iterations: %d, last change %s, converged %t\n", res.Iterations, formatFloat(res.Delta), res.Converged)
	if res.Warning != nil {
		fmt.Printf("Warning: %v\n", res.Warning)
	}
	if res.Weights != nil && len(res.Weights.Combined) > 0 {
		w := res.Weights.Combined
		p10, _ := stats.Percentile(w, 10)
		p50, _ := stats.Median(w)
		p90, _ := stats.Percentile(w, 90)
		fmt.Printf("Feature weights p10/p50/p90: %s / %s / %s\n", formatFloat(p10), formatFloat(p50), formatFloat(p90))
	}
}

func newCombatCmd(opts *globalOptions) *cobra.Command {
	var f inputFlags
	var batch, refBatch, out string
	var nonParametric, meanOnly bool

	cmd := &cobra.Command{
		Use:   "combat",
		Short: "Remove known batch effects with empirical Bayes shrinkage",
		Long: `Adjust every feature for the batch named by --batch while preserving the
covariates. With --ref-batch the reference batch is left unchanged and the
other batches are moved onto it.

Example: gosva combat --matrix expr.csv --samples pheno.csv --batch run --covariates condition --out adjusted.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.InvalidInput("--out is required")
			}
			return runCombat(cmd.Context(), opts, f, batch, refBatch, !nonParametric, meanOnly, out)
		},
	}

	addInputFlags(cmd, &f, false)
	cmd.Flags().StringVar(&batch, "batch", "batch", "Sample sheet column holding batch labels")
	cmd.Flags().StringVar(&refBatch, "ref-batch", "", "Batch to leave unchanged")
	cmd.Flags().BoolVar(&nonParametric, "nonparametric", false, "Use the nonparametric prior")
	cmd.Flags().BoolVar(&meanOnly, "mean-only", false, "Adjust location only")
	cmd.Flags().StringVar(&out, "out", "", "Write the adjusted matrix to this file")
	return cmd
}

func runCombat(ctx context.Context, opts *globalOptions, f inputFlags, batch, refBatch string, parametric, meanOnly bool, out string) error {
	s, err := newSession(opts)
	if err != nil {
		return err
	}
	f = splitInputs(f)
	in, err := s.loadInputs(ctx, f)
	if err != nil {
		return err
	}
	labels, err := in.labels(batch)
	if err != nil {
		return err
	}
	cov, err := in.covariateDesign(f.covariates)
	if err != nil {
		return err
	}
	var d mat.Matrix
	if cov != nil {
		d = cov.Matrix
	}

	batchOpts := s.service.DefaultBatchOptions()
	batchOpts.Parametric = parametric
	batchOpts.MeanOnly = meanOnly
	batchOpts.RefBatch = refBatch

	res, err := s.service.BatchAdjust(ctx, in.set.Data, labels, d, batchOpts)
	if err != nil {
		return errors.Classify("batch adjustment failed", err)
	}

	for _, b := range res.Batches {
		status := "converged"
		if !b.Converged {
			status = "not converged"
		}
		ref := ""
		if b.Label == res.Reference {
			ref = " (reference)"
		}
		fmt.Printf("  %-12s n=%-4d gamma_bar %-10s tau2 %-10s %d iteration(s), %s%s\n",
			b.Label, b.Size, formatFloat(b.GammaBar), formatFloat(b.Tau2), b.Iterations, status, ref)
	}
	if len(res.PassThrough) > 0 {
		fmt.Printf("%d feature(s) constant within a batch were left unchanged\n", len(res.PassThrough))
	}
	for _, w := range res.Warnings {
		fmt.Printf("Warning: %v\n", w)
	}
	return s.writeMatrix(ctx, out, in, res.Adjusted)
}

func newPSVACmd(opts *globalOptions) *cobra.Command {
	var f inputFlags
	var batch, out string
	req := app.CountRequest{}

	cmd := &cobra.Command{
		Use:   "psva",
		Short: "Population-average batch adjustment",
		Long: `Remove the batch effect while keeping the variation that surrogate variables
estimated against batch explain. Useful when biological groups are unknown.

Example: gosva psva --matrix expr.csv --samples pheno.csv --batch run --out adjusted.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.InvalidInput("--out is required")
			}
			return runPSVA(cmd.Context(), opts, f, batch, req, out)
		},
	}

	cmd.Flags().StringVar(&f.matrix, "matrix", "", "Features × samples matrix (.xlsx, .csv or .tsv)")
	cmd.Flags().StringVar(&f.samples, "samples", "", "Sample sheet keyed by sample name")
	cmd.Flags().StringVar(&batch, "batch", "batch", "Sample sheet column holding batch labels")
	cmd.Flags().StringVar(&req.Method, "method", "", "Surrogate count method: permutation|asymptotic")
	cmd.Flags().IntVar(&req.B, "permutations", 0, "Permutation rounds (default from PERMUTATIONS)")
	cmd.Flags().Int64Var(&req.Seed, "seed", 42, "Random seed for deterministic operations")
	cmd.Flags().StringVar(&out, "out", "", "Write the adjusted matrix to this file")
	return cmd
}

func runPSVA(ctx context.Context, opts *globalOptions, f inputFlags, batch string, req app.CountRequest, out string) error {
	s, err := newSession(opts)
	if err != nil {
		return err
	}
	in, err := s.loadInputs(ctx, f)
	if err != nil {
		return err
	}
	labels, err := in.labels(batch)
	if err != nil {
		return err
	}
	adjusted, err := s.service.PopulationAverageAdjust(ctx, in.set.Data, labels, req)
	if err != nil {
		return errors.Classify("population-average adjustment failed", err)
	}
	return s.writeMatrix(ctx, out, in, adjusted)
}

func newFTestCmd(opts *globalOptions) *cobra.Command {
	var f inputFlags
	var out string
	var alpha float64

	cmd := &cobra.Command{
		Use:   "ftest",
		Short: "Per-feature F-test of the full design against the null design",
		Long: `Test whether the --primary columns explain significant variation beyond the
--covariates for every feature. Writes feature, F and p-value as csv.

Example: gosva ftest --matrix clean.csv --samples pheno.csv --primary condition --out pvalues.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFTest(cmd.Context(), opts, f, alpha, out)
		},
	}

	addInputFlags(cmd, &f, true)
	cmd.Flags().Float64Var(&alpha, "alpha", 0.05, "Significance level for the summary line")
	cmd.Flags().StringVar(&out, "out", "", "Write the table to this file instead of stdout")
	return cmd
}

func runFTest(ctx context.Context, opts *globalOptions, f inputFlags, alpha float64, out string) error {
	s, err := newSession(opts)
	if err != nil {
		return err
	}
	f = splitInputs(f)
	in, err := s.loadInputs(ctx, f)
	if err != nil {
		return err
	}
	mod, mod0, err := in.designs(f)
	if err != nil {
		return err
	}
	res, err := s.service.FTest(in.set.Data, mod.Matrix, mod0.Matrix)
	if err != nil {
		return errors.Classify("F-test failed", err)
	}

	rows := make([][]string, len(res.PValues))
	significant := 0
	for i, p := range res.PValues {
		rows[i] = []string{in.set.Features[i].String(), formatFloat(res.FStatistics[i]), formatFloat(p)}
		if p <= alpha {
			significant++
		}
	}
	if err := writeTable(out, []string{"feature", "f", "p_value"}, rows); err != nil {
		return err
	}
	if out != "" {
		fmt.Printf("F(%d, %d): %d of %d feature(s) with p <= %g, table written to %s\n",
			res.DF1, res.DF2, significant, len(rows), alpha, out)
	}
	return nil
}

func splitInputs(f inputFlags) inputFlags {
	f.primary = splitList(f.primary)
	f.covariates = splitList(f.covariates)
	return f
}
