package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gosva/adapters/ledger"
	"gosva/domain/core"
	"gosva/domain/run"
	"gosva/internal/errors"
	"gosva/ports"

	"github.com/spf13/cobra"
)

func newRunsCmd(opts *globalOptions) *cobra.Command {
	var operation string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs or show one manifest",
		Long: `Read the manifest ledger written by --ledger. Without arguments, list runs
oldest first; with a run ID, print that manifest as JSON.

Example: gosva runs --ledger runs.jsonl --operation combat --limit 10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ledger == "" {
				return errors.InvalidInput("--ledger is required")
			}
			l, err := ledger.NewFileLedgerAdapter(opts.ledger)
			if err != nil {
				return errors.IOError("failed to open ledger", err)
			}
			if len(args) == 1 {
				return runShowManifest(cmd.Context(), l, args[0])
			}
			return runListManifests(cmd.Context(), l, operation, limit)
		},
	}

	cmd.Flags().StringVar(&operation, "operation", "", "Only runs of this operation (num_sv, sva, clean, combat, psva, ftest)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of runs to list")
	return cmd
}

func runListManifests(ctx context.Context, l ports.LedgerReaderPort, operation string, limit int) error {
	filters := ports.ManifestFilters{Limit: limit}
	if operation != "" {
		op := run.Operation(operation)
		filters.Operation = &op
	}
	manifests, err := l.ListManifests(ctx, filters)
	if err != nil {
		return errors.IOError("failed to read ledger", err)
	}
	if len(manifests) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	for _, m := range manifests {
		status := "converged"
		if !m.Outcome.Converged {
			status = "not converged"
		}
		fmt.Printf("%s  %-7s %-14s %5d × %-5d k=%-3d %s  %s\n",
			m.RunID, m.Operation, m.Method, m.Features, m.Samples,
			m.Outcome.SurrogateCount, status, m.CreatedAt)
	}
	return nil
}

func runShowManifest(ctx context.Context, l ports.LedgerReaderPort, arg string) error {
	id, err := core.ParseRunID(arg)
	if err != nil {
		return errors.WithCode(errors.CodeInvalidInput, err)
	}
	m, err := l.GetManifest(ctx, id)
	if err != nil {
		return errors.IOError("failed to read manifest", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
