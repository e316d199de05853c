package main

import (
	"fmt"
	"os"

	"gosva/adapters/excel"
	"gosva/adapters/ledger"
	"gosva/adapters/rng"
	"gosva/app"
	"gosva/internal"
	"gosva/internal/config"
	"gosva/internal/errors"
	"gosva/ports"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	envFile  string
	ledger   string
	logLevel string
	workers  int
	sheet    string
}

// session is the wired service plus IO adapters for one invocation
type session struct {
	config  *config.Config
	service *app.ConfounderService
	reader  ports.MatrixReaderPort
	writer  ports.MatrixWriterPort
}

func main() {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "gosva",
		Short: "Surrogate variable analysis and batch correction for feature × sample matrices",
		Long: `gosva estimates and removes latent confounders from high-dimensional
measurement matrices (features in rows, samples in columns).

Matrices and sample sheets are read from .xlsx, .csv or .tsv files. The first
column of a matrix holds feature names and the header row holds sample names.
The first column of a sample sheet holds sample names; every other column is a
covariate that designs can reference by name.

Settings are read from the environment (optionally from an env file):
  SVA_MAX_ITERATIONS, SVA_TOLERANCE, SVA_COUNT_METHOD, PERMUTATIONS,
  PERMUTATION_SIGNIFICANCE, ASYMPTOTIC_EDGE_MARGIN, COMBAT_TOLERANCE,
  COMBAT_MAX_ITERATIONS, WORKERS, SEED, LOG_LEVEL`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Env file to load instead of ./.env")
	rootCmd.PersistentFlags().StringVar(&opts.ledger, "ledger", "", "Append run manifests to this JSON lines file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "ERROR|WARN|INFO|DEBUG|TRACE (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().IntVar(&opts.workers, "workers", 0, "Parallel workers (overrides WORKERS)")
	rootCmd.PersistentFlags().StringVar(&opts.sheet, "sheet", "", "Worksheet name for .xlsx inputs and outputs")

	rootCmd.AddCommand(
		newNumSVCmd(opts),
		newSVACmd(opts),
		newCleanCmd(opts),
		newCombatCmd(opts),
		newPSVACmd(opts),
		newFTestCmd(opts),
		newRunsCmd(opts),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", errors.GetCode(err), err)
		os.Exit(errors.ExitCode(err))
	}
}

// newSession loads configuration and wires the service
func newSession(opts *globalOptions) (*session, error) {
	var cfg *config.Config
	var err error
	if opts.envFile != "" {
		cfg, err = config.LoadFile(opts.envFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.logLevel != "" {
		cfg.Runtime.LogLevel = opts.logLevel
	}
	if opts.workers != 0 {
		cfg.Runtime.Workers = opts.workers
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	internal.DefaultLogger.SetLevel(internal.ParseLogLevel(cfg.Runtime.LogLevel))

	var ledgerPort ports.LedgerWriterPort
	if opts.ledger != "" {
		l, err := ledger.NewFileLedgerAdapter(opts.ledger)
		if err != nil {
			return nil, errors.IOError("failed to open ledger", err)
		}
		ledgerPort = l
	}

	excelCfg := excel.DefaultExcelConfig()
	if opts.sheet != "" {
		excelCfg.Sheet = opts.sheet
	}

	return &session{
		config:  cfg,
		service: app.NewConfounderService(cfg, rng.NewSeededAdapter(), ledgerPort),
		reader:  excel.NewDataReader(excelCfg),
		writer:  excel.NewDataWriter(excelCfg),
	}, nil
}
