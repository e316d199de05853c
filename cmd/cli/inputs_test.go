package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gosva/adapters/excel"
	"gosva/adapters/ledger"
	"gosva/domain/run"
	"gosva/internal/errors"
	"gosva/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMatrix = `feature,s1,s2,s3,s4,s5,s6
g1,5.1,5.3,4.9,7.2,7.0,7.1
g2,3.0,3.2,2.9,3.1,3.3,2.8
g3,8.0,8.4,7.9,8.2,8.1,8.3
g4,1.2,1.0,1.1,2.9,3.1,3.0
g5,4.4,4.6,4.5,4.3,4.7,4.4
`

const testSheet = `sample,condition,age,run
s4,B,40,r2
s1,A,31,r1
s2,A,52,r1
s3,A,45,r1
s5,B,38,r2
s6,B,60,r2
`

func writeFixtures(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	matrix := filepath.Join(dir, "expr.csv")
	sheet := filepath.Join(dir, "pheno.csv")
	require.NoError(t, os.WriteFile(matrix, []byte(testMatrix), 0o644))
	require.NoError(t, os.WriteFile(sheet, []byte(testSheet), 0o644))
	return matrix, sheet
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"age", "sex", "site"}, splitList([]string{"age, sex", " ", "site"}))
	assert.Nil(t, splitList(nil))
}

func TestInputs_Designs(t *testing.T) {
	matrix, sheet := writeFixtures(t)
	s, err := newSession(&globalOptions{workers: 1})
	require.NoError(t, err)

	f := splitInputs(inputFlags{matrix: matrix, samples: sheet, primary: []string{"condition"}, covariates: []string{"age"}})
	in, err := s.loadInputs(context.Background(), f)
	require.NoError(t, err)

	mod, mod0, err := in.designs(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"(Intercept)", "age", "condition[B]"}, mod.Columns)
	assert.Equal(t, []string{"(Intercept)", "age"}, mod0.Columns)
	// sheet rows are reordered to the matrix columns
	assert.Equal(t, 31.0, mod.Matrix.At(0, 1))
	assert.Equal(t, 1.0, mod.Matrix.At(3, 2))

	labels, err := in.labels("run")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r1", "r1", "r2", "r2", "r2"}, labels)

	_, err = in.labels("site")
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, _, err = in.designs(inputFlags{})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestInputs_Errors(t *testing.T) {
	s, err := newSession(&globalOptions{workers: 1})
	require.NoError(t, err)

	_, err = s.loadInputs(context.Background(), inputFlags{})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = s.loadInputs(context.Background(), inputFlags{matrix: filepath.Join(t.TempDir(), "missing.csv")})
	assert.Equal(t, errors.CodeIOError, errors.GetCode(err))
}

func TestRunFTest_WritesTable(t *testing.T) {
	matrix, sheet := writeFixtures(t)
	out := filepath.Join(t.TempDir(), "pvalues.csv")

	f := inputFlags{matrix: matrix, samples: sheet, primary: []string{"condition"}}
	require.NoError(t, runFTest(context.Background(), &globalOptions{workers: 1}, f, 0.05, out))

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "feature,f,p_value", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "g1,"))
}

func TestRunCombat_WritesAdjustedMatrix(t *testing.T) {
	matrix, sheet := writeFixtures(t)
	out := filepath.Join(t.TempDir(), "adjusted.tsv")

	f := inputFlags{matrix: matrix, samples: sheet}
	require.NoError(t, runCombat(context.Background(), &globalOptions{workers: 1}, f, "run", "r1", true, false, out))

	set, err := excel.NewDataReader(excel.DefaultExcelConfig()).ReadMatrix(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 5, set.FeatureCount())
	assert.Equal(t, 6, set.SampleCount())
	// reference batch samples are unchanged
	assert.InDelta(t, 5.1, set.Data.At(0, 0), 1e-9)
	assert.InDelta(t, 2.9, set.Data.At(1, 2), 1e-9)
}

func TestRunCombat_RecordsManifestInLedger(t *testing.T) {
	matrix, sheet := writeFixtures(t)
	dir := t.TempDir()
	opts := &globalOptions{workers: 1, ledger: filepath.Join(dir, "runs.jsonl")}

	f := inputFlags{matrix: matrix, samples: sheet}
	require.NoError(t, runCombat(context.Background(), opts, f, "run", "", false, false, filepath.Join(dir, "out.csv")))

	l, err := ledger.NewFileLedgerAdapter(opts.ledger)
	require.NoError(t, err)
	manifests, err := l.ListManifests(context.Background(), ports.ManifestFilters{})
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, run.OpCombat, manifests[0].Operation)
	assert.Equal(t, "nonparametric", manifests[0].Method)

	require.NoError(t, runListManifests(context.Background(), l, "combat", 0))
	require.NoError(t, runShowManifest(context.Background(), l, manifests[0].RunID.String()))

	err = runShowManifest(context.Background(), l, "not-a-run")
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}
