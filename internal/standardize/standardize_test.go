package standardize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsight/spendsight/internal/importer"
	"github.com/spendsight/spendsight/internal/txncsv"
)

func fixture(name string) string {
	return filepath.Join("..", "..", "testdata", name)
}

func testOptions(dir string) Options {
	return Options{
		OutputDir:    filepath.Join(dir, "standardized"),
		MergedOutput: filepath.Join(dir, "transactions_merged.csv"),
	}
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	inputs := []string{fixture("chase_credit.csv"), fixture("citi.csv"), fixture("unknown_bank.csv")}

	report, err := New(nil).Run(context.Background(), inputs, opts)
	require.NoError(t, err)

	require.Len(t, report.Files, 3)
	assert.Equal(t, 2, report.Succeeded())

	failed := report.Failed()
	require.Len(t, failed, 1)
	var uerr *importer.UnrecognizedFormatError
	assert.True(t, errors.As(failed[0].Err, &uerr))
	assert.Equal(t, fixture("unknown_bank.csv"), uerr.Path)

	for _, name := range []string{"chase_credit_standardized.csv", "citi_standardized.csv"} {
		_, err := os.Stat(filepath.Join(opts.OutputDir, name))
		assert.NoError(t, err, name)
	}
	entries, err := os.ReadDir(opts.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	merged, err := txncsv.ReadTransactionsFile(opts.MergedOutput)
	require.NoError(t, err)
	assert.Len(t, merged, 7)
	assert.Equal(t, opts.MergedOutput, report.MergedPath)

	// File order, then row order within file.
	assert.Equal(t, "chase_credit", merged[0].Source)
	assert.Equal(t, "AMAZON.COM", merged[0].Description)
	assert.Equal(t, "citi", merged[4].Source)
	assert.Equal(t, "TRADER JOE'S #123", merged[4].Description)
}

func TestRun_Idempotent(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	inputs := []string{fixture("sfcu.csv"), fixture("bofa.csv"), fixture("chase_checking.csv")}

	_, err := New(nil).Run(context.Background(), inputs, opts)
	require.NoError(t, err)
	first, err := os.ReadFile(opts.MergedOutput)
	require.NoError(t, err)
	firstSFCU, err := os.ReadFile(filepath.Join(opts.OutputDir, "sfcu_standardized.csv"))
	require.NoError(t, err)

	_, err = New(nil).Run(context.Background(), inputs, opts)
	require.NoError(t, err)
	second, err := os.ReadFile(opts.MergedOutput)
	require.NoError(t, err)
	secondSFCU, err := os.ReadFile(filepath.Join(opts.OutputDir, "sfcu_standardized.csv"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstSFCU, secondSFCU)
}

func TestRun_NoDedup(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.SkipIndividual = true

	// The same export twice: both copies land in the merged table.
	report, err := New(nil).Run(context.Background(), []string{fixture("sfcu.csv"), fixture("sfcu.csv")}, opts)
	require.NoError(t, err)
	assert.Len(t, report.Merged, 6)
	assert.Empty(t, report.Files[0].OutputPath)
}

func TestRun_SkipMerged(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.SkipMerged = true

	report, err := New(nil).Run(context.Background(), []string{fixture("citi.csv")}, opts)
	require.NoError(t, err)
	assert.Empty(t, report.MergedPath)
	_, err = os.Stat(opts.MergedOutput)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_SkipsGeneratedAndMissing(t *testing.T) {
	dir := t.TempDir()
	generated := filepath.Join(dir, "chase_standardized.csv")
	require.NoError(t, os.WriteFile(generated, []byte("x"), 0o644))

	report, err := New(nil).Run(context.Background(), []string{generated, filepath.Join(dir, "gone.csv")}, testOptions(dir))
	require.NoError(t, err)
	require.Len(t, report.Files, 2)
	assert.Equal(t, "generated or config file", report.Files[0].Skipped)
	assert.Equal(t, "file not found", report.Files[1].Skipped)
	assert.Zero(t, report.Succeeded())
	assert.Empty(t, report.MergedPath, "nothing parsed, nothing merged")
}

func TestRun_FormatErrorIsolated(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.csv")
	data := "Transaction Date,Post Date,Description,Category,Type,Amount,Memo\n01/01/2025,01/01/2025,X,,Sale,lots,\n"
	require.NoError(t, os.WriteFile(broken, []byte(data), 0o644))

	report, err := New(nil).Run(context.Background(), []string{broken, fixture("chase_credit.csv")}, testOptions(dir))
	require.NoError(t, err)

	var ferr *importer.FormatError
	require.True(t, errors.As(report.Files[0].Err, &ferr))
	assert.Equal(t, broken, ferr.Path)
	assert.Equal(t, 1, report.Succeeded())
}

func TestOptions_Validate(t *testing.T) {
	err := Options{SkipMerged: true, SkipIndividual: true}.Validate()
	assert.Error(t, err)

	_, err = New(nil).Run(context.Background(), nil, Options{SkipMerged: true, SkipIndividual: true})
	assert.Error(t, err)
}

func TestReport_Summary(t *testing.T) {
	dir := t.TempDir()
	report, err := New(nil).Run(context.Background(), []string{fixture("chase_credit.csv"), fixture("citi.csv")}, testOptions(dir))
	require.NoError(t, err)

	counts := report.BySource()
	require.Len(t, counts, 2)
	assert.Equal(t, SourceCount{Source: "chase_credit", Count: 4}, counts[0])

	first, last, ok := report.DateRange()
	require.True(t, ok)
	assert.Equal(t, "2025-01-02", first.Format("2006-01-02"))
	assert.Equal(t, "2025-01-20", last.Format("2006-01-02"))
}

func TestRun_OutputNameConflict(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "other")
	require.NoError(t, os.MkdirAll(other, 0o755))
	data, err := os.ReadFile(fixture("citi.csv"))
	require.NoError(t, err)
	twin := filepath.Join(other, "CITI.csv")
	require.NoError(t, os.WriteFile(twin, data, 0o644))

	opts := testOptions(dir)
	report, err := New(nil).Run(context.Background(), []string{fixture("citi.csv"), twin}, opts)
	require.NoError(t, err)

	require.Len(t, report.Files, 2)
	assert.NoError(t, report.Files[0].Err)
	assert.ErrorIs(t, report.Files[1].Err, ErrOutputConflict)
	assert.Contains(t, report.Files[1].Err.Error(), fixture("citi.csv"))
	assert.Equal(t, 1, report.Succeeded())
	assert.Len(t, report.Merged, 3, "conflicting file is not merged")

	entries, err := os.ReadDir(opts.OutputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "citi_standardized.csv", entries[0].Name())

	// Without per-file outputs nothing can be overwritten.
	opts.SkipIndividual = true
	report, err = New(nil).Run(context.Background(), []string{fixture("citi.csv"), twin}, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded())
}
