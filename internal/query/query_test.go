package query

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsight/spendsight/internal/llm"
	"github.com/spendsight/spendsight/internal/model"
	"github.com/spendsight/spendsight/internal/sqlguard"
	"github.com/spendsight/spendsight/internal/taxonomy"
	"github.com/spendsight/spendsight/internal/txncsv"
)

func row(date, desc, amount, cat, sub string) model.ClassifiedTransaction {
	d, _ := time.Parse("2006-01-02", date)
	return model.ClassifiedTransaction{
		Transaction: model.Transaction{
			Date:        d,
			Description: desc,
			Amount:      decimal.RequireFromString(amount),
			Type:        "Sale",
			Source:      "Chase6559",
		},
		AI: model.Classification{Category: cat, Subcategory: sub, Confidence: model.ConfidenceHigh, Reasoning: "test"},
	}
}

func fixture() []model.ClassifiedTransaction {
	return []model.ClassifiedTransaction{
		row("2025-01-03", "SAFEWAY #1234", "-54.20", "Groceries", ""),
		row("2025-01-09", "AMAZON.COM*AB12", "-31.99", "Shopping", "Online Shopping"),
		row("2025-01-15", "SAFEWAY #1234", "-20.80", "Groceries", ""),
		row("2025-02-01", "ACME PAYROLL", "2500.00", "Income", ""),
	}
}

// fakeGen records prompts and replies with fixed SQL.
type fakeGen struct {
	reply   string
	calls   int
	prompts []llm.Request
}

func (f *fakeGen) Generate(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, req)
	return f.reply, nil
}

func openFixture(t *testing.T) *Table {
	t.Helper()
	tbl, err := OpenTable(context.Background(), fixture(), "")
	require.NoError(t, err)
	t.Cleanup(func() { tbl.Close() })
	return tbl
}

func TestOpenTable(t *testing.T) {
	tbl := openFixture(t)
	assert.Equal(t, DefaultTable, tbl.Name())
	assert.Equal(t, 4, tbl.Len())

	_, err := OpenTable(context.Background(), nil, "tx; DROP")
	assert.ErrorContains(t, err, "invalid table name")
}

func TestOpenTable_QueryOnly(t *testing.T) {
	tbl := openFixture(t)
	_, err := tbl.db.ExecContext(context.Background(), "DELETE FROM transactions")
	require.Error(t, err)

	var n int
	require.NoError(t, tbl.db.QueryRow("SELECT COUNT(*) FROM transactions").Scan(&n))
	assert.Equal(t, 4, n)
}

func TestSchemaDescription_NoRowData(t *testing.T) {
	tbl := openFixture(t)
	schema := tbl.SchemaDescription(taxonomy.Default())
	assert.Contains(t, schema, "CREATE TABLE transactions")
	assert.Contains(t, schema, "ai_subcategory TEXT")
	assert.Contains(t, schema, "Groceries")
	assert.NotContains(t, schema, "SAFEWAY")
	assert.NotContains(t, schema, "PAYROLL")
}

func TestSchemaDescription_SemanticLayer(t *testing.T) {
	schema := openFixture(t).SchemaDescription(taxonomy.Default())

	assert.Contains(t, schema, "### confidence")
	assert.Contains(t, schema, "- Valid values: high, medium, low")
	assert.Contains(t, schema, "### type")
	assert.Contains(t, schema, "Sale, Return")
	assert.Contains(t, schema, "- Format: YYYY-MM\n")
	assert.Contains(t, schema, "  - Dining: Restaurants, Fast Food, Coffee Shops, Bars, Food Delivery")
	assert.Contains(t, schema, "  - Personal Care: Hair & Beauty, Fitness, Spa")
	assert.Contains(t, schema, "exclude them from spending")

	bare := openFixture(t).SchemaDescription(nil)
	assert.NotContains(t, bare, "Valid values by category")
	assert.NotContains(t, bare, "exclude them from spending")
}

func TestExamples(t *testing.T) {
	defaults := DefaultExamples()
	require.Greater(t, len(defaults), PromptExamples)
	for _, ex := range defaults {
		assert.NoError(t, sqlguard.Validate(ex.SQL), ex.Question)
	}

	// Every default example runs against the table.
	e := NewEngine(&fakeGen{}, openFixture(t), nil, nil, 0)
	for _, ex := range defaults {
		_, err := e.Execute(context.Background(), ex.SQL)
		assert.NoError(t, err, ex.Question)
	}

	dir := t.TempDir()
	exs, err := LoadExamples(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaults, exs)

	path := filepath.Join(dir, "sql_examples.yaml")
	require.NoError(t, WriteDefaultExamples(path))
	exs, err = LoadExamples(path)
	require.NoError(t, err)
	assert.Equal(t, defaults, exs)

	custom := "examples:\n  - question: Count rows\n    sql: SELECT COUNT(*) FROM transactions\n"
	require.NoError(t, os.WriteFile(path, []byte(custom), 0o644))
	exs, err = LoadExamples(path)
	require.NoError(t, err)
	require.Len(t, exs, 1)
	assert.Contains(t, FormatExamples(exs, PromptExamples), "### Example 1: Count rows\n```sql\nSELECT COUNT(*) FROM transactions\n```")

	bad := "examples:\n  - question: Wipe\n    sql: DELETE FROM transactions\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))
	_, err = LoadExamples(path)
	var serr *sqlguard.SecurityError
	assert.ErrorAs(t, err, &serr)

	require.NoError(t, os.WriteFile(path, []byte("examples:\n  - question: No SQL\n"), 0o644))
	_, err = LoadExamples(path)
	assert.ErrorContains(t, err, "question and sql are required")
}

func TestEngine_Answer(t *testing.T) {
	gen := &fakeGen{reply: "```sql\nSELECT ai_category, ROUND(SUM(amount), 2) AS total, COUNT(*) AS n FROM transactions WHERE amount < 0 GROUP BY ai_category ORDER BY ai_category\n```"}
	e := NewEngine(gen, openFixture(t), taxonomy.Default(), DefaultExamples(), 0)

	res, err := e.Answer(context.Background(), "How much did I spend per category?")
	require.NoError(t, err)

	assert.Equal(t, []string{"ai_category", "total", "n"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Groceries", res.Rows[0][0])
	assert.Equal(t, "-75", FormatValue(res.Rows[0][1]))
	assert.Equal(t, "2", FormatValue(res.Rows[0][2]))
	assert.Equal(t, "Shopping", res.Rows[1][0])
	assert.True(t, strings.HasPrefix(res.SQL, "SELECT ai_category"))

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0].Prompt
	assert.Contains(t, prompt, "Question: How much did I spend per category?")
	assert.Contains(t, prompt, "LIMIT the result to 10 rows")
	assert.Contains(t, prompt, "### Example 1: What was my total spend in 2025?")
	assert.NotContains(t, prompt, "### Example 6", "only the first examples are sent")
	for _, ct := range fixture() {
		assert.NotContains(t, prompt, ct.Description, "row values must not reach the model")
	}
}

func TestEngine_RejectedSQLNeverRuns(t *testing.T) {
	tbl := openFixture(t)
	gen := &fakeGen{reply: "DROP TABLE transactions"}
	e := NewEngine(gen, tbl, taxonomy.Default(), nil, 5)

	_, err := e.Answer(context.Background(), "delete everything")
	var serr *sqlguard.SecurityError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, err.Error(), "modification attempts are blocked")

	res, err := e.Execute(context.Background(), "SELECT COUNT(*) FROM transactions")
	require.NoError(t, err)
	assert.Equal(t, "4", FormatValue(res.Rows[0][0]))
}

func TestEngine_CachesSQL(t *testing.T) {
	gen := &fakeGen{reply: "SELECT COUNT(*) FROM transactions"}
	e := NewEngine(gen, openFixture(t), nil, nil, 0)
	ctx := context.Background()

	_, err := e.Answer(ctx, "how many transactions?")
	require.NoError(t, err)
	_, err = e.Answer(ctx, "  how many   transactions? ")
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)

	_, err = e.Answer(ctx, "something else")
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
}

func TestEngine_RejectionNotCached(t *testing.T) {
	gen := &fakeGen{reply: "SELECT 1; DELETE FROM transactions"}
	e := NewEngine(gen, openFixture(t), nil, nil, 0)
	ctx := context.Background()

	_, err := e.Answer(ctx, "q")
	require.Error(t, err)
	_, err = e.Answer(ctx, "q")
	require.Error(t, err)
	assert.Equal(t, 2, gen.calls)
}

func TestEngine_Errors(t *testing.T) {
	e := NewEngine(llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		return "", errors.New("quota exceeded")
	}), openFixture(t), nil, nil, 0)

	_, err := e.Answer(context.Background(), "")
	assert.ErrorContains(t, err, "empty question")

	_, err = e.Answer(context.Background(), "anything")
	assert.ErrorContains(t, err, "quota exceeded")

	_, err = e.Execute(context.Background(), "SELECT missing_column FROM transactions")
	assert.ErrorContains(t, err, "executing query")
}

func TestResolveDataPath(t *testing.T) {
	dir := t.TempDir()

	_, err := ResolveDataPath("", dir)
	assert.ErrorIs(t, err, txncsv.ErrNoArtifact)

	for _, name := range []string{
		"classified_by_merchant_20250101_090000.csv",
		"classified_by_merchant_20250301_120000.csv",
		"merchant_categories_20250401_000000.csv",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	path, err := ResolveDataPath("", dir)
	require.NoError(t, err)
	assert.Equal(t, "classified_by_merchant_20250301_120000.csv", filepath.Base(path))

	override := filepath.Join(dir, "classified_by_merchant_20250101_090000.csv")
	path, err = ResolveDataPath(override, dir)
	require.NoError(t, err)
	assert.Equal(t, override, path)

	_, err = ResolveDataPath(filepath.Join(dir, "nope.csv"), dir)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classified_by_merchant_20250101_090000.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, txncsv.WriteClassified(f, fixture()))
	require.NoError(t, f.Close())

	tbl, err := LoadTable(context.Background(), path, "tx")
	require.NoError(t, err)
	defer tbl.Close()

	e := NewEngine(&fakeGen{}, tbl, nil, nil, 0)
	res, err := e.Execute(context.Background(), "SELECT month, COUNT(*) FROM tx GROUP BY month ORDER BY month")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "2025-01", res.Rows[0][0])
	assert.Equal(t, "3", FormatValue(res.Rows[0][1]))
}
