package overrides

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsight/spendsight/internal/model"
	"github.com/spendsight/spendsight/internal/taxonomy"
)

func classified(desc, cat string) model.ClassifiedTransaction {
	return model.ClassifiedTransaction{
		Transaction: model.Transaction{Description: desc},
		AI:          model.Classification{Category: cat, Confidence: model.ConfidenceMedium, Reasoning: "model"},
	}
}

func TestRead(t *testing.T) {
	data := "description_pattern,correct_category,correct_subcategory\n" +
		"TWELVEMONTH,personal care,fitness\n" +
		"\n" +
		"IRS,Taxes,\n"
	rules, err := Read(strings.NewReader(data), taxonomy.Default())
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, Rule{Pattern: "TWELVEMONTH", Category: "Personal Care", Subcategory: "Fitness"}, rules[0])
	assert.Equal(t, "Taxes", rules[1].Category)
}

func TestRead_NoSubcategoryColumn(t *testing.T) {
	rules, err := Read(strings.NewReader("description_pattern,correct_category\nIRS,Taxes\n"), taxonomy.Default())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Empty(t, rules[0].Subcategory)
}

func TestRead_Errors(t *testing.T) {
	tax := taxonomy.Default()

	_, err := Read(strings.NewReader("pattern,category\nX,Taxes\n"), tax)
	assert.ErrorContains(t, err, "header must include")

	_, err = Read(strings.NewReader("description_pattern,correct_category\nX,Crypto\n"), tax)
	assert.ErrorIs(t, err, taxonomy.ErrUnknownCategory)
	assert.ErrorContains(t, err, "row 2")

	_, err = Read(strings.NewReader("description_pattern,correct_category\n,Taxes\n"), tax)
	assert.ErrorContains(t, err, "empty description_pattern")
}

func TestLoad_Missing(t *testing.T) {
	rules, err := Load(filepath.Join(t.TempDir(), "category_overrides.csv"), taxonomy.Default())
	require.NoError(t, err)
	assert.Nil(t, rules)
}

func TestWriteTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf))
	assert.Equal(t, "description_pattern,correct_category,correct_subcategory\n", buf.String())

	path := filepath.Join(t.TempDir(), "o.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	rules, err := Load(path, taxonomy.Default())
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestApply(t *testing.T) {
	txns := []model.ClassifiedTransaction{
		classified("TWELVEMONTH GYM 0042", "Shopping"),
		classified("Safeway #12", "Groceries"),
		classified("twelvemonth annual", "Other"),
	}
	rules := []Rule{
		{Pattern: "TwelveMonth", Category: "Personal Care", Subcategory: "Fitness"},
		{Pattern: "annual", Category: "Subscriptions", Subcategory: "Memberships"},
		{Pattern: "nothing matches", Category: "Taxes"},
	}

	out, stats := Apply(txns, rules)

	assert.Equal(t, "Personal Care", out[0].AI.Category)
	assert.Equal(t, model.ConfidenceHigh, out[0].AI.Confidence)
	assert.Equal(t, "manual override: TwelveMonth", out[0].AI.Reasoning)
	assert.Equal(t, "Groceries", out[1].AI.Category, "unmatched rows untouched")
	assert.Equal(t, "Subscriptions", out[2].AI.Category, "later rule wins")

	assert.Equal(t, 2, stats[0].Matches)
	assert.Equal(t, 1, stats[1].Matches)
	assert.Equal(t, 0, stats[2].Matches)

	assert.Equal(t, "Shopping", txns[0].AI.Category, "input not mutated")
}

func TestApplyToMerchants(t *testing.T) {
	ms := []model.MerchantClassification{
		{Description: "IRS USATAXPYMT", Classification: model.Classification{Category: "Other"}, TransactionCount: 2},
	}
	out := ApplyToMerchants(ms, []Rule{{Pattern: "irs", Category: "Taxes"}})
	assert.Equal(t, "Taxes", out[0].Classification.Category)
	assert.Equal(t, 2, out[0].TransactionCount)
	assert.Equal(t, "Other", ms[0].Classification.Category)
}
