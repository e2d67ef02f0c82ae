package query

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spendsight/spendsight/internal/model"
	"github.com/spendsight/spendsight/internal/sqlguard"
	"github.com/spendsight/spendsight/internal/taxonomy"
)

// PromptExamples is how many examples go into each prompt.
const PromptExamples = 5

//go:embed sql_examples.yaml
var defaultExamplesYAML []byte

// Field describes one column for the model.
type Field struct {
	Name        string
	Type        string
	Format      string
	Description string
	ValidValues []string
	Tips        []string
}

// Fields returns the column metadata for the classified table, in column
// order. Category and subcategory values come from tax when it is set.
func Fields(tax *taxonomy.Taxonomy) []Field {
	fields := []Field{
		{Name: "date", Type: "TEXT", Format: "YYYY-MM-DD", Description: "Transaction date."},
		{Name: "description", Type: "TEXT", Description: "Merchant or payee text exactly as the bank exported it.",
			Tips: []string{"Match merchants with LIKE and % wildcards; descriptions carry store numbers and suffixes."}},
		{Name: "amount", Type: "REAL", Description: "Signed amount in dollars. Negative is money spent, positive is money received (income, refunds)."},
		{Name: "type", Type: "TEXT", Description: "The bank's transaction type; the set differs per bank.",
			ValidValues: []string{"Sale", "Return", "Payment", "Fee", "Adjustment", "Debit", "Credit", "Check"}},
		{Name: "category", Type: "TEXT", Description: "The bank's own category label. Often empty; prefer ai_category."},
		{Name: "source", Type: "TEXT", Description: "Bank account the row was exported from."},
		{Name: "month", Type: "TEXT", Format: "YYYY-MM", Description: "Month of date, for grouping."},
		{Name: "year", Type: "INTEGER", Format: "YYYY", Description: "Year of date."},
		{Name: "ai_category", Type: "TEXT", Description: "Category assigned by the classifier."},
		{Name: "ai_subcategory", Type: "TEXT", Description: "Subcategory within ai_category; empty for categories without subcategories."},
		{Name: "confidence", Type: "TEXT", Description: "Classifier confidence.",
			ValidValues: []string{string(model.ConfidenceHigh), string(model.ConfidenceMedium), string(model.ConfidenceLow)}},
		{Name: "reasoning", Type: "TEXT", Description: "Short classifier explanation."},
	}
	if tax != nil {
		fields[8].ValidValues = tax.Names()
	}
	return fields
}

// businessRules are the table-wide rules the model must respect.
func businessRules(tax *taxonomy.Taxonomy) []string {
	rules := []string{
		"Spending is amount < 0; report totals as -SUM(amount) so they read positive.",
		"Compute ratios from aggregated totals (SUM with GROUP BY), never from single rows.",
	}
	if tax == nil {
		return rules
	}
	var internal []string
	for _, name := range []string{"Transfers", "Bill Payments"} {
		if _, ok := tax.Lookup(name); ok {
			internal = append(internal, "'"+name+"'")
		}
	}
	if len(internal) > 0 {
		rules = append(rules, "Rows in "+strings.Join(internal, " and ")+
			" move money between your own accounts; exclude them from spending and income totals.")
	}
	return rules
}

// Example is one question with the SQL that answers it.
type Example struct {
	Question    string `yaml:"question"`
	SQL         string `yaml:"sql"`
	Explanation string `yaml:"explanation"`
}

type examplesFile struct {
	Examples []Example `yaml:"examples"`
}

// DefaultExamples returns the built-in examples.
func DefaultExamples() []Example {
	exs, err := parseExamples(defaultExamplesYAML)
	if err != nil {
		panic("query: invalid default examples: " + err.Error())
	}
	return exs
}

// LoadExamples reads examples from a yaml file, or returns the defaults
// when the file does not exist.
func LoadExamples(path string) ([]Example, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultExamples(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading examples: %w", err)
	}
	exs, err := parseExamples(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return exs, nil
}

// WriteDefaultExamples writes the built-in examples file to path.
func WriteDefaultExamples(path string) error {
	if err := os.WriteFile(path, defaultExamplesYAML, 0o644); err != nil {
		return fmt.Errorf("writing examples: %w", err)
	}
	return nil
}

// parseExamples decodes an examples file. Every example must have a
// question and SQL that passes the read-only check.
func parseExamples(data []byte) ([]Example, error) {
	var f examplesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing examples: %w", err)
	}
	for i := range f.Examples {
		ex := &f.Examples[i]
		ex.Question = strings.TrimSpace(ex.Question)
		ex.SQL = strings.TrimSpace(ex.SQL)
		if ex.Question == "" || ex.SQL == "" {
			return nil, fmt.Errorf("example %d: question and sql are required", i+1)
		}
		if err := sqlguard.Validate(ex.SQL); err != nil {
			return nil, fmt.Errorf("example %d: %w", i+1, err)
		}
	}
	return f.Examples, nil
}

// FormatExamples renders up to limit examples for the prompt.
func FormatExamples(exs []Example, limit int) string {
	if limit > 0 && len(exs) > limit {
		exs = exs[:limit]
	}
	if len(exs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## SQL Examples\n")
	for i, ex := range exs {
		fmt.Fprintf(&b, "\n### Example %d: %s\n```sql\n%s\n```\n", i+1, ex.Question, ex.SQL)
		if ex.Explanation != "" {
			fmt.Fprintf(&b, "Explanation: %s\n", ex.Explanation)
		}
	}
	return b.String()
}
