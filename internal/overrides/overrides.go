// Package overrides applies manual category corrections keyed by
// description substrings, as a final patch after classification.
package overrides

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spendsight/spendsight/internal/model"
	"github.com/spendsight/spendsight/internal/taxonomy"
)

// Header is the CSV header of category_overrides.csv.
var Header = []string{"description_pattern", "correct_category", "correct_subcategory"}

// Rule rewrites the classification of every description containing Pattern.
type Rule struct {
	Pattern     string
	Category    string
	Subcategory string
}

// Matches reports whether desc contains the pattern, ignoring case.
func (r Rule) Matches(desc string) bool {
	return strings.Contains(strings.ToLower(desc), strings.ToLower(r.Pattern))
}

func (r Rule) classification() model.Classification {
	return model.Classification{
		Category:    r.Category,
		Subcategory: r.Subcategory,
		Confidence:  model.ConfidenceHigh,
		Reasoning:   "manual override: " + r.Pattern,
	}
}

// Read parses override rules and validates each against tax, canonicalizing
// category names. The subcategory column is optional.
func Read(r io.Reader, tax *taxonomy.Taxonomy) ([]Rule, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading overrides header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	patCol, ok1 := cols[Header[0]]
	catCol, ok2 := cols[Header[1]]
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("overrides header must include %s and %s", Header[0], Header[1])
	}
	subCol, hasSub := cols[Header[2]]

	cell := func(rec []string, i int) string {
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rules []Rule
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		rule := Rule{Pattern: cell(rec, patCol), Category: cell(rec, catCol)}
		if hasSub {
			rule.Subcategory = cell(rec, subCol)
		}
		if rule.Pattern == "" && rule.Category == "" {
			continue
		}
		if rule.Pattern == "" {
			return nil, fmt.Errorf("row %d: empty description_pattern", row)
		}
		cat, sub, err := tax.Validate(rule.Category, rule.Subcategory)
		if err != nil {
			return nil, fmt.Errorf("row %d (%q): %w", row, rule.Pattern, err)
		}
		rule.Category, rule.Subcategory = cat, sub
		rules = append(rules, rule)
	}
	return rules, nil
}

// Load reads an overrides file. A missing file means no overrides.
func Load(path string, tax *taxonomy.Taxonomy) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening overrides: %w", err)
	}
	defer f.Close()

	rules, err := Read(f, tax)
	if err != nil {
		return nil, fmt.Errorf("reading overrides %s: %w", path, err)
	}
	return rules, nil
}

// WriteTemplate writes a header-only overrides file.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// Stat counts the rows one rule rewrote.
type Stat struct {
	Rule    Rule
	Matches int
}

// Apply returns a copy of txns with rules applied in order, so a later
// matching rule wins. Stats are per rule, in rule order.
func Apply(txns []model.ClassifiedTransaction, rules []Rule) ([]model.ClassifiedTransaction, []Stat) {
	out := make([]model.ClassifiedTransaction, len(txns))
	copy(out, txns)

	stats := make([]Stat, len(rules))
	for i, r := range rules {
		stats[i].Rule = r
		for j := range out {
			if r.Matches(out[j].Description) {
				out[j].AI = r.classification()
				stats[i].Matches++
			}
		}
	}
	return out, stats
}

// ApplyToMerchants patches a merchant mapping the same way Apply patches
// transactions.
func ApplyToMerchants(ms []model.MerchantClassification, rules []Rule) []model.MerchantClassification {
	out := make([]model.MerchantClassification, len(ms))
	copy(out, ms)
	for _, r := range rules {
		for j := range out {
			if r.Matches(out[j].Description) {
				out[j].Classification = r.classification()
			}
		}
	}
	return out
}
