package importer

import (
	"fmt"
	"io"

	"github.com/spendsight/spendsight/internal/model"
)

var citiColumns = []string{"Date", "Description", "Debit", "Credit"}

// CitiAdapter parses Citi card exports, which open with metadata lines
// ("Card: ...", "Time period of report: ...") before the column header.
type CitiAdapter struct{}

// Format returns the adapter name.
func (a *CitiAdapter) Format() string { return "citi" }

// CanHandle looks for Citi's metadata markers in the first five lines.
func (a *CitiAdapter) CanHandle(s Sample) bool {
	return s.Contains(5, "Card:") || s.Contains(5, "Time period of report:")
}

// Parse skips the metadata block and folds Debit/Credit into one amount.
func (a *CitiAdapter) Parse(r io.Reader, source string) ([]model.Transaction, error) {
	tbl, err := readTable(r, citiColumns...)
	if err != nil {
		return nil, err
	}

	var txns []model.Transaction
	for _, rec := range tbl.rows {
		if blank(rec) {
			continue
		}
		date, err := parseDate(tbl.get(rec, "Date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rec.line, err)
		}
		amount, typ, err := splitAmount(tbl.get(rec, "Debit"), tbl.get(rec, "Credit"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rec.line, err)
		}
		txns = append(txns, model.Transaction{
			Date:        date,
			Description: tbl.get(rec, "Description"),
			Amount:      amount,
			Type:        typ,
			Category:    tbl.get(rec, "Category"),
			Source:      source,
		})
	}
	return txns, nil
}
