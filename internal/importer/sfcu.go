package importer

import (
	"fmt"
	"io"

	"github.com/spendsight/spendsight/internal/model"
)

var sfcuColumns = []string{"Account Number", "Post Date", "Description", "Debit", "Credit", "Category", "Status", "Balance"}

// SFCUAdapter parses Stanford Federal Credit Union exports.
type SFCUAdapter struct{}

// Format returns the adapter name.
func (a *SFCUAdapter) Format() string { return "sfcu" }

// CanHandle matches on the SFCU column set.
func (a *SFCUAdapter) CanHandle(s Sample) bool {
	return s.HasColumns(sfcuColumns...)
}

// Parse folds Debit/Credit into one amount.
func (a *SFCUAdapter) Parse(r io.Reader, source string) ([]model.Transaction, error) {
	tbl, err := readTable(r, sfcuColumns...)
	if err != nil {
		return nil, err
	}

	var txns []model.Transaction
	for _, rec := range tbl.rows {
		if blank(rec) {
			continue
		}
		date, err := parseDate(tbl.get(rec, "Post Date"))
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
