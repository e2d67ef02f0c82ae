package importer

import (
	"fmt"
	"io"

	"github.com/spendsight/spendsight/internal/model"
)

var chaseCreditColumns = []string{"Transaction Date", "Post Date", "Description", "Category", "Type", "Amount", "Memo"}

// ChaseCreditAdapter parses Chase credit card exports. Amounts are already
// signed (purchases negative) and the bank supplies a category.
type ChaseCreditAdapter struct{}

// Format returns the adapter name.
func (a *ChaseCreditAdapter) Format() string { return "chase_credit" }

// CanHandle matches on the full Chase credit column set.
func (a *ChaseCreditAdapter) CanHandle(s Sample) bool {
	return s.HasColumns(chaseCreditColumns...)
}

// Parse reads a Chase credit CSV.
func (a *ChaseCreditAdapter) Parse(r io.Reader, source string) ([]model.Transaction, error) {
	tbl, err := readTable(r, chaseCreditColumns...)
	if err != nil {
		return nil, err
	}

	var txns []model.Transaction
	for _, rec := range tbl.rows {
		if blank(rec) {
			continue
		}
		date, err := parseDate(tbl.get(rec, "Transaction Date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rec.line, err)
		}
		amount, err := parseAmount(tbl.get(rec, "Amount"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rec.line, err)
		}
		txns = append(txns, model.Transaction{
			Date:        date,
			Description: tbl.get(rec, "Description"),
			Amount:      amount,
			Type:        tbl.get(rec, "Type"),
			Category:    tbl.get(rec, "Category"),
			Source:      source,
		})
	}
	return txns, nil
}

var chaseCheckingColumns = []string{"Details", "Posting Date", "Description", "Amount", "Type", "Balance"}

// ChaseCheckingAdapter parses Chase checking exports. Data rows carry a
// trailing comma, so they have one more field than the header; cells are
// looked up by header position, which ignores the extra one.
type ChaseCheckingAdapter struct{}

// Format returns the adapter name.
func (a *ChaseCheckingAdapter) Format() string { return "chase_checking" }

// CanHandle matches on the Chase checking column set.
func (a *ChaseCheckingAdapter) CanHandle(s Sample) bool {
	return s.HasColumns(chaseCheckingColumns...)
}

// Parse reads a Chase checking CSV. Details (DEBIT, CREDIT, CHECK) becomes the
// type and the ACH-style Type column becomes the bank category.
func (a *ChaseCheckingAdapter) Parse(r io.Reader, source string) ([]model.Transaction, error) {
	tbl, err := readTable(r, chaseCheckingColumns...)
	if err != nil {
		return nil, err
	}

	var txns []model.Transaction
	for _, rec := range tbl.rows {
		if blank(rec) {
			continue
		}
		date, err := parseDate(tbl.get(rec, "Posting Date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rec.line, err)
		}
		amount, err := parseAmount(tbl.get(rec, "Amount"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rec.line, err)
		}
		txns = append(txns, model.Transaction{
			Date:        date,
			Description: tbl.get(rec, "Description"),
			Amount:      amount,
			Type:        titleWord(tbl.get(rec, "Details")),
			Category:    tbl.get(rec, "Type"),
			Source:      source,
		})
	}
	return txns, nil
}
