package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/spendsight/spendsight/internal/model"
)

var bofaColumns = []string{"Date", "Description", "Amount", "Running Bal."}

const bofaBeginningBalance = "Beginning balance"

// BofAAdapter parses Bank of America exports. They start with a summary block
// (beginning/ending balance, totals) and the first data row is a synthetic
// "Beginning balance as of ..." line with no amount.
type BofAAdapter struct{}

// Format returns the adapter name.
func (a *BofAAdapter) Format() string { return "bofa" }

// CanHandle requires both summary markers in the first ten lines.
func (a *BofAAdapter) CanHandle(s Sample) bool {
	return s.Contains(10, bofaBeginningBalance) && s.Contains(10, "Total credits")
}

// Parse skips the summary block and balance rows. BofA supplies no bank
// category, so Category is left empty.
func (a *BofAAdapter) Parse(r io.Reader, source string) ([]model.Transaction, error) {
	tbl, err := readTable(r, bofaColumns...)
	if err != nil {
		return nil, err
	}

	var txns []model.Transaction
	for _, rec := range tbl.rows {
		desc := tbl.get(rec, "Description")
		if blank(rec) || strings.Contains(desc, bofaBeginningBalance) {
			continue
		}
		date, err := parseDate(tbl.get(rec, "Date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rec.line, err)
		}
		amount, err := parseAmount(tbl.get(rec, "Amount"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rec.line, err)
		}
		typ := "Debit"
		if amount.IsPositive() {
			typ = "Credit"
		}
		txns = append(txns, model.Transaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Type:        typ,
			Source:      source,
		})
	}
	return txns, nil
}
