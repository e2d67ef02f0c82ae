package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// record is one CSV record with its 1-based line number in the file.
type record struct {
	line   int
	fields []string
}

// table is a bank export located by its header row.
type table struct {
	cols map[string]int
	rows []record
}

func readRecords(r io.Reader) ([]record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var out []record
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		line, _ := cr.FieldPos(0)
		out = append(out, record{line: line, fields: fields})
	}
	return out, nil
}

// readTable finds the first record containing every required column and
// treats everything after it as data. Records before it (bank metadata,
// summaries) are dropped.
func readTable(r io.Reader, required ...string) (*table, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}

	for i, rec := range records {
		cols := make(map[string]int, len(rec.fields))
		for j, h := range cleanHeader(rec.fields) {
			if _, dup := cols[h]; !dup {
				cols[h] = j
			}
		}
		if hasAll(cols, required) {
			return &table{cols: cols, rows: records[i+1:]}, nil
		}
	}
	return nil, fmt.Errorf("header with columns %s not found", strings.Join(required, ", "))
}

func hasAll(cols map[string]int, required []string) bool {
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return false
		}
	}
	return true
}

// get returns the named cell, or "" when the column is absent or the row short.
func (t *table) get(rec record, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(rec.fields) {
		return ""
	}
	return strings.TrimSpace(rec.fields[i])
}

// blank reports whether every cell of rec is empty.
func blank(rec record) bool {
	for _, f := range rec.fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func cleanHeader(rec []string) []string {
	out := make([]string, len(rec))
	for i, h := range rec {
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return out
}

var dateLayouts = []string{"01/02/2006", "1/2/2006", "2006-01-02", "01/02/06", "1/2/06"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q: unsupported layout", s)
}

// parseAmount cleans "$1,234.56", "-$5.00" and "(12.00)". A blank cell is zero.
func parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return decimal.Zero, nil
	}
	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		negative = true
		clean = clean[1 : len(clean)-1]
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// splitAmount folds separate debit/credit cells into one signed amount,
// ignoring whatever sign the bank put on either cell.
func splitAmount(debitCell, creditCell string) (decimal.Decimal, string, error) {
	debit, err := parseAmount(debitCell)
	if err != nil {
		return decimal.Zero, "", err
	}
	credit, err := parseAmount(creditCell)
	if err != nil {
		return decimal.Zero, "", err
	}
	amount := credit.Abs().Sub(debit.Abs())
	typ := "Debit"
	if !credit.IsZero() {
		typ = "Credit"
	}
	return amount, typ, nil
}

// titleWord turns "DEBIT" into "Debit".
func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
