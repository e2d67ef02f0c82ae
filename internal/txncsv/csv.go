// Package txncsv reads and writes the standardized, classified and
// merchant-mapping CSV tables.
package txncsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spendsight/spendsight/internal/model"
)

// StandardHeader is the column set of every standardized CSV.
var StandardHeader = []string{"date", "description", "amount", "type", "category", "source", "month", "year"}

// ClassifiedHeader extends StandardHeader with the AI classification.
var ClassifiedHeader = append(append([]string{}, StandardHeader...), "ai_category", "ai_subcategory", "confidence", "reasoning")

// MerchantHeader is the column set of merchant_categories_<ts>.csv.
var MerchantHeader = []string{"description", "category", "subcategory", "confidence", "reasoning", "transaction_count"}

const (
	dateFormat = "2006-01-02"

	numStandardFields   = 8
	numClassifiedFields = 12
	numMerchantFields   = 6

	colDate     = 0
	colDesc     = 1
	colAmount   = 2
	colType     = 3
	colCategory = 4
	colSource   = 5
	colMonth    = 6
	colYear     = 7
	colAICat    = 8
	colAISub    = 9
	colConf     = 10
	colReason   = 11

	colMerchDesc   = 0
	colMerchCat    = 1
	colMerchSub    = 2
	colMerchConf   = 3
	colMerchReason = 4
	colMerchCount  = 5
)

// MarshalTransaction converts a Transaction to a standardized CSV row.
func MarshalTransaction(t model.Transaction) []string {
	row := make([]string, numStandardFields)
	row[colDate] = t.Date.Format(dateFormat)
	row[colDesc] = t.Description
	row[colAmount] = t.Amount.StringFixed(2)
	row[colType] = t.Type
	row[colCategory] = t.Category
	row[colSource] = t.Source
	row[colMonth] = t.Month()
	row[colYear] = t.Year()
	return row
}

// UnmarshalTransaction parses the first eight columns of a standardized or
// classified row. month and year are recomputed from date, not trusted.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) < numStandardFields {
		return model.Transaction{}, fmt.Errorf("expected at least %d fields, got %d", numStandardFields, len(record))
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	return model.Transaction{
		Date:        date,
		Description: record[colDesc],
		Amount:      amount,
		Type:        record[colType],
		Category:    record[colCategory],
		Source:      record[colSource],
	}, nil
}

// MarshalClassified converts a ClassifiedTransaction to a CSV row.
func MarshalClassified(ct model.ClassifiedTransaction) []string {
	row := append(MarshalTransaction(ct.Transaction), make([]string, numClassifiedFields-numStandardFields)...)
	row[colAICat] = ct.AI.Category
	row[colAISub] = ct.AI.Subcategory
	row[colConf] = string(ct.AI.Confidence)
	row[colReason] = ct.AI.Reasoning
	return row
}

// UnmarshalClassified converts a classified CSV row to a ClassifiedTransaction.
func UnmarshalClassified(record []string) (model.ClassifiedTransaction, error) {
	if len(record) != numClassifiedFields {
		return model.ClassifiedTransaction{}, fmt.Errorf("expected %d fields, got %d", numClassifiedFields, len(record))
	}

	txn, err := UnmarshalTransaction(record)
	if err != nil {
		return model.ClassifiedTransaction{}, err
	}

	var conf model.Confidence
	if record[colConf] != "" {
		conf, err = model.ParseConfidence(record[colConf])
		if err != nil {
			return model.ClassifiedTransaction{}, err
		}
	}

	return model.ClassifiedTransaction{
		Transaction: txn,
		AI: model.Classification{
			Category:    record[colAICat],
			Subcategory: record[colAISub],
			Confidence:  conf,
			Reasoning:   record[colReason],
		},
	}, nil
}

// MarshalMerchant converts a MerchantClassification to a CSV row.
func MarshalMerchant(m model.MerchantClassification) []string {
	row := make([]string, numMerchantFields)
	row[colMerchDesc] = m.Description
	row[colMerchCat] = m.Classification.Category
	row[colMerchSub] = m.Classification.Subcategory
	row[colMerchConf] = string(m.Classification.Confidence)
	row[colMerchReason] = m.Classification.Reasoning
	row[colMerchCount] = strconv.Itoa(m.TransactionCount)
	return row
}

// UnmarshalMerchant converts a merchant mapping row to a MerchantClassification.
func UnmarshalMerchant(record []string) (model.MerchantClassification, error) {
	if len(record) != numMerchantFields {
		return model.MerchantClassification{}, fmt.Errorf("expected %d fields, got %d", numMerchantFields, len(record))
	}

	count, err := strconv.Atoi(record[colMerchCount])
	if err != nil {
		return model.MerchantClassification{}, fmt.Errorf("parsing transaction_count %q: %w", record[colMerchCount], err)
	}

	conf, err := model.ParseConfidence(record[colMerchConf])
	if err != nil {
		return model.MerchantClassification{}, err
	}

	return model.MerchantClassification{
		Description: record[colMerchDesc],
		Classification: model.Classification{
			Category:    record[colMerchCat],
			Subcategory: record[colMerchSub],
			Confidence:  conf,
			Reasoning:   record[colMerchReason],
		},
		TransactionCount: count,
	}, nil
}

// WriteTransactions writes a standardized table (including header).
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(StandardHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range txns {
		if err := cw.Write(MarshalTransaction(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTransactions reads a standardized table.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	records, err := readAll(r, numStandardFields)
	if err != nil {
		return nil, fmt.Errorf("reading standardized CSV: %w", err)
	}

	var txns []model.Transaction
	for i, rec := range records {
		t, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// WriteClassified writes a classified table (including header).
func WriteClassified(w io.Writer, txns []model.ClassifiedTransaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(ClassifiedHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range txns {
		if err := cw.Write(MarshalClassified(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadClassified reads a classified table.
func ReadClassified(r io.Reader) ([]model.ClassifiedTransaction, error) {
	records, err := readAll(r, numClassifiedFields)
	if err != nil {
		return nil, fmt.Errorf("reading classified CSV: %w", err)
	}

	var txns []model.ClassifiedTransaction
	for i, rec := range records {
		t, err := UnmarshalClassified(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// WriteMerchants writes the merchant mapping table (including header).
func WriteMerchants(w io.Writer, merchants []model.MerchantClassification) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(MerchantHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, m := range merchants {
		if err := cw.Write(MarshalMerchant(m)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadMerchants reads the merchant mapping table.
func ReadMerchants(r io.Reader) ([]model.MerchantClassification, error) {
	records, err := readAll(r, numMerchantFields)
	if err != nil {
		return nil, fmt.Errorf("reading merchant CSV: %w", err)
	}

	var merchants []model.MerchantClassification
	for i, rec := range records {
		m, err := UnmarshalMerchant(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		merchants = append(merchants, m)
	}
	return merchants, nil
}

// readAll returns the data records, header removed.
func readAll(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) <= 1 {
		return nil, nil
	}
	return records[1:], nil
}
