package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a bank row normalized to the shared schema.
type Transaction struct {
	Date        time.Time
	Description string          // merchant grouping key, kept verbatim
	Amount      decimal.Decimal // negative = debit/expense, positive = credit/income
	Type        string          // Sale, Return, Credit, Debit, ACH_DEBIT, ...
	Category    string          // bank-provided label, may be empty
	Source      string          // bank+account identifier, e.g. "Chase6559"
}

// Month returns the transaction month as YYYY-MM.
func (t Transaction) Month() string { return t.Date.Format("2006-01") }

// Year returns the transaction year as YYYY.
func (t Transaction) Year() string { return t.Date.Format("2006") }

// Confidence is the model's self-reported certainty for a classification.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence accepts high/medium/low in any case.
func ParseConfidence(s string) (Confidence, error) {
	switch c := Confidence(strings.ToLower(strings.TrimSpace(s))); c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return c, nil
	default:
		return "", fmt.Errorf("invalid confidence %q", s)
	}
}

// Uncategorized is the fallback category for merchants that could not be
// classified or whose classification failed validation.
const Uncategorized = "Uncategorized"

// Classification is the per-merchant result broadcast to every matching row.
type Classification struct {
	Category    string
	Subcategory string
	Confidence  Confidence
	Reasoning   string
}

// UncategorizedBecause returns the low-confidence fallback classification.
func UncategorizedBecause(reason string) Classification {
	return Classification{
		Category:   Uncategorized,
		Confidence: ConfidenceLow,
		Reasoning:  reason,
	}
}

// ClassifiedTransaction is a standardized row plus its AI classification.
type ClassifiedTransaction struct {
	Transaction
	AI Classification
}

// MerchantClassification is one row of the merchant -> category mapping.
type MerchantClassification struct {
	Description      string
	Classification   Classification
	TransactionCount int
}
