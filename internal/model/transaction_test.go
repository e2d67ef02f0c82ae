package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionDerivedFields(t *testing.T) {
	tests := []struct {
		date      time.Time
		wantMonth string
		wantYear  string
	}{
		{time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), "2025-01", "2025"},
		{time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), "2024-12", "2024"},
		{time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), "2025-10", "2025"},
	}
	for _, tt := range tests {
		txn := Transaction{Date: tt.date}
		assert.Equal(t, tt.wantMonth, txn.Month())
		assert.Equal(t, tt.wantYear, txn.Year())
	}
}

func TestParseConfidence(t *testing.T) {
	for _, in := range []string{"high", "HIGH", " Medium ", "low"} {
		_, err := ParseConfidence(in)
		assert.NoError(t, err, in)
	}

	c, err := ParseConfidence("Medium")
	require.NoError(t, err)
	assert.Equal(t, ConfidenceMedium, c)

	_, err = ParseConfidence("certain")
	assert.Error(t, err)
	_, err = ParseConfidence("")
	assert.Error(t, err)
}

func TestUncategorizedBecause(t *testing.T) {
	c := UncategorizedBecause("no match")
	assert.Equal(t, Uncategorized, c.Category)
	assert.Empty(t, c.Subcategory)
	assert.Equal(t, ConfidenceLow, c.Confidence)
	assert.Equal(t, "no match", c.Reasoning)
}
