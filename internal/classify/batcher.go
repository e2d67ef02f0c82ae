// Package classify assigns taxonomy categories to transactions by
// classifying each unique merchant once and broadcasting the result.
package classify

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/spendsight/spendsight/internal/logger"
	"github.com/spendsight/spendsight/internal/model"
	"github.com/spendsight/spendsight/internal/taxonomy"
	"github.com/spendsight/spendsight/internal/txncsv"
)

// DefaultBatchSize is the number of merchants per model call.
const DefaultBatchSize = 50

// ClassificationValidationError means the model's answer for a merchant was
// missing or fell outside the taxonomy. The merchant is marked Uncategorized.
type ClassificationValidationError struct {
	Merchant    string
	Category    string
	Subcategory string
	Err         error
}

func (e *ClassificationValidationError) Error() string {
	return fmt.Sprintf("merchant %q: invalid classification %q/%q: %v", e.Merchant, e.Category, e.Subcategory, e.Err)
}

func (e *ClassificationValidationError) Unwrap() error { return e.Err }

// BatchError means a whole batch failed after retries. Its merchants are
// marked Uncategorized and the run continues.
type BatchError struct {
	Batch     int // 1-based
	Merchants []string
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (%d merchants): %v", e.Batch, len(e.Merchants), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// BatchSummary records how one batch went.
type BatchSummary struct {
	Batch     int
	Merchants int
	Invalid   int
	Err       error
}

// Result is the output of one classification run.
type Result struct {
	Transactions     []model.ClassifiedTransaction
	Merchants        []model.MerchantClassification
	Batches          []BatchSummary
	Calls            int
	BatchErrors      []*BatchError
	ValidationErrors []*ClassificationValidationError
}

// Batcher groups transactions by merchant and classifies merchants in batches.
type Batcher struct {
	classifier Classifier
	taxonomy   *taxonomy.Taxonomy
	batchSize  int
}

// NewBatcher creates a Batcher. A batchSize below 1 uses DefaultBatchSize.
func NewBatcher(c Classifier, tax *taxonomy.Taxonomy, batchSize int) *Batcher {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Batcher{classifier: c, taxonomy: tax, batchSize: batchSize}
}

// Run classifies txns. It issues exactly ceil(unique merchants / batch size)
// classifier calls. Batch and validation failures are collected in the
// result; only context cancellation aborts the run.
func (b *Batcher) Run(ctx context.Context, txns []model.Transaction) (*Result, error) {
	log := logger.FromContext(ctx)

	merchants := GroupMerchants(txns)
	batches := Batches(merchants, b.batchSize)
	log.Info().Int("transactions", len(txns)).Int("merchants", len(merchants)).Int("batches", len(batches)).Msg("classifying")

	res := &Result{}
	byDesc := make(map[string]model.Classification, len(merchants))
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("classification cancelled: %w", err)
		}
		blog := log.With().Int("batch", i+1).Int("merchants", len(batch)).Logger()

		suggestions, err := b.classifier.Classify(ctx, batch)
		res.Calls++
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("classification cancelled: %w", ctx.Err())
			}
			berr := &BatchError{Batch: i + 1, Err: err}
			for _, m := range batch {
				berr.Merchants = append(berr.Merchants, m.Description)
				byDesc[m.Description] = model.UncategorizedBecause("classification failed: " + err.Error())
			}
			res.BatchErrors = append(res.BatchErrors, berr)
			res.Batches = append(res.Batches, BatchSummary{Batch: i + 1, Merchants: len(batch), Err: err})
			blog.Error().Err(err).Msg("batch failed")
			continue
		}

		invalid := b.apply(batch, suggestions, byDesc, res)
		res.Batches = append(res.Batches, BatchSummary{Batch: i + 1, Merchants: len(batch), Invalid: invalid})
		blog.Info().Int("invalid", invalid).Msg("batch classified")
	}

	res.Transactions = make([]model.ClassifiedTransaction, len(txns))
	for i, t := range txns {
		res.Transactions[i] = model.ClassifiedTransaction{Transaction: t, AI: byDesc[t.Description]}
	}

	res.Merchants = make([]model.MerchantClassification, len(merchants))
	for i, m := range merchants {
		res.Merchants[i] = model.MerchantClassification{
			Description:      m.Description,
			Classification:   byDesc[m.Description],
			TransactionCount: m.Count,
		}
	}
	SortMerchants(res.Merchants)
	return res, nil
}

// apply validates suggestions for one batch and records a classification for
// every merchant in it. It returns how many merchants were invalid.
func (b *Batcher) apply(batch []Merchant, suggestions []Suggestion, byDesc map[string]model.Classification, res *Result) int {
	byID := make(map[int]Suggestion, len(suggestions))
	for _, s := range suggestions {
		if _, dup := byID[s.ID]; !dup {
			byID[s.ID] = s
		}
	}

	invalid := 0
	for i, m := range batch {
		c, verr := b.validate(m, byID, i)
		if verr != nil {
			invalid++
			res.ValidationErrors = append(res.ValidationErrors, verr)
			c = model.UncategorizedBecause("invalid classification: " + verr.Err.Error())
		}
		byDesc[m.Description] = c
	}
	return invalid
}

func (b *Batcher) validate(m Merchant, byID map[int]Suggestion, id int) (model.Classification, *ClassificationValidationError) {
	s, ok := byID[id]
	if !ok {
		return model.Classification{}, &ClassificationValidationError{Merchant: m.Description, Err: fmt.Errorf("no result for merchant id %d", id)}
	}

	verr := func(err error) *ClassificationValidationError {
		return &ClassificationValidationError{Merchant: m.Description, Category: s.Category, Subcategory: s.Subcategory, Err: err}
	}

	conf, err := model.ParseConfidence(s.Confidence)
	if err != nil {
		return model.Classification{}, verr(err)
	}
	cat, sub, err := b.taxonomy.Validate(s.Category, s.Subcategory)
	if err != nil {
		return model.Classification{}, verr(err)
	}
	return model.Classification{Category: cat, Subcategory: sub, Confidence: conf, Reasoning: s.Reasoning}, nil
}

// SortMerchants orders a merchant mapping by transaction count desc, then description.
func SortMerchants(ms []model.MerchantClassification) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].TransactionCount != ms[j].TransactionCount {
			return ms[i].TransactionCount > ms[j].TransactionCount
		}
		return ms[i].Description < ms[j].Description
	})
}

// Output file name prefixes.
const (
	ClassifiedPrefix = "classified_by_merchant_"
	MerchantPrefix   = "merchant_categories_"
)

// Outputs are the files written for one run.
type Outputs struct {
	ClassifiedPath string
	MerchantPath   string
}

// WriteOutputs writes the classified table and merchant mapping into dir,
// named with the run timestamp.
func WriteOutputs(dir string, at time.Time, res *Result) (*Outputs, error) {
	ts := at.Format(txncsv.TimestampFormat)
	out := &Outputs{
		ClassifiedPath: filepath.Join(dir, ClassifiedPrefix+ts+".csv"),
		MerchantPath:   filepath.Join(dir, MerchantPrefix+ts+".csv"),
	}

	err := txncsv.WriteFile(out.ClassifiedPath, func(w io.Writer) error {
		return txncsv.WriteClassified(w, res.Transactions)
	})
	if err != nil {
		return nil, fmt.Errorf("writing classified table: %w", err)
	}
	err = txncsv.WriteFile(out.MerchantPath, func(w io.Writer) error {
		return txncsv.WriteMerchants(w, res.Merchants)
	})
	if err != nil {
		return nil, fmt.Errorf("writing merchant mapping: %w", err)
	}
	return out, nil
}
