// Package standardize drives bank detection over a file set and writes the
// per-file and merged standardized tables.
package standardize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spendsight/spendsight/internal/importer"
	"github.com/spendsight/spendsight/internal/logger"
	"github.com/spendsight/spendsight/internal/model"
	"github.com/spendsight/spendsight/internal/txncsv"
)

// ErrOutputConflict is returned for an input whose per-file output name was
// already taken by an earlier input in the same run.
var ErrOutputConflict = errors.New("per-file output name already used")

// Options controls where outputs go.
type Options struct {
	OutputDir      string // per-file <stem>_standardized.csv
	MergedOutput   string // concatenation of every parsed file
	SkipMerged     bool
	SkipIndividual bool
}

// Validate rejects option combinations that would write nothing.
func (o Options) Validate() error {
	if o.SkipMerged && o.SkipIndividual {
		return errors.New("--skip-merged and --skip-individual together would produce no output")
	}
	if !o.SkipIndividual && o.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if !o.SkipMerged && o.MergedOutput == "" {
		return errors.New("merged output path is required")
	}
	return nil
}

// FileResult is the outcome for one input file. Err is nil on success.
type FileResult struct {
	Path         string
	Adapter      string
	Source       string
	Transactions int
	OutputPath   string
	Skipped      string // reason the file was not attempted
	Err          error
}

// Report summarizes a standardization run.
type Report struct {
	Files      []FileResult
	Merged     []model.Transaction
	MergedPath string
}

// Succeeded counts files parsed successfully.
func (r *Report) Succeeded() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil && f.Skipped == "" {
			n++
		}
	}
	return n
}

// Failed returns the files that errored.
func (r *Report) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// SourceCount is the number of merged rows from one source.
type SourceCount struct {
	Source string
	Count  int
}

// BySource counts merged rows per source, largest first.
func (r *Report) BySource() []SourceCount {
	counts := make(map[string]int)
	for _, t := range r.Merged {
		counts[t.Source]++
	}
	out := make([]SourceCount, 0, len(counts))
	for s, n := range counts {
		out = append(out, SourceCount{Source: s, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Source < out[j].Source
	})
	return out
}

// DateRange returns the earliest and latest merged dates.
func (r *Report) DateRange() (first, last time.Time, ok bool) {
	for i, t := range r.Merged {
		if i == 0 || t.Date.Before(first) {
			first = t.Date
		}
		if i == 0 || t.Date.After(last) {
			last = t.Date
		}
	}
	return first, last, len(r.Merged) > 0
}

// Standardizer runs a Detector over input files.
type Standardizer struct {
	detector *importer.Detector
}

// New creates a Standardizer. A nil detector uses the default adapter set.
func New(d *importer.Detector) *Standardizer {
	if d == nil {
		d = importer.DefaultDetector()
	}
	return &Standardizer{detector: d}
}

// Run processes paths in order. A failing file is recorded in the report and
// the remaining files still run; only output write failures abort.
func (s *Standardizer) Run(ctx context.Context, paths []string, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)

	report := &Report{}
	claimed := make(map[string]string) // lowercased output name -> input path
	for _, path := range paths {
		res := FileResult{Path: path}
		name := filepath.Base(path)

		if importer.Skipped(name) {
			res.Skipped = "generated or config file"
			log.Debug().Str("file", name).Msg("skipping generated file")
			report.Files = append(report.Files, res)
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			res.Skipped = "file not found"
			log.Warn().Str("file", path).Msg("input file not found")
			report.Files = append(report.Files, res)
			continue
		}

		if !opts.SkipIndividual {
			out := outputName(path)
			if prev, ok := claimed[strings.ToLower(out)]; ok {
				res.Err = fmt.Errorf("%s: %w: %s also writes %s", path, ErrOutputConflict, prev, out)
				log.Error().Err(res.Err).Str("file", name).Msg("standardization failed")
				report.Files = append(report.Files, res)
				continue
			}
			claimed[strings.ToLower(out)] = path
		}

		det, err := s.detector.DetectAndParse(path)
		if err != nil {
			res.Err = err
			log.Error().Err(err).Str("file", name).Msg("standardization failed")
			report.Files = append(report.Files, res)
			continue
		}
		res.Adapter = det.Adapter
		res.Source = det.Source
		res.Transactions = len(det.Transactions)

		if !opts.SkipIndividual {
			res.OutputPath = filepath.Join(opts.OutputDir, outputName(path))
			if err := writeTransactions(res.OutputPath, det.Transactions); err != nil {
				return nil, err
			}
		}

		log.Info().Str("file", name).Str("adapter", det.Adapter).Int("transactions", res.Transactions).Msg("standardized")
		report.Merged = append(report.Merged, det.Transactions...)
		report.Files = append(report.Files, res)
	}

	if !opts.SkipMerged && report.Succeeded() > 0 {
		if err := writeTransactions(opts.MergedOutput, report.Merged); err != nil {
			return nil, err
		}
		report.MergedPath = opts.MergedOutput
		log.Info().Str("file", opts.MergedOutput).Int("transactions", len(report.Merged)).Msg("merged")
	}
	return report, nil
}

// outputName is the per-file output for an input path.
func outputName(path string) string {
	return importer.SourceID(path) + "_standardized.csv"
}

func writeTransactions(path string, txns []model.Transaction) error {
	err := txncsv.WriteFile(path, func(w io.Writer) error {
		return txncsv.WriteTransactions(w, txns)
	})
	if err != nil {
		return fmt.Errorf("writing standardized output: %w", err)
	}
	return nil
}
