package importer

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spendsight/spendsight/internal/model"
)

// Adapter recognizes one bank's CSV shape and converts it to the shared schema.
type Adapter interface {
	// Format returns the adapter name, e.g. "chase_credit".
	Format() string
	// CanHandle reports whether the sampled file looks like this bank's export.
	// It must not panic or error on malformed input.
	CanHandle(s Sample) bool
	// Parse reads the full export and stamps every row with source.
	Parse(r io.Reader, source string) ([]model.Transaction, error)
}

// sampleLines is how many leading raw lines CanHandle gets to look at.
const sampleLines = 10

// Sample is the cheap preview of a file that CanHandle inspects.
type Sample struct {
	Path   string
	Lines  []string // first raw lines, BOM stripped
	Header []string // first line parsed as CSV, cells trimmed; nil if unparseable
}

// HasColumns reports whether the sample header contains every column.
func (s Sample) HasColumns(cols ...string) bool {
	have := make(map[string]bool, len(s.Header))
	for _, h := range s.Header {
		have[h] = true
	}
	for _, c := range cols {
		if !have[c] {
			return false
		}
	}
	return true
}

// Contains reports whether any of the first n sampled lines contains substr.
func (s Sample) Contains(n int, substr string) bool {
	for i, line := range s.Lines {
		if i >= n {
			break
		}
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// NewSample builds a Sample from the head of r.
func NewSample(path string, r io.Reader) Sample {
	s := Sample{Path: path}
	sc := bufio.NewScanner(r)
	for len(s.Lines) < sampleLines && sc.Scan() {
		line := sc.Text()
		if len(s.Lines) == 0 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		s.Lines = append(s.Lines, line)
	}
	if len(s.Lines) > 0 {
		cr := csv.NewReader(strings.NewReader(s.Lines[0]))
		cr.LazyQuotes = true
		if rec, err := cr.Read(); err == nil {
			s.Header = cleanHeader(rec)
		}
	}
	return s
}

// ReadSample opens path and samples its first lines.
func ReadSample(path string) (Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sample{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return NewSample(path, f), nil
}

// UnrecognizedFormatError means no adapter claimed the file.
type UnrecognizedFormatError struct {
	Path string
}

func (e *UnrecognizedFormatError) Error() string {
	return fmt.Sprintf("unrecognized bank format: %s", e.Path)
}

// FormatError means an adapter claimed the file but could not parse it.
type FormatError struct {
	Path    string
	Adapter string
	Err     error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s format: %v", e.Path, e.Adapter, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Detector tries adapters in a fixed priority order.
type Detector struct {
	adapters []Adapter
}

// Detection is the result of a successful DetectAndParse.
type Detection struct {
	Adapter      string
	Source       string
	Transactions []model.Transaction
}

// NewDetector creates a detector. Earlier adapters win ties, so formats with
// metadata headers or summary rows must come before generic column matches.
func NewDetector(adapters ...Adapter) *Detector {
	return &Detector{adapters: adapters}
}

// DefaultDetector returns a detector with all built-in adapters in priority order.
func DefaultDetector() *Detector {
	return NewDetector(
		&CitiAdapter{},
		&BofAAdapter{},
		&ChaseCreditAdapter{},
		&ChaseCheckingAdapter{},
		&SFCUAdapter{},
	)
}

// Formats lists adapter names in priority order.
func (d *Detector) Formats() []string {
	names := make([]string, len(d.adapters))
	for i, a := range d.adapters {
		names[i] = a.Format()
	}
	return names
}

// Detect returns the first adapter whose CanHandle accepts the sample.
func (d *Detector) Detect(s Sample) (Adapter, error) {
	for _, a := range d.adapters {
		if a.CanHandle(s) {
			return a, nil
		}
	}
	return nil, &UnrecognizedFormatError{Path: s.Path}
}

// DetectAndParse samples path, picks an adapter and parses the whole file.
func (d *Detector) DetectAndParse(path string) (*Detection, error) {
	sample, err := ReadSample(path)
	if err != nil {
		return nil, err
	}

	adapter, err := d.Detect(sample)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	source := SourceID(path)
	txns, err := adapter.Parse(f, source)
	if err != nil {
		return nil, &FormatError{Path: path, Adapter: adapter.Format(), Err: err}
	}

	return &Detection{
		Adapter:      adapter.Format(),
		Source:       source,
		Transactions: txns,
	}, nil
}

// SourceID derives the source identifier from a file name: "Chase6559.CSV" -> "Chase6559".
func SourceID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FileInfo describes a CSV file in the input directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// skipPatterns mark generated or config files that share the input directory.
var skipPatterns = []string{
	"category_overrides",
	"transactions_",
	"reclassified_",
	"classified_",
	"merchant_categories_",
	"_standardized",
}

// Skipped reports whether name is a generated/config file rather than a bank export.
func Skipped(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range skipPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Scan returns bank CSV files in dir in name order. A missing dir yields no files.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") || Skipped(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}
