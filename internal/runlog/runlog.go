// Package runlog keeps the append-only audit trail of pipeline runs in
// <log_dir>/run-log.csv. Every invocation of a stage is one Run; each thing
// the run does becomes one row stamped with the run's id.
package runlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
)

// FileName is the log file inside the log directory.
const FileName = "run-log.csv"

var header = []string{"timestamp", "run_id", "stage", "action", "details"}

// ErrBadHeader is returned when run-log.csv was not written by this package.
var ErrBadHeader = errors.New("run log header mismatch")

// Entry is one row in the run log.
type Entry struct {
	Timestamp time.Time
	RunID     string
	Stage     string
	Action    string
	Details   string
}

func (e Entry) fields() []string {
	return []string{e.Timestamp.UTC().Format(time.RFC3339), e.RunID, e.Stage, e.Action, e.Details}
}

func entryFromFields(f []string) (Entry, error) {
	ts, err := time.Parse(time.RFC3339, f[0])
	if err != nil {
		return Entry{}, fmt.Errorf("timestamp %q: %w", f[0], err)
	}
	return Entry{Timestamp: ts, RunID: f[1], Stage: f[2], Action: f[3], Details: f[4]}, nil
}

// Run stamps every entry of one pipeline invocation with the same run id.
type Run struct {
	path  string
	id    string
	stage string
	now   func() time.Time
}

// NewRun starts a run for stage, logging into dir. An empty dir disables
// recording.
func NewRun(dir, stage string) *Run {
	r := &Run{id: uuid.NewString(), stage: stage, now: time.Now}
	if dir != "" {
		r.path = filepath.Join(dir, FileName)
	}
	return r
}

// ID returns the run id.
func (r *Run) ID() string { return r.id }

// Record appends one row for this run. The file and its header are created
// on first use.
func (r *Run) Record(action, details string) error {
	if r.path == "" {
		return nil
	}
	e := Entry{Timestamp: r.now(), RunID: r.id, Stage: r.stage, Action: action, Details: details}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat run log: %w", err)
	}
	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		_ = cw.Write(header)
	}
	_ = cw.Write(e.fields())
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing run log: %w", err)
	}
	return nil
}

// Read returns all entries from <dir>/run-log.csv, or nil if it does not exist.
func Read(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading run log: %w", err)
	}
	if !slices.Equal(first, header) {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, first)
	}

	var entries []Entry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading run log: %w", err)
		}
		e, err := entryFromFields(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		entries = append(entries, e)
	}
}
