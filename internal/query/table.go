// Package query answers natural-language questions about classified
// transactions by generating SQL, gating it through sqlguard, and running it
// against an in-memory SQLite copy of the classified table.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/spendsight/spendsight/internal/classify"
	"github.com/spendsight/spendsight/internal/model"
	"github.com/spendsight/spendsight/internal/taxonomy"
	"github.com/spendsight/spendsight/internal/txncsv"
)

// DefaultTable is the table name questions are answered against.
const DefaultTable = "transactions"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Column order matches txncsv.ClassifiedHeader.
const columnsDDL = `(
	date TEXT NOT NULL,
	description TEXT NOT NULL,
	amount REAL NOT NULL,
	type TEXT,
	category TEXT,
	source TEXT,
	month TEXT NOT NULL,
	year INTEGER NOT NULL,
	ai_category TEXT,
	ai_subcategory TEXT,
	confidence TEXT,
	reasoning TEXT
)`

// Table is a read-only in-memory SQLite table of classified transactions.
type Table struct {
	db   *sql.DB
	name string
	rows int
}

// OpenTable loads txns into a fresh in-memory database and then switches the
// connection to query_only, so nothing can write to it afterwards.
func OpenTable(ctx context.Context, txns []model.ClassifiedTransaction, name string) (*Table, error) {
	if name == "" {
		name = DefaultTable
	}
	if !identRe.MatchString(name) {
		return nil, fmt.Errorf("invalid table name %q", name)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Every connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	t := &Table{db: db, name: name, rows: len(txns)}
	if err := t.load(ctx, txns); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting query_only: %w", err)
	}
	return t, nil
}

func (t *Table) load(ctx context.Context, txns []model.ClassifiedTransaction) error {
	if _, err := t.db.ExecContext(ctx, t.DDL()); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", t.name))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, ct := range txns {
		_, err := stmt.ExecContext(ctx,
			ct.Date.Format("2006-01-02"),
			ct.Description,
			ct.Amount.InexactFloat64(),
			ct.Type,
			ct.Category,
			ct.Source,
			ct.Month(),
			ct.Date.Year(),
			ct.AI.Category,
			ct.AI.Subcategory,
			string(ct.AI.Confidence),
			ct.AI.Reasoning,
		)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}
	return nil
}

// LoadTable reads a classified CSV and opens it as a Table.
func LoadTable(ctx context.Context, path, name string) (*Table, error) {
	txns, err := txncsv.ReadClassifiedFile(path)
	if err != nil {
		return nil, err
	}
	return OpenTable(ctx, txns, name)
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Len returns the number of loaded rows.
func (t *Table) Len() int { return t.rows }

// DDL returns the CREATE TABLE statement for the table.
func (t *Table) DDL() string {
	return "CREATE TABLE " + t.name + " " + columnsDDL
}

// Close releases the database.
func (t *Table) Close() error { return t.db.Close() }

// SchemaDescription describes the table to the model: its DDL, then per
// field the type, format, meaning and valid values (subcategories listed
// per category), then table-wide rules. It never includes row values.
func (t *Table) SchemaDescription(tax *taxonomy.Taxonomy) string {
	var b strings.Builder
	b.WriteString("SQLite table:\n")
	b.WriteString(t.DDL())
	fmt.Fprintf(&b, "\n\nTable: %s\n\n## Fields\n", t.name)
	for _, f := range Fields(tax) {
		fmt.Fprintf(&b, "\n### %s\n- Type: %s\n", f.Name, f.Type)
		if f.Format != "" {
			fmt.Fprintf(&b, "- Format: %s\n", f.Format)
		}
		fmt.Fprintf(&b, "- Description: %s\n", f.Description)
		if len(f.ValidValues) > 0 {
			fmt.Fprintf(&b, "- Valid values: %s\n", strings.Join(f.ValidValues, ", "))
		}
		if f.Name == "ai_subcategory" && tax != nil {
			b.WriteString("- Valid values by category:\n")
			for _, c := range tax.Categories() {
				if len(c.Subcategories) > 0 {
					fmt.Fprintf(&b, "  - %s: %s\n", c.Name, strings.Join(c.Subcategories, ", "))
				}
			}
		}
		for _, tip := range f.Tips {
			fmt.Fprintf(&b, "- Tip: %s\n", tip)
		}
	}
	b.WriteString("\n## Important Business Rules\n")
	for _, r := range businessRules(tax) {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	return b.String()
}

// ResolveDataPath picks the classified table to load: override when set,
// otherwise the newest classified table in dir.
func ResolveDataPath(override, dir string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("data path %s: %w", override, err)
		}
		return override, nil
	}
	path, err := txncsv.Latest(dir, classify.ClassifiedPrefix)
	if errors.Is(err, txncsv.ErrNoArtifact) || errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("no classified data in %s; run classify first: %w", dir, err)
	}
	return path, err
}
