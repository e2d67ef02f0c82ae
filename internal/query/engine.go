package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/patrickmn/go-cache"

	"github.com/spendsight/spendsight/internal/llm"
	"github.com/spendsight/spendsight/internal/logger"
	"github.com/spendsight/spendsight/internal/sqlguard"
	"github.com/spendsight/spendsight/internal/taxonomy"
)

// DefaultMaxRows is the LIMIT the model is asked to apply unless the
// question wants more.
const DefaultMaxRows = 10

const systemPrompt = `You translate questions about personal bank transactions into SQL.
Reply with exactly one SQLite SELECT statement (a WITH ... SELECT is fine) and nothing else.
Never modify data.`

// Result is the outcome of one executed query.
type Result struct {
	SQL     string
	Columns []string
	Rows    [][]any
}

// Engine turns questions into gated SQL and runs it.
type Engine struct {
	gen      llm.Generator
	table    *Table
	schema   string
	examples string
	maxRows  int
	sqlMemo  *cache.Cache
}

// NewEngine creates an Engine over table. The first PromptExamples of
// examples are shown to the model with every question. A maxRows below 1
// uses DefaultMaxRows.
func NewEngine(gen llm.Generator, table *Table, tax *taxonomy.Taxonomy, examples []Example, maxRows int) *Engine {
	if maxRows < 1 {
		maxRows = DefaultMaxRows
	}
	return &Engine{
		gen:      gen,
		table:    table,
		schema:   table.SchemaDescription(tax),
		examples: FormatExamples(examples, PromptExamples),
		maxRows:  maxRows,
		sqlMemo:  cache.New(cache.NoExpiration, 0),
	}
}

// Schema returns the schema description sent with every question.
func (e *Engine) Schema() string { return e.schema }

// BuildPrompt renders the model prompt for question. Only the question,
// schema metadata and the fixed examples go into it.
func (e *Engine) BuildPrompt(question string) string {
	var b strings.Builder
	b.WriteString(e.schema)
	b.WriteString("\nRules:\n")
	fmt.Fprintf(&b, "- Query only the %s table.\n", e.table.Name())
	fmt.Fprintf(&b, "- Unless the question asks for more, LIMIT the result to %d rows.\n", e.maxRows)
	b.WriteString("- Use readable column aliases.\n")
	if e.examples != "" {
		b.WriteString("\n")
		b.WriteString(e.examples)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n")
	return b.String()
}

// GenerateSQL asks the model for SQL answering question and gates it. SQL
// that passes is memoized per question for the life of the engine.
func (e *Engine) GenerateSQL(ctx context.Context, question string) (string, error) {
	key := strings.Join(strings.Fields(question), " ")
	if key == "" {
		return "", errors.New("empty question")
	}
	if v, ok := e.sqlMemo.Get(key); ok {
		logger.FromContext(ctx).Debug().Str("question", key).Msg("sql cache hit")
		return v.(string), nil
	}

	raw, err := e.gen.Generate(ctx, llm.Request{System: systemPrompt, Prompt: e.BuildPrompt(key)})
	if err != nil {
		return "", fmt.Errorf("generating sql: %w", err)
	}
	stmt := llm.CleanSQL(raw)
	if err := sqlguard.Validate(stmt); err != nil {
		return "", err
	}
	e.sqlMemo.Set(key, stmt, cache.NoExpiration)
	return stmt, nil
}

// Answer generates SQL for question and executes it.
func (e *Engine) Answer(ctx context.Context, question string) (*Result, error) {
	stmt, err := e.GenerateSQL(ctx, question)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, stmt)
}

// Execute gates stmt and runs it. Rejected statements never reach the
// database.
func (e *Engine) Execute(ctx context.Context, stmt string) (*Result, error) {
	if err := sqlguard.Validate(stmt); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug().Str("sql", stmt).Msg("executing")

	rows, err := e.table.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	res := &Result{SQL: stmt, Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return res, nil
}

// FormatValue renders a result cell for display.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
