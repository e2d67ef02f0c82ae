package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spendsight/spendsight/internal/config"
	"github.com/spendsight/spendsight/internal/llm"
	"github.com/spendsight/spendsight/internal/query"
	"github.com/spendsight/spendsight/internal/runlog"
	"github.com/spendsight/spendsight/internal/sqlguard"
)

func newQueryCommand(a *app) *cobra.Command {
	var rawSQL string
	var showSQL bool

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question about your classified transactions",
		Long: "Turns the question into a read-only SQL query, checks it, and runs it against the\n" +
			"newest classified table (or " + config.EnvDataPath + " when set). Use --sql to run\n" +
			"your own SELECT through the same checks.",
		Example: "  spendsight query \"How much did I spend on dining per month?\"\n" +
			"  spendsight query --sql \"SELECT ai_category, SUM(amount) FROM transactions GROUP BY 1\"",
		Args: func(cmd *cobra.Command, args []string) error {
			if rawSQL != "" && len(args) > 0 {
				return errors.New("pass either a question or --sql, not both")
			}
			if rawSQL == "" && len(args) == 0 {
				return errors.New("a question or --sql is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, a, strings.Join(args, " "), rawSQL, showSQL)
		},
	}

	cmd.Flags().StringVar(&rawSQL, "sql", "", "run this SELECT instead of asking the model")
	cmd.Flags().BoolVar(&showSQL, "show-sql", true, "print the SQL before the results")

	return cmd
}

func runQuery(cmd *cobra.Command, a *app, question, rawSQL string, showSQL bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	path, err := query.ResolveDataPath(os.Getenv(config.EnvDataPath), a.cfg.Paths.ClassifiedDir)
	if err != nil {
		return err
	}
	table, err := query.LoadTable(ctx, path, a.cfg.Query.Table)
	if err != nil {
		return err
	}
	defer table.Close()
	a.log.Debug().Str("file", path).Int("rows", table.Len()).Msg("loaded classified table")

	tax, err := a.loadTaxonomy()
	if err != nil {
		return err
	}

	var gen llm.Generator
	var examples []query.Example
	if rawSQL == "" {
		examples, err = query.LoadExamples(a.cfg.Paths.ExamplesFile)
		if err != nil {
			return err
		}
		gen, err = a.generator(ctx, a.cfg.Query.Model, 0)
		if err != nil {
			return err
		}
	}
	engine := query.NewEngine(gen, table, tax, examples, a.cfg.Query.MaxRows)
	run := runlog.NewRun(a.cfg.Paths.LogDir, "query")

	var res *query.Result
	if rawSQL != "" {
		res, err = engine.Execute(ctx, rawSQL)
	} else {
		res, err = engine.Answer(ctx, question)
	}
	if err != nil {
		action := "failed"
		var serr *sqlguard.SecurityError
		if errors.As(err, &serr) {
			action = "rejected"
		}
		if rerr := run.Record(action, err.Error()); rerr != nil {
			a.log.Warn().Err(rerr).Msg("failed to write run log")
		}
		return err
	}

	details := res.SQL
	if question != "" {
		details = question + " => " + res.SQL
	}
	if err := run.Record("answered", fmt.Sprintf("%s rows=%d", details, len(res.Rows))); err != nil {
		a.log.Warn().Err(err).Msg("failed to write run log")
	}

	if showSQL {
		fmt.Fprintf(out, "SQL: %s\n\n", res.SQL)
	}
	printResult(out, res)
	return nil
}

func printResult(out io.Writer, res *query.Result) {
	if len(res.Rows) == 0 {
		fmt.Fprintln(out, "(no rows)")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = query.FormatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
	fmt.Fprintf(out, "\n(%d rows)\n", len(res.Rows))
}
