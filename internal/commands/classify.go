package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/spendsight/spendsight/internal/classify"
	"github.com/spendsight/spendsight/internal/model"
	"github.com/spendsight/spendsight/internal/overrides"
	"github.com/spendsight/spendsight/internal/runlog"
	"github.com/spendsight/spendsight/internal/txncsv"
)

const classifyTemperature = 0.1

func newClassifyCommand(a *app) *cobra.Command {
	var input, outputDir string
	var batchSize int

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify standardized transactions by merchant with the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				input = a.cfg.Paths.MergedFile
			}
			if outputDir == "" {
				outputDir = a.cfg.Paths.ClassifiedDir
			}
			if batchSize == 0 {
				batchSize = a.cfg.Classification.BatchSize
			}
			if batchSize < 0 {
				return fmt.Errorf("--batch-size must be positive, got %d", batchSize)
			}
			return runClassify(cmd, a, input, outputDir, batchSize)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "standardized CSV to classify (default: merged file)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for classified outputs (default from config)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "merchants per model call (default from config)")

	return cmd
}

func runClassify(cmd *cobra.Command, a *app, input, outputDir string, batchSize int) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	txns, err := txncsv.ReadTransactionsFile(input)
	if err != nil {
		return fmt.Errorf("%w (run standardize first)", err)
	}
	tax, err := a.loadTaxonomy()
	if err != nil {
		return err
	}
	rules, err := overrides.Load(a.cfg.Paths.OverridesFile, tax)
	if err != nil {
		return err
	}
	gen, err := a.generator(ctx, a.cfg.Classification.Model, classifyTemperature)
	if err != nil {
		return err
	}

	run := runlog.NewRun(a.cfg.Paths.LogDir, "classify")
	a.log.Info().Str("run_id", run.ID()).Str("file", input).Msg("classification started")

	res, err := classify.NewBatcher(classify.NewLLMClassifier(gen, tax), tax, batchSize).Run(ctx, txns)
	if err != nil {
		return err
	}

	for _, b := range res.Batches {
		details := fmt.Sprintf("batch=%d merchants=%d invalid=%d", b.Batch, b.Merchants, b.Invalid)
		action := "batch_classified"
		if b.Err != nil {
			action = "batch_failed"
			details += " error=" + b.Err.Error()
		}
		if err := run.Record(action, details); err != nil {
			a.log.Warn().Err(err).Msg("failed to write run log")
		}
	}

	var stats []overrides.Stat
	if len(rules) > 0 {
		res.Transactions, stats = overrides.Apply(res.Transactions, rules)
		res.Merchants = overrides.ApplyToMerchants(res.Merchants, rules)
	}

	outputs, err := classify.WriteOutputs(outputDir, time.Now(), res)
	if err != nil {
		return err
	}
	if err := run.Record("classified", fmt.Sprintf("%s transactions=%d merchants=%d calls=%d", outputs.ClassifiedPath, len(res.Transactions), len(res.Merchants), res.Calls)); err != nil {
		a.log.Warn().Err(err).Msg("failed to write run log")
	}

	fmt.Fprintf(out, "Classified %d transactions (%d merchants) in %d model calls\n", len(res.Transactions), len(res.Merchants), res.Calls)
	for _, be := range res.BatchErrors {
		fmt.Fprintf(out, "  batch failed: %v\n", be)
	}
	for _, ve := range res.ValidationErrors {
		fmt.Fprintf(out, "  invalid: %v\n", ve)
	}
	printOverrideStats(out, stats)
	fmt.Fprintf(out, "Classified table: %s\nMerchant mapping: %s\n\n", outputs.ClassifiedPath, outputs.MerchantPath)
	printCategorySummary(out, res.Transactions)
	return nil
}

func newRecategorizeCommand(a *app) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "recategorize",
		Short: "Apply category_overrides.csv to a classified table",
		Long: "Reads a classified table (default: the newest), applies the manual overrides and\n" +
			"writes the result as a new classified table. The input file is left untouched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecategorize(cmd, a, input)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "classified CSV to patch (default: newest in the classified directory)")

	return cmd
}

func runRecategorize(cmd *cobra.Command, a *app, input string) error {
	out := cmd.OutOrStdout()

	if input == "" {
		latest, err := txncsv.Latest(a.cfg.Paths.ClassifiedDir, classify.ClassifiedPrefix)
		if err != nil {
			return fmt.Errorf("%w (run classify first)", err)
		}
		input = latest
	}

	tax, err := a.loadTaxonomy()
	if err != nil {
		return err
	}
	rules, err := overrides.Load(a.cfg.Paths.OverridesFile, tax)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Fprintf(out, "No overrides in %s; nothing to do\n", a.cfg.Paths.OverridesFile)
		return nil
	}

	txns, err := txncsv.ReadClassifiedFile(input)
	if err != nil {
		return err
	}
	patched, stats := overrides.Apply(txns, rules)

	outPath := filepath.Join(filepath.Dir(input), classify.ClassifiedPrefix+time.Now().Format(txncsv.TimestampFormat)+".csv")
	if outPath == input {
		return fmt.Errorf("output %s would overwrite the input; retry in a second", outPath)
	}
	err = txncsv.WriteFile(outPath, func(w io.Writer) error {
		return txncsv.WriteClassified(w, patched)
	})
	if err != nil {
		return err
	}

	changed := 0
	for _, s := range stats {
		changed += s.Matches
	}
	run := runlog.NewRun(a.cfg.Paths.LogDir, "recategorize")
	if err := run.Record("recategorized", fmt.Sprintf("%s -> %s rules=%d matches=%d", filepath.Base(input), outPath, len(rules), changed)); err != nil {
		a.log.Warn().Err(err).Msg("failed to write run log")
	}

	printOverrideStats(out, stats)
	fmt.Fprintf(out, "Wrote %s\n\n", outPath)
	printCategorySummary(out, patched)
	return nil
}

func printOverrideStats(out io.Writer, stats []overrides.Stat) {
	if len(stats) == 0 {
		return
	}
	fmt.Fprintln(out, "Overrides:")
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, s := range stats {
		target := s.Rule.Category
		if s.Rule.Subcategory != "" {
			target += " > " + s.Rule.Subcategory
		}
		fmt.Fprintf(tw, "  %s\t%s\t%d rows\n", s.Rule.Pattern, target, s.Matches)
	}
	tw.Flush()
}

// printCategorySummary prints transaction counts and totals per category,
// largest count first.
func printCategorySummary(out io.Writer, txns []model.ClassifiedTransaction) {
	type agg struct {
		name  string
		count int
		total decimal.Decimal
	}
	byCat := map[string]*agg{}
	for _, t := range txns {
		a, ok := byCat[t.AI.Category]
		if !ok {
			a = &agg{name: t.AI.Category}
			byCat[t.AI.Category] = a
		}
		a.count++
		a.total = a.total.Add(t.Amount)
	}
	aggs := make([]*agg, 0, len(byCat))
	for _, a := range byCat {
		aggs = append(aggs, a)
	}
	sort.Slice(aggs, func(i, j int) bool {
		if aggs[i].count != aggs[j].count {
			return aggs[i].count > aggs[j].count
		}
		return aggs[i].name < aggs[j].name
	})

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tTRANSACTIONS\tTOTAL")
	for _, a := range aggs {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", a.name, a.count, a.total.StringFixed(2))
	}
	tw.Flush()
}
