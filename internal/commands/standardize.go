package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spendsight/spendsight/internal/importer"
	"github.com/spendsight/spendsight/internal/runlog"
	"github.com/spendsight/spendsight/internal/standardize"
)

func newStandardizeCommand(a *app) *cobra.Command {
	var opts standardize.Options

	cmd := &cobra.Command{
		Use:   "standardize [files...]",
		Short: "Convert bank CSV exports to the standard schema",
		Long: "Detects the bank format of each CSV and writes <name>_standardized.csv per file\n" +
			"plus one merged file. With no arguments, every CSV in the raw directory is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("output-dir") {
				opts.OutputDir = a.cfg.Paths.StandardizedDir
			}
			if !cmd.Flags().Changed("merged-output") {
				opts.MergedOutput = a.cfg.Paths.MergedFile
			}
			return runStandardize(cmd, a, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "directory for per-file outputs (default from config)")
	cmd.Flags().StringVar(&opts.MergedOutput, "merged-output", "", "merged output file (default from config)")
	cmd.Flags().BoolVar(&opts.SkipMerged, "skip-merged", false, "do not write the merged file")
	cmd.Flags().BoolVar(&opts.SkipIndividual, "skip-individual", false, "do not write per-file outputs")

	return cmd
}

func runStandardize(cmd *cobra.Command, a *app, paths []string, opts standardize.Options) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if err := opts.Validate(); err != nil {
		return err
	}

	if len(paths) == 0 {
		files, err := importer.Scan(a.cfg.Paths.RawDir)
		if err != nil {
			return err
		}
		for _, f := range files {
			paths = append(paths, f.Path)
		}
		if len(paths) == 0 {
			return fmt.Errorf("no CSV files found in %s", a.cfg.Paths.RawDir)
		}
	}

	run := runlog.NewRun(a.cfg.Paths.LogDir, "standardize")
	report, err := standardize.New(nil).Run(ctx, paths, opts)
	if err != nil {
		return err
	}

	for _, f := range report.Files {
		name := filepath.Base(f.Path)
		var rerr error
		switch {
		case f.Skipped != "":
			fmt.Fprintf(out, "  skipped  %s (%s)\n", name, f.Skipped)
		case f.Err != nil:
			fmt.Fprintf(out, "  failed   %s: %v\n", name, describeImportError(f.Err))
			rerr = run.Record("failed", fmt.Sprintf("%s: %v", name, f.Err))
		default:
			fmt.Fprintf(out, "  %-8s %s: %d transactions\n", f.Adapter, name, f.Transactions)
			rerr = run.Record("standardized", fmt.Sprintf("%s adapter=%s transactions=%d", name, f.Adapter, f.Transactions))
		}
		if rerr != nil {
			a.log.Warn().Err(rerr).Msg("failed to write run log")
		}
	}

	if report.Succeeded() == 0 {
		return errors.New("no files were standardized")
	}

	printStandardizeSummary(out, report)
	if report.MergedPath != "" {
		if err := run.Record("merged", fmt.Sprintf("%s transactions=%d", report.MergedPath, len(report.Merged))); err != nil {
			a.log.Warn().Err(err).Msg("failed to write run log")
		}
	}
	return nil
}

func describeImportError(err error) string {
	var unrec *importer.UnrecognizedFormatError
	if errors.As(err, &unrec) {
		return fmt.Sprintf("%v (supported: %v)", err, importer.DefaultDetector().Formats())
	}
	return err.Error()
}

func printStandardizeSummary(out io.Writer, report *standardize.Report) {
	fmt.Fprintf(out, "\nStandardized %d of %d files, %d transactions\n", report.Succeeded(), len(report.Files), len(report.Merged))
	if first, last, ok := report.DateRange(); ok {
		fmt.Fprintf(out, "Date range: %s to %s\n", first.Format("2006-01-02"), last.Format("2006-01-02"))
	}
	if report.MergedPath != "" {
		fmt.Fprintf(out, "Merged output: %s\n", report.MergedPath)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tTRANSACTIONS")
	for _, sc := range report.BySource() {
		fmt.Fprintf(tw, "%s\t%d\n", sc.Source, sc.Count)
	}
	tw.Flush()
}
