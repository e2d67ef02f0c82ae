package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spendsight/spendsight/internal/config"
	"github.com/spendsight/spendsight/internal/overrides"
	"github.com/spendsight/spendsight/internal/query"
	"github.com/spendsight/spendsight/internal/taxonomy"
	"github.com/spendsight/spendsight/internal/txncsv"
)

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new spendsight project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.OutOrStdout(), absDir)
		},
	}

	return cmd
}

func runInit(out io.Writer, dir string) error {
	configPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists; refusing to overwrite", configPath)
	}

	cfg := config.Default()

	// Create directory structure.
	for _, d := range []string{cfg.Paths.RawDir, cfg.Paths.StandardizedDir, cfg.Paths.ClassifiedDir, cfg.Paths.LogDir} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if err := taxonomy.Default().Save(filepath.Join(dir, cfg.Paths.TaxonomyFile)); err != nil {
		return fmt.Errorf("writing taxonomy: %w", err)
	}

	// Write an empty overrides file to fill in by hand.
	err := txncsv.WriteFile(filepath.Join(dir, cfg.Paths.OverridesFile), overrides.WriteTemplate)
	if err != nil {
		return fmt.Errorf("writing overrides template: %w", err)
	}

	if err := query.WriteDefaultExamples(filepath.Join(dir, cfg.Paths.ExamplesFile)); err != nil {
		return err
	}

	gitignore := ".env\ndata/\nlogs/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	fmt.Fprintf(out, "Initialized spendsight project at %s\n", dir)
	fmt.Fprintf(out, "Put bank CSV exports in %s and set %s in .env\n", filepath.Join(dir, cfg.Paths.RawDir), config.EnvAPIKey)
	return nil
}
