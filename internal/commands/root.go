package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/spendsight/spendsight/internal/buildinfo"
	"github.com/spendsight/spendsight/internal/config"
	"github.com/spendsight/spendsight/internal/llm"
	"github.com/spendsight/spendsight/internal/logger"
	"github.com/spendsight/spendsight/internal/taxonomy"
)

// modelTimeout bounds a single model call.
const modelTimeout = 2 * time.Minute

// app is the state shared by subcommands once the root has loaded config.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log zerolog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "spendsight",
		Short:   "Standardize, classify and query personal bank transactions",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", config.FileName, "path to spendsight.yaml")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")

	rootCmd.AddCommand(
		newInitCommand(),
		newStandardizeCommand(a),
		newClassifyCommand(a),
		newRecategorizeCommand(a),
		newQueryCommand(a),
		newTaxonomyCommand(a),
	)

	return rootCmd
}

// setup loads .env and config and puts a logger into the command context.
func (a *app) setup(cmd *cobra.Command) error {
	absConfig, err := filepath.Abs(a.configPath)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}
	if err := config.LoadEnv(filepath.Dir(absConfig)); err != nil {
		return err
	}
	cfg, err := config.LoadOrDefault(absConfig)
	if err != nil {
		return err
	}
	a.cfg = cfg

	levelName := cfg.Log.Level
	if a.logLevel != "" {
		levelName = a.logLevel
	}
	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return err
	}
	a.log = logger.New(level)
	cmd.SetContext(logger.WithContext(cmd.Context(), a.log))
	return nil
}

// loadTaxonomy loads the configured taxonomy file, or the built-in default when
// the file does not exist.
func (a *app) loadTaxonomy() (*taxonomy.Taxonomy, error) {
	tax, err := taxonomy.Load(a.cfg.Paths.TaxonomyFile)
	if errors.Is(err, os.ErrNotExist) {
		a.log.Debug().Str("file", a.cfg.Paths.TaxonomyFile).Msg("taxonomy file not found, using defaults")
		return taxonomy.Default(), nil
	}
	return tax, err
}

// generator builds the retrying Gemini client for model.
func (a *app) generator(ctx context.Context, model string, temperature float32) (llm.Generator, error) {
	key, err := config.APIKey()
	if err != nil {
		return nil, err
	}
	g, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:            key,
		Model:             model,
		Temperature:       temperature,
		RequestsPerMinute: a.cfg.Classification.RequestsPerMinute,
		Timeout:           modelTimeout,
	})
	if err != nil {
		return nil, err
	}
	return llm.WithRetry(g, llm.RetryPolicy{
		MaxRetries:      a.cfg.Classification.MaxRetries,
		InitialInterval: a.cfg.Classification.InitialBackoff,
		MaxInterval:     a.cfg.Classification.MaxBackoff,
	}), nil
}
