package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"apisurface/internal/config"
	"apisurface/internal/extractor"
	"apisurface/internal/pipeline"
	"apisurface/internal/storage"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:               "apisurface",
		Short:             "Track the public API surface of .NET libraries",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	configPath string
	dbPath     string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

// errOutOfDate makes check exit non-zero without extra noise.
var errOutOfDate = errors.New("public API files are out of date")

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the surface history database (SQLite)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(shipCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("db") {
		cfg.History.DB = dbPath
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func newSource() (extractor.Source, error) {
	return extractor.New(cfg.Extractor.Kind, extractor.Options{
		Nullable: cfg.Project.Nullable,
		Sources:  cfg.Project.Sources,
		Logger:   logger,
	})
}

func newGenerate(dryRun bool) (*pipeline.Generate, error) {
	src, err := newSource()
	if err != nil {
		return nil, err
	}
	return &pipeline.Generate{
		Files:       []string{cfg.Files.Shipped, cfg.Files.Unshipped},
		Target:      cfg.Target(),
		SearchPaths: cfg.Project.SearchPaths,
		Source:      src,
		DryRun:      dryRun,
		Logger:      logger,
	}, nil
}

func openStore() (*storage.SQLiteStore, error) {
	store, err := storage.NewSQLiteStore(cfg.History.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// libraryName is the configured project name, or the project directory name.
func libraryName(flag string) string {
	if flag != "" {
		return flag
	}
	if cfg.Project.Name != "" {
		return cfg.Project.Name
	}
	abs, err := filepath.Abs(cfg.Project.Root)
	if err != nil {
		return cfg.Project.Root
	}
	return strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
}
