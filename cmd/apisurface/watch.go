package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"apisurface/internal/watch"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerate PublicAPI.Unshipped.txt whenever sources change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, err := newGenerate(false)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		run := func(ctx context.Context) {
			res, err := g.Run(ctx)
			if err != nil {
				logger.Error("generate failed", "error", err)
				return
			}
			if res.Written {
				fmt.Fprintf(out, "✅ Updated %s (%d entries)\n", res.UnshippedPath, res.Diff.Count())
				printReport(out, res.Report)
			}
		}

		opts := watch.Options{Debounce: cfg.Watch.Debounce, Logger: logger}
		roots := slices.Concat([]string{cfg.Project.Root}, cfg.Project.Sources, cfg.Project.SearchPaths)
		if strings.EqualFold(cfg.Extractor.Kind, "dump") {
			dump, err := filepath.Abs(cfg.Target())
			if err != nil {
				return err
			}
			roots = []string{filepath.Dir(dump)}
			opts.Filter = func(path string) bool {
				abs, err := filepath.Abs(path)
				return err == nil && abs == dump
			}
		}

		w, err := watch.New(roots, func(ctx context.Context, paths []string) {
			logger.Info("sources changed", "files", len(paths))
			run(ctx)
		}, opts)
		if err != nil {
			return err
		}

		run(ctx)
		fmt.Fprintln(out, "👀 Watching for changes. Press Ctrl+C to stop.")
		return w.Run(ctx)
	},
}
