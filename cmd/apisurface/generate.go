package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"apisurface/internal/analysis"
	"apisurface/internal/crawler"
	"apisurface/internal/git"
	"apisurface/internal/pipeline"
	"apisurface/internal/surface"
	"apisurface/internal/textdiff"

	"github.com/spf13/cobra"
)

var (
	generateDryRun  bool
	generateRecord  string
	generateLibrary string
	diffBaseRef     string
	reportPath      string
	sinceRef        string
)

func init() {
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "Show the changes without writing the unshipped file")
	generateCmd.Flags().StringVar(&generateRecord, "record", "", "Record the current surface under this version in the history database")
	generateCmd.Flags().StringVar(&generateLibrary, "library", "", "Library name used with --record (defaults to project.name)")

	generateCmd.Flags().StringVar(&reportPath, "report", "", "Write a JSON run report to this path")
	checkCmd.Flags().StringVar(&reportPath, "report", "", "Write a JSON run report to this path")
	generateCmd.Flags().StringVar(&sinceRef, "since", "", "Skip when no extractor input changed since this git ref")
	checkCmd.Flags().StringVar(&sinceRef, "since", "", "Skip when no extractor input changed since this git ref")

	diffCmd.Flags().StringVar(&diffBaseRef, "base-ref", "", "Git ref to read the shipped file from instead of the work tree")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Regenerate PublicAPI.Unshipped.txt from the current sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if skip, err := unchangedSince(cmd, sinceRef); err != nil || skip {
			return err
		}
		g, err := newGenerate(generateDryRun)
		if err != nil {
			return err
		}
		defer saveRunReport(g, "generate")()
		if generateRecord != "" {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			g.History = store
			g.Library = libraryName(generateLibrary)
			g.Version = generateRecord
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "🔍 Extracting public API from %s\n", g.Target)
		res, err := g.Run(cmd.Context())
		if err != nil {
			return err
		}

		printReport(out, res.Report)
		switch {
		case res.Written:
			fmt.Fprintf(out, "✅ Wrote %s (%d entries)\n", res.UnshippedPath, res.Diff.Count())
		case res.Changed:
			if err := printFileDiff(out, res.UnshippedPath, res.Previous, res.Diff); err != nil {
				return err
			}
		default:
			fmt.Fprintln(out, "✅ Unshipped file is up to date.")
		}
		if g.Version != "" && !generateDryRun {
			fmt.Fprintf(out, "💾 Recorded %s@%s\n", g.Library, g.Version)
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fail when PublicAPI.Unshipped.txt does not match the current sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if skip, err := unchangedSince(cmd, sinceRef); err != nil || skip {
			return err
		}
		g, err := newGenerate(false)
		if err != nil {
			return err
		}
		defer saveRunReport(g, "check")()
		res, err := pipeline.Check(cmd.Context(), *g)
		if err != nil {
			return err
		}
		if !res.Changed {
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Public API files are up to date.")
			return nil
		}
		if err := printFileDiff(cmd.OutOrStdout(), res.UnshippedPath, res.Previous, res.Diff); err != nil {
			return err
		}
		return errOutOfDate
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Print the unshipped delta against the shipped baseline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		shipped, err := loadBaseline(cmd, diffBaseRef)
		if err != nil {
			return err
		}

		src, err := newSource()
		if err != nil {
			return err
		}
		ext, err := src.Extract(cmd.Context(), cfg.Target(), cfg.Project.SearchPaths)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", cfg.Target(), err)
		}
		current := surface.FromExtraction(ext.Nullable, ext.Oblivious)

		diff := current.GenerateUnshippedDiff(shipped)
		out := cmd.OutOrStdout()
		if _, err := diff.WriteTo(out); err != nil {
			return err
		}
		printReport(cmd.ErrOrStderr(), analysis.Summarize(diff))
		return nil
	},
}

// unchangedSince reports whether no extractor input under the project root
// differs from ref. It prints a note when it does not.
func unchangedSince(cmd *cobra.Command, ref string) (bool, error) {
	if ref == "" {
		return false, nil
	}
	root, err := filepath.Abs(cfg.Project.Root)
	if err != nil {
		return false, err
	}
	files, err := git.Open(root).ChangedFiles(cmd.Context(), ref)
	if err != nil {
		return false, err
	}

	inputs := map[string]bool{}
	for _, p := range []string{cfg.Target(), cfg.Files.Shipped, cfg.Files.Unshipped} {
		if abs, err := filepath.Abs(p); err == nil {
			inputs[abs] = true
		}
	}
	c := crawler.NewCrawler()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		source := c.IsSource(path) || strings.EqualFold(filepath.Ext(path), ".csproj")
		if inputs[path] || source && !c.IsIgnoredPath(root, path) {
			logger.Debug("input changed", "ref", ref, "path", f)
			return false, nil
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ No source changes since %s.\n", ref)
	return true, nil
}

// saveRunReport attaches a run report to g when --report is set and writes
// it once the command returns, failed or not.
func saveRunReport(g *pipeline.Generate, mode string) func() {
	if reportPath == "" {
		return func() {}
	}
	g.Trace = pipeline.NewRunReport(mode, g.Target)
	return func() {
		if err := g.Trace.Save(reportPath); err != nil {
			logger.Warn("failed to write run report", "path", reportPath, "error", err)
		}
	}
}

// loadBaseline reads the shipped file from ref, or from disk when ref is
// empty. A missing file is an empty baseline.
func loadBaseline(cmd *cobra.Command, ref string) (*surface.Surface, error) {
	if ref == "" {
		s, err := surface.LoadShipped(cfg.Files.Shipped)
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("shipped file not found, using empty baseline", "path", cfg.Files.Shipped)
			return surface.New(), nil
		}
		return s, err
	}

	data, err := git.Open(".").ShowFile(cmd.Context(), ref, cfg.Files.Shipped)
	if errors.Is(err, git.ErrPathNotFound) {
		logger.Info("shipped file not found at ref, using empty baseline", "ref", ref, "path", cfg.Files.Shipped)
		return surface.New(), nil
	}
	if err != nil {
		return nil, err
	}
	return surface.Parse(bytes.NewReader(data), false)
}

func printFileDiff(w io.Writer, path string, previous, next *surface.Surface) error {
	from := "a/" + path
	if previous == nil {
		from = "/dev/null"
	}
	patch, err := textdiff.Surfaces(from, "b/"+path, previous, next)
	if err != nil {
		return err
	}
	fmt.Fprint(w, patch)
	return nil
}

func printReport(w io.Writer, r *analysis.ChangeReport) {
	if r.Empty() {
		fmt.Fprintln(w, "📭 No public API changes against the shipped baseline.")
		return
	}
	fmt.Fprintf(w, "📊 %d added, %d removed, %d nullability changes\n", len(r.Added), len(r.Removed), len(r.Nullable))
	for _, line := range kindCounts("+", r.Additions) {
		fmt.Fprintln(w, "   "+line)
	}
	for _, line := range kindCounts("-", r.Removals) {
		fmt.Fprintln(w, "   "+line)
	}
	if r.Breaking() {
		fmt.Fprintln(w, "⚠️  Shipped APIs were removed:")
		for _, e := range r.Removed {
			fmt.Fprintln(w, "   "+e)
		}
	}
}

var kindOrder = []analysis.Kind{
	analysis.KindType,
	analysis.KindConstructor,
	analysis.KindMethod,
	analysis.KindOperator,
	analysis.KindAccessor,
	analysis.KindField,
	analysis.KindEnumMember,
}

func kindCounts(sign string, counts map[analysis.Kind]int) []string {
	var lines []string
	for _, k := range kindOrder {
		if n := counts[k]; n > 0 {
			lines = append(lines, fmt.Sprintf("%s%d %s", sign, n, k))
		}
	}
	return lines
}
