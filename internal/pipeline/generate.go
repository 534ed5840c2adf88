package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"apisurface/internal/analysis"
	"apisurface/internal/extractor"
	"apisurface/internal/storage"
	"apisurface/internal/surface"
)

const (
	ShippedFileName   = "PublicAPI.Shipped.txt"
	UnshippedFileName = "PublicAPI.Unshipped.txt"
)

var (
	// ErrNoFiles is returned when Generate is given no candidate files.
	ErrNoFiles = errors.New("no files specified")

	// ErrNoPublicAPIFiles is returned when none of the files is a PublicAPI file.
	ErrNoPublicAPIFiles = errors.New("no PublicAPI.Shipped.txt or PublicAPI.Unshipped.txt files found")

	// ErrTargetNotFound is returned when the extraction target does not exist.
	ErrTargetNotFound = errors.New("target does not exist")
)

// Generate regenerates the unshipped file of a library from its current
// surface and the shipped baseline.
type Generate struct {
	// Files holds candidate paths; the PublicAPI files are picked by name.
	Files       []string
	Target      string
	SearchPaths []string
	Source      extractor.Source

	// DryRun computes the result without writing anything.
	DryRun bool

	// History, when set together with Library and Version, records the
	// current surface after a successful non-dry run.
	History storage.HistoryStore
	Library string
	Version string

	// Trace, when set, receives per-stage metrics and signals.
	Trace *RunReport

	Logger *slog.Logger
}

// Result describes one Generate run.
type Result struct {
	ShippedPath   string
	UnshippedPath string

	Current *surface.Surface
	Shipped *surface.Surface
	Diff    *surface.Surface

	// Previous is the unshipped file found on disk, nil when there was none.
	Previous *surface.Surface

	// Changed is set when Diff is not equivalent to Previous.
	Changed bool
	Written bool
	Report  *analysis.ChangeReport
}

type publicAPIFiles struct {
	shipped   string
	unshipped string
}

// Run executes the generate stages in order.
func (g *Generate) Run(ctx context.Context) (*Result, error) {
	trace := g.Trace

	stage := trace.beginStage("locate_files")
	files, err := g.locateFilesStage()
	trace.endStage(stage, nil, err)
	if err != nil {
		trace.addSignal("no_public_api_files", stage.name, SeverityCritical, err.Error(), 0)
		return nil, err
	}

	stage = trace.beginStage("extract")
	current, err := g.extractStage(ctx)
	if err != nil {
		trace.endStage(stage, nil, err)
		return nil, err
	}
	trace.endStage(stage, map[string]float64{
		"nullable_entries":  float64(len(current.NullableEntries())),
		"oblivious_entries": float64(len(current.ObliviousEntries())),
	}, nil)

	stage = trace.beginStage("load_baseline")
	shipped, err := g.baselineStage(files.shipped)
	if err != nil {
		trace.endStage(stage, nil, err)
		return nil, err
	}
	trace.endStage(stage, map[string]float64{"shipped_entries": float64(shipped.Count())}, nil)

	res := &Result{
		ShippedPath:   files.shipped,
		UnshippedPath: files.unshipped,
		Current:       current,
		Shipped:       shipped,
	}

	stage = trace.beginStage("diff")
	res.Diff = current.GenerateUnshippedDiff(shipped)
	res.Report = analysis.Summarize(res.Diff)
	trace.endStage(stage, map[string]float64{"diff_entries": float64(res.Diff.Count())}, nil)
	trace.recordChanges(stage.name, res.Report)

	stage = trace.beginStage("compare")
	err = g.compareStage(res)
	trace.endStage(stage, nil, err)
	if err != nil {
		return nil, err
	}
	if res.Changed && g.DryRun {
		trace.addSignal("unshipped_out_of_date", stage.name, SeverityWarning, "The unshipped file does not match the current surface.", 0)
	}

	stage = trace.beginStage("write")
	err = g.writeStage(res)
	trace.endStage(stage, nil, err)
	if err != nil {
		return nil, err
	}

	stage = trace.beginStage("record")
	err = g.recordStage(ctx, res)
	trace.endStage(stage, nil, err)
	if err != nil {
		return nil, err
	}

	return res, nil
}

// Check runs g without writing. Callers treat Result.Changed as a failure.
func Check(ctx context.Context, g Generate) (*Result, error) {
	g.DryRun = true
	return g.Run(ctx)
}

func (g *Generate) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

func (g *Generate) locateFilesStage() (publicAPIFiles, error) {
	var files publicAPIFiles
	if len(g.Files) == 0 {
		return files, ErrNoFiles
	}
	for _, f := range g.Files {
		name := filepath.Base(f)
		switch {
		case files.shipped == "" && strings.EqualFold(name, ShippedFileName):
			files.shipped = f
		case files.unshipped == "" && strings.EqualFold(name, UnshippedFileName):
			files.unshipped = f
		}
	}
	if files.shipped == "" && files.unshipped == "" {
		return files, ErrNoPublicAPIFiles
	}
	return files, nil
}

func (g *Generate) extractStage(ctx context.Context) (*surface.Surface, error) {
	if g.Source == nil {
		return nil, errors.New("no extractor configured")
	}
	if _, err := os.Stat(g.Target); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTargetNotFound, g.Target, err)
	}

	g.logger().Info("extracting public API", "target", g.Target)
	ext, err := g.Source.Extract(ctx, g.Target, g.SearchPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", g.Target, err)
	}
	current := surface.FromExtraction(ext.Nullable, ext.Oblivious)
	g.logger().Debug("extracted public API", "entries", current.Count())
	return current, nil
}

// baselineStage loads the shipped file. A missing file is an empty baseline.
func (g *Generate) baselineStage(path string) (*surface.Surface, error) {
	if path == "" {
		return surface.New(), nil
	}
	shipped, err := surface.LoadShipped(path)
	if errors.Is(err, os.ErrNotExist) {
		g.logger().Info("shipped file not found, using empty baseline", "path", path)
		return surface.New(), nil
	}
	if err != nil {
		return nil, err
	}
	g.logger().Debug("read shipped APIs", "path", path, "entries", shipped.Count())
	return shipped, nil
}

func (g *Generate) compareStage(res *Result) error {
	if res.UnshippedPath == "" {
		return nil
	}
	previous, err := surface.LoadUnshipped(res.UnshippedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		res.Changed = true
		return nil
	case err != nil:
		return err
	}
	res.Previous = previous
	res.Changed = !res.Diff.IsEquivalentTo(previous)
	return nil
}

func (g *Generate) writeStage(res *Result) error {
	if res.UnshippedPath == "" || !res.Changed {
		return nil
	}
	if g.DryRun {
		g.logger().Info("unshipped file is out of date", "path", res.UnshippedPath)
		return nil
	}
	if err := res.Diff.Save(res.UnshippedPath); err != nil {
		return fmt.Errorf("failed to write unshipped file: %w", err)
	}
	res.Written = true
	g.logger().Info("generated unshipped API file", "path", res.UnshippedPath, "entries", res.Diff.Count())
	return nil
}

func (g *Generate) recordStage(ctx context.Context, res *Result) error {
	if g.DryRun || g.History == nil || g.Library == "" || g.Version == "" {
		return nil
	}
	if err := g.History.SaveSurface(ctx, g.Library, g.Version, res.Current); err != nil {
		return fmt.Errorf("failed to record %s@%s: %w", g.Library, g.Version, err)
	}
	g.logger().Info("recorded surface", "library", g.Library, "version", g.Version)
	return nil
}
