package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Extraction is the raw output of a Source: the same declarations rendered
// with and without nullability annotations. Order is not significant.
type Extraction struct {
	Nullable  []string
	Oblivious []string
}

// Source produces the public API entries of a build target.
type Source interface {
	Extract(ctx context.Context, target string, searchPaths []string) (*Extraction, error)
}

// Options configures the sources created by New.
type Options struct {
	// Nullable overrides the project-level nullable context when set.
	Nullable *bool
	// Sources are extra source roots whose declarations are part of the
	// surface, in addition to the extraction target.
	Sources []string
	Logger  *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// New creates the Source registered under kind.
func New(kind string, opts Options) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "csharp", "cs":
		return NewCSharpSource(opts), nil
	case "dump":
		return NewDump(opts), nil
	default:
		return nil, fmt.Errorf("unsupported extractor: %s", kind)
	}
}
