package crawler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ignoredDirs are build outputs and tool folders that never hold public
// API sources.
var ignoredDirs = map[string]struct{}{
	".git":         {},
	".vs":          {},
	".idea":        {},
	"bin":          {},
	"obj":          {},
	"node_modules": {},
	"packages":     {},
	"TestResults":  {},
}

// generatedSuffixes mark designer and source-generator output.
var generatedSuffixes = []string{".g.cs", ".g.i.cs", ".designer.cs", ".generated.cs"}

var (
	nullableProperty       = regexp.MustCompile(`(?i)<Nullable>\s*(enable|annotations|warnings|disable)\s*</Nullable>`)
	implicitUsingsProperty = regexp.MustCompile(`(?i)<ImplicitUsings>\s*(\w+)\s*</ImplicitUsings>`)
)

// Crawler scans a directory tree for C# source files.
type Crawler struct {
	ignored map[string]struct{}
}

// NewCrawler creates a new crawler instance.
func NewCrawler() *Crawler {
	return &Crawler{ignored: ignoredDirs}
}

// ScanProject walks root and calls onFile for every C# source file, in
// lexical order. Errors returned by onFile stop the walk.
func (c *Crawler) ScanProject(root string, onFile func(path string) error) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", root, err)
	}
	if !info.IsDir() {
		if !c.IsSource(root) {
			return nil
		}
		return onFile(root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && c.IsIgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !c.IsSource(path) {
			return nil
		}
		return onFile(path)
	})
}

// IsIgnoredDir reports whether a directory with the given base name is
// skipped.
func (c *Crawler) IsIgnoredDir(name string) bool {
	_, ok := c.ignored[name]
	return ok
}

// IsSource reports whether path is a hand-written C# source file.
func (c *Crawler) IsSource(path string) bool {
	lower := strings.ToLower(filepath.Base(path))
	if !strings.HasSuffix(lower, ".cs") {
		return false
	}
	for _, suffix := range generatedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	return true
}

// IsIgnoredPath reports whether any directory component of path (relative
// to root) is ignored.
func (c *Crawler) IsIgnoredPath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if c.IsIgnoredDir(part) {
			return true
		}
	}
	return false
}

// Project holds the MSBuild properties that shape a project's public API
// rendering.
type Project struct {
	Path string
	// Nullable is nil when the project does not set <Nullable>.
	Nullable       *bool
	ImplicitUsings bool
}

// ReadProject reads the first .csproj found directly in dir (or dir itself
// when it is a project file). It returns nil when there is no project file.
func ReadProject(dir string) (*Project, error) {
	projects, err := projectFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, nil
	}

	path := projects[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project %s: %w", path, err)
	}

	p := &Project{Path: path}
	if m := nullableProperty.FindSubmatch(data); m != nil {
		switch strings.ToLower(string(m[1])) {
		case "enable", "annotations":
			p.Nullable = boolPtr(true)
		default:
			p.Nullable = boolPtr(false)
		}
	}
	if m := implicitUsingsProperty.FindSubmatch(data); m != nil {
		v := strings.ToLower(string(m[1]))
		p.ImplicitUsings = v == "enable" || v == "true"
	}
	return p, nil
}

func boolPtr(b bool) *bool { return &b }

func projectFiles(dir string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(dir), ".csproj") {
		return []string{dir}, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.csproj"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}
