// Package textdiff renders unified diffs of PublicAPI file content.
package textdiff

import (
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"

	"apisurface/internal/surface"
)

// DefaultContext is the number of context lines around each hunk.
const DefaultContext = 3

// Unified returns a unified patch from a to b, or "" when they are equal.
// A context of 0 or less uses DefaultContext.
func Unified(aName, bName string, a, b []byte, context int) (string, error) {
	if context <= 0 {
		context = DefaultContext
	}
	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(string(a)),
		B:        splitLinesKeepNL(string(b)),
		FromFile: aName,
		ToFile:   bName,
		Context:  context,
	}
	return difflib.GetUnifiedDiffString(u)
}

// Surfaces diffs the file forms of two surfaces. A nil surface is treated
// as a file that does not exist yet.
func Surfaces(aName, bName string, a, b *surface.Surface) (string, error) {
	return Unified(aName, bName, fileContent(a), fileContent(b), DefaultContext)
}

func fileContent(s *surface.Surface) []byte {
	if s == nil {
		return nil
	}
	lines := s.FileLines()
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

// splitLinesKeepNL keeps the newline on each element, which is what
// difflib expects for well-formed hunks.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
