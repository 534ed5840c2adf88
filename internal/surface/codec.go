package surface

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrLoad is returned when a PublicAPI file cannot be read.
	ErrLoad = errors.New("cannot load public API file")

	// ErrMalformed is returned when a PublicAPI file is not valid UTF-8 text.
	ErrMalformed = errors.New("malformed public API file")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadShipped reads a shipped PublicAPI file. Lines carrying the removal
// marker are dropped.
func LoadShipped(path string) (*Surface, error) {
	return Load(path, false)
}

// LoadUnshipped reads an unshipped PublicAPI file. Removal markers are kept
// as literal entries so the file round-trips.
func LoadUnshipped(path string) (*Surface, error) {
	return Load(path, true)
}

// Load reads the PublicAPI file at path.
func Load(path string, preserveRemoved bool) (*Surface, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrLoad, path, err)
	}
	s, err := parseBytes(data, preserveRemoved)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse reads PublicAPI content from r.
func Parse(r io.Reader, preserveRemoved bool) (*Surface, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return parseBytes(data, preserveRemoved)
}

func parseBytes(data []byte, preserveRemoved bool) (*Surface, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: invalid UTF-8", ErrMalformed)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	return ParseLines(splitLines(string(data)), preserveRemoved), nil
}

// ParseLines builds a surface from raw file lines.
//
// Blank lines are dropped, the remaining lines are trimmed and deduplicated,
// and removal-marked lines are dropped unless preserveRemoved is set. The
// header is detected on the untouched first line only.
func ParseLines(lines []string, preserveRemoved bool) *Surface {
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !preserveRemoved && IsRemoved(line) {
			continue
		}
		cleaned = append(cleaned, line)
	}
	cleaned = dedupIdentity(cleaned)
	if len(cleaned) == 0 {
		return New()
	}

	nullableEnable := lines[0] == NullableEnableHeader
	if nullableEnable {
		cleaned = exceptIdentity(cleaned, []string{NullableEnableHeader})
	}
	SortEntries(cleaned)
	return withActive(nullableEnable, cleaned)
}

// splitLines splits on "\r\n", "\n" or "\r". A trailing terminator does not
// produce an extra empty line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// FileLines returns the file representation: the optional header followed
// by the active entries in stored order.
func (s *Surface) FileLines() []string {
	active := s.active()
	lines := make([]string, 0, len(active)+1)
	if s.nullableEnable {
		lines = append(lines, NullableEnableHeader)
	}
	return append(lines, active...)
}

// WriteTo writes the file representation to w, one line per entry.
func (s *Surface) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, line := range s.FileLines() {
		c, err := bw.WriteString(line + "\n")
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Save writes the surface to path atomically. The parent directory is
// created if needed; the content goes to a temporary sibling which is
// renamed over path once fully written.
func (s *Surface) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	cleanup := func(err error) error {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}

	if _, err := s.WriteTo(f); err != nil {
		return cleanup(fmt.Errorf("failed to write %s: %w", path, err))
	}
	if err := f.Chmod(0o644); err != nil {
		return cleanup(err)
	}
	if err := f.Sync(); err != nil {
		return cleanup(err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
