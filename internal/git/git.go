package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

// ErrPathNotFound is returned when a file does not exist at the given ref.
var ErrPathNotFound = errors.New("path not found at ref")

// Repo runs git commands in a working directory.
type Repo struct {
	Dir string
}

// Open returns a Repo for dir. It does not check that dir is a work tree.
func Open(dir string) *Repo {
	return &Repo{Dir: dir}
}

// ShowFile returns the content of path at ref. A relative path is taken
// relative to the repo directory.
func (r *Repo) ShowFile(ctx context.Context, ref, path string) ([]byte, error) {
	object := ref + ":" + objectPath(path)
	out, err := r.run(ctx, "show", object)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && missingPath(exitErr.Stderr) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, object)
		}
		return nil, fmt.Errorf("git show %s failed: %w", object, err)
	}
	return out, nil
}

// ChangedFiles lists the files under the repo directory that differ from
// ref, including untracked ones. Paths are relative to the directory.
func (r *Repo) ChangedFiles(ctx context.Context, ref string) ([]string, error) {
	out, err := r.run(ctx, "diff", "--name-only", "--relative", ref)
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}
	untracked, err := r.run(ctx, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("git ls-files failed: %w", err)
	}
	files := append(parseNameOnly(out), parseNameOnly(untracked)...)
	slices.Sort(files)
	return slices.Compact(files), nil
}

func (r *Repo) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	return cmd.Output()
}

// objectPath turns a work-tree path into the "./path" form git resolves
// relative to the command's directory.
func objectPath(path string) string {
	path = filepath.ToSlash(filepath.Clean(path))
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") {
		return path
	}
	return "./" + path
}

func missingPath(stderr []byte) bool {
	msg := string(stderr)
	return strings.Contains(msg, "does not exist in") || strings.Contains(msg, "exists on disk, but not in")
}

func parseNameOnly(output []byte) []string {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var files []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		files = append(files, line)
	}
	return files
}
