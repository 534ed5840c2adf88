package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	gitCmd(t, dir, "init", "-q")
	gitCmd(t, dir, "config", "user.email", "test@example.com")
	gitCmd(t, dir, "config", "user.name", "Test")
	gitCmd(t, dir, "config", "commit.gpgsign", "false")
	return dir
}

func gitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRepo_ShowFile(t *testing.T) {
	dir := initRepo(t)
	writeFile(t, dir, "PublicAPI/PublicAPI.Shipped.txt", "#nullable enable\nA\n")
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-q", "-m", "ship")

	writeFile(t, dir, "PublicAPI/PublicAPI.Shipped.txt", "#nullable enable\nA\nB\n")

	repo := Open(dir)
	ctx := context.Background()

	got, err := repo.ShowFile(ctx, "HEAD", "PublicAPI/PublicAPI.Shipped.txt")
	require.NoError(t, err)
	assert.Equal(t, "#nullable enable\nA\n", string(got))

	t.Run("MissingPath", func(t *testing.T) {
		_, err := repo.ShowFile(ctx, "HEAD", "PublicAPI/PublicAPI.Unshipped.txt")
		assert.ErrorIs(t, err, ErrPathNotFound)
	})

	t.Run("BadRef", func(t *testing.T) {
		_, err := repo.ShowFile(ctx, "no-such-ref", "PublicAPI/PublicAPI.Shipped.txt")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrPathNotFound)
	})
}

func TestRepo_ChangedFiles(t *testing.T) {
	dir := initRepo(t)
	writeFile(t, dir, "src/Widget.cs", "class Widget {}\n")
	writeFile(t, dir, "README.md", "readme\n")
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-q", "-m", "init")

	writeFile(t, dir, "src/Widget.cs", "public class Widget {}\n")
	writeFile(t, dir, "src/Gadget.cs", "public class Gadget {}\n")
	writeFile(t, dir, "docs/notes.md", "notes\n")

	ctx := context.Background()
	files, err := Open(dir).ChangedFiles(ctx, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/notes.md", "src/Gadget.cs", "src/Widget.cs"}, files)

	t.Run("Subdirectory", func(t *testing.T) {
		files, err := Open(filepath.Join(dir, "src")).ChangedFiles(ctx, "HEAD")
		require.NoError(t, err)
		assert.Equal(t, []string{"Gadget.cs", "Widget.cs"}, files)
	})

	t.Run("Clean", func(t *testing.T) {
		gitCmd(t, dir, "add", ".")
		gitCmd(t, dir, "commit", "-q", "-m", "more")
		files, err := Open(dir).ChangedFiles(ctx, "HEAD")
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "./a/b.txt", objectPath("a/b.txt"))
	assert.Equal(t, "./a/b.txt", objectPath("./a/b.txt"))
	assert.Equal(t, "../x.txt", objectPath("../x.txt"))
}

func TestParseNameOnly(t *testing.T) {
	assert.Equal(t, []string{"a.cs", "b/c.cs"}, parseNameOnly([]byte("a.cs\n\nb/c.cs\n")))
	assert.Empty(t, parseNameOnly(nil))
}
