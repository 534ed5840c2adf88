package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"apisurface/internal/analysis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeProject(t *testing.T) (configFile, dir string) {
	t.Helper()
	dir = t.TempDir()
	dump := filepath.Join(dir, "sample.yaml")
	require.NoError(t, os.WriteFile(dump, []byte(`assembly: Sample
nullable:
  - Sample.Widget
  - Sample.Widget.Widget() -> void
  - Sample.Widget.Name.get -> string!
oblivious:
  - Sample.Widget
  - Sample.Widget.Widget() -> void
  - ~Sample.Widget.Name.get -> string
`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "PublicAPI"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PublicAPI", "PublicAPI.Shipped.txt"),
		[]byte("#nullable enable\nSample.Widget\nSample.Widget.Widget() -> void\nSample.Widget.Legacy() -> void\n"), 0o644))

	configFile = filepath.Join(dir, "apisurface.yaml")
	content := "project:\n  name: Sample\n  root: " + dir + "\n" +
		"files:\n  shipped: " + filepath.Join(dir, "PublicAPI", "PublicAPI.Shipped.txt") + "\n" +
		"  unshipped: " + filepath.Join(dir, "PublicAPI", "PublicAPI.Unshipped.txt") + "\n" +
		"extractor:\n  kind: dump\n  dump: " + dump + "\n" +
		"history:\n  db: " + filepath.Join(dir, "history.db") + "\n" +
		"log:\n  level: error\n"
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))
	return configFile, dir
}

func TestCLI_GenerateCheckShip(t *testing.T) {
	configFile, dir := writeProject(t)
	unshipped := filepath.Join(dir, "PublicAPI", "PublicAPI.Unshipped.txt")

	_, err := execute(t, "check", "--config", configFile)
	assert.ErrorIs(t, err, errOutOfDate)

	out, err := execute(t, "generate", "--config", configFile)
	require.NoError(t, err)
	assert.Contains(t, out, "1 added, 1 removed")

	data, err := os.ReadFile(unshipped)
	require.NoError(t, err)
	assert.Equal(t, "#nullable enable\n*REMOVED*Sample.Widget.Legacy() -> void\nSample.Widget.Name.get -> string!\n", string(data))

	out, err = execute(t, "check", "--config", configFile)
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	out, err = execute(t, "diff", "--config", configFile)
	require.NoError(t, err)
	assert.Contains(t, out, "*REMOVED*Sample.Widget.Legacy() -> void\n")

	_, err = execute(t, "ship", "--config", configFile)
	require.NoError(t, err)
	shipped, err := os.ReadFile(filepath.Join(dir, "PublicAPI", "PublicAPI.Shipped.txt"))
	require.NoError(t, err)
	assert.Equal(t, "#nullable enable\nSample.Widget\nSample.Widget.Name.get -> string!\nSample.Widget.Widget() -> void\n", string(shipped))
}

func TestCLI_History(t *testing.T) {
	configFile, _ := writeProject(t)

	out, err := execute(t, "history", "record", "1.0.0", "--config", configFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded Sample@1.0.0 (3 entries)")

	out, err = execute(t, "history", "list", "--config", configFile)
	require.NoError(t, err)
	assert.Contains(t, out, "1.0.0")

	out, err = execute(t, "history", "show", "1.0.0", "--config", configFile)
	require.NoError(t, err)
	assert.Equal(t, "#nullable enable\nSample.Widget\nSample.Widget.Name.get -> string!\nSample.Widget.Widget() -> void\n", out)

	_, err = execute(t, "history", "show", "2.0.0", "--config", configFile)
	assert.Error(t, err)

	_, err = execute(t, "history", "delete", "1.0.0", "--config", configFile)
	require.NoError(t, err)
	out, err = execute(t, "history", "list", "--config", configFile)
	require.NoError(t, err)
	assert.Contains(t, out, "No versions recorded")
}

func TestCLI_ShipDryRunDiffsAgainstShipped(t *testing.T) {
	configFile, dir := writeProject(t)
	t.Cleanup(func() { shipDryRun = false })

	_, err := execute(t, "generate", "--config", configFile)
	require.NoError(t, err)

	shippedPath := filepath.Join(dir, "PublicAPI", "PublicAPI.Shipped.txt")
	before, err := os.ReadFile(shippedPath)
	require.NoError(t, err)

	out, err := execute(t, "ship", "--dry-run", "--config", configFile)
	require.NoError(t, err)
	assert.Contains(t, out, "--- a/"+shippedPath)
	assert.NotContains(t, out, "/dev/null")
	assert.Contains(t, out, "\n Sample.Widget\n")
	assert.Contains(t, out, "\n-Sample.Widget.Legacy() -> void\n")
	assert.Contains(t, out, "\n+Sample.Widget.Name.get -> string!\n")
	assert.NotContains(t, out, "+Sample.Widget.Widget() -> void")

	after, err := os.ReadFile(shippedPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestCLI_Since(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	configFile, dir := writeProject(t)
	t.Cleanup(func() { sinceRef = "" })
	unshipped := filepath.Join(dir, "PublicAPI", "PublicAPI.Unshipped.txt")

	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test"},
		{"config", "commit.gpgsign", "false"},
		{"add", "."},
		{"commit", "-q", "-m", "init"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	out, err := execute(t, "generate", "--since", "HEAD", "--config", configFile)
	require.NoError(t, err)
	assert.Contains(t, out, "No source changes since HEAD")
	assert.NoFileExists(t, unshipped)

	out, err = execute(t, "check", "--since", "HEAD", "--config", configFile)
	require.NoError(t, err)
	assert.Contains(t, out, "No source changes since HEAD")

	// An untracked C# file counts as a change.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Widget.cs"), []byte("public class Widget {}\n"), 0o644))
	_, err = execute(t, "check", "--since", "HEAD", "--config", configFile)
	assert.ErrorIs(t, err, errOutOfDate)

	out, err = execute(t, "generate", "--since", "HEAD", "--config", configFile)
	require.NoError(t, err)
	assert.Contains(t, out, "1 added, 1 removed")
	assert.FileExists(t, unshipped)
}

func TestKindCounts(t *testing.T) {
	lines := kindCounts("+", map[analysis.Kind]int{
		analysis.KindMethod: 2,
		analysis.KindType:   1,
	})
	assert.Equal(t, []string{"+1 type", "+2 method"}, lines)
}
