package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "apisurface.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Project.Root)
	assert.Equal(t, "PublicAPI/PublicAPI.Shipped.txt", cfg.Files.Shipped)
	assert.Equal(t, "PublicAPI/PublicAPI.Unshipped.txt", cfg.Files.Unshipped)
	assert.Equal(t, "csharp", cfg.Extractor.Kind)
	assert.Equal(t, "apisurface.db", cfg.History.DB)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Nil(t, cfg.Project.Nullable)
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apisurface.yaml")
	content := `
project:
  name: Sample
  root: src/Sample
  sources: [src/Generated]
  search_paths: [src/Shared]
  nullable: false
files:
  shipped: api/Shipped.txt
  unshipped: api/Unshipped.txt
extractor:
  kind: dump
  dump: build/sample.yaml
history:
  db: history.db
watch:
  debounce: 1s
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Sample", cfg.Project.Name)
	assert.Equal(t, "src/Sample", cfg.Project.Root)
	assert.Equal(t, []string{"src/Generated"}, cfg.Project.Sources)
	assert.Equal(t, []string{"src/Shared"}, cfg.Project.SearchPaths)
	require.NotNil(t, cfg.Project.Nullable)
	assert.False(t, *cfg.Project.Nullable)
	assert.Equal(t, "api/Shipped.txt", cfg.Files.Shipped)
	assert.Equal(t, "api/Unshipped.txt", cfg.Files.Unshipped)
	assert.Equal(t, "dump", cfg.Extractor.Kind)
	assert.Equal(t, "build/sample.yaml", cfg.Target())
	assert.Equal(t, "history.db", cfg.History.DB)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("APISURFACE_SHIPPED", "env/Shipped.txt")
	t.Setenv("APISURFACE_UNSHIPPED", "env/Unshipped.txt")
	t.Setenv("APISURFACE_EXTRACTOR", "dump")
	t.Setenv("APISURFACE_DB", "env.db")
	t.Setenv("APISURFACE_LOG_LEVEL", "warn")

	path := filepath.Join(t.TempDir(), "apisurface.yaml")
	require.NoError(t, os.WriteFile(path, []byte("files:\n  shipped: file/Shipped.txt\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env/Shipped.txt", cfg.Files.Shipped)
	assert.Equal(t, "env/Unshipped.txt", cfg.Files.Unshipped)
	assert.Equal(t, "dump", cfg.Extractor.Kind)
	assert.Equal(t, "env.db", cfg.History.DB)
	assert.Equal(t, "warn", cfg.Log.Level)
	// No dump path configured: the project root is still the target.
	assert.Equal(t, ".", cfg.Target())
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apisurface.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project: [\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
