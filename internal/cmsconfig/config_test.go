package cmsconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mswsus/cms/internal/cmsconfig"
)

func TestLoadConfig_DefaultsWhenNoFilesExist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, sources, err := cmsconfig.LoadConfig(dir, "", cmsconfig.Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, ".cms", cfg.ArchiveDir)
	require.Empty(t, sources.Global)
	require.Empty(t, sources.Project)
	require.NotNil(t, cfg.Logger)
}

func TestLoadConfig_ProjectFileOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, cmsconfig.ConfigFileName)

	require.NoError(t, os.WriteFile(path, []byte(`{
		// JSONC is fine, the teacher's loader tolerates comments too
		"archive_dir": "/var/lib/cms/archives",
		"upstream_source": "https://sus.example.test",
	}`), 0o600))

	cfg, sources, err := cmsconfig.LoadConfig(dir, "", cmsconfig.Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/cms/archives", cfg.ArchiveDir)
	require.Equal(t, "https://sus.example.test", cfg.UpstreamSource)
	require.Equal(t, path, sources.Project)
}

func TestLoadConfig_CLIOverrideWinsOverProjectFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, cmsconfig.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"archive_dir": "/from/file"}`), 0o600))

	cfg, _, err := cmsconfig.LoadConfig(dir, "", cmsconfig.Config{ArchiveDir: "/from/cli"}, nil)
	require.NoError(t, err)
	require.Equal(t, "/from/cli", cfg.ArchiveDir)
}

func TestLoadConfig_ExplicitMissingConfigPathErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, _, err := cmsconfig.LoadConfig(dir, "does-not-exist.json", cmsconfig.Config{}, nil)
	require.Error(t, err)
}

func TestLoadConfig_GlobalConfigViaXDGEnv(t *testing.T) {
	t.Parallel()

	xdg := t.TempDir()
	globalPath := filepath.Join(xdg, "cms", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(globalPath), 0o750))
	require.NoError(t, os.WriteFile(globalPath, []byte(`{"archive_dir": "/from/global"}`), 0o600))

	dir := t.TempDir()

	cfg, sources, err := cmsconfig.LoadConfig(dir, "", cmsconfig.Config{}, []string{"XDG_CONFIG_HOME=" + xdg})
	require.NoError(t, err)
	require.Equal(t, "/from/global", cfg.ArchiveDir)
	require.Equal(t, globalPath, sources.Global)
}
