package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(HomeEnvVar, dir)

	assert.Equal(t, dir, DataDir())
	assert.Equal(t, dir, ConfigDir())
	assert.Equal(t, filepath.Join(dir, "config.yaml"), ConfigFile())
	assert.Equal(t, filepath.Join(dir, "credentials.json"), CredentialsFile())
	assert.Equal(t, filepath.Join(dir, "easel.db"), DatabasePath())
}

func TestDefaultDirs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG layout only")
	}
	t.Setenv(HomeEnvVar, "")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")

	h, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(h, ".local", "share", "easel"), DataDir())
	assert.Equal(t, filepath.Join(h, ".config", "easel"), ConfigDir())
}

func TestXDGDirs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG layout only")
	}
	cfg, data := t.TempDir(), t.TempDir()
	t.Setenv(HomeEnvVar, "")
	t.Setenv("XDG_CONFIG_HOME", cfg)
	t.Setenv("XDG_DATA_HOME", data)

	assert.Equal(t, filepath.Join(cfg, "easel"), ConfigDir())
	assert.Equal(t, filepath.Join(data, "easel", "easel.db"), DatabasePath())
}

func TestLocalConfigFile(t *testing.T) {
	wd := t.TempDir()
	t.Chdir(wd)
	t.Setenv(HomeEnvVar, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	assert.Equal(t, filepath.Join(ConfigDir(), "config.yaml"), ConfigFile())

	require.NoError(t, os.MkdirAll(filepath.Join(wd, ".config", "easel"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(wd, ".config", "easel", "config.yaml"), []byte("{}"), 0644))

	got, err := filepath.EvalSymlinks(ConfigFile())
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(filepath.Join(wd, ".config", "easel", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
