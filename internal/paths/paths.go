// Package paths provides directory paths for easel.
//
// Lookup order for the config file (first found wins):
//  1. $EASEL_HOME/config.yaml
//  2. ./.config/easel/config.yaml (project-local)
//  3. ~/.config/easel/config.yaml
//
// Data (the run database) lives under $EASEL_HOME when set, otherwise
// ~/.local/share/easel.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// HomeEnvVar overrides both the config and data directories.
const HomeEnvVar = "EASEL_HOME"

const appName = "easel"

func home() string {
	return os.Getenv(HomeEnvVar)
}

func localAppData() string {
	dir := os.Getenv("LOCALAPPDATA")
	if dir == "" {
		h, _ := os.UserHomeDir()
		dir = filepath.Join(h, "AppData", "Local")
	}
	return dir
}

// DataDir returns the data directory.
//
// $EASEL_HOME when set
// Unix: ~/.local/share/easel (XDG_DATA_HOME respected)
// Windows: %LOCALAPPDATA%\easel
func DataDir() string {
	if h := home(); h != "" {
		return h
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(localAppData(), appName)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	h, _ := os.UserHomeDir()
	return filepath.Join(h, ".local", "share", appName)
}

// ConfigDir returns the user config directory.
//
// $EASEL_HOME when set
// Unix: ~/.config/easel (XDG_CONFIG_HOME respected)
// Windows: %LOCALAPPDATA%\easel
func ConfigDir() string {
	if h := home(); h != "" {
		return h
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(localAppData(), appName)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	h, _ := os.UserHomeDir()
	return filepath.Join(h, ".config", appName)
}

// LocalConfigDir returns the project-local config directory
// (./.config/easel), or "" when the working directory is unknown.
func LocalConfigDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(wd, ".config", appName)
}

// ConfigFile returns the config file to load. A project-local file is used
// when present unless EASEL_HOME is set.
func ConfigFile() string {
	if home() == "" {
		if dir := LocalConfigDir(); dir != "" {
			local := filepath.Join(dir, "config.yaml")
			if _, err := os.Stat(local); err == nil {
				return local
			}
		}
	}
	return filepath.Join(ConfigDir(), "config.yaml")
}

// CredentialsFile returns the path of the stored API keys.
func CredentialsFile() string {
	return filepath.Join(ConfigDir(), "credentials.json")
}

// DatabasePath returns the default run history database path.
func DatabasePath() string {
	return filepath.Join(DataDir(), "easel.db")
}
