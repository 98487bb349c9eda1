package credentials

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppName names the configuration directory.
const AppName = "whoop-cli"

// DefaultConfigPath returns $XDG_CONFIG_HOME/whoop-cli/config.json, falling back
// to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultConfigPath() string {
	xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfigHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		xdgConfigHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(xdgConfigHome, AppName, "config.json")
}

// EnsureParentDir creates the parent directory of path with 0700 permissions.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
