package credentials

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("Failed to get home directory: %v", err)
	}

	t.Run("with XDG_CONFIG_HOME set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/test-config")

		expected := filepath.Join("/tmp/test-config", "whoop-cli", "config.json")
		if result := DefaultConfigPath(); result != expected {
			t.Errorf("Expected %s, got %s", expected, result)
		}
	})

	t.Run("without XDG_CONFIG_HOME set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")

		expected := filepath.Join(homeDir, ".config", "whoop-cli", "config.json")
		if result := DefaultConfigPath(); result != expected {
			t.Errorf("Expected %s, got %s", expected, result)
		}
	})
}

func TestEnsureParentDir(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "nested", "dir", "config.json")

	if err := EnsureParentDir(testPath); err != nil {
		t.Fatalf("EnsureParentDir failed: %v", err)
	}

	info, err := os.Stat(filepath.Dir(testPath))
	if err != nil {
		t.Fatalf("Parent directory was not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("Expected a directory")
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("Expected directory permissions 0700, got %v", info.Mode().Perm())
	}
}

func TestFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if FileExists(path) {
		t.Error("Expected FileExists to be false before creation")
	}
	if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	if !FileExists(path) {
		t.Error("Expected FileExists to be true after creation")
	}
}
