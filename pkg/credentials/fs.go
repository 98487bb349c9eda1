package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps the credential in a JSON file readable only by the owner.
type FileStore struct {
	Path string
}

// NewFileStore creates a FileStore at path, or at DefaultConfigPath when path is empty.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultConfigPath()
	}
	return &FileStore{Path: path}
}

// Load reads the credential. A missing file yields a zero Credential.
func (f *FileStore) Load(_ context.Context) (Credential, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Credential{}, nil
	}
	if err != nil {
		return Credential{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return decodeDocument(b)
}

// Save writes the credential, replacing the file atomically.
func (f *FileStore) Save(_ context.Context, cred Credential) error {
	data, err := encodeDocument(cred)
	if err != nil {
		return err
	}
	if err := EnsureParentDir(f.Path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".config-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close config file: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// Clear removes the config file. Removing a missing file is not an error.
func (f *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove config file: %w", err)
	}
	return nil
}

// Location returns the config file path.
func (f *FileStore) Location() string {
	return f.Path
}

func decodeDocument(b []byte) (Credential, error) {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return Credential{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if doc.OAuth == nil {
		return Credential{}, nil
	}
	return *doc.OAuth, nil
}

func encodeDocument(cred Credential) ([]byte, error) {
	data, err := json.MarshalIndent(document{OAuth: &cred}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
