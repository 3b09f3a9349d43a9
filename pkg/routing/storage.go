package routing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Storage persists routing data between restarts.
type Storage interface {
	Save(data RoutingData) error
	Load() (RoutingData, error)
}

// FileStorage keeps the routing data in a single JSON file, written
// atomically via a temp file and rename.
type FileStorage struct {
	path string
}

// NewFileStorage returns storage backed by the given file path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Save writes the routing data to disk.
func (s *FileStorage) Save(data RoutingData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal routing data: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".routing-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Load reads the routing data from disk. A missing file yields empty data.
func (s *FileStorage) Load() (RoutingData, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return RoutingData{}, nil
		}
		return RoutingData{}, fmt.Errorf("failed to read state file: %w", err)
	}
	var data RoutingData
	if err := json.Unmarshal(raw, &data); err != nil {
		return RoutingData{}, fmt.Errorf("failed to parse state file: %w", err)
	}
	return data, nil
}
