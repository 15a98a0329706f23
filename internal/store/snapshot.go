// Package store persists game state outside the engine: the JSON save file,
// compressed tick archives, the SQLite cash ledger and the Redis state cache.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"airline_ops/internal/models"
)

// SaveJSON writes st to path through a temporary file and a rename, so a
// crash leaves either the old save or the new one.
func SaveJSON(path string, st models.GameState) error {
	data, err := json.MarshalIndent(&st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return WriteFileAtomic(path, data)
}

// LoadJSON reads a save written by SaveJSON.
func LoadJSON(path string) (models.GameState, error) {
	var st models.GameState
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("decode %s: %w", path, err)
	}
	return st, nil
}

// WriteFileAtomic replaces path with data.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
