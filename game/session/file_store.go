package session

import (
	"encoding/json"
	"fmt"
	"os"
)

// FileStore implements Store as a single indented JSON file. Timestamps
// round-trip through RFC 3339, so a reloaded snapshot compares equal to the
// one that was saved.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path. The file is created on
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the snapshot. A missing file is not an error: the engine starts
// fresh with an empty state.
func (fs *FileStore) Load() (*State, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	state := NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	return state, nil
}

// Save writes the snapshot, replacing any previous one.
func (fs *FileStore) Save(state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(fs.path, data, 0644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}
