// Package file stores memory state as one JSON document per owner per day.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/becomeliminal/bridge-go-sdk/memory"
)

// Storage writes <dir>/<owner>-<YYYY-MM-DD>.json.
type Storage struct {
	dir string
}

// New creates a Storage rooted at dir. The directory is created on first save.
func New(dir string) *Storage {
	return &Storage{dir: dir}
}

// Path returns the file used for key.
func (s *Storage) Path(key memory.Key) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.json", escapeOwner(key.Owner), key.Day))
}

// Load reads the state for key. A missing file yields (nil, nil).
func (s *Storage) Load(_ context.Context, key memory.Key) (*memory.State, error) {
	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory file: %w", err)
	}

	var st memory.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse memory file %s: %w", s.Path(key), err)
	}
	return &st, nil
}

// Save writes the state for key through a temp file and rename.
func (s *Storage) Save(_ context.Context, key memory.Key, state *memory.State) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory state: %w", err)
	}

	path := s.Path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace memory file: %w", err)
	}
	return nil
}

// escapeOwner keeps owner names inside the directory. The encoding is
// reversible, so distinct owners never share a file.
func escapeOwner(owner string) string {
	return url.QueryEscape(owner)
}
