package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
)

// FileStore keeps state in a JSON object on disk, one entry per key.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore stores state under dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path() string {
	return filepath.Join(s.dir, "state.json")
}

func (s *FileStore) readAll() (map[string]json.RawMessage, error) {
	entries := map[string]json.RawMessage{}
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, eris.Wrap(err, "state: read file")
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrap(err, "state: parse file")
	}
	return entries, nil
}

func (s *FileStore) Load(ctx context.Context) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.readAll()
	if err != nil {
		return Snapshot{}, false, err
	}
	raw, ok := entries[Key]
	if !ok {
		return Snapshot{}, false, nil
	}
	snap, err := decode(raw)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *FileStore) Save(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		// Unreadable file, start fresh
		entries = map[string]json.RawMessage{}
	}
	raw, err := encode(snap)
	if err != nil {
		return err
	}
	entries[Key] = raw

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return eris.Wrap(err, "state: create dir")
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "state: encode file")
	}
	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return eris.Wrap(err, "state: write file")
	}
	return eris.Wrap(os.Rename(tmp, s.path()), "state: replace file")
}

func (s *FileStore) Close() error { return nil }
