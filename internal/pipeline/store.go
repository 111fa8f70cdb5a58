package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultStateFileName is the name of the shared state file.
const DefaultStateFileName = "source_code_analysis_state.json"

// Store persists PipelineState entries for many target directories in one
// JSON document keyed by canonical directory path.
type Store struct {
	path string
}

// NewStore creates a Store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the state file location in the system temp directory.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), DefaultStateFileName)
}

// DefaultStore returns a Store at DefaultPath.
func DefaultStore() *Store {
	return NewStore(DefaultPath())
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// CanonicalKey turns a target directory into its store key: absolute, cleaned,
// and with symlinks resolved when the directory exists.
func CanonicalKey(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.Clean(abs), nil
}

// readAll loads the whole document. Entries stay raw so that keys this
// process never touches are written back exactly as they were read.
func (s *Store) readAll() (map[string]json.RawMessage, error) {
	entries := make(map[string]json.RawMessage)
	if err := ReadJSON(s.path, &entries); err != nil {
		if os.IsNotExist(err) {
			return make(map[string]json.RawMessage), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if entries == nil {
		entries = make(map[string]json.RawMessage)
	}
	return entries, nil
}

func decodeState(key string, raw json.RawMessage) (*PipelineState, error) {
	var ps PipelineState
	if err := json.Unmarshal(raw, &ps); err != nil {
		return nil, fmt.Errorf("decode state for %s: %w", key, err)
	}
	if ps.PendingFiles == nil {
		ps.PendingFiles = []string{}
	}
	return &ps, nil
}

// Load returns the state stored under key, or nil when the file or the key
// does not exist.
func (s *Store) Load(key string) (*PipelineState, error) {
	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}
	raw, ok := entries[key]
	if !ok {
		return nil, nil
	}
	return decodeState(key, raw)
}

// Save writes state under key as one transaction: read the full document,
// replace only this key, write the full document back atomically.
func (s *Store) Save(key string, state *PipelineState) error {
	entries, err := s.readAll()
	if err != nil {
		return err
	}

	state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state for %s: %w", key, err)
	}
	entries[key] = raw

	if err := WriteJSON(s.path, entries); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// Update performs a read-modify-write of the state stored under key.
func (s *Store) Update(key string, fn func(*PipelineState)) error {
	ps, err := s.Load(key)
	if err != nil {
		return err
	}
	if ps == nil {
		return fmt.Errorf("no saved state for %s", key)
	}
	fn(ps)
	return s.Save(key, ps)
}

// List returns every stored entry sorted by key. Entries that fail to decode
// are skipped.
func (s *Store) List() ([]Entry, error) {
	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		ps, err := decodeState(k, entries[k])
		if err != nil {
			continue
		}
		out = append(out, Entry{Key: k, State: *ps})
	}
	return out, nil
}
