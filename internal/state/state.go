// Package state remembers where each book was left off.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	stateFileName = "progress.json"
	hashBytes     = 8192 // First 8KB for content hash
)

// Progress is the resume point of one book.
type Progress struct {
	Chapter   int `json:"chapter"`
	Paragraph int `json:"paragraph"`
}

// Store manages persistent reading progress keyed by content hash.
type Store struct {
	path string
	data map[string]Progress
	mu   sync.RWMutex
}

// NewStore opens the progress file in the state directory, creating the
// directory if needed. An unreadable or corrupt file yields an empty store;
// the next Set rewrites it.
func NewStore() (*Store, error) {
	dir := stateDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}

	store := &Store{
		path: filepath.Join(dir, stateFileName),
		data: make(map[string]Progress),
	}
	if err := store.load(); err != nil {
		store.data = make(map[string]Progress)
	}
	return store, nil
}

// stateDir follows the XDG base directory layout, falling back to
// ~/.local/state when XDG_STATE_HOME is unset.
func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "sdreader")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "sdreader")
}

// ComputeHash identifies a book by the first 8KB of its file, so a renamed
// copy keeps its progress.
func ComputeHash(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, hashBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}

	hash := sha256.Sum256(buf[:n])
	return hex.EncodeToString(hash[:16]), nil
}

// Get returns the saved progress for hash. ok is false for a book never
// opened before.
func (s *Store) Get(hash string) (p Progress, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok = s.data[hash]
	return p, ok
}

// Set saves progress for hash. Negative positions are stored as zero.
func (s *Store) Set(hash string, p Progress) error {
	p.Chapter = max(p.Chapter, 0)
	p.Paragraph = max(p.Paragraph, 0)

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.data[hash]; ok && old == p {
		return nil
	}
	s.data[hash] = p
	return s.save()
}

// Clear removes saved progress for hash.
func (s *Store) Clear(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, hash)
	return s.save()
}

// load reads the progress file into s.data. A missing file is an empty
// store.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.data)
}

// save writes s.data to a temporary file and renames it over the progress
// file, so a crash mid-write keeps the previous contents. Callers hold mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
