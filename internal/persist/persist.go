// Package persist snapshots aggregates to human-readable JSON documents
// in a single directory, one file per aggregate. The contract is
// round-trip fidelity, not byte-stable output: fields absent from an
// older document deserialize to their zero values.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

// DefaultDir is where documents live unless configured otherwise.
const DefaultDir = "persistence"

// Document names for the three persisted aggregates.
const (
	AppConfigFile   = "app_config.json"
	AuthFile        = "auth.json"
	CollectionsFile = "collections.json"
)

// Store reads and writes the documents of one persistence directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on
// the first save.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{dir: dir}
}

// Dir returns the persistence directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Save serializes the aggregate to pretty JSON and writes it to its
// document. The write goes to a temporary file first and is renamed into
// place, so a crash mid-write cannot leave a torn document.
func (s *Store) Save(name string, aggregate any) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating persistence dir %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(aggregate, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing %s: %w", name, err)
	}
	data = append(data, '\n')

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// Load reads a document into the aggregate. A missing file returns
// fs.ErrNotExist.
func (s *Store) Load(name string, aggregate any) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, aggregate); err != nil {
		return fmt.Errorf("deserializing %s: %w", path, err)
	}
	return nil
}

// LoadOrDefault reads a document into the aggregate, which the caller
// passes in already default-constructed. A missing or unreadable
// document leaves the default in place; only corruption is logged.
func (s *Store) LoadOrDefault(name string, aggregate any) {
	err := s.Load(name, aggregate)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		log.Printf("No %s document yet, starting from defaults", name)
	default:
		log.Printf("Could not load %s, starting from defaults: %v", name, err)
	}
}
