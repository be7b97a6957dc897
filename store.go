package ae3gis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Store owns the fleet config file. Every mutation flows through it so concurrent workers
// never interleave writes, and every save keeps the previous file as a rolling backup
// before atomically replacing the original.
type Store struct {
	mu   sync.Mutex
	path string
	cfg  *FleetConfig
}

// NewStore creates a store for a config path without touching the file
func NewStore(path string) *Store {
	return &Store{
		path: path,
		cfg:  &FleetConfig{},
	}
}

// LoadStore creates a store and loads the config file
func LoadStore(path string) (*Store, error) {
	s := NewStore(path)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the config file path
func (s *Store) Path() string {
	return s.path
}

// BackupPath returns where the previous file lands on save. The backup marker sits in
// front of the extension so config.generated.json backs up to config.generated.backup.json.
func (s *Store) BackupPath() string {
	ext := filepath.Ext(s.path)
	return strings.TrimSuffix(s.path, ext) + ".backup" + ext
}

// Fleet returns the loaded config. Mutations go through UpdateNode, not this.
func (s *Store) Fleet() *FleetConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Load reads and validates the config file. A missing file passes through untouched so
// callers can distinguish it from malformed content, which comes back as a ParseError.
func (s *Store) Load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	cfg := &FleetConfig{}
	if err := json.Unmarshal(b, cfg); err != nil {
		return &ParseError{Path: s.path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return &ParseError{Path: s.path, Err: err}
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// UpdateNode applies a mutation to one node by name. It is the single mutation path; the
// store's lock serializes it against other updates and saves.
func (s *Store) UpdateNode(name string, mutate func(*Node) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.cfg.FindNode(name)
	if n == nil {
		return fmt.Errorf("unknown node %q", name)
	}
	return mutate(n)
}

// Save persists the config. The previous file's bytes go to the backup path first; the new
// state lands in a temp file in the same directory and is renamed over the original, so
// the config file is never truncated in place. A failed backup aborts the save.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.MarshalIndent(s.cfg, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "marshal", Path: s.path, Err: err}
	}

	prev, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if err := os.WriteFile(s.BackupPath(), prev, 0644); err != nil {
			log.WithFields(log.Fields{
				"error": err,
				"func":  "os.WriteFile",
				"path":  s.BackupPath(),
			}).Error("could not write config backup")
			return &PersistenceError{Op: "backup", Path: s.BackupPath(), Err: err}
		}
	case os.IsNotExist(err):
		// first save, nothing to back up
	default:
		return &PersistenceError{Op: "read", Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".fleet-*")
	if err != nil {
		return &PersistenceError{Op: "tempfile", Path: s.path, Err: err}
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return &PersistenceError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return &PersistenceError{Op: "close", Path: s.path, Err: err}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return &PersistenceError{Op: "rename", Path: s.path, Err: err}
	}

	log.WithFields(log.Fields{
		"path":      s.path,
		"nodeCount": len(s.cfg.Nodes),
	}).Info("persisted fleet config")
	return nil
}
