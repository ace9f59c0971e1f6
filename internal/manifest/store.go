package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/quarryhq/quarry/internal/fault"
)

// DefaultPath is the manifest location relative to the working directory.
const DefaultPath = "upload_manifest.json"

// Store reads and writes a manifest file as a single atomic unit.
//
// The manifest is shared state across runs of the upload tool. Store enforces
// a single writer with an advisory lock on a sibling .lock file; two
// concurrent upload runs would otherwise race the load-modify-save cycle and
// silently lose updates.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore creates a store for the manifest at path. An empty path means
// DefaultPath.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the manifest file location.
func (s *Store) Path() string { return s.path }

// Load reads the full manifest. An absent file yields an empty manifest;
// malformed JSON is an error.
func (s *Store) Load() (Manifest, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{}, nil
		}
		return nil, fmt.Errorf("reading manifest %s: %w", s.path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", s.path, err)
	}
	if m == nil {
		m = Manifest{}
	}
	return m, nil
}

// Save writes the full manifest atomically: marshal, write to a temp file in
// the same directory, rename over the target. A reader never observes a
// partial manifest.
func (s *Store) Save(m Manifest) error {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp manifest: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing manifest %s: %w", s.path, err)
	}
	return nil
}

// Lock acquires the single-writer lock without blocking. If another process
// holds it, Lock fails with a conflict fault so the caller aborts before any
// upload instead of racing.
func (s *Store) Lock() error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring manifest lock: %w", err)
	}
	if !ok {
		return fault.New(fault.KindConflict, "manifest %s is locked by another upload run", s.path)
	}
	return nil
}

// Unlock releases the single-writer lock.
func (s *Store) Unlock() error {
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("releasing manifest lock: %w", err)
	}
	return nil
}
