package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/mod/semver"
)

// Store owns the persisted manifest file. It is constructed with its
// path and an injectable clock; there are no package-level defaults or
// hidden singletons.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore creates a store for the manifest at path using the real
// clock.
func NewStore(path string) *Store {
	return NewStoreWithClock(path, time.Now)
}

// NewStoreWithClock creates a store with an injectable clock. Tests use
// this to get deterministic timestamps in lastUpdated and snapshot
// names. A nil now falls back to time.Now.
func NewStoreWithClock(path string, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{path: path, now: now}
}

// Path returns the manifest file path this store was constructed with.
func (s *Store) Path() string {
	return s.path
}

// Now returns the store's current time. Components that stamp
// lastUpdated go through this so the injected clock is honored.
func (s *Store) Now() time.Time {
	return s.now()
}

// Load reads and parses the manifest. A missing file yields an error
// wrapping ErrMissingManifest. Manifests written by a newer major
// format version are rejected. Missing top-level collections come back
// as empty maps, never nil.
func (s *Store) Load() (*Manifest, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingManifest, s.path)
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", s.path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", s.path, err)
	}

	if m.Version != "" && semver.Compare(semver.Major("v"+m.Version), semver.Major("v"+FormatVersion)) > 0 {
		return nil, fmt.Errorf("manifest %s has format version %s, newer than supported %s",
			s.path, m.Version, FormatVersion)
	}

	// Hand-edited or truncated manifests may omit collections; callers
	// index them without nil checks, so normalize here.
	if m.Specs == nil {
		m.Specs = make(map[string]*SpecEntry)
	}
	if m.Tasks == nil {
		m.Tasks = make(map[string]*TaskEntry)
	}
	if m.Rules == nil {
		m.Rules = make(map[string]*RuleEntry)
	}
	if m.Files == nil {
		m.Files = make(map[string]*FileEntry)
	}

	return &m, nil
}

// Save writes the manifest atomically: marshal, write to a temp file
// next to the target, then rename into place. The file is never left
// half-written. Map keys marshal in sorted order, so output bytes are
// deterministic for identical content.
func (s *Store) Save(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	data = append(data, '\n')

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp manifest: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}

	return nil
}

// Snapshot copies the current manifest file to a timestamped backup
// next to it and returns the backup path.
func (s *Store) Snapshot() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrMissingManifest, s.path)
		}
		return "", fmt.Errorf("failed to read manifest for snapshot: %w", err)
	}

	backupPath := s.path + ".backup." + s.now().Format("20060102-150405")
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	return backupPath, nil
}

// Restore replaces the manifest file with the contents of a backup
// produced by Snapshot. The write is atomic, same as Save.
func (s *Store) Restore(backupPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup %s: %w", backupPath, err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp manifest: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to restore manifest: %w", err)
	}

	return nil
}

// Init writes a fresh manifest skeleton at the store's path. It fails
// if a manifest already exists; initialization never overwrites data.
func (s *Store) Init() error {
	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("manifest already exists at %s", s.path)
	}

	m := New()
	m.LastUpdated = s.now()
	return s.Save(m)
}
