package manifest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
}

// TestStore_LoadMissing verifies that loading a nonexistent manifest
// yields ErrMissingManifest.
func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "manifest.json"))

	_, err := store.Load()
	if !errors.Is(err, ErrMissingManifest) {
		t.Fatalf("Load() error = %v, want ErrMissingManifest", err)
	}
}

// TestStore_SaveLoadRoundTrip verifies that a saved manifest loads back
// with identical content.
func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	store := NewStoreWithClock(path, testClock())

	m := New()
	m.LastUpdated = store.Now()
	m.Tasks["bd-a1"] = &TaskEntry{Title: "First", Status: "open"}
	m.Specs["spec-auth"] = &SpecEntry{Path: "specs/auth.md", Status: StatusActive}

	if err := store.Save(m); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if loaded.Version != FormatVersion {
		t.Errorf("Version = %q, want %q", loaded.Version, FormatVersion)
	}
	if loaded.Tasks["bd-a1"].Title != "First" {
		t.Errorf("task title = %q, want First", loaded.Tasks["bd-a1"].Title)
	}
	if loaded.Specs["spec-auth"].Status != StatusActive {
		t.Errorf("spec status = %q, want active", loaded.Specs["spec-auth"].Status)
	}
}

// TestStore_SaveDeterministic verifies that saving identical content
// twice produces byte-identical files.
func TestStore_SaveDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	store := NewStoreWithClock(path, testClock())

	m := New()
	m.LastUpdated = store.Now()
	m.Tasks["bd-b"] = &TaskEntry{Title: "B", Status: "open"}
	m.Tasks["bd-a"] = &TaskEntry{Title: "A", Status: "open"}

	if err := store.Save(m); err != nil {
		t.Fatalf("first Save() failed: %v", err)
	}
	first, _ := os.ReadFile(path)

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := store.Save(loaded); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}
	second, _ := os.ReadFile(path)

	if !bytes.Equal(first, second) {
		t.Error("save-load-save produced different bytes")
	}
}

// TestStore_SaveLeavesNoTempFile verifies atomic write cleanup.
func TestStore_SaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "manifest.json"))

	if err := store.Save(New()); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

// TestStore_SnapshotRestore verifies the backup round trip.
func TestStore_SnapshotRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	store := NewStoreWithClock(path, testClock())

	m := New()
	m.Tasks["bd-keep"] = &TaskEntry{Title: "Keep", Status: "open"}
	if err := store.Save(m); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	original, _ := os.ReadFile(path)

	backupPath, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if !strings.Contains(backupPath, ".backup.") {
		t.Errorf("backup path %q not timestamped", backupPath)
	}

	// Clobber, then restore.
	m.Tasks["bd-junk"] = &TaskEntry{Title: "Junk", Status: "open"}
	if err := store.Save(m); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Restore(backupPath); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}

	restored, _ := os.ReadFile(path)
	if !bytes.Equal(original, restored) {
		t.Error("restored manifest differs from original")
	}
}

// TestStore_LoadNewerMajorVersion verifies the forward-compat gate.
func TestStore_LoadNewerMajorVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	data := `{"version":"2.0.0","specs":{},"tasks":{},"rules":{},"files":{}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := NewStore(path).Load()
	if err == nil {
		t.Fatal("Load() should reject a newer major format version")
	}
}

// TestStore_LoadNormalizesMissingCollections verifies that a manifest
// omitting top-level collections loads with empty maps, so callers can
// index and assign without nil checks.
func TestStore_LoadNormalizesMissingCollections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	data := `{"version":"1.0.0","lastUpdated":"2025-06-01T12:00:00Z","specs":{}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	m, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if m.Tasks == nil || m.Rules == nil || m.Files == nil {
		t.Fatalf("Load() left nil collections: tasks=%v rules=%v files=%v",
			m.Tasks == nil, m.Rules == nil, m.Files == nil)
	}

	// The normalized maps are writable.
	m.Tasks["bd-a1"] = &TaskEntry{Title: "First", Status: "open"}
	if m.Tasks["bd-a1"].Title != "First" {
		t.Error("assignment to normalized tasks map did not stick")
	}
}

// TestStore_Init verifies skeleton creation and the no-overwrite guard.
func TestStore_Init(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	store := NewStoreWithClock(path, testClock())

	if err := store.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	m, err := store.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(m.Specs) != 0 || len(m.Tasks) != 0 || len(m.Rules) != 0 || len(m.Files) != 0 {
		t.Error("skeleton collections should be empty")
	}
	if err := m.Validate(); err != nil {
		t.Errorf("skeleton should validate: %v", err)
	}

	if err := store.Init(); err == nil {
		t.Error("second Init() should fail, not overwrite")
	}
}

// TestManifest_Validate verifies that missing collections are reported.
func TestManifest_Validate(t *testing.T) {
	m := New()
	m.Files = nil
	m.Rules = nil

	err := m.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v, want *ValidationError", err)
	}
	want := []string{"rules", "files"}
	if len(verr.Missing) != 2 || verr.Missing[0] != want[0] || verr.Missing[1] != want[1] {
		t.Errorf("Missing = %v, want %v", verr.Missing, want)
	}
}
