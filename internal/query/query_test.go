package query

import (
	"errors"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/coordkit/manifest/internal/manifest"
)

func quiet() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// fakeInfo satisfies os.FileInfo with a controllable mtime.
type fakeInfo struct {
	mtime time.Time
}

func (f fakeInfo) Name() string       { return "manifest.json" }
func (f fakeInfo) Size() int64        { return 0 }
func (f fakeInfo) Mode() fs.FileMode  { return 0644 }
func (f fakeInfo) ModTime() time.Time { return f.mtime }
func (f fakeInfo) IsDir() bool        { return false }
func (f fakeInfo) Sys() any           { return nil }

func writeManifest(t *testing.T, mutate func(*manifest.Manifest)) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.json")
	store := manifest.NewStore(path)

	m := manifest.New()
	mutate(m)
	if err := store.Save(m); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	return path
}

// TestActiveSpecs verifies filtering and ordering.
func TestActiveSpecs(t *testing.T) {
	path := writeManifest(t, func(m *manifest.Manifest) {
		m.Specs["spec-b"] = &manifest.SpecEntry{Path: "specs/b.md", Status: "active"}
		m.Specs["spec-a"] = &manifest.SpecEntry{Path: "specs/a.md", Status: "active"}
		m.Specs["spec-old"] = &manifest.SpecEntry{Path: "specs/old.md", Status: "archived"}
		m.Specs["spec-wip"] = &manifest.SpecEntry{Path: "specs/wip.md", Status: "draft"}
	})

	specs, err := New(path, quiet()).ActiveSpecs()
	if err != nil {
		t.Fatalf("ActiveSpecs() failed: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(specs))
	}
	if specs[0].ID != "spec-a" || specs[1].ID != "spec-b" {
		t.Errorf("order = %s, %s; want spec-a then spec-b", specs[0].ID, specs[1].ID)
	}
}

// TestTasksForSpec verifies the union of both reference directions.
func TestTasksForSpec(t *testing.T) {
	path := writeManifest(t, func(m *manifest.Manifest) {
		m.Specs["spec-auth"] = &manifest.SpecEntry{
			Status:       "active",
			RelatedTasks: []string{"bd-a1"},
		}
		m.Tasks["bd-a1"] = &manifest.TaskEntry{Title: "One", Status: "open"}
		m.Tasks["bd-a2"] = &manifest.TaskEntry{
			Title: "Two", Status: "open",
			RelatedSpecs: []string{"spec-auth"},
		}
		m.Tasks["bd-a3"] = &manifest.TaskEntry{Title: "Unrelated", Status: "open"}
	})
	q := New(path, quiet())

	ids, err := q.TasksForSpec("spec-auth")
	if err != nil {
		t.Fatalf("TasksForSpec() failed: %v", err)
	}
	if !slices.Equal(ids, []string{"bd-a1", "bd-a2"}) {
		t.Errorf("ids = %v, want [bd-a1 bd-a2]", ids)
	}

	ids, err = q.TasksForSpec("spec-nope")
	if err != nil {
		t.Fatalf("TasksForSpec(unknown) failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("unknown spec yielded %v", ids)
	}
}

// TestRulesForTask verifies the union of task.relatedRules and
// rule.appliesTo.tasks.
func TestRulesForTask(t *testing.T) {
	path := writeManifest(t, func(m *manifest.Manifest) {
		m.Tasks["bd-a1"] = &manifest.TaskEntry{
			Title: "One", Status: "open",
			RelatedRules: []string{"security"},
		}
		m.Rules["security"] = &manifest.RuleEntry{Path: "rules/security.md"}
		m.Rules["review"] = &manifest.RuleEntry{
			Path:      "rules/review.md",
			AppliesTo: manifest.AppliesTo{Tasks: []string{"bd-a1"}},
		}
		m.Rules["other"] = &manifest.RuleEntry{Path: "rules/other.md"}
	})

	names, err := New(path, quiet()).RulesForTask("bd-a1")
	if err != nil {
		t.Fatalf("RulesForTask() failed: %v", err)
	}
	if !slices.Equal(names, []string{"review", "security"}) {
		t.Errorf("names = %v, want [review security]", names)
	}
}

// TestSpecsForFile verifies live pattern resolution, including for
// files that were never tracked and have no FileEntry.
func TestSpecsForFile(t *testing.T) {
	path := writeManifest(t, func(m *manifest.Manifest) {
		m.Specs["spec-auth"] = &manifest.SpecEntry{
			Status:        "active",
			AffectedFiles: []string{"src/auth/**/*.ts"},
		}
	})

	ids, err := New(path, quiet()).SpecsForFile("src/auth/login.ts")
	if err != nil {
		t.Fatalf("SpecsForFile() failed: %v", err)
	}
	if !slices.Equal(ids, []string{"spec-auth"}) {
		t.Errorf("ids = %v, want [spec-auth]", ids)
	}
}

// TestTasksForFile verifies role tagging and the join against tasks.
func TestTasksForFile(t *testing.T) {
	path := writeManifest(t, func(m *manifest.Manifest) {
		m.Tasks["bd-a1"] = &manifest.TaskEntry{Title: "Creator", Status: "closed"}
		m.Files["x.ts"] = &manifest.FileEntry{
			CreatedBy:  "bd-a1",
			ModifiedBy: []string{"bd-gone"},
		}
	})

	tasks, err := New(path, quiet()).TasksForFile("x.ts")
	if err != nil {
		t.Fatalf("TasksForFile() failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[0].ID != "bd-a1" || tasks[0].Role != RoleCreated || tasks[0].Title != "Creator" {
		t.Errorf("created = %+v", tasks[0])
	}
	if tasks[1].ID != "bd-gone" || tasks[1].Role != RoleModified || tasks[1].Title != "" {
		t.Errorf("modified = %+v", tasks[1])
	}

	tasks, err = New(path, quiet()).TasksForFile("untracked.ts")
	if err != nil {
		t.Fatalf("TasksForFile(untracked) failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("untracked file yielded %v", tasks)
	}
}

// TestCache_ReusedWhileMtimeUnchanged verifies that the manifest is
// parsed once per observed mtime.
func TestCache_ReusedWhileMtimeUnchanged(t *testing.T) {
	path := writeManifest(t, func(m *manifest.Manifest) {
		m.Specs["spec-a"] = &manifest.SpecEntry{Status: "active"}
	})

	mtime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	stats := 0
	stat := func(string) (os.FileInfo, error) {
		stats++
		return fakeInfo{mtime: mtime}, nil
	}
	q := NewWithStat(path, stat, quiet())

	if _, err := q.ActiveSpecs(); err != nil {
		t.Fatalf("ActiveSpecs() failed: %v", err)
	}

	// Mutate the file on disk without moving the observed mtime: the
	// cache must keep serving the old parse.
	store := manifest.NewStore(path)
	m, _ := store.Load()
	m.Specs["spec-b"] = &manifest.SpecEntry{Status: "active"}
	if err := store.Save(m); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	specs, err := q.ActiveSpecs()
	if err != nil {
		t.Fatalf("second ActiveSpecs() failed: %v", err)
	}
	if len(specs) != 1 {
		t.Errorf("cache miss despite unchanged mtime: %d specs", len(specs))
	}
	if stats != 2 {
		t.Errorf("stat called %d times, want 2 (once per read)", stats)
	}

	// Move the mtime: the next read must reload.
	mtime = mtime.Add(time.Second)
	specs, err = q.ActiveSpecs()
	if err != nil {
		t.Fatalf("third ActiveSpecs() failed: %v", err)
	}
	if len(specs) != 2 {
		t.Errorf("stale cache after mtime change: %d specs", len(specs))
	}
}

// TestQueries_MissingManifest verifies the fatal-missing behavior.
func TestQueries_MissingManifest(t *testing.T) {
	q := New(filepath.Join(t.TempDir(), "nope.json"), quiet())

	_, err := q.ActiveSpecs()
	if !errors.Is(err, manifest.ErrMissingManifest) {
		t.Fatalf("error = %v, want ErrMissingManifest", err)
	}
}
