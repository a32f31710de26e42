// Package query serves read-only bidirectional lookups over a cached,
// mtime-invalidated copy of the manifest.
package query

import (
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coordkit/manifest/internal/manifest"
	"github.com/coordkit/manifest/internal/pattern"
)

// StatFunc reports a file's metadata. Tests inject one to control
// cache invalidation without touching the filesystem clock.
type StatFunc func(path string) (os.FileInfo, error)

// SpecInfo is one spec in an ActiveSpecs listing.
type SpecInfo struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Status string `json:"status"`
}

// Task roles in a TasksForFile result.
const (
	RoleCreated  = "created"
	RoleModified = "modified"
)

// FileTask is one task attribution for a file.
type FileTask struct {
	ID     string `json:"id"`
	Role   string `json:"role"` // created or modified
	Title  string `json:"title,omitempty"`
	Status string `json:"status,omitempty"`
}

// Queries reads the manifest through a parsed cache keyed by the
// file's last-observed modification time. Every read stats the file
// first; the cache is only reused while the mtime is unchanged.
type Queries struct {
	store  *manifest.Store
	stat   StatFunc
	logger *log.Logger

	mu     sync.Mutex
	cached *manifest.Manifest
	mtime  time.Time
}

// New creates a Queries over the manifest at path using os.Stat.
func New(path string, logger *log.Logger) *Queries {
	return NewWithStat(path, os.Stat, logger)
}

// NewWithStat creates a Queries with an injectable stat function. A
// nil stat falls back to os.Stat, a nil logger to a stderr default.
func NewWithStat(path string, stat StatFunc, logger *log.Logger) *Queries {
	if stat == nil {
		stat = os.Stat
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[query] ", log.LstdFlags)
	}
	return &Queries{
		store:  manifest.NewStore(path),
		stat:   stat,
		logger: logger,
	}
}

// manifest returns the cached manifest, reloading when the file's
// modification time has moved since the cache was built.
func (q *Queries) manifest() (*manifest.Manifest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	info, err := q.stat(q.store.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, manifest.ErrMissingManifest
		}
		return nil, err
	}

	if q.cached != nil && info.ModTime().Equal(q.mtime) {
		return q.cached, nil
	}

	m, err := q.store.Load()
	if err != nil {
		return nil, err
	}
	q.cached = m
	q.mtime = info.ModTime()
	return m, nil
}

// ActiveSpecs returns every spec with active status, sorted by id.
func (q *Queries) ActiveSpecs() ([]SpecInfo, error) {
	m, err := q.manifest()
	if err != nil {
		return nil, err
	}

	var specs []SpecInfo
	for id, spec := range m.Specs {
		if spec.Status == manifest.StatusActive {
			specs = append(specs, SpecInfo{ID: id, Path: spec.Path, Status: spec.Status})
		}
	}
	slices.SortFunc(specs, func(a, b SpecInfo) int {
		return strings.Compare(a.ID, b.ID)
	})
	return specs, nil
}

// TasksForSpec returns the sorted ids of tasks linked to the spec,
// from both directions of the cross-reference: the spec's relatedTasks
// and any task whose relatedSpecs names the spec. An unknown spec id
// simply yields no results.
func (q *Queries) TasksForSpec(specID string) ([]string, error) {
	m, err := q.manifest()
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	if spec, ok := m.Specs[specID]; ok {
		for _, id := range spec.RelatedTasks {
			set[id] = struct{}{}
		}
	}
	for id, task := range m.Tasks {
		if slices.Contains(task.RelatedSpecs, specID) {
			set[id] = struct{}{}
		}
	}

	return sortedKeys(set), nil
}

// RulesForTask returns the sorted names of rules governing the task:
// the task's own relatedRules plus any rule whose appliesTo.tasks
// names the task.
func (q *Queries) RulesForTask(taskID string) ([]string, error) {
	m, err := q.manifest()
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	if task, ok := m.Tasks[taskID]; ok {
		for _, name := range task.RelatedRules {
			set[name] = struct{}{}
		}
	}
	for name, rule := range m.Rules {
		if slices.Contains(rule.AppliesTo.Tasks, taskID) {
			set[name] = struct{}{}
		}
	}

	return sortedKeys(set), nil
}

// SpecsForFile returns the sorted ids of specs whose file patterns
// match path, resolved live against the current specs collection. This
// deliberately does not consult the cached FileEntry.governedBy: a file
// that was never explicitly tracked has no entry, and the two code
// paths can disagree after spec edits until the file is next tracked.
func (q *Queries) SpecsForFile(path string) ([]string, error) {
	m, err := q.manifest()
	if err != nil {
		return nil, err
	}
	return pattern.GoverningSpecs(path, m.Specs), nil
}

// TasksForFile returns the tasks attributed to path via the file
// entry's createdBy/modifiedBy, joined against the tasks collection.
// Each result is tagged with its role; attribution to a task that has
// since been removed is kept, with the title and status left empty.
func (q *Queries) TasksForFile(path string) ([]FileTask, error) {
	m, err := q.manifest()
	if err != nil {
		return nil, err
	}

	fe, ok := m.Files[path]
	if !ok {
		return nil, nil
	}

	var out []FileTask
	add := func(id, role string) {
		ft := FileTask{ID: id, Role: role}
		if task, ok := m.Tasks[id]; ok {
			ft.Title = task.Title
			ft.Status = task.Status
		}
		out = append(out, ft)
	}

	if fe.CreatedBy != "" {
		add(fe.CreatedBy, RoleCreated)
	}
	for _, id := range fe.ModifiedBy {
		add(id, RoleModified)
	}
	return out, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
