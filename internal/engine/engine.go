// Package engine reconciles the task log and the spec trees into the
// manifest.
//
// Both pipelines share one shape: load the manifest, obtain the
// source's collapsed current-state view, diff it against the matching
// manifest collection, apply the add/update/remove policy, and persist.
// The engine fully owns the tasks and specs collections; the files
// collection belongs to the tracker and is never bulk-replaced here.
package engine

import (
	"fmt"
	"log"
	"os"
	"slices"

	"github.com/coordkit/manifest/internal/manifest"
	"github.com/coordkit/manifest/internal/specscan"
	"github.com/coordkit/manifest/internal/tasklog"
)

// Stats reports the outcome of one sync pass.
type Stats struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// Engine runs sync passes against one manifest store.
type Engine struct {
	store       *manifest.Store
	taskLogPath string
	activeDir   string
	draftDir    string
	logger      *log.Logger
}

// New creates an Engine. If logger is nil a stderr default is used.
func New(store *manifest.Store, taskLogPath, activeDir, draftDir string, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{
		store:       store,
		taskLogPath: taskLogPath,
		activeDir:   activeDir,
		draftDir:    draftDir,
		logger:      logger,
	}
}

// TaskLogPath returns the task log path this engine syncs from.
func (e *Engine) TaskLogPath() string {
	return e.taskLogPath
}

// SpecDirs returns the two spec subtrees this engine scans (active
// tree first).
func (e *Engine) SpecDirs() []string {
	return []string{e.activeDir, e.draftDir}
}

// SyncTasks reconciles the collapsed task log into the manifest's
// tasks collection.
//
// New tasks are created from source fields, with the record's single
// spec field becoming a one-element relatedSpecs list. Existing tasks
// only have their status overwritten; every other field is preserved
// so manual enrichment made directly on the manifest survives. Tasks
// absent from the source are removed. As a side effect, every
// spec-linked task id is appended to that spec's relatedTasks
// (idempotent).
//
// An id format failure from the collapse aborts the whole pass: the
// error propagates unchanged and nothing is written.
func (e *Engine) SyncTasks() (Stats, error) {
	m, err := e.store.Load()
	if err != nil {
		return Stats{}, err
	}

	records, err := tasklog.New(e.logger).CollapseFile(e.taskLogPath)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	changed := false

	for id, rec := range records {
		existing, ok := m.Tasks[id]
		if !ok {
			entry := &manifest.TaskEntry{
				Title:        rec.Title,
				Status:       rec.Status,
				RelatedSpecs: []string{},
				RelatedRules: []string{},
				OutputFiles:  []string{},
				Dependencies: []string{},
			}
			if rec.Spec != "" {
				entry.RelatedSpecs = []string{rec.Spec}
			}
			if len(rec.Dependencies) > 0 {
				entry.Dependencies = slices.Clone(rec.Dependencies)
			}
			m.Tasks[id] = entry
			stats.Added++
			changed = true
		} else if existing.Status != rec.Status {
			existing.Status = rec.Status
			stats.Updated++
			changed = true
		}
	}

	for id := range m.Tasks {
		if _, ok := records[id]; !ok {
			delete(m.Tasks, id)
			stats.Removed++
			changed = true
		}
	}

	// Back-reference side effect: a spec keeps every task reference it
	// ever gains, even if the task later drops its spec link.
	for id, rec := range records {
		if rec.Spec == "" {
			continue
		}
		spec, ok := m.Specs[rec.Spec]
		if !ok {
			e.logger.Printf("WARNING: task %s references unknown spec %s", id, rec.Spec)
			continue
		}
		if !slices.Contains(spec.RelatedTasks, id) {
			spec.RelatedTasks = append(spec.RelatedTasks, id)
			changed = true
		}
	}

	e.warnDangling(m)

	if changed {
		m.LastUpdated = e.store.Now()
		if err := e.store.Save(m); err != nil {
			return Stats{}, err
		}
	}

	e.logger.Printf("Task sync complete: added=%d updated=%d removed=%d",
		stats.Added, stats.Updated, stats.Removed)
	return stats, nil
}

// SyncSpecs reconciles the scanned spec trees into the manifest's
// specs collection.
//
// New specs are created from header fields. Existing specs only have
// their status overwritten. Spec removal is deliberately not detected:
// a spec leaves the index by being archived via status, never by
// deletion, so Removed is always zero.
func (e *Engine) SyncSpecs() (Stats, error) {
	m, err := e.store.Load()
	if err != nil {
		return Stats{}, err
	}

	docs, err := specscan.New(e.activeDir, e.draftDir, e.logger).Scan()
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	changed := false

	for _, doc := range docs {
		existing, ok := m.Specs[doc.ID]
		if !ok {
			m.Specs[doc.ID] = &manifest.SpecEntry{
				Path:          doc.Path,
				Status:        doc.Status,
				RelatedTasks:  cloneOrEmpty(doc.RelatedTasks),
				RelatedRules:  cloneOrEmpty(doc.RelatedRules),
				AffectedFiles: cloneOrEmpty(doc.AffectedFiles),
				Dependencies:  cloneOrEmpty(doc.Dependencies),
			}
			stats.Added++
			changed = true
		} else if existing.Status != doc.Status {
			existing.Status = doc.Status
			stats.Updated++
			changed = true
		}
	}

	e.warnDangling(m)

	if changed {
		m.LastUpdated = e.store.Now()
		if err := e.store.Save(m); err != nil {
			return Stats{}, err
		}
	}

	e.logger.Printf("Spec sync complete: added=%d updated=%d removed=%d",
		stats.Added, stats.Updated, stats.Removed)
	return stats, nil
}

// warnDangling logs cross-references to entries that do not exist.
// Dangling references never block a sync; with task removal
// implemented and spec removal not, they are an expected state.
func (e *Engine) warnDangling(m *manifest.Manifest) {
	for id, spec := range m.Specs {
		for _, taskID := range spec.RelatedTasks {
			if _, ok := m.Tasks[taskID]; !ok {
				e.logger.Printf("WARNING: spec %s references missing task %s", id, taskID)
			}
		}
	}
	for id, task := range m.Tasks {
		for _, specID := range task.RelatedSpecs {
			if _, ok := m.Specs[specID]; !ok {
				e.logger.Printf("WARNING: task %s references missing spec %s", id, specID)
			}
		}
	}
}

func cloneOrEmpty(s []string) []string {
	if len(s) == 0 {
		return []string{}
	}
	return slices.Clone(s)
}

// MigrateResult reports the outcome of a migration pass.
type MigrateResult struct {
	TaskStats  Stats
	SpecStats  Stats
	BackupPath string
}

// Migrate runs a full sync pass wrapped in snapshot, validation, and
// rollback.
//
// The manifest is snapshotted first, then both pipelines run. If the
// resulting manifest fails structural validation, the pre-migration
// backup is restored and the validation error returned. Sync errors propagate without rollback:
// a failed task sync writes nothing, so there is nothing to roll back.
func (e *Engine) Migrate() (*MigrateResult, error) {
	backupPath, err := e.store.Snapshot()
	if err != nil {
		return nil, err
	}
	e.logger.Printf("Migration backup: %s", backupPath)

	result := &MigrateResult{BackupPath: backupPath}

	if result.TaskStats, err = e.SyncTasks(); err != nil {
		return nil, fmt.Errorf("migration task sync failed: %w", err)
	}
	if result.SpecStats, err = e.SyncSpecs(); err != nil {
		return nil, fmt.Errorf("migration spec sync failed: %w", err)
	}

	m, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		e.logger.Printf("Migration produced invalid manifest, restoring %s", backupPath)
		if restoreErr := e.store.Restore(backupPath); restoreErr != nil {
			return nil, fmt.Errorf("restore after failed validation: %w (validation: %v)", restoreErr, err)
		}
		return nil, err
	}

	return result, nil
}
