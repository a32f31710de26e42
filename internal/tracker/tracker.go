// Package tracker records file creation/modification attribution in
// the manifest's files collection.
package tracker

import (
	"log"
	"os"
	"slices"

	"github.com/coordkit/manifest/internal/manifest"
	"github.com/coordkit/manifest/internal/pattern"
)

// Change is one file mutation to attribute to a task.
type Change struct {
	Path   string `json:"path"`
	TaskID string `json:"taskId"`
	IsNew  bool   `json:"isNew"`
}

// Tracker applies file changes to the manifest. It owns the files
// collection incrementally; sync passes never bulk-replace it.
type Tracker struct {
	store  *manifest.Store
	logger *log.Logger
}

// New creates a Tracker. If logger is nil a stderr default is used.
func New(store *manifest.Store, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.New(os.Stderr, "[tracker] ", log.LstdFlags)
	}
	return &Tracker{store: store, logger: logger}
}

// Track records a single file change in one load/persist cycle.
func (t *Tracker) Track(ch Change) error {
	return t.TrackBatch([]Change{ch})
}

// TrackBatch records every change within one load/persist cycle,
// avoiding one manifest write per event. An empty batch writes
// nothing.
//
// For each change: the file entry is created on demand; a new file
// gets createdBy, an edit appends to modifiedBy without duplicates;
// the task's outputFiles gains the path when the task exists; and the
// file's governedBy/rulesApplied are recomputed from the manifest's
// current specs and rules.
func (t *Tracker) TrackBatch(changes []Change) error {
	if len(changes) == 0 {
		return nil
	}

	m, err := t.store.Load()
	if err != nil {
		return err
	}

	for _, ch := range changes {
		t.apply(m, ch)
	}

	m.LastUpdated = t.store.Now()
	if err := t.store.Save(m); err != nil {
		return err
	}

	t.logger.Printf("Tracked %d file change(s)", len(changes))
	return nil
}

func (t *Tracker) apply(m *manifest.Manifest, ch Change) {
	fe, ok := m.Files[ch.Path]
	if !ok {
		fe = &manifest.FileEntry{
			ModifiedBy:   []string{},
			GovernedBy:   []string{},
			RulesApplied: []string{},
		}
		m.Files[ch.Path] = fe
	}

	if ch.IsNew {
		fe.CreatedBy = ch.TaskID
	} else if !slices.Contains(fe.ModifiedBy, ch.TaskID) {
		fe.ModifiedBy = append(fe.ModifiedBy, ch.TaskID)
	}

	if task, ok := m.Tasks[ch.TaskID]; ok {
		if !slices.Contains(task.OutputFiles, ch.Path) {
			task.OutputFiles = append(task.OutputFiles, ch.Path)
		}
	} else {
		t.logger.Printf("WARNING: file %s attributed to unknown task %s", ch.Path, ch.TaskID)
	}

	// Derived values: always recomputed from the live collections.
	fe.GovernedBy = pattern.GoverningSpecs(ch.Path, m.Specs)
	fe.RulesApplied = pattern.ApplicableRules(ch.Path, m.Rules)
}
