// Package watch observes the task log and spec trees and triggers sync
// passes, and debounces file-change bursts into tracker batches.
package watch

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/coordkit/manifest/internal/engine"
)

// Source identifies which pipeline a sync report came from.
type Source int

const (
	// SourceTasks is a sync triggered by a task log change.
	SourceTasks Source = iota
	// SourceSpecs is a sync triggered by a spec tree change.
	SourceSpecs
)

// String returns a human-readable representation of the source.
func (s Source) String() string {
	switch s {
	case SourceTasks:
		return "tasks"
	case SourceSpecs:
		return "specs"
	default:
		return "unknown"
	}
}

// SyncFunc receives the outcome of each watcher-triggered sync pass.
type SyncFunc func(src Source, stats engine.Stats)

// Watcher observes source mutations via fsnotify and runs full sync
// passes inline. Callbacks run on the watcher's single event loop
// goroutine and must not block for long; a full pass over realistic
// data sizes is fast enough to run there.
type Watcher struct {
	engine *engine.Engine
	logger *log.Logger

	fsw     *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewWatcher creates a Watcher over the engine's sources. Start must be
// called before any events are delivered.
func NewWatcher(eng *engine.Engine, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[watch] ", log.LstdFlags)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		engine: eng,
		logger: logger,
		fsw:    fsw,
		done:   make(chan struct{}),
	}, nil
}

// Start begins watching the task log and spec subtrees. A task log
// write triggers a task sync pass; a spec document addition or edit
// triggers a spec sync pass. Both report their stats through onSync.
func (w *Watcher) Start(onSync SyncFunc) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	// The log file itself may not exist yet; watch its directory.
	logDir := filepath.Dir(w.engine.TaskLogPath())
	if err := w.fsw.Add(logDir); err != nil {
		return fmt.Errorf("failed to watch task log directory %s: %w", logDir, err)
	}

	for _, dir := range w.engine.SpecDirs() {
		if dir == "" {
			continue
		}
		if err := w.addTree(dir); err != nil {
			return err
		}
	}

	w.running = true
	w.wg.Add(1)
	go w.loop(onSync)
	return nil
}

// Stop stops future filesystem events and waits for the event loop to
// exit. It does not guarantee that any pending debounced batch is
// flushed; flush the Batcher explicitly before calling Stop when
// losing queued changes is unacceptable.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.fsw.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()
	return nil
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// addTree registers dir and every subdirectory with fsnotify, which is
// not recursive on its own. Missing trees are skipped.
func (w *Watcher) addTree(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop(onSync SyncFunc) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event, onSync)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Printf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event, onSync SyncFunc) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	if filepath.Clean(event.Name) == filepath.Clean(w.engine.TaskLogPath()) {
		stats, err := w.engine.SyncTasks()
		if err != nil {
			w.logger.Printf("ERROR: task sync failed: %v", err)
			return
		}
		if onSync != nil {
			onSync(SourceTasks, stats)
		}
		return
	}

	if !w.underSpecTree(event.Name) {
		return
	}

	// New subdirectories need their own watch before documents inside
	// them produce events.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil {
				w.logger.Printf("Failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".md") {
		return
	}

	stats, err := w.engine.SyncSpecs()
	if err != nil {
		w.logger.Printf("ERROR: spec sync failed: %v", err)
		return
	}
	if onSync != nil {
		onSync(SourceSpecs, stats)
	}
}

func (w *Watcher) underSpecTree(path string) bool {
	path = filepath.Clean(path)
	for _, dir := range w.engine.SpecDirs() {
		if dir == "" {
			continue
		}
		dir = filepath.Clean(dir)
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
