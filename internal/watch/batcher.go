package watch

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/coordkit/manifest/internal/tracker"
)

// DefaultDebounce is the trailing-edge delay applied to file-change
// bursts before the accumulated batch is flushed.
const DefaultDebounce = 1000 * time.Millisecond

// Batcher accumulates file changes and flushes them as one tracker
// batch after a quiet period.
//
// Each Add resets the delay timer, so the flush fires DefaultDebounce
// (or the configured delay) after the last event in a burst, not the
// first. Flushing writes the manifest once for the whole batch.
//
// Stopping a Watcher does not flush a pending batch; callers wanting
// zero-loss shutdown must call Flush explicitly before disposing.
type Batcher struct {
	delay  time.Duration
	timers TimerService
	flush  func([]tracker.Change) error
	logger *log.Logger

	mu      sync.Mutex
	pending []tracker.Change
	timer   Timer
}

// NewBatcher creates a Batcher that delivers batches to flush. A zero
// delay falls back to DefaultDebounce, a nil timers to the runtime
// timer service, a nil logger to a stderr default.
func NewBatcher(delay time.Duration, timers TimerService, flush func([]tracker.Change) error, logger *log.Logger) *Batcher {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if timers == nil {
		timers = NewTimerService()
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[watch] ", log.LstdFlags)
	}
	return &Batcher{
		delay:  delay,
		timers: timers,
		flush:  flush,
		logger: logger,
	}
}

// Add queues a file change and resets the delay timer.
func (b *Batcher) Add(ch tracker.Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, ch)
	if b.timer == nil {
		b.timer = b.timers.AfterFunc(b.delay, b.fire)
	} else {
		b.timer.Reset(b.delay)
	}
}

// Pending returns the number of queued changes.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush delivers any queued changes immediately and clears the buffer.
// It is the explicit drain for shutdown.
func (b *Batcher) Flush() error {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return b.flush(batch)
}

// fire is the timer callback: the quiet period elapsed with no new
// arrivals.
func (b *Batcher) fire() {
	if err := b.Flush(); err != nil {
		b.logger.Printf("ERROR: failed to flush file changes: %v", err)
	}
}
