package watch

import "time"

// Timer is a resettable one-shot timer. *time.Timer satisfies it.
type Timer interface {
	Reset(d time.Duration) bool
	Stop() bool
}

// TimerService creates timers. The batcher takes one so tests can
// drive time manually instead of waiting on wall-clock timers.
type TimerService interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realTimerService struct{}

func (realTimerService) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// NewTimerService returns a TimerService backed by the runtime timers.
func NewTimerService() TimerService {
	return realTimerService{}
}
