package autochat

import "time"

// Timer schedules deferred work. The production implementation wraps
// [time.AfterFunc]; tests substitute a fake clock so interval and follow-up
// behaviour can be driven deterministically.
type Timer interface {
	// AfterFunc runs fn on its own goroutine after d elapses. The returned
	// cancel function stops the timer; calling it after fn has started is a
	// no-op. Cancel must be safe to call more than once.
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// realTimer is the wall-clock Timer.
type realTimer struct{}

// NewTimer returns the wall-clock [Timer].
func NewTimer() Timer { return realTimer{} }

func (realTimer) AfterFunc(d time.Duration, fn func()) (cancel func()) {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
