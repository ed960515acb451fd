package visualizer

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrLoopStarted = errors.New("visualizer: loop already started")
	ErrLoopStopped = errors.New("visualizer: loop stopped")
)

// Loop repeats Frame every Interval until stopped. It replaces a
// self-rescheduling frame callback with an owned task: Start once, Stop at
// teardown.
type Loop struct {
	Interval time.Duration
	Frame    func(ctx context.Context) error

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	frames  uint64
}

// Start launches the loop. The loop ends when ctx is cancelled, Stop is
// called, or Frame returns an error.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrLoopStopped
	}
	if l.started {
		return ErrLoopStarted
	}
	if l.Frame == nil {
		return errors.New("visualizer: loop has no frame function")
	}
	interval := l.Interval
	if interval <= 0 {
		interval = time.Second / 60
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.started = true
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(runCtx, interval)
	return nil
}

func (l *Loop) run(ctx context.Context, interval time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Frame(ctx); err != nil {
				l.mu.Lock()
				l.err = err
				l.mu.Unlock()
				return
			}
			l.mu.Lock()
			l.frames++
			l.mu.Unlock()
		}
	}
}

// Stop cancels the pending frame and waits for the loop to exit. A stopped
// loop cannot be started, even if it never ran. Stop is safe to repeat.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed once the loop has exited; nil before Start.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Running reports whether the loop has started and not yet exited.
func (l *Loop) Running() bool {
	done := l.Done()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Err is the frame error that ended the loop, if any.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Frames counts completed frames.
func (l *Loop) Frames() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}
