package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Janitor periodically calls Sweep on a limiter so identities that stopped
// sending do not stay in memory forever. Lazy cleanup alone only trims an
// identity when that identity is queried again.
type Janitor struct {
	target   Sweeper
	interval time.Duration

	mu     sync.Mutex
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewJanitor starts a background goroutine sweeping target every interval.
// interval must be positive. Close must be called to stop it.
func NewJanitor(target Sweeper, interval time.Duration) (*Janitor, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: sweep interval must be positive, got %s", ErrInvalidConfiguration, interval)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: sweep target is required", ErrInvalidConfiguration)
	}

	j := &Janitor{
		target:   target,
		interval: interval,
		done:     make(chan struct{}),
	}
	j.wg.Add(1)
	go j.run()
	return j, nil
}

// Close stops the background goroutine and waits for it to exit. It is safe
// to call more than once.
func (j *Janitor) Close() {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.done)
	}
	j.mu.Unlock()
	j.wg.Wait()
}

func (j *Janitor) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			if n := j.target.Sweep(); n > 0 {
				slog.Debug("Swept idle identities", "removed", n)
			}
		}
	}
}
