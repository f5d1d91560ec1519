// Package countdown recomputes the remaining-time label for the active
// sale phase on a fixed one-second period.
package countdown

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// TickInterval is the fixed countdown period.
const TickInterval = 1 * time.Second

// EndedLabel is the terminal label once the phase window has elapsed.
const EndedLabel = "Phase has ended"

// RemainingTimeQuerier is the single ledger operation the timer needs.
type RemainingTimeQuerier interface {
	RemainingTimeInStage(ctx context.Context) (int64, error)
}

// FormatRemaining renders a second count as "{h}h {m}m {s}s" with no
// zero padding and no suppression of zero components. Any non-positive
// input maps to the terminal ended label.
func FormatRemaining(seconds int64) string {
	if seconds <= 0 {
		return EndedLabel
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// Timer is a single cooperative periodic task. Start launches the tick
// loop; Stop cancels it and waits for the goroutine to exit, so no tick
// ever outlives the timer.
type Timer struct {
	querier RemainingTimeQuerier
	logger  *log.Logger

	mu    sync.RWMutex
	label string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTimer creates a countdown timer. The label is empty until the
// first successful tick.
func NewTimer(querier RemainingTimeQuerier, logger *log.Logger) *Timer {
	if logger == nil {
		logger = log.Default()
	}
	return &Timer{
		querier: querier,
		logger:  logger,
	}
}

// Start begins ticking. Calling Start on a running timer is a no-op.
func (t *Timer) Start(ctx context.Context) {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return
	}
	tickCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(tickCtx)
}

// Stop cancels the tick loop and waits for it to exit.
func (t *Timer) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
}

// Label returns the last successfully computed remaining-time label.
func (t *Timer) Label() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.label
}

func (t *Timer) run(ctx context.Context) {
	defer t.wg.Done()

	// Compute an initial value before the first tick elapses.
	t.tick(ctx)

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// tick queries the ledger once. A failed read keeps the previous label;
// a transient error must never stop the timer.
func (t *Timer) tick(ctx context.Context) {
	seconds, err := t.querier.RemainingTimeInStage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Printf("[countdown] remaining time query failed: %v", err)
		}
		return
	}

	t.mu.Lock()
	t.label = FormatRemaining(seconds)
	t.mu.Unlock()
}
