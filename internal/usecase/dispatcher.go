package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStageInProgress is returned when a stage is submitted for a story that
// already has one running.
var ErrStageInProgress = errors.New("a stage is already running for this story")

// Dispatcher runs pipeline stages off the triggering caller's goroutine. At
// most one stage is active per story id at any time; a stage runs to its
// terminal state once started — there is no cancellation.
type Dispatcher struct {
	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewDispatcher builds an idle dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		active: map[string]struct{}{},
		logger: logger,
	}
}

// Submit starts stage in the background, keyed by story id. The stage error
// is logged, never escalated: by the time a stage fails, its audit rows
// already carry the detail for the status poller.
func (d *Dispatcher) Submit(storyID string, stage func(ctx context.Context) error) error {
	d.mu.Lock()
	if _, busy := d.active[storyID]; busy {
		d.mu.Unlock()
		return ErrStageInProgress
	}
	d.active[storyID] = struct{}{}
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.active, storyID)
			d.mu.Unlock()
		}()
		defer func() {
			if rec := recover(); rec != nil && d.logger != nil {
				d.logger.Error("stage panicked", "story_id", storyID, "panic", rec)
			}
		}()

		// The triggering request is long gone; the stage gets its own context.
		if err := stage(context.Background()); err != nil && d.logger != nil {
			d.logger.Error("stage failed", "story_id", storyID, "error", err)
		}
	}()

	return nil
}

// Wait blocks until every in-flight stage has reached its terminal state.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
