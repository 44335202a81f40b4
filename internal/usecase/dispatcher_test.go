package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherOneActiveStagePerStory(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(discardLogger())
	release := make(chan struct{})

	if err := d.Submit("story-1", func(ctx context.Context) error {
		<-release
		return nil
	}); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	if err := d.Submit("story-1", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrStageInProgress) {
		t.Fatalf("second submit for same story: got %v, want ErrStageInProgress", err)
	}

	// Other stories are independent.
	if err := d.Submit("story-2", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("submit for other story: %v", err)
	}

	close(release)
	d.Wait()

	// Once the first stage finished, the story can be re-triggered.
	if err := d.Submit("story-1", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("resubmit after completion: %v", err)
	}
	d.Wait()
}

func TestDispatcherRecoversPanic(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(discardLogger())

	if err := d.Submit("story-1", func(ctx context.Context) error {
		panic("boom")
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	d.Wait()

	// The panicking stage must have released its slot.
	if err := d.Submit("story-1", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("resubmit after panic: %v", err)
	}
	d.Wait()
}
