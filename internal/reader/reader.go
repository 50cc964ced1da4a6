// Package reader reads a list of utterances back to back on one engine,
// warming the next utterance while the current one plays.
package reader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/readaloud/ttsengine/tts"
)

// DefaultGap is the pause between utterances.
const DefaultGap = 300 * time.Millisecond

// ProgressFunc observes events. index is the utterance the event belongs to.
type ProgressFunc func(index int, ev tts.Event)

// Option configures a Reader.
type Option func(*Reader)

// WithGap sets the silence between utterances.
func WithGap(d time.Duration) Option {
	return func(r *Reader) { r.gap = d }
}

// WithProgress registers fn for every event.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Reader) { r.progress = fn }
}

// Reader speaks utterances in order.
type Reader struct {
	engine   tts.Engine
	gap      time.Duration
	progress ProgressFunc
	now      func() time.Time
}

// New creates a Reader on engine.
func New(engine tts.Engine, opts ...Option) *Reader {
	r := &Reader{engine: engine, gap: DefaultGap, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read speaks utterances and returns once the last one ends. The first
// error event aborts the read and is returned. Cancelling ctx stops the
// engine.
func (r *Reader) Read(ctx context.Context, utterances []string, opts tts.SpeakOptions) error {
	prefetcher, canPrefetch := tts.AsPrefetcher(r.engine)
	scheduler, canSchedule := tts.AsStartScheduler(r.engine)
	if canSchedule {
		defer scheduler.SetNextStartTime(time.Time{}, opts)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for i, text := range utterances {
		// Prefetch of the next utterance starts after Speak accepted this one.
		var warm func()
		if canPrefetch && i+1 < len(utterances) {
			next := utterances[i+1]
			warm = func() {
				wg.Add(1)
				go func() {
					defer wg.Done()
					prefetcher.Prefetch(ctx, next, opts)
				}()
			}
		}

		if err := r.speak(ctx, i, text, opts, warm); err != nil {
			return err
		}
		if i+1 == len(utterances) || r.gap <= 0 {
			continue
		}

		if canSchedule {
			scheduler.SetNextStartTime(r.now().Add(r.gap), opts)
			continue
		}
		t := time.NewTimer(r.gap)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return nil
}

// speak plays one utterance and waits for its terminal event. spoken,
// when set, runs as soon as the engine has accepted the utterance.
func (r *Reader) speak(ctx context.Context, i int, text string, opts tts.SpeakOptions, spoken func()) error {
	done := make(chan tts.Event, 1)
	r.engine.Speak(ctx, text, opts, func(ev tts.Event) {
		if r.progress != nil {
			r.progress(i, ev)
		}
		if ev.Terminal() {
			select {
			case done <- ev:
			default:
			}
		}
	})
	if spoken != nil {
		spoken()
	}

	select {
	case ev := <-done:
		if ev.Type == tts.EventError {
			log.Debug("Utterance failed", "index", i, "error", ev.ErrorMessage())
			if ev.Err != nil {
				return fmt.Errorf("utterance %d: %w", i+1, ev.Err)
			}
			return fmt.Errorf("utterance %d failed", i+1)
		}
		return nil
	case <-ctx.Done():
		r.engine.Stop()
		return ctx.Err()
	}
}
