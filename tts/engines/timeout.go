// Package engines provides engine decorators.
package engines

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/readaloud/ttsengine/tts"
)

// DefaultTimeout bounds how long a speak may stay silent.
const DefaultTimeout = 16 * time.Second

// TimeoutEngine wraps an engine and guarantees that every Speak reaches a
// terminal event within the configured duration. When the timer fires
// before the wrapped engine reported anything, it is stopped and an error
// is reported. When the utterance had already started, it is treated as
// finished and an end event is reported.
type TimeoutEngine struct {
	base    tts.Engine
	timeout time.Duration

	gen      tts.Generation
	mu       sync.Mutex
	timer    *time.Timer
	timerFor uint64
	deadline time.Time
	// expiry and remaining hold a timer suspended by Pause.
	expiry    func()
	remaining time.Duration
}

// NewTimeoutEngine wraps base. A non-positive timeout uses DefaultTimeout.
func NewTimeoutEngine(base tts.Engine, timeout time.Duration) *TimeoutEngine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TimeoutEngine{base: base, timeout: timeout}
}

// Speak starts the timer and forwards to the wrapped engine.
func (e *TimeoutEngine) Speak(ctx context.Context, utterance string, opts tts.SpeakOptions, onEvent tts.EventFunc) {
	id := e.gen.Next()
	emit := e.gen.Guard(id, onEvent)

	var started atomic.Bool
	e.mu.Lock()
	e.stopTimerLocked()
	e.timerFor = id
	e.armLocked(e.timeout, func() {
		e.expire(id, utterance, started.Load(), emit)
	})
	e.mu.Unlock()

	e.base.Speak(ctx, utterance, opts, func(ev tts.Event) {
		if !e.gen.IsCurrent(id) {
			return
		}
		if ev.Type == tts.EventStart {
			started.Store(true)
		} else {
			e.clearTimer(id)
		}
		emit(ev)
	})
}

func (e *TimeoutEngine) expire(id uint64, utterance string, started bool, emit tts.EventFunc) {
	e.mu.Lock()
	if e.timerFor == id {
		e.timer = nil
		e.expiry = nil
	}
	e.mu.Unlock()
	if !e.gen.IsCurrent(id) {
		return
	}

	e.base.Stop()
	if started {
		log.Debug("Utterance ran past timeout, reporting end", "timeout", e.timeout)
		emit(tts.EndEvent(utterance))
		return
	}
	log.Warn("Engine never started", "timeout", e.timeout)
	emit(tts.ErrorEvent(tts.NewError(tts.KindTimeout, "", tts.ErrNeverStarted)))
}

// Stop clears the timer and stops the wrapped engine.
func (e *TimeoutEngine) Stop() {
	e.mu.Lock()
	e.stopTimerLocked()
	e.mu.Unlock()
	e.gen.Invalidate()
	e.base.Stop()
}

// Pause pauses the wrapped engine and suspends the timer.
func (e *TimeoutEngine) Pause() {
	e.mu.Lock()
	if e.timer != nil && e.timer.Stop() {
		e.timer = nil
		e.remaining = max(time.Until(e.deadline), 0)
	}
	e.mu.Unlock()
	e.base.Pause()
}

// Resume resumes the wrapped engine and re-arms a suspended timer with
// the time that was left.
func (e *TimeoutEngine) Resume() {
	e.mu.Lock()
	if e.timer == nil && e.expiry != nil && e.gen.IsCurrent(e.timerFor) {
		e.armLocked(e.remaining, e.expiry)
	}
	e.mu.Unlock()
	e.base.Resume()
}

// IsSpeaking reports the wrapped engine's state.
func (e *TimeoutEngine) IsSpeaking() bool { return e.base.IsSpeaking() }

// Voices returns the wrapped engine's voices.
func (e *TimeoutEngine) Voices(ctx context.Context) ([]tts.Voice, error) {
	return e.base.Voices(ctx)
}

// Unwrap returns the wrapped engine.
func (e *TimeoutEngine) Unwrap() tts.Engine { return e.base }

func (e *TimeoutEngine) clearTimer(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timerFor == id {
		e.stopTimerLocked()
	}
}

func (e *TimeoutEngine) armLocked(d time.Duration, fn func()) {
	e.expiry = fn
	e.deadline = time.Now().Add(d)
	e.timer = time.AfterFunc(d, fn)
}

func (e *TimeoutEngine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.expiry = nil
}

var (
	_ tts.Engine  = (*TimeoutEngine)(nil)
	_ tts.Wrapper = (*TimeoutEngine)(nil)
)
