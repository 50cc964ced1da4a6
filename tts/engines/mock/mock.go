// Package mock provides a scriptable engine for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/readaloud/ttsengine/tts"
)

// Behavior selects what Speak does on its own.
type Behavior int

const (
	// Manual emits nothing; tests drive events with Start, End and Fail.
	Manual Behavior = iota
	// Complete emits start, then end after Duration.
	Complete
	// Failing emits a single error event carrying Err.
	Failing
)

// Call records the arguments of one Speak or Prefetch.
type Call struct {
	Utterance string
	Options   tts.SpeakOptions
}

// Engine is a tts.Engine whose events are scripted. It also implements
// tts.Prefetcher and tts.StartScheduler and records their use.
type Engine struct {
	Behavior Behavior
	Duration time.Duration
	Err      error

	voices []tts.Voice
	gen    tts.Generation

	mu         sync.Mutex
	emit       tts.EventFunc
	utterance  string
	speaking   bool
	paused     bool
	calls      []Call
	prefetches []Call
	nextStart  time.Time
	stops      int
	pauses     int
	resumes    int
}

// New creates a Manual engine serving voices.
func New(voices ...tts.Voice) *Engine {
	return &Engine{voices: voices}
}

// Speak records the call and runs the configured behavior.
func (e *Engine) Speak(ctx context.Context, utterance string, opts tts.SpeakOptions, onEvent tts.EventFunc) {
	id := e.gen.Next()
	guarded := e.gen.Guard(id, onEvent)
	emit := func(ev tts.Event) {
		if !e.gen.IsCurrent(id) {
			return
		}
		e.mu.Lock()
		switch ev.Type {
		case tts.EventStart:
			e.speaking = true
		default:
			e.speaking = false
		}
		e.mu.Unlock()
		guarded(ev)
	}

	e.mu.Lock()
	e.calls = append(e.calls, Call{Utterance: utterance, Options: opts})
	e.emit = emit
	e.utterance = utterance
	e.speaking = false
	e.paused = false
	behavior, d, err := e.Behavior, e.Duration, e.Err
	e.mu.Unlock()

	switch behavior {
	case Complete:
		go func() {
			emit(tts.StartEvent())
			select {
			case <-time.After(d):
				emit(tts.EndEvent(utterance))
			case <-ctx.Done():
				emit(tts.ErrorEvent(ctx.Err()))
			}
		}()
	case Failing:
		go emit(tts.ErrorEvent(err))
	}
}

// Start emits a start event for the current session.
func (e *Engine) Start() { e.send(tts.StartEvent()) }

// End emits an end event for the current session.
func (e *Engine) End() {
	e.mu.Lock()
	u := e.utterance
	e.mu.Unlock()
	e.send(tts.EndEvent(u))
}

// Fail emits an error event for the current session.
func (e *Engine) Fail(err error) { e.send(tts.ErrorEvent(err)) }

func (e *Engine) send(ev tts.Event) {
	e.mu.Lock()
	emit := e.emit
	e.mu.Unlock()
	if emit != nil {
		emit(ev)
	}
}

// Stop retires the current session.
func (e *Engine) Stop() {
	e.gen.Invalidate()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	e.speaking = false
}

// Pause records the call.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauses++
	e.paused = true
}

// Resume records the call.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resumes++
	e.paused = false
}

// IsSpeaking reports whether a started session has not yet ended.
func (e *Engine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking && !e.paused
}

// Voices returns the configured voices.
func (e *Engine) Voices(context.Context) ([]tts.Voice, error) {
	return append([]tts.Voice(nil), e.voices...), nil
}

// Prefetch records the call.
func (e *Engine) Prefetch(_ context.Context, utterance string, opts tts.SpeakOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prefetches = append(e.prefetches, Call{Utterance: utterance, Options: opts})
}

// SetNextStartTime records t.
func (e *Engine) SetNextStartTime(t time.Time, _ tts.SpeakOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextStart = t
}

// Calls returns the recorded Speak calls.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Prefetches returns the recorded Prefetch calls.
func (e *Engine) Prefetches() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.prefetches...)
}

// NextStartTime returns the last scheduled start.
func (e *Engine) NextStartTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextStart
}

// Stops returns how many times Stop was called.
func (e *Engine) Stops() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stops
}

// Pauses returns how many times Pause was called.
func (e *Engine) Pauses() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pauses
}

// Resumes returns how many times Resume was called.
func (e *Engine) Resumes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resumes
}

var (
	_ tts.Engine         = (*Engine)(nil)
	_ tts.Prefetcher     = (*Engine)(nil)
	_ tts.StartScheduler = (*Engine)(nil)
)
