// Package tts defines the contract shared by speech engines: voices, speak
// options, lifecycle events and the structured errors they carry.
package tts

import (
	"context"
	"time"
)

// Engine defines the contract every speech backend satisfies.
type Engine interface {
	// Speak begins playback of utterance and returns immediately.
	// Progress is reported through onEvent: EventStart once audio is
	// audible, then exactly one of EventEnd or EventError. Calling Speak
	// while a previous session is active supersedes it; the superseded
	// session's output is paused first and its events are dropped.
	Speak(ctx context.Context, utterance string, opts SpeakOptions, onEvent EventFunc)

	// Stop halts any active or pending session. No further events fire
	// for the stopped session.
	Stop()

	// Pause suspends the current audio without ending the session.
	Pause()

	// Resume continues paused audio.
	Resume()

	// IsSpeaking reports whether the engine is currently producing audio.
	IsSpeaking() bool

	// Voices returns the catalog of voices this engine supports.
	Voices(ctx context.Context) ([]Voice, error)
}

// Prefetcher is implemented by engines that can warm their network or
// audio caches for a probable next utterance. Prefetch emits no events
// and swallows failures.
type Prefetcher interface {
	Prefetch(ctx context.Context, utterance string, opts SpeakOptions)
}

// StartScheduler is implemented by engines that can delay the audible
// start of the next Speak until an absolute time. A zero time clears
// the schedule.
type StartScheduler interface {
	SetNextStartTime(t time.Time, opts SpeakOptions)
}

// Wrapper is implemented by decorators so capability queries can reach
// the wrapped engine.
type Wrapper interface {
	Unwrap() Engine
}

// AsPrefetcher reports whether e, or an engine it wraps, supports Prefetch.
func AsPrefetcher(e Engine) (Prefetcher, bool) {
	for e != nil {
		if p, ok := e.(Prefetcher); ok {
			return p, true
		}
		w, ok := e.(Wrapper)
		if !ok {
			break
		}
		e = w.Unwrap()
	}
	return nil, false
}

// AsStartScheduler reports whether e, or an engine it wraps, supports
// SetNextStartTime.
func AsStartScheduler(e Engine) (StartScheduler, bool) {
	for e != nil {
		if s, ok := e.(StartScheduler); ok {
			return s, true
		}
		w, ok := e.(Wrapper)
		if !ok {
			break
		}
		e = w.Unwrap()
	}
	return nil, false
}
