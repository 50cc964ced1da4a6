package ondevice

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/readaloud/ttsengine/tts"
)

// VoicesTimeout bounds the wait for a host that populates its voice list
// asynchronously.
const VoicesTimeout = 1500 * time.Millisecond

// Engine speaks through a Synthesizer.
type Engine struct {
	host          Synthesizer
	voicesTimeout time.Duration

	gen tts.Generation

	mu      sync.Mutex
	current *Utterance
}

// New creates an Engine over host.
func New(host Synthesizer) *Engine {
	return &Engine{host: host, voicesTimeout: VoicesTimeout}
}

// Speak implements tts.Engine.
func (e *Engine) Speak(_ context.Context, utterance string, opts tts.SpeakOptions, onEvent tts.EventFunc) {
	opts = opts.WithDefaults()
	id := e.gen.Next()
	emit := e.gen.Guard(id, onEvent)

	if utterance == "" {
		emit(tts.ErrorEvent(tts.NewError(tts.KindInvalidInput, "utterance is empty", nil)))
		return
	}
	if err := opts.Validate(); err != nil {
		emit(tts.ErrorEvent(err))
		return
	}

	u := &Utterance{
		Text:   utterance,
		Voice:  opts.Voice.Name,
		Lang:   opts.EffectiveLang(),
		Rate:   opts.Rate,
		Pitch:  opts.Pitch,
		Volume: opts.Volume,
	}
	u.onStart = func() { emit(tts.StartEvent()) }
	u.onEnd = func() { emit(tts.EndEvent(utterance)) }
	u.onError = func(err error) { emit(tts.ErrorEvent(tts.NewError(tts.KindHost, "", err))) }

	e.mu.Lock()
	prev := e.current
	e.current = u
	e.mu.Unlock()
	if prev != nil {
		prev.detachEnd()
	}

	if err := e.host.Speak(u); err != nil {
		emit(tts.ErrorEvent(tts.NewError(tts.KindHost, "", err)))
	}
}

// Stop detaches the current end handler, then cancels the host.
func (e *Engine) Stop() {
	e.mu.Lock()
	u := e.current
	e.current = nil
	e.mu.Unlock()

	if u != nil {
		u.detachEnd()
	}
	e.gen.Invalidate()
	e.host.Cancel()
}

// Pause implements tts.Engine.
func (e *Engine) Pause() { e.host.Pause() }

// Resume implements tts.Engine.
func (e *Engine) Resume() { e.host.Resume() }

// IsSpeaking implements tts.Engine.
func (e *Engine) IsSpeaking() bool { return e.host.Speaking() }

// Voices returns the host's voices. When the host has none yet, it waits
// for a change notification up to the voices timeout and returns an empty
// list if none arrives.
func (e *Engine) Voices(ctx context.Context) ([]tts.Voice, error) {
	voices := e.host.Voices()
	if len(voices) == 0 {
		timer := time.NewTimer(e.voicesTimeout)
		defer timer.Stop()
		select {
		case <-e.host.VoicesChanged():
			voices = e.host.Voices()
		case <-timer.C:
			log.Warn("Timed out waiting for on-device voices", "timeout", e.voicesTimeout)
			return []tts.Voice{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := make([]tts.Voice, 0, len(voices))
	for _, v := range voices {
		out = append(out, tts.Voice{Name: v.Name, Lang: v.Lang, Gender: v.Gender})
	}
	return out, nil
}

var _ tts.Engine = (*Engine)(nil)
