// Package cloud implements engines backed by third-party speech APIs.
// Both resolve an utterance to a playable source, keep one prefetched
// result, and play through a media element.
package cloud

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/readaloud/ttsengine/tts"
	"github.com/readaloud/ttsengine/tts/audio"
)

// resolveFunc turns an utterance into a media source.
type resolveFunc func(ctx context.Context, utterance string, opts tts.SpeakOptions) (string, error)

// prefetched is the single cached resolution. done is closed once src
// or err is set.
type prefetched struct {
	utterance string
	opts      tts.SpeakOptions
	done      chan struct{}
	src       string
	err       error
}

func (p *prefetched) matches(utterance string, opts tts.SpeakOptions) bool {
	return p != nil && p.utterance == utterance && p.opts == opts
}

// player is the playback core shared by the cloud engines.
type player struct {
	name       string
	element    audio.Element
	resolve    resolveFunc
	rateFactor float64

	gen tts.Generation

	mu       sync.Mutex
	session  *tts.Session
	slot     *prefetched
	speaking bool
	paused   bool
}

func newPlayer(name string, element audio.Element, resolve resolveFunc, rateFactor float64) *player {
	if rateFactor <= 0 {
		rateFactor = 1
	}
	return &player{name: name, element: element, resolve: resolve, rateFactor: rateFactor}
}

func (p *player) Speak(ctx context.Context, utterance string, opts tts.SpeakOptions, onEvent tts.EventFunc) {
	opts = opts.WithDefaults()
	id := p.gen.Next()
	emit := p.gen.Guard(id, onEvent)
	sess := tts.NewSession(id)

	p.mu.Lock()
	p.session = sess
	p.speaking = false
	p.paused = false
	slot := p.slot
	if !slot.matches(utterance, opts) {
		p.slot = nil
		slot = nil
	}
	p.mu.Unlock()

	p.element.Pause()
	p.element.SetVolume(opts.Volume)
	p.element.SetPlaybackRate(opts.Rate * p.rateFactor)

	go func() {
		defer sess.Settle()
		if err := p.run(ctx, id, utterance, opts, slot, emit); err != nil {
			p.setSpeaking(id, false)
			emit(tts.ErrorEvent(tts.PlaybackError(err)))
		}
	}()
}

func (p *player) run(ctx context.Context, id uint64, utterance string, opts tts.SpeakOptions, slot *prefetched, emit tts.EventFunc) error {
	if utterance == "" {
		return tts.NewError(tts.KindInvalidInput, "utterance is empty", nil)
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	src, err := p.source(ctx, utterance, opts, slot)
	if err != nil {
		return err
	}
	if !p.gen.IsCurrent(id) {
		return nil
	}

	h := audio.Handlers{
		OnPlay: func() {
			p.setSpeaking(id, true)
			emit(tts.StartEvent())
		},
		OnEnded: func() {
			p.setSpeaking(id, false)
			emit(tts.EndEvent(utterance))
		},
		OnError: func(err error) {
			p.setSpeaking(id, false)
			emit(tts.ErrorEvent(tts.NewError(tts.KindHost, "", err)))
		},
	}
	if err := p.element.Load(ctx, src, h); err != nil {
		return tts.NewError(tts.KindHost, "", err)
	}
	if !p.gen.IsCurrent(id) {
		return nil
	}
	return p.element.Play()
}

// source returns the prefetched source when it resolved successfully,
// and resolves afresh otherwise.
func (p *player) source(ctx context.Context, utterance string, opts tts.SpeakOptions, slot *prefetched) (string, error) {
	if slot != nil {
		select {
		case <-slot.done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		if slot.err == nil {
			log.Debug("Using prefetched audio", "engine", p.name)
			return slot.src, nil
		}
	}
	return p.resolve(ctx, utterance, opts)
}

// Prefetch resolves utterance into the single cache slot, replacing any
// previous entry. It blocks until resolution finishes.
func (p *player) Prefetch(ctx context.Context, utterance string, opts tts.SpeakOptions) {
	if utterance == "" {
		return
	}
	opts = opts.WithDefaults()
	slot := &prefetched{utterance: utterance, opts: opts, done: make(chan struct{})}

	p.mu.Lock()
	if p.slot.matches(utterance, opts) {
		p.mu.Unlock()
		return
	}
	p.slot = slot
	p.mu.Unlock()

	slot.src, slot.err = p.resolve(ctx, utterance, opts)
	close(slot.done)
	if slot.err != nil {
		log.Warn("Prefetch failed", "engine", p.name, "error", slot.err)
		p.mu.Lock()
		if p.slot == slot {
			p.slot = nil
		}
		p.mu.Unlock()
	}
}

func (p *player) setSpeaking(id uint64, v bool) {
	if !p.gen.IsCurrent(id) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speaking = v
}

func (p *player) Stop() {
	stopped := p.gen.Next()
	p.mu.Lock()
	sess := p.session
	p.speaking = false
	p.mu.Unlock()

	tts.AfterSettle(sess, func() {
		if p.gen.IsCurrent(stopped) {
			p.element.Pause()
		}
	})
}

func (p *player) Pause() {
	current := p.gen.Current()
	p.mu.Lock()
	sess := p.session
	p.paused = true
	p.mu.Unlock()

	tts.AfterSettle(sess, func() {
		if p.gen.IsCurrent(current) && p.isPaused() {
			p.element.Pause()
		}
	})
}

func (p *player) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *player) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	if err := p.element.Play(); err != nil {
		log.Debug("Resume failed", "engine", p.name, "error", err)
	}
}

func (p *player) IsSpeaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking && p.element.Playing()
}
