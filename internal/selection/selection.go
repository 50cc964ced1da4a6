// Package selection decides which engine backs a voice.
package selection

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/language"

	"github.com/readaloud/ttsengine/tts"
	"github.com/readaloud/ttsengine/tts/engines"
)

// Backend names an engine family.
type Backend string

// Backends in the order their voices are listed.
const (
	OnDevice  Backend = "ondevice"
	Translate Backend = "translate"
	Neural    Backend = "neural"
	Remote    Backend = "remote"
)

var backends = []Backend{OnDevice, Translate, Neural, Remote}

var (
	neuralName = regexp.MustCompile(`^Google\w+ `)
	remoteName = regexp.MustCompile(`^(Amazon|Microsoft|ReadAloud) `)
)

// BackendOf classifies a voice by its name.
func BackendOf(v tts.Voice) Backend {
	switch {
	case strings.HasPrefix(v.Name, "GoogleTranslate "):
		return Translate
	case neuralName.MatchString(v.Name):
		return Neural
	case remoteName.MatchString(v.Name):
		return Remote
	default:
		return OnDevice
	}
}

// Option configures a Selector.
type Option func(*Selector)

// WithTimeout wraps every engine in a timeout decorator. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(s *Selector) { s.timeout = d }
}

// Selector owns one engine instance per backend.
type Selector struct {
	engines map[Backend]tts.Engine
	timeout time.Duration

	mu      sync.Mutex
	wrapped map[Backend]tts.Engine
}

// New creates a Selector. Backends missing from engines are unavailable.
func New(engines map[Backend]tts.Engine, opts ...Option) *Selector {
	s := &Selector{
		engines: make(map[Backend]tts.Engine, len(engines)),
		wrapped: make(map[Backend]tts.Engine),
	}
	for b, e := range engines {
		if e != nil {
			s.engines[b] = e
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the engine for b, timeout-wrapped when configured. The
// same instance is returned on every call.
func (s *Selector) Engine(b Backend) (tts.Engine, error) {
	base, ok := s.engines[b]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tts.ErrEngineUnavailable, b)
	}
	if s.timeout <= 0 {
		return base, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.wrapped[b]; ok {
		return e, nil
	}
	e := engines.NewTimeoutEngine(base, s.timeout)
	s.wrapped[b] = e
	return e, nil
}

// EngineFor returns the engine that speaks v.
func (s *Selector) EngineFor(v tts.Voice) (tts.Engine, error) {
	return s.Engine(BackendOf(v))
}

// Voices lists every backend's voices. Backends that fail are logged and
// skipped.
func (s *Selector) Voices(ctx context.Context) []tts.Voice {
	var all []tts.Voice
	for _, b := range backends {
		e, ok := s.engines[b]
		if !ok {
			continue
		}
		voices, err := e.Voices(ctx)
		if err != nil {
			log.Warn("Cannot list voices", "backend", b, "error", err)
			continue
		}
		all = append(all, voices...)
	}
	return all
}

// Find returns the voice named name.
func (s *Selector) Find(ctx context.Context, name string) (tts.Voice, error) {
	for _, v := range s.Voices(ctx) {
		if v.Name == name {
			return v, nil
		}
	}
	return tts.Voice{}, fmt.Errorf("%w: %q", tts.ErrVoiceNotFound, name)
}

// Match returns the voice whose language best fits lang. The result is
// marked AutoSelect by the caller when used.
func (s *Selector) Match(ctx context.Context, lang string) (tts.Voice, error) {
	want, err := language.Parse(lang)
	if err != nil {
		return tts.Voice{}, tts.NewError(tts.KindInvalidInput, fmt.Sprintf("invalid language %q", lang), err)
	}
	return MatchVoice(s.Voices(ctx), want)
}

// MatchVoice picks the voice in voices closest to want.
func MatchVoice(voices []tts.Voice, want language.Tag) (tts.Voice, error) {
	var (
		tags       []language.Tag
		candidates []tts.Voice
	)
	for _, v := range voices {
		tag, err := language.Parse(v.Lang)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		candidates = append(candidates, v)
	}
	if len(tags) == 0 {
		return tts.Voice{}, fmt.Errorf("%w: no voice for %s", tts.ErrVoiceNotFound, want)
	}

	_, i, conf := language.NewMatcher(tags).Match(want)
	if conf == language.No {
		return tts.Voice{}, fmt.Errorf("%w: no voice for %s", tts.ErrVoiceNotFound, want)
	}
	return candidates[i], nil
}
