// Package audio provides the media element engines play through: load a
// source, wait until it can play, then play/pause with lifecycle callbacks.
package audio

import (
	"context"
	"errors"
)

// Errors returned by media elements.
var (
	// ErrNoSource is returned by Play before any successful Load.
	ErrNoSource = errors.New("no audio source loaded")

	// ErrUnsupportedSource is returned for sources the element cannot fetch.
	ErrUnsupportedSource = errors.New("unsupported audio source")

	// ErrClosed is returned once the element has been closed.
	ErrClosed = errors.New("audio element is closed")
)

// Handlers receive playback notifications for one loaded source.
// Callbacks run on a goroutine owned by the element; OnPlay always
// precedes OnEnded or OnError.
type Handlers struct {
	OnPlay  func()
	OnEnded func()
	OnError func(error)
}

// Element is a single-source media player owned by one engine.
type Element interface {
	// Load fetches src and prepares it for playback, returning once the
	// source can play. Handlers from previous loads are detached.
	Load(ctx context.Context, src string, h Handlers) error

	// Play starts the loaded source, or continues it after Pause.
	Play() error

	// Pause suspends output. It is a no-op when nothing is playing.
	Pause()

	// SetVolume sets the output volume (0 to 1).
	SetVolume(v float64)

	// SetPlaybackRate sets the rate applied when playback next starts from the beginning.
	SetPlaybackRate(r float64)

	// Playing reports whether audio is being produced.
	Playing() bool
}

func (h Handlers) play() {
	if h.OnPlay != nil {
		h.OnPlay()
	}
}

func (h Handlers) ended() {
	if h.OnEnded != nil {
		h.OnEnded()
	}
}

func (h Handlers) fail(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}
