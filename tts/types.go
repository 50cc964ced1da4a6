package tts

import (
	"fmt"
	"unicode/utf8"
)

// Voice identifies a voice by name and language.
type Voice struct {
	Name   string `json:"voiceName" yaml:"voiceName"`
	Lang   string `json:"lang" yaml:"lang"`
	Gender string `json:"gender,omitempty" yaml:"gender,omitempty"`
}

// Same reports whether two voices have the same identity.
func (v Voice) Same(o Voice) bool {
	return v.Name == o.Name && v.Lang == o.Lang
}

// String returns the voice name and language.
func (v Voice) String() string {
	if v.Lang == "" {
		return v.Name
	}
	return fmt.Sprintf("%s (%s)", v.Name, v.Lang)
}

// SpeakOptions holds the per-utterance parameters. Zero values for Rate,
// Pitch and Volume mean 1.
type SpeakOptions struct {
	Voice Voice
	// AutoSelect marks a voice chosen by the caller's automatic selection
	// rather than by the user; gated voices in this mode run as a trial.
	AutoSelect bool
	Lang       string
	Rate       float64
	Pitch      float64
	Volume     float64
}

// WithDefaults returns a copy of o with unset numeric fields set to 1.
func (o SpeakOptions) WithDefaults() SpeakOptions {
	if o.Rate == 0 {
		o.Rate = 1
	}
	if o.Pitch == 0 {
		o.Pitch = 1
	}
	if o.Volume == 0 {
		o.Volume = 1
	}
	return o
}

// Validate checks the options after defaults have been applied.
func (o SpeakOptions) Validate() error {
	if o.Voice.Name == "" {
		return NewError(KindInvalidInput, "voice name is required", nil)
	}
	if o.Rate < 0 || o.Pitch < 0 {
		return NewError(KindInvalidInput, "rate and pitch must be positive", nil)
	}
	if o.Volume < 0 || o.Volume > 1 {
		return NewError(KindInvalidInput, fmt.Sprintf("volume must be between 0 and 1, got %.2f", o.Volume), nil)
	}
	return nil
}

// EffectiveLang returns the request language, falling back to the voice's.
func (o SpeakOptions) EffectiveLang() string {
	if o.Lang != "" {
		return o.Lang
	}
	return o.Voice.Lang
}

// EventType tags a lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventEnd   EventType = "end"
	EventError EventType = "error"
)

// Event is a playback lifecycle notification.
type Event struct {
	Type      EventType
	CharIndex int
	Err       error
}

// Terminal reports whether the event ends a session.
func (e Event) Terminal() bool {
	return e.Type == EventEnd || e.Type == EventError
}

// ErrorMessage returns the caller-visible message of an error event.
func (e Event) ErrorMessage() string {
	return ErrorMessage(e.Err)
}

// EventFunc receives lifecycle events.
type EventFunc func(Event)

// StartEvent returns the event emitted when audio begins.
func StartEvent() Event {
	return Event{Type: EventStart}
}

// EndEvent returns the event emitted when utterance has finished playing.
func EndEvent(utterance string) Event {
	return Event{Type: EventEnd, CharIndex: utf8.RuneCountInString(utterance)}
}

// ErrorEvent returns an error event for err.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Err: err}
}
