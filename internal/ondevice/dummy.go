package ondevice

import (
	"context"

	"github.com/readaloud/ttsengine/tts"
)

// Dummy stands in when the machine has no speech host. It has no voices
// and fails every Speak.
type Dummy struct{}

// Speak reports that no engine is available.
func (Dummy) Speak(_ context.Context, _ string, _ tts.SpeakOptions, onEvent tts.EventFunc) {
	if onEvent != nil {
		onEvent(tts.ErrorEvent(tts.NewError(tts.KindHost, "", tts.ErrEngineUnavailable)))
	}
}

func (Dummy) Stop()            {}
func (Dummy) Pause()           {}
func (Dummy) Resume()          {}
func (Dummy) IsSpeaking() bool { return false }

// Voices returns an empty list.
func (Dummy) Voices(context.Context) ([]tts.Voice, error) {
	return []tts.Voice{}, nil
}

var _ tts.Engine = Dummy{}
