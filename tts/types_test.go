package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeakOptionsDefaults(t *testing.T) {
	o := SpeakOptions{Voice: Voice{Name: "A", Lang: "en-US"}, Rate: 1.5}.WithDefaults()
	assert.Equal(t, 1.5, o.Rate)
	assert.Equal(t, 1.0, o.Pitch)
	assert.Equal(t, 1.0, o.Volume)
	assert.NoError(t, o.Validate())
	assert.Equal(t, "en-US", o.EffectiveLang())

	o.Lang = "en-GB"
	assert.Equal(t, "en-GB", o.EffectiveLang())
}

func TestSpeakOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts SpeakOptions
	}{
		{name: "missing voice", opts: SpeakOptions{Rate: 1, Pitch: 1, Volume: 1}},
		{name: "negative rate", opts: SpeakOptions{Voice: Voice{Name: "A"}, Rate: -1, Pitch: 1, Volume: 1}},
		{name: "loud", opts: SpeakOptions{Voice: Voice{Name: "A"}, Rate: 1, Pitch: 1, Volume: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			assert.Error(t, err)
			assert.Equal(t, KindInvalidInput, KindOf(err))
		})
	}
}

func TestVoiceIdentity(t *testing.T) {
	a := Voice{Name: "Alice", Lang: "en-US", Gender: "female"}
	assert.True(t, a.Same(Voice{Name: "Alice", Lang: "en-US"}))
	assert.False(t, a.Same(Voice{Name: "Alice", Lang: "en-GB"}))
	assert.Equal(t, "Alice (en-US)", a.String())
	assert.Equal(t, "Bob", Voice{Name: "Bob"}.String())
}

func TestEvents(t *testing.T) {
	assert.False(t, StartEvent().Terminal())
	assert.Zero(t, StartEvent().CharIndex)
	assert.True(t, EndEvent("día").Terminal())
	assert.Equal(t, 3, EndEvent("día").CharIndex)
	assert.True(t, ErrorEvent(ErrEngineUnavailable).Terminal())
	assert.Equal(t, ErrEngineUnavailable.Error(), ErrorEvent(ErrEngineUnavailable).ErrorMessage())
}
