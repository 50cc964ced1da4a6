package selection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/readaloud/ttsengine/tts"
	"github.com/readaloud/ttsengine/tts/engines"
	"github.com/readaloud/ttsengine/tts/engines/mock"
)

var (
	samantha = tts.Voice{Name: "Samantha", Lang: "en-US", Gender: "female"}
	thomas   = tts.Voice{Name: "Thomas", Lang: "fr-FR", Gender: "male"}
	bengali  = tts.Voice{Name: "GoogleTranslate Bengali", Lang: "bn"}
	dorothy  = tts.Voice{Name: "GoogleWavenet UK English (Dorothy)", Lang: "en-GB"}
	joey     = tts.Voice{Name: "Amazon US English (Joey)", Lang: "en-US"}
)

type brokenEngine struct {
	*mock.Engine
}

func (brokenEngine) Voices(context.Context) ([]tts.Voice, error) {
	return nil, errors.New("catalog offline")
}

func newSelector(opts ...Option) (*Selector, map[Backend]*mock.Engine) {
	m := map[Backend]*mock.Engine{
		OnDevice:  mock.New(samantha, thomas),
		Translate: mock.New(bengali),
		Neural:    mock.New(dorothy),
		Remote:    mock.New(joey),
	}
	engines := make(map[Backend]tts.Engine, len(m))
	for b, e := range m {
		engines[b] = e
	}
	return New(engines, opts...), m
}

func TestBackendOf(t *testing.T) {
	tests := []struct {
		name string
		want Backend
	}{
		{"GoogleTranslate English", Translate},
		{"GoogleStandard US English (Caroline)", Neural},
		{"GoogleNeural2 US English (Jack)", Neural},
		{"Amazon UK English (Amy)", Remote},
		{"Microsoft US English (Zira)", Remote},
		{"ReadAloud Generic Voice", Remote},
		{"Google US English", OnDevice},
		{"Samantha", OnDevice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BackendOf(tts.Voice{Name: tt.name}))
		})
	}
}

func TestEngineFor(t *testing.T) {
	s, m := newSelector()

	e, err := s.EngineFor(joey)
	require.NoError(t, err)
	assert.Same(t, m[Remote], e)

	e, err = s.EngineFor(samantha)
	require.NoError(t, err)
	assert.Same(t, m[OnDevice], e)
}

func TestEngineForMissingBackend(t *testing.T) {
	s := New(map[Backend]tts.Engine{OnDevice: mock.New(), Neural: nil})
	_, err := s.EngineFor(dorothy)
	assert.ErrorIs(t, err, tts.ErrEngineUnavailable)
}

func TestTimeoutWrapping(t *testing.T) {
	s, m := newSelector(WithTimeout(time.Second))

	e, err := s.EngineFor(bengali)
	require.NoError(t, err)
	te, ok := e.(*engines.TimeoutEngine)
	require.True(t, ok)
	assert.Same(t, m[Translate], te.Unwrap())

	again, err := s.EngineFor(bengali)
	require.NoError(t, err)
	assert.Same(t, e, again)

	_, ok = tts.AsPrefetcher(e)
	assert.True(t, ok)
}

func TestVoicesSkipsFailingBackend(t *testing.T) {
	s := New(map[Backend]tts.Engine{
		OnDevice: mock.New(samantha),
		Neural:   brokenEngine{mock.New()},
		Remote:   mock.New(joey),
	})
	assert.Equal(t, []tts.Voice{samantha, joey}, s.Voices(context.Background()))
}

func TestFind(t *testing.T) {
	s, _ := newSelector()
	v, err := s.Find(context.Background(), "GoogleTranslate Bengali")
	require.NoError(t, err)
	assert.Equal(t, bengali, v)

	_, err = s.Find(context.Background(), "Nobody")
	assert.ErrorIs(t, err, tts.ErrVoiceNotFound)
}

func TestMatch(t *testing.T) {
	s, _ := newSelector()
	ctx := context.Background()

	tests := []struct {
		lang string
		want tts.Voice
	}{
		{"en-US", samantha},
		{"fr", thomas},
		{"fr-CA", thomas},
		{"bn-IN", bengali},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			v, err := s.Match(ctx, tt.lang)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}

	_, err := s.Match(ctx, "ja")
	assert.ErrorIs(t, err, tts.ErrVoiceNotFound)

	_, err = s.Match(ctx, "not a tag!")
	assert.Equal(t, tts.KindInvalidInput, tts.KindOf(err))
}

func TestMatchVoiceSkipsBadTags(t *testing.T) {
	v, err := MatchVoice([]tts.Voice{{Name: "Odd", Lang: "???"}, thomas}, language.French)
	require.NoError(t, err)
	assert.Equal(t, thomas, v)

	_, err = MatchVoice(nil, language.French)
	assert.ErrorIs(t, err, tts.ErrVoiceNotFound)
}
