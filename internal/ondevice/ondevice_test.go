package ondevice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readaloud/ttsengine/tts"
)

var alex = tts.SpeakOptions{Voice: tts.Voice{Name: "Alex", Lang: "en-US"}}

// fakeHost records calls and lets tests drive the utterance callbacks.
type fakeHost struct {
	mu       sync.Mutex
	spoken   []*Utterance
	cancels  int
	speaking bool
	speakErr error

	voices  []HostVoice
	changed chan struct{}
}

func (h *fakeHost) Speak(u *Utterance) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.speakErr != nil {
		return h.speakErr
	}
	h.spoken = append(h.spoken, u)
	h.speaking = true
	return nil
}

func (h *fakeHost) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancels++
	h.speaking = false
}

func (h *fakeHost) Pause()  {}
func (h *fakeHost) Resume() {}

func (h *fakeHost) Speaking() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.speaking
}

func (h *fakeHost) Voices() []HostVoice {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.voices
}

func (h *fakeHost) VoicesChanged() <-chan struct{} { return h.changed }

func (h *fakeHost) last() *Utterance {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.spoken[len(h.spoken)-1]
}

func recorder() (tts.EventFunc, func() []tts.Event) {
	var mu sync.Mutex
	var events []tts.Event
	return func(ev tts.Event) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
		}, func() []tts.Event {
			mu.Lock()
			defer mu.Unlock()
			return append([]tts.Event(nil), events...)
		}
}

func TestSpeakMapsOptionsAndEvents(t *testing.T) {
	host := &fakeHost{}
	e := New(host)
	fn, events := recorder()

	e.Speak(context.Background(), "Hello world.", tts.SpeakOptions{
		Voice: tts.Voice{Name: "English (America)", Lang: "en-US"},
		Rate:  1.5,
	}, fn)

	u := host.last()
	assert.Equal(t, "Hello world.", u.Text)
	assert.Equal(t, "English (America)", u.Voice)
	assert.Equal(t, "en-US", u.Lang)
	assert.InDelta(t, 1.5, u.Rate, 1e-9)
	assert.InDelta(t, 1.0, u.Volume, 1e-9)

	u.Started()
	u.Ended()
	got := events()
	require.Len(t, got, 2)
	assert.Equal(t, tts.EventStart, got[0].Type)
	assert.Equal(t, tts.EventEnd, got[1].Type)
	assert.Equal(t, 12, got[1].CharIndex)
}

func TestStopDetachesEndBeforeCancel(t *testing.T) {
	host := &fakeHost{}
	e := New(host)
	fn, events := recorder()

	e.Speak(context.Background(), "Hi.", alex, fn)
	u := host.last()
	u.Started()

	e.Stop()
	u.Ended()

	assert.Equal(t, 1, host.cancels)
	got := events()
	require.Len(t, got, 1)
	assert.Equal(t, tts.EventStart, got[0].Type)
	assert.False(t, e.IsSpeaking())
}

func TestSupersededUtteranceIsSilent(t *testing.T) {
	host := &fakeHost{}
	e := New(host)
	first, firstEvents := recorder()
	second, secondEvents := recorder()

	e.Speak(context.Background(), "One.", alex, first)
	u1 := host.last()
	e.Speak(context.Background(), "Two.", alex, second)
	u2 := host.last()

	u1.Ended()
	u2.Started()
	u2.Failed(errors.New("synthesis-failed"))
	u2.Ended()

	assert.Empty(t, firstEvents())
	got := secondEvents()
	require.Len(t, got, 2)
	assert.Equal(t, tts.EventError, got[1].Type)
	assert.Equal(t, "synthesis-failed", got[1].ErrorMessage())
}

func TestSpeakFailures(t *testing.T) {
	t.Run("host refuses", func(t *testing.T) {
		e := New(&fakeHost{speakErr: errors.New("busy")})
		fn, events := recorder()
		e.Speak(context.Background(), "Hi.", alex, fn)
		got := events()
		require.Len(t, got, 1)
		assert.Equal(t, "busy", got[0].ErrorMessage())
	})

	t.Run("empty utterance", func(t *testing.T) {
		host := &fakeHost{}
		e := New(host)
		fn, events := recorder()
		e.Speak(context.Background(), "", alex, fn)
		got := events()
		require.Len(t, got, 1)
		assert.Equal(t, tts.KindInvalidInput, tts.KindOf(got[0].Err))
		assert.Empty(t, host.spoken)
	})
}

func TestVoices(t *testing.T) {
	ctx := context.Background()

	t.Run("immediate", func(t *testing.T) {
		e := New(&fakeHost{voices: []HostVoice{{Name: "Alex", Lang: "en-US", Gender: "male"}}})
		voices, err := e.Voices(ctx)
		require.NoError(t, err)
		assert.Equal(t, []tts.Voice{{Name: "Alex", Lang: "en-US", Gender: "male"}}, voices)
	})

	t.Run("after change notification", func(t *testing.T) {
		host := &fakeHost{changed: make(chan struct{})}
		e := New(host)
		go func() {
			time.Sleep(20 * time.Millisecond)
			host.mu.Lock()
			host.voices = []HostVoice{{Name: "Samantha", Lang: "en-US"}}
			host.mu.Unlock()
			close(host.changed)
		}()
		voices, err := e.Voices(ctx)
		require.NoError(t, err)
		assert.Equal(t, []tts.Voice{{Name: "Samantha", Lang: "en-US"}}, voices)
	})

	t.Run("timeout yields empty list", func(t *testing.T) {
		e := New(&fakeHost{})
		e.voicesTimeout = 30 * time.Millisecond
		start := time.Now()
		voices, err := e.Voices(ctx)
		require.NoError(t, err)
		assert.NotNil(t, voices)
		assert.Empty(t, voices)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestDummy(t *testing.T) {
	var d Dummy
	voices, err := d.Voices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, voices)

	fn, events := recorder()
	d.Speak(context.Background(), "Hi.", tts.SpeakOptions{}, fn)
	got := events()
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0].Err, tts.ErrEngineUnavailable)
	assert.False(t, d.IsSpeaking())
}

const voiceTable = `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 2  en-us           --/M      English_(America)  gmw/en-US            (en 3)
 5  en-gb           --/F      English_(Great_Britain) gmw/en
`

func TestParseVoices(t *testing.T) {
	voices, files := parseVoices([]byte(voiceTable))
	assert.Equal(t, []HostVoice{
		{Name: "Afrikaans", Lang: "af", Gender: "male"},
		{Name: "English (America)", Lang: "en-us", Gender: "male"},
		{Name: "English (Great Britain)", Lang: "en-gb", Gender: "female"},
	}, voices)
	assert.Equal(t, "gmw/en-US", files["English (America)"])
}

func TestESpeakArgs(t *testing.T) {
	s := NewESpeak("espeak-ng")
	s.listOnce.Do(func() { s.voices, s.files = parseVoices([]byte(voiceTable)) })

	args := s.args(&Utterance{Voice: "English (America)", Lang: "en-US", Rate: 2, Pitch: 1, Volume: 0.5})
	assert.Equal(t, []string{"-v", "gmw/en-US", "-s", "350", "-p", "50", "-a", "50", "--stdin"}, args)

	args = s.args(&Utterance{Voice: "Unknown", Lang: "fr", Rate: 10, Pitch: 3, Volume: 1})
	assert.Equal(t, []string{"-v", "fr", "-s", "450", "-p", "99", "-a", "100", "--stdin"}, args)
}

// fakeESpeak writes a shell script that reads stdin and exits with code.
func fakeESpeak(t *testing.T, code int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "espeak-ng")
	script := "#!/bin/sh\nif [ \"$1\" = \"--voices\" ]; then printf '%s' 'Pty Language Age/Gender VoiceName File\n 5 af --/M Afrikaans gmw/af\n'; exit 0; fi\ncat >/dev/null\necho oops >&2\nexit " + string(rune('0'+code)) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestESpeakProcess(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		wantLast tts.EventType
	}{
		{name: "natural end", code: 0, wantLast: tts.EventEnd},
		{name: "process failure", code: 3, wantLast: tts.EventError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(NewESpeak(fakeESpeak(t, tt.code)))
			done := make(chan tts.Event, 4)
			e.Speak(context.Background(), "Hello.", tts.SpeakOptions{Voice: tts.Voice{Name: "Afrikaans", Lang: "af"}}, func(ev tts.Event) {
				done <- ev
			})

			assert.Equal(t, tts.EventStart, (<-done).Type)
			select {
			case ev := <-done:
				assert.Equal(t, tt.wantLast, ev.Type)
				if ev.Type == tts.EventError {
					assert.Contains(t, ev.ErrorMessage(), "stderr: oops")
				}
			case <-time.After(5 * time.Second):
				t.Fatal("no terminal event")
			}
		})
	}
}
