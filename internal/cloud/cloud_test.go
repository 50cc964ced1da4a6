package cloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/readaloud/ttsengine/internal/catalog"
	"github.com/readaloud/ttsengine/internal/settings"
	"github.com/readaloud/ttsengine/tts"
	"github.com/readaloud/ttsengine/tts/audio"
)

var (
	wavenet = tts.SpeakOptions{Voice: tts.Voice{Name: "GoogleWavenet US English (Dorothy)", Lang: "en-US"}, Pitch: 1.5}
	neural2 = tts.SpeakOptions{Voice: tts.Voice{Name: "GoogleNeural2 US English (Jack)", Lang: "en-US"}}
	english = tts.SpeakOptions{Voice: TranslateVoices[1], Rate: 1.25, Volume: 0.5}
)

func collect() (tts.EventFunc, <-chan tts.Event) {
	ch := make(chan tts.Event, 8)
	return func(ev tts.Event) { ch <- ev }, ch
}

func nextEvent(t *testing.T, ch <-chan tts.Event) tts.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return tts.Event{}
	}
}

func noEvent(t *testing.T, ch <-chan tts.Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected %s event: %v", ev.Type, ev.Err)
	case <-time.After(80 * time.Millisecond):
	}
}

// synthServer fakes the synthesis API and records every request.
type synthServer struct {
	*httptest.Server

	status int
	hits   atomic.Int32

	mu       sync.Mutex
	paths    []string
	queries  []string
	requests []synthRequest
}

func newSynthServer(t *testing.T) *synthServer {
	s := &synthServer{status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		var req synthRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		s.mu.Lock()
		s.paths = append(s.paths, r.URL.Path)
		s.queries = append(s.queries, r.URL.RawQuery)
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		if s.status != http.StatusOK {
			http.Error(w, "unavailable", s.status)
			return
		}
		_ = json.NewEncoder(w).Encode(synthResponse{AudioContent: "QUJD"})
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *synthServer) lastRequest() synthRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func newNeural(srv *synthServer, el audio.Element) *NeuralEngine {
	return NewNeuralEngine(NeuralConfig{
		Element:     el,
		APIKey:      "key-1",
		Host:        srv.URL + "/global",
		Neural2Host: srv.URL + "/regional",
	})
}

func TestNeuralPrefetchServesRepeatedSpeaks(t *testing.T) {
	srv := newSynthServer(t)
	el := audio.NewMockElement()
	el.AutoFinish = true
	e := newNeural(srv, el)

	e.Prefetch(context.Background(), "Hello there.", wavenet)
	require.EqualValues(t, 1, srv.hits.Load())

	for range 2 {
		fn, ch := collect()
		e.Speak(context.Background(), "Hello there.", wavenet, fn)
		assert.Equal(t, tts.EventStart, nextEvent(t, ch).Type)
		assert.Equal(t, tts.EventEnd, nextEvent(t, ch).Type)
	}

	assert.EqualValues(t, 1, srv.hits.Load())
	assert.Equal(t, []string{
		"data:audio/mpeg;base64,QUJD",
		"data:audio/mpeg;base64,QUJD",
	}, el.Sources())
}

func TestNeuralDifferentUtteranceDropsPrefetch(t *testing.T) {
	srv := newSynthServer(t)
	el := audio.NewMockElement()
	el.AutoFinish = true
	e := newNeural(srv, el)

	e.Prefetch(context.Background(), "First.", wavenet)

	fn, ch := collect()
	e.Speak(context.Background(), "Second.", wavenet, fn)
	nextEvent(t, ch)
	nextEvent(t, ch)
	assert.EqualValues(t, 2, srv.hits.Load())

	fn, ch = collect()
	e.Speak(context.Background(), "First.", wavenet, fn)
	nextEvent(t, ch)
	nextEvent(t, ch)
	assert.EqualValues(t, 3, srv.hits.Load())
}

func TestNeuralPrefetchFailureFallsBackToFetch(t *testing.T) {
	srv := newSynthServer(t)
	srv.status = http.StatusServiceUnavailable
	el := audio.NewMockElement()
	e := newNeural(srv, el)

	e.Prefetch(context.Background(), "Hello.", wavenet)

	fn, ch := collect()
	e.Speak(context.Background(), "Hello.", wavenet, fn)
	ev := nextEvent(t, ch)
	assert.Equal(t, tts.EventError, ev.Type)
	assert.Equal(t, "HTTP 503: unavailable", ev.ErrorMessage())
	assert.EqualValues(t, 2, srv.hits.Load())
}

func TestNeuralRequest(t *testing.T) {
	tests := []struct {
		name      string
		opts      tts.SpeakOptions
		wantPath  string
		wantName  string
		wantPitch float64
	}{
		{name: "wavenet", opts: wavenet, wantPath: "/global/v1/text:synthesize", wantName: "en-US-Wavenet-D", wantPitch: 10},
		{name: "neural2 is regional", opts: neural2, wantPath: "/regional/v1/text:synthesize", wantName: "en-US-Neural2-J", wantPitch: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSynthServer(t)
			e := newNeural(srv, audio.NewMockElement())

			src, err := e.synthesize(context.Background(), "Hi.", tt.opts.WithDefaults())
			require.NoError(t, err)
			assert.Equal(t, "data:audio/mpeg;base64,QUJD", src)

			assert.Equal(t, []string{tt.wantPath}, srv.paths)
			assert.Equal(t, []string{"key=key-1"}, srv.queries)
			req := srv.lastRequest()
			assert.Equal(t, "Hi.", req.Input.Text)
			assert.Equal(t, "en-US", req.Voice.LanguageCode)
			assert.Equal(t, tt.wantName, req.Voice.Name)
			assert.Equal(t, "MP3", req.AudioConfig.AudioEncoding)
			assert.InDelta(t, tt.wantPitch, req.AudioConfig.Pitch, 1e-9)
		})
	}
}

func TestNeuralUnknownVoice(t *testing.T) {
	srv := newSynthServer(t)
	e := newNeural(srv, audio.NewMockElement())

	_, err := e.synthesize(context.Background(), "Hi.", tts.SpeakOptions{Voice: tts.Voice{Name: "Someone", Lang: "en"}})
	assert.ErrorIs(t, err, tts.ErrVoiceNotFound)
	assert.Zero(t, srv.hits.Load())
}

func TestNeuralRelay(t *testing.T) {
	tests := []struct {
		name     string
		relay    oauth2.TokenSource
		status   int
		wantCode string
		wantHits int32
	}{
		{name: "no token", relay: nil, wantCode: `{"code":"error_wavenet_auth_required"}`},
		{name: "empty token", relay: oauth2.StaticTokenSource(&oauth2.Token{}), wantCode: `{"code":"error_wavenet_auth_required"}`},
		{name: "relay rejects", relay: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}), status: http.StatusForbidden, wantCode: `{"code":"error_wavenet_auth_required"}`, wantHits: 1},
		{name: "relay succeeds", relay: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}), status: http.StatusOK, wantHits: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSynthServer(t)
			if tt.status != 0 {
				srv.status = tt.status
			}
			el := audio.NewMockElement()
			e := NewNeuralEngine(NeuralConfig{
				Element:  el,
				Relay:    tt.relay,
				RelayURL: srv.URL + "/proxy?url=synth",
			})

			fn, ch := collect()
			e.Speak(context.Background(), "Hi.", wavenet, fn)
			ev := nextEvent(t, ch)
			if tt.wantCode == "" {
				assert.Equal(t, tts.EventStart, ev.Type)
				assert.Equal(t, []string{"url=synth&token=tok"}, srv.queries)
			} else {
				assert.Equal(t, tts.EventError, ev.Type)
				assert.Equal(t, tt.wantCode, ev.ErrorMessage())
			}
			assert.Equal(t, tt.wantHits, srv.hits.Load())
		})
	}
}

func TestNeuralVoices(t *testing.T) {
	ctx := context.Background()
	e := NewNeuralEngine(NeuralConfig{Element: audio.NewMockElement()})
	voices, err := e.Voices(ctx)
	require.NoError(t, err)
	assert.Equal(t, NeuralFallbackVoices, voices)

	list := []tts.Voice{
		{Name: "GoogleStandard UK English (Anna)", Lang: "en-GB", Gender: "female"},
		{Name: "GoogleWavenet US English (Dorothy)", Lang: "en-US", Gender: "female"},
	}
	cache := catalog.New(settings.NewMemoryStore(), CatalogKey, func(context.Context) ([]tts.Voice, error) {
		return list, nil
	}, catalog.WithFallback(NeuralFallbackVoices))
	_, err = cache.Refresh(ctx)
	require.NoError(t, err)

	e = NewNeuralEngine(NeuralConfig{Element: audio.NewMockElement(), Catalog: cache})
	voices, err = e.Voices(ctx)
	require.NoError(t, err)
	assert.Equal(t, list, voices)

	free, err := e.FreeVoices(ctx)
	require.NoError(t, err)
	assert.Equal(t, list[:1], free)
}

func TestTranslateSpeak(t *testing.T) {
	var query atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		_, _ = w.Write([]byte("ID3"))
	}))
	defer srv.Close()

	el := audio.NewMockElement()
	e := NewTranslateEngine(TranslateConfig{Element: el, Endpoint: srv.URL, RequestsPerMinute: 6000})

	fn, ch := collect()
	e.Speak(context.Background(), "Good morning.", english, fn)
	assert.Equal(t, tts.EventStart, nextEvent(t, ch).Type)
	assert.True(t, e.IsSpeaking())

	q := query.Load().(url.Values)
	assert.Equal(t, []string{"en"}, q["tl"])
	assert.Equal(t, []string{"tw-ob"}, q["client"])
	assert.Equal(t, []string{"Good morning."}, q["q"])

	assert.Equal(t, []string{audio.DataURL("audio/mpeg", []byte("ID3"))}, el.Sources())
	assert.InDelta(t, 1.25*1.1, el.PlaybackRate(), 1e-9)
	assert.InDelta(t, 0.5, el.Volume(), 1e-9)

	el.Finish()
	ev := nextEvent(t, ch)
	assert.Equal(t, tts.EventEnd, ev.Type)
	assert.Equal(t, len("Good morning."), ev.CharIndex)
	assert.False(t, e.IsSpeaking())
}

func TestTranslateFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ID3"))
	}))
	defer srv.Close()

	t.Run("user gesture", func(t *testing.T) {
		el := audio.NewMockElement()
		el.PlayErr = tts.ErrNotAllowed
		e := NewTranslateEngine(TranslateConfig{Element: el, Endpoint: srv.URL, RequestsPerMinute: 6000})

		fn, ch := collect()
		e.Speak(context.Background(), "Hi.", english, fn)
		ev := nextEvent(t, ch)
		assert.Equal(t, tts.EventError, ev.Type)
		assert.Equal(t, `{"code":"error_user_gesture_required"}`, ev.ErrorMessage())
	})

	t.Run("media error passes through", func(t *testing.T) {
		el := audio.NewMockElement()
		e := NewTranslateEngine(TranslateConfig{Element: el, Endpoint: srv.URL, RequestsPerMinute: 6000})

		fn, ch := collect()
		e.Speak(context.Background(), "Hi.", english, fn)
		nextEvent(t, ch)
		el.Fail(assertErr("decode failed"))
		ev := nextEvent(t, ch)
		assert.Equal(t, tts.EventError, ev.Type)
		assert.Equal(t, "decode failed", ev.ErrorMessage())
	})

	t.Run("length counts characters", func(t *testing.T) {
		e := NewTranslateEngine(TranslateConfig{Element: audio.NewMockElement(), Endpoint: srv.URL, RequestsPerMinute: 6000})
		fn, ch := collect()

		e.Speak(context.Background(), strings.Repeat("é", maxTranslateText), english, fn)
		assert.Equal(t, tts.EventStart, nextEvent(t, ch).Type)

		e.Speak(context.Background(), strings.Repeat("é", maxTranslateText+1), english, fn)
		ev := nextEvent(t, ch)
		assert.Equal(t, tts.KindInvalidInput, tts.KindOf(ev.Err))
		assert.Contains(t, ev.ErrorMessage(), "5001 characters")
	})

	t.Run("empty utterance", func(t *testing.T) {
		e := NewTranslateEngine(TranslateConfig{Element: audio.NewMockElement(), Endpoint: srv.URL})
		fn, ch := collect()
		e.Speak(context.Background(), "", english, fn)
		ev := nextEvent(t, ch)
		assert.Equal(t, tts.KindInvalidInput, tts.KindOf(ev.Err))
	})
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestStopSuppressesEvents(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte("ID3"))
	}))
	defer srv.Close()
	defer close(release)

	el := audio.NewMockElement()
	e := NewTranslateEngine(TranslateConfig{Element: el, Endpoint: srv.URL, RequestsPerMinute: 6000})

	fn, ch := collect()
	e.Speak(context.Background(), "Hi.", english, fn)
	e.Stop()
	release <- struct{}{}

	noEvent(t, ch)
	assert.Empty(t, el.Sources())
	assert.False(t, e.IsSpeaking())
}

func TestResumeCancelsDeferredPause(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte("ID3"))
	}))
	defer srv.Close()

	el := audio.NewMockElement()
	e := NewTranslateEngine(TranslateConfig{Element: el, Endpoint: srv.URL, RequestsPerMinute: 6000})

	fn, ch := collect()
	e.Speak(context.Background(), "Hi.", english, fn)
	e.Pause()
	e.Resume()
	close(release)

	assert.Equal(t, tts.EventStart, nextEvent(t, ch).Type)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, el.Playing(), "resume before the source arrived must leave audio playing")
}

func TestCapabilities(t *testing.T) {
	var eng tts.Engine = NewTranslateEngine(TranslateConfig{Element: audio.NewMockElement()})
	_, ok := tts.AsPrefetcher(eng)
	assert.True(t, ok)
	_, ok = tts.AsStartScheduler(eng)
	assert.False(t, ok)

	eng = NewNeuralEngine(NeuralConfig{Element: audio.NewMockElement()})
	_, ok = tts.AsPrefetcher(eng)
	assert.True(t, ok)
	assert.True(t, strings.HasPrefix(NeuralFallbackVoices[0].Name, "GoogleStandard "))
}
