// Package remote implements the engine that streams audio from the
// read-aloud service. Gated voices require a logged in account with a
// positive balance.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/readaloud/ttsengine/internal/account"
	"github.com/readaloud/ttsengine/tts"
	"github.com/readaloud/ttsengine/tts/audio"
)

// mobilePlatform matches platforms whose media stack ignores volume and
// rate and cannot prefetch reliably.
var mobilePlatform = regexp.MustCompile(`(?i)\b(ios|ipad|iphone|ipod)\b`)

// Identity resolves the login token and per-install client id.
type Identity interface {
	AuthToken(ctx context.Context) (string, error)
	ClientID(ctx context.Context) (string, error)
}

// AccountLookup fetches the account record for a token.
type AccountLookup interface {
	GetAccount(ctx context.Context, token string) (*account.Info, error)
}

// Config configures an Engine.
type Config struct {
	ServiceURL string
	// Version is sent with every request.
	Version string
	// Platform defaults to runtime.GOOS.
	Platform string

	Identity Identity
	Accounts AccountLookup
	Element  audio.Element

	// HTTPClient is used for prefetch requests.
	HTTPClient *http.Client
	// Voices overrides the built-in voice list.
	Voices []tts.Voice
}

// Engine is the remote paid engine.
type Engine struct {
	serviceURL string
	version    string
	mobile     bool
	identity   Identity
	accounts   AccountLookup
	element    audio.Element
	client     *http.Client
	voices     []tts.Voice

	gen tts.Generation

	mu         sync.Mutex
	session    *tts.Session
	cancelWait context.CancelFunc
	nextStart  time.Time
	speaking   bool
	paused     bool
}

// New creates an Engine.
func New(cfg Config) *Engine {
	platform := cfg.Platform
	if platform == "" {
		platform = runtime.GOOS
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	voices := cfg.Voices
	if voices == nil {
		voices = DefaultVoices
	}
	return &Engine{
		serviceURL: strings.TrimRight(cfg.ServiceURL, "/"),
		version:    cfg.Version,
		mobile:     mobilePlatform.MatchString(platform),
		identity:   cfg.Identity,
		accounts:   cfg.Accounts,
		element:    cfg.Element,
		client:     client,
		voices:     voices,
	}
}

// IsGated reports whether v needs a login and a positive balance.
func IsGated(v tts.Voice) bool {
	return strings.HasPrefix(v.Name, "Amazon ") || strings.HasPrefix(v.Name, "Microsoft ")
}

// Speak implements tts.Engine.
func (e *Engine) Speak(ctx context.Context, utterance string, opts tts.SpeakOptions, onEvent tts.EventFunc) {
	opts = opts.WithDefaults()
	id := e.gen.Next()
	emit := e.gen.Guard(id, onEvent)
	sess := tts.NewSession(id)
	waitCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	e.mu.Lock()
	if e.cancelWait != nil {
		e.cancelWait()
	}
	e.session = sess
	e.cancelWait = cancel
	e.speaking = false
	e.paused = false
	nextStart := e.nextStart
	e.mu.Unlock()

	e.element.Pause()
	if !e.mobile {
		e.element.SetVolume(opts.Volume)
		e.element.SetPlaybackRate(opts.Rate)
	}

	go func() {
		defer sess.Settle()
		defer cancel()
		if err := e.run(ctx, waitCtx, id, utterance, opts, nextStart, emit); err != nil {
			e.setSpeaking(id, false)
			emit(tts.ErrorEvent(tts.PlaybackError(err)))
		}
	}()
}

func (e *Engine) run(ctx, waitCtx context.Context, id uint64, utterance string, opts tts.SpeakOptions, nextStart time.Time, emit tts.EventFunc) error {
	if utterance == "" {
		return tts.NewError(tts.KindInvalidInput, "utterance is empty", nil)
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	token, clientID, err := e.ready(ctx, opts)
	if err != nil {
		return err
	}
	if !e.gen.IsCurrent(id) {
		return nil
	}

	h := audio.Handlers{
		OnPlay: func() { emit(tts.StartEvent()) },
		OnEnded: func() {
			e.setSpeaking(id, false)
			emit(tts.EndEvent(utterance))
		},
		OnError: func(err error) {
			e.setSpeaking(id, false)
			emit(tts.ErrorEvent(tts.NewError(tts.KindHost, "", err)))
		},
	}
	src := e.audioURL(utterance, opts, token, clientID, false)
	if err := e.element.Load(ctx, src, h); err != nil {
		return tts.NewError(tts.KindNetwork, "", err)
	}

	if wait := time.Until(nextStart); wait > 0 && !e.mobile {
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-waitCtx.Done():
			t.Stop()
			return nil
		}
	}
	if !e.gen.IsCurrent(id) {
		return nil
	}

	e.setSpeaking(id, true)
	return e.element.Play()
}

// ready resolves the token and client id and, for gated voices outside
// auto-select mode, checks the account.
func (e *Engine) ready(ctx context.Context, opts tts.SpeakOptions) (token, clientID string, err error) {
	token, err = e.identity.AuthToken(ctx)
	if err != nil {
		return "", "", err
	}
	clientID, err = e.identity.ClientID(ctx)
	if err != nil {
		return "", "", err
	}
	if !IsGated(opts.Voice) || opts.AutoSelect {
		return token, clientID, nil
	}

	if token == "" {
		return "", "", tts.NewError(tts.KindLoginRequired, "", nil)
	}
	info, err := e.accounts.GetAccount(ctx, token)
	if err != nil {
		return "", "", err
	}
	if info == nil {
		return "", "", tts.NewError(tts.KindLoginRequired, "", nil)
	}
	if info.Balance <= 0 {
		return "", "", tts.NewError(tts.KindPaymentRequired, "", nil)
	}
	return token, clientID, nil
}

func (e *Engine) audioURL(utterance string, opts tts.SpeakOptions, token, clientID string, prefetch bool) string {
	var b strings.Builder
	b.WriteString(e.serviceURL)
	b.WriteString("/read-aloud/speak/")
	b.WriteString(url.PathEscape(opts.EffectiveLang()))
	b.WriteByte('/')
	b.WriteString(url.PathEscape(opts.Voice.Name))
	b.WriteString("?c=" + url.QueryEscape(clientID))
	b.WriteString("&t=" + url.QueryEscape(token))
	if opts.AutoSelect {
		b.WriteString("&a=1")
	}
	b.WriteString("&v=" + url.QueryEscape(e.version))
	if prefetch {
		b.WriteString("&pf=1")
	} else {
		b.WriteString("&pf=0")
	}
	b.WriteString("&q=" + url.QueryEscape(utterance))
	return b.String()
}

func (e *Engine) setSpeaking(id uint64, v bool) {
	if !e.gen.IsCurrent(id) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speaking = v
}

// Stop retires the current session. The media element is paused once the
// session's readiness chain has settled.
func (e *Engine) Stop() {
	stopped := e.gen.Next()

	e.mu.Lock()
	sess := e.session
	if e.cancelWait != nil {
		e.cancelWait()
	}
	e.speaking = false
	e.mu.Unlock()

	tts.AfterSettle(sess, func() {
		if e.gen.IsCurrent(stopped) {
			e.element.Pause()
		}
	})
}

// Pause suspends output once the readiness chain has settled. A Resume
// in the meantime cancels the deferred pause.
func (e *Engine) Pause() {
	current := e.gen.Current()
	e.mu.Lock()
	sess := e.session
	e.paused = true
	e.mu.Unlock()

	tts.AfterSettle(sess, func() {
		if e.gen.IsCurrent(current) && e.isPaused() {
			e.element.Pause()
		}
	})
}

func (e *Engine) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Resume continues paused output.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
	if err := e.element.Play(); err != nil {
		log.Debug("Resume failed", "error", err)
	}
}

// IsSpeaking implements tts.Engine.
func (e *Engine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking && e.element.Playing()
}

// Voices implements tts.Engine.
func (e *Engine) Voices(context.Context) ([]tts.Voice, error) {
	return append([]tts.Voice(nil), e.voices...), nil
}

// Prefetch asks the service to synthesize utterance ahead of time. It
// blocks until the request completes; failures are logged only.
func (e *Engine) Prefetch(ctx context.Context, utterance string, opts tts.SpeakOptions) {
	if e.mobile || utterance == "" {
		return
	}
	opts = opts.WithDefaults()
	if err := e.prefetch(ctx, utterance, opts); err != nil {
		log.Warn("Prefetch failed", "voice", opts.Voice.Name, "error", err)
	}
}

func (e *Engine) prefetch(ctx context.Context, utterance string, opts tts.SpeakOptions) error {
	token, err := e.identity.AuthToken(ctx)
	if err != nil {
		return err
	}
	clientID, err := e.identity.ClientID(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.audioURL(utterance, opts, token, clientID, true), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// SetNextStartTime delays the audible start of the next Speak until t.
// A zero t clears the schedule.
func (e *Engine) SetNextStartTime(t time.Time, _ tts.SpeakOptions) {
	if e.mobile {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextStart = t
}

var (
	_ tts.Engine         = (*Engine)(nil)
	_ tts.Prefetcher     = (*Engine)(nil)
	_ tts.StartScheduler = (*Engine)(nil)
)
