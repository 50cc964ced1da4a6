package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/readaloud/ttsengine/tts"
	"github.com/readaloud/ttsengine/tts/audio"
)

const (
	// DefaultTranslateURL is the free Google Translate speech endpoint.
	DefaultTranslateURL = "https://translate.google.com/translate_tts"

	// DefaultRequestsPerMinute keeps the free endpoint from blocking us.
	DefaultRequestsPerMinute = 50

	// translateRateFactor speeds up Translate audio, which is slow at 1.0.
	translateRateFactor = 1.1

	maxTranslateText = 5000
	maxTranslateMP3  = 50 * 1024 * 1024
)

// TranslateVoices is the static Translate catalog.
var TranslateVoices = []tts.Voice{
	{Name: "GoogleTranslate Bengali", Lang: "bn"},
	{Name: "GoogleTranslate English", Lang: "en"},
}

// TranslateConfig configures a TranslateEngine.
type TranslateConfig struct {
	Element audio.Element

	// Endpoint defaults to DefaultTranslateURL.
	Endpoint string

	// RequestsPerMinute defaults to DefaultRequestsPerMinute.
	RequestsPerMinute int

	HTTPClient *http.Client
}

// TranslateEngine speaks through the free Google Translate endpoint.
type TranslateEngine struct {
	*player

	endpoint    string
	client      *http.Client
	rateLimiter *rate.Limiter
}

// NewTranslateEngine creates a TranslateEngine.
func NewTranslateEngine(cfg TranslateConfig) *TranslateEngine {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultTranslateURL
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	e := &TranslateEngine{
		endpoint:    cfg.Endpoint,
		client:      cfg.HTTPClient,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}
	e.player = newPlayer("translate", cfg.Element, e.synthesize, translateRateFactor)
	return e
}

// Voices implements tts.Engine.
func (e *TranslateEngine) Voices(context.Context) ([]tts.Voice, error) {
	return append([]tts.Voice(nil), TranslateVoices...), nil
}

// synthesize downloads the MP3 for text and returns it as a data URL.
func (e *TranslateEngine) synthesize(ctx context.Context, text string, opts tts.SpeakOptions) (string, error) {
	lang := opts.EffectiveLang()
	if lang == "" {
		return "", tts.NewError(tts.KindInvalidInput, "language is required", nil)
	}
	if n := utf8.RuneCountInString(text); n > maxTranslateText {
		return "", tts.NewError(tts.KindInvalidInput, fmt.Sprintf("text too long: %d characters (max %d)", n, maxTranslateText), nil)
	}

	if err := e.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.requestURL(text, lang), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", tts.NewError(tts.KindNetwork, "", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", tts.NewError(tts.KindNetwork, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTranslateMP3+1))
	if err != nil {
		return "", tts.NewError(tts.KindNetwork, "", err)
	}
	if len(data) == 0 {
		return "", errors.New("translate returned no audio")
	}
	if len(data) > maxTranslateMP3 {
		return "", fmt.Errorf("translate audio too large: %d bytes (max %d)", len(data), maxTranslateMP3)
	}
	return audio.DataURL("audio/mpeg", data), nil
}

func (e *TranslateEngine) requestURL(text, lang string) string {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", text)
	sep := "?"
	if strings.Contains(e.endpoint, "?") {
		sep = "&"
	}
	return e.endpoint + sep + q.Encode()
}
