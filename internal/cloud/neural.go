package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/readaloud/ttsengine/internal/catalog"
	"github.com/readaloud/ttsengine/tts"
	"github.com/readaloud/ttsengine/tts/audio"
)

const (
	// DefaultNeuralHost serves every tier except Neural2.
	DefaultNeuralHost = "https://texttospeech.googleapis.com"

	// DefaultNeural2Host is the regional endpoint Neural2 voices require.
	DefaultNeural2Host = "https://us-central1-texttospeech.googleapis.com"

	// DefaultRelayURL proxies synthesis for users without an API key.
	DefaultRelayURL = "https://cxl-services.appspot.com/proxy?url=https://texttospeech.googleapis.com/v1beta1/text:synthesize"

	// CatalogKey is the settings key the neural catalog is stored under.
	CatalogKey = "wavenetVoices"
)

// neuralVoiceName matches names like "GoogleWavenet US English (Dorothy)".
var neuralVoiceName = regexp.MustCompile(`^Google(\w+) .* \((\w+)\)$`)

// NeuralFallbackVoices is served until the catalog has been fetched once.
var NeuralFallbackVoices = []tts.Voice{
	{Name: "GoogleStandard US English (Caroline)", Lang: "en-US", Gender: "female"},
}

// NeuralConfig configures a NeuralEngine.
type NeuralConfig struct {
	Element audio.Element

	// APIKey is used directly when set.
	APIKey string
	// Relay supplies the bearer token for the relay when there is no APIKey.
	Relay oauth2.TokenSource
	// RelayURL defaults to DefaultRelayURL.
	RelayURL string

	// Host and Neural2Host override the synthesis endpoints.
	Host        string
	Neural2Host string

	// Catalog provides the voice list. Nil serves NeuralFallbackVoices.
	Catalog *catalog.Cache

	HTTPClient *http.Client
}

// NeuralEngine speaks through Google Cloud Text-to-Speech.
type NeuralEngine struct {
	*player

	apiKey      string
	relay       oauth2.TokenSource
	relayURL    string
	host        string
	neural2Host string
	catalog     *catalog.Cache
	client      *http.Client
}

// NewNeuralEngine creates a NeuralEngine.
func NewNeuralEngine(cfg NeuralConfig) *NeuralEngine {
	if cfg.RelayURL == "" {
		cfg.RelayURL = DefaultRelayURL
	}
	if cfg.Host == "" {
		cfg.Host = DefaultNeuralHost
	}
	if cfg.Neural2Host == "" {
		cfg.Neural2Host = DefaultNeural2Host
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	e := &NeuralEngine{
		apiKey:      cfg.APIKey,
		relay:       cfg.Relay,
		relayURL:    cfg.RelayURL,
		host:        strings.TrimRight(cfg.Host, "/"),
		neural2Host: strings.TrimRight(cfg.Neural2Host, "/"),
		catalog:     cfg.Catalog,
		client:      cfg.HTTPClient,
	}
	e.player = newPlayer("neural", cfg.Element, e.synthesize, 1)
	return e
}

// Voices returns the cached catalog, revalidating it in the background.
func (e *NeuralEngine) Voices(ctx context.Context) ([]tts.Voice, error) {
	if e.catalog == nil {
		return append([]tts.Voice(nil), NeuralFallbackVoices...), nil
	}
	return e.catalog.Voices(ctx), nil
}

// FreeVoices returns the Standard tier subset of Voices.
func (e *NeuralEngine) FreeVoices(ctx context.Context) ([]tts.Voice, error) {
	voices, err := e.Voices(ctx)
	if err != nil {
		return nil, err
	}
	var free []tts.Voice
	for _, v := range voices {
		if strings.HasPrefix(v.Name, "GoogleStandard ") {
			free = append(free, v)
		}
	}
	return free, nil
}

type synthRequest struct {
	Input       synthInput       `json:"input"`
	Voice       synthVoice       `json:"voice"`
	AudioConfig synthAudioConfig `json:"audioConfig"`
}

type synthInput struct {
	Text string `json:"text"`
}

type synthVoice struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
}

type synthAudioConfig struct {
	AudioEncoding string  `json:"audioEncoding"`
	Pitch         float64 `json:"pitch"`
}

type synthResponse struct {
	AudioContent string `json:"audioContent"`
}

// vendorVoice maps a catalog voice to the API voice id and its tier.
func vendorVoice(v tts.Voice) (id, tier string, err error) {
	m := neuralVoiceName.FindStringSubmatch(v.Name)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", tts.ErrVoiceNotFound, v.Name)
	}
	return v.Lang + "-" + m[1] + "-" + m[2][:1], m[1], nil
}

// vendorPitch rescales a 1.0-centered pitch to the API's semitone range.
func vendorPitch(pitch float64) float64 {
	return (pitch - 1) * 20
}

func (e *NeuralEngine) synthesize(ctx context.Context, text string, opts tts.SpeakOptions) (string, error) {
	id, tier, err := vendorVoice(opts.Voice)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(synthRequest{
		Input: synthInput{Text: text},
		Voice: synthVoice{LanguageCode: opts.Voice.Lang, Name: id},
		AudioConfig: synthAudioConfig{
			AudioEncoding: "MP3",
			Pitch:         vendorPitch(opts.Pitch),
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var content string
	if e.apiKey != "" {
		host := e.host
		if tier == "Neural2" {
			host = e.neural2Host
		}
		content, err = e.post(ctx, host+"/v1/text:synthesize?key="+url.QueryEscape(e.apiKey), body)
		if err != nil {
			return "", err
		}
	} else {
		content, err = e.viaRelay(ctx, body)
		if err != nil {
			return "", err
		}
	}
	return "data:audio/mpeg;base64," + content, nil
}

// viaRelay posts through the relay. Any failure means the relay token is
// missing or no longer accepted.
func (e *NeuralEngine) viaRelay(ctx context.Context, body []byte) (string, error) {
	if e.relay == nil {
		return "", tts.NewError(tts.KindWavenetAuthRequired, "", nil)
	}
	tok, err := e.relay.Token()
	if err != nil || tok.AccessToken == "" {
		return "", tts.NewError(tts.KindWavenetAuthRequired, "", err)
	}
	content, err := e.post(ctx, e.relayURL+"&token="+url.QueryEscape(tok.AccessToken), body)
	if err != nil {
		log.Warn("Relay synthesis failed", "error", err)
		return "", tts.NewError(tts.KindWavenetAuthRequired, "", err)
	}
	return content, nil
}

func (e *NeuralEngine) post(ctx context.Context, endpoint string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", tts.NewError(tts.KindNetwork, "", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", tts.NewError(tts.KindNetwork, "", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", tts.NewError(tts.KindNetwork, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data)), nil)
	}

	var out synthResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.AudioContent == "" {
		return "", errors.New("synthesis returned no audio")
	}
	return out.AudioContent, nil
}
