package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"

	"github.com/readaloud/ttsengine/internal/account"
	"github.com/readaloud/ttsengine/internal/catalog"
	"github.com/readaloud/ttsengine/internal/cloud"
	"github.com/readaloud/ttsengine/internal/ondevice"
	"github.com/readaloud/ttsengine/internal/remote"
	"github.com/readaloud/ttsengine/internal/selection"
	"github.com/readaloud/ttsengine/internal/settings"
	"github.com/readaloud/ttsengine/tts"
	"github.com/readaloud/ttsengine/tts/audio"
)

// app holds everything a command needs, built from the configuration.
type app struct {
	store    *settings.FileStore
	identity *settings.Identity
	account  *account.Client
	catalog  *catalog.Cache
	selector *selection.Selector
	players  []*audio.Player
}

func settingsDir() (string, error) {
	if dir := viper.GetString("settings_dir"); dir != "" {
		return dir, nil
	}
	dir, err := gap.NewScope(gap.User, "readaloud").DataPath("settings")
	if err != nil {
		return "", fmt.Errorf("unable to get data dir: %w", err)
	}
	return dir, nil
}

// newStore opens only the settings store, for commands that need no engines.
func newStore() (*settings.FileStore, error) {
	dir, err := settingsDir()
	if err != nil {
		return nil, err
	}
	return settings.NewFileStore(dir)
}

func newApp() (*app, error) {
	store, err := newStore()
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	a := &app{
		store:    store,
		identity: settings.NewIdentity(store),
		account:  account.New(viper.GetString("service_url"), httpClient),
	}
	a.catalog = catalog.New(store, cloud.CatalogKey, a.account.ListVoices,
		catalog.WithFallback(cloud.NeuralFallbackVoices))

	var device tts.Engine = ondevice.Dummy{}
	if es := ondevice.NewESpeak(viper.GetString("espeak.binary")); es.Available() {
		device = ondevice.New(es)
	} else {
		log.Debug("No on-device synthesizer found", "binary", viper.GetString("espeak.binary"))
	}

	relay := a.identity.RelayToken()
	if tok := viper.GetString("neural.relay_token"); tok != "" {
		relay = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"})
	}

	a.selector = selection.New(map[selection.Backend]tts.Engine{
		selection.OnDevice: device,
		selection.Remote: remote.New(remote.Config{
			ServiceURL: viper.GetString("service_url"),
			Version:    Version,
			Platform:   viper.GetString("platform"),
			Identity:   a.identity,
			Accounts:   a.account,
			Element:    a.newPlayer(httpClient),
			HTTPClient: httpClient,
		}),
		selection.Translate: cloud.NewTranslateEngine(cloud.TranslateConfig{
			Element:           a.newPlayer(httpClient),
			RequestsPerMinute: viper.GetInt("translate.requests_per_minute"),
			HTTPClient:        httpClient,
		}),
		selection.Neural: cloud.NewNeuralEngine(cloud.NeuralConfig{
			Element:    a.newPlayer(httpClient),
			APIKey:     viper.GetString("neural.api_key"),
			Relay:      oauth2.ReuseTokenSource(nil, relay),
			RelayURL:   viper.GetString("neural.relay_url"),
			Catalog:    a.catalog,
			HTTPClient: httpClient,
		}),
	}, selection.WithTimeout(viper.GetDuration("timeout")))

	return a, nil
}

func (a *app) newPlayer(client *http.Client) *audio.Player {
	p := audio.NewPlayer(client)
	a.players = append(a.players, p)
	return p
}

// Close waits for background catalog refreshes, then releases players
// and the store.
func (a *app) Close() error {
	if a.catalog != nil {
		a.catalog.Wait()
	}
	var errs []error
	for _, p := range a.players {
		errs = append(errs, p.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
