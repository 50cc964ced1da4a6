package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Keys used by Identity.
const (
	KeyAuthToken  = "authToken"
	KeyClientID   = "uniqueId"
	KeyRelayToken = "gcpToken"
)

// ErrNoRelayToken is returned by the relay token source when no token
// has been stored.
var ErrNoRelayToken = errors.New("no relay token stored")

// Identity resolves the login token and the per-install client id.
type Identity struct {
	store Store

	mu       sync.Mutex
	clientID string
}

// NewIdentity creates an Identity backed by store.
func NewIdentity(store Store) *Identity {
	return &Identity{store: store}
}

// AuthToken returns the stored login token, or "" when logged out.
func (i *Identity) AuthToken(context.Context) (string, error) {
	var token string
	if _, err := i.store.Get(KeyAuthToken, &token); err != nil {
		return "", fmt.Errorf("load auth token: %w", err)
	}
	return token, nil
}

// SetAuthToken stores token. An empty token logs out.
func (i *Identity) SetAuthToken(token string) error {
	if token == "" {
		return i.store.Delete(KeyAuthToken)
	}
	return i.store.Set(KeyAuthToken, token)
}

// ClientID returns the install's client id, generating and storing one
// on first use.
func (i *Identity) ClientID(context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.clientID != "" {
		return i.clientID, nil
	}

	var id string
	ok, err := i.store.Get(KeyClientID, &id)
	if err != nil {
		return "", fmt.Errorf("load client id: %w", err)
	}
	if !ok || id == "" {
		id = uuid.NewString()
		if err := i.store.Set(KeyClientID, id); err != nil {
			return "", fmt.Errorf("save client id: %w", err)
		}
	}
	i.clientID = id
	return id, nil
}

// SetRelayToken stores the bearer token for the speech relay. An empty
// token removes it.
func (i *Identity) SetRelayToken(token string) error {
	if token == "" {
		return i.store.Delete(KeyRelayToken)
	}
	return i.store.Set(KeyRelayToken, token)
}

// RelayToken returns a token source reading the stored relay token on
// every call, so a token saved by another process is picked up.
func (i *Identity) RelayToken() oauth2.TokenSource {
	return relayTokenSource{store: i.store}
}

type relayTokenSource struct {
	store Store
}

func (s relayTokenSource) Token() (*oauth2.Token, error) {
	var token string
	ok, err := s.store.Get(KeyRelayToken, &token)
	if err != nil {
		return nil, fmt.Errorf("load relay token: %w", err)
	}
	if !ok || token == "" {
		return nil, ErrNoRelayToken
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
