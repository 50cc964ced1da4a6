// Package account talks to the read-aloud backend: account balance,
// checkout sessions and the neural voice catalog.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/readaloud/ttsengine/tts"
)

// Purchase polling defaults.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollAttempts = 20
)

// CheckoutBaseURL is where a checkout session id is completed.
const CheckoutBaseURL = "https://checkout.stripe.com/c/pay/"

var (
	// ErrPurchaseIncomplete is returned when a purchase is still pending
	// after polling gave up.
	ErrPurchaseIncomplete = errors.New("purchase incomplete")

	// ErrNotLoggedIn is returned by calls that need an auth token.
	ErrNotLoggedIn = errors.New("not logged in")
)

// Info is the account record of a logged in user.
type Info struct {
	// Balance includes FreeBalance.
	Balance         float64 `json:"balance"`
	FreeBalance     float64 `json:"freeBalance"`
	PendingPurchase string  `json:"pendingPurchase,omitempty"`
}

// Client is the backend HTTP client.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for serviceURL. A nil httpClient uses one with a 30s timeout.
func New(serviceURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(serviceURL, "/"), http: httpClient}
}

// BaseURL returns the service URL.
func (c *Client) BaseURL() string { return c.baseURL }

// GetAccount fetches the account for token. It returns nil and no error
// when the backend has no account for the token.
func (c *Client) GetAccount(ctx context.Context, token string) (*Info, error) {
	if token == "" {
		return nil, ErrNotLoggedIn
	}
	var info *Info
	u := c.baseURL + "/read-aloud/get-account?t=" + url.QueryEscape(token)
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &info); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if info != nil {
		info.Balance += info.FreeBalance
	}
	return info, nil
}

// CreateCheckoutSession starts a hosted checkout for qty units and returns
// the session id.
func (c *Client) CreateCheckoutSession(ctx context.Context, token string, qty int) (string, error) {
	if token == "" {
		return "", ErrNotLoggedIn
	}
	req := struct {
		AuthToken string `json:"authToken"`
		Qty       int    `json:"qty"`
	}{token, qty}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/read-aloud/checkout", req, &resp); err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("failed to create checkout session: empty session id")
	}
	return resp.ID, nil
}

// ListVoices fetches the neural voice catalog.
func (c *Client) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	var voices []tts.Voice
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/read-aloud/list-voices/google", nil, &voices); err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	return voices, nil
}

// WaitForPurchase polls the account until no purchase is pending, trying
// at most attempts times with interval between tries.
func (c *Client) WaitForPurchase(ctx context.Context, token string, interval time.Duration, attempts int) (*Info, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}

	var info *Info
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return info, ctx.Err()
			}
		}
		var err error
		info, err = c.GetAccount(ctx, token)
		if err != nil {
			log.Debug("Account refresh failed", "attempt", i+1, "error", err)
			continue
		}
		if info == nil {
			return nil, tts.NewError(tts.KindLoginRequired, "", nil)
		}
		if info.PendingPurchase == "" {
			return info, nil
		}
	}
	if info == nil {
		return nil, fmt.Errorf("%w: account unavailable", ErrPurchaseIncomplete)
	}
	return info, fmt.Errorf("%w, please contact support about order %s", ErrPurchaseIncomplete, info.PendingPurchase)
}

func (c *Client) doJSON(ctx context.Context, method, u string, body, dest any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return tts.NewError(tts.KindNetwork, "", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return tts.NewError(tts.KindNetwork, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}
	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
