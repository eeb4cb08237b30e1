// Package sentinel talks to the Sentinel Hub OAuth and Process APIs.
package sentinel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/enviro-meter/firewatch/internal/core/domain"
	"github.com/enviro-meter/firewatch/internal/pkg/metrics"
)

// Tokens expire server-side; refresh slightly early so in-flight Process
// calls never carry a token about to lapse.
const expirySkew = 30 * time.Second

const defaultTokenLifetime = 10 * time.Minute

const maxTokenBody = 64 * 1024

// Authenticator performs the client-credentials exchange against the
// provider's token endpoint and caches the bearer token until shortly
// before it expires. Concurrent callers share a single refresh.
type Authenticator struct {
	tokenURL     string
	clientID     string
	clientSecret string
	http         *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator for the given token endpoint.
func NewAuthenticator(tokenURL, clientID, clientSecret string, client *http.Client) *Authenticator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Authenticator{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         client,
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a valid bearer token, reusing the cached one while it is
// fresh. A failed exchange is a single attempt; it reports an
// AuthenticationError and leaves nothing cached.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && a.now().Before(a.expiry) {
		return a.token, nil
	}

	token, expiresIn, err := a.exchange(ctx)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("token").Inc()
		return "", err
	}

	a.token = token
	a.expiry = a.now().Add(expiresIn - expirySkew)
	metrics.TokenRefreshes.Inc()
	return a.token, nil
}

// Invalidate discards the cached token so the next Token call performs a
// fresh exchange.
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	a.token = ""
	a.expiry = time.Time{}
	a.mu.Unlock()
}

func (a *Authenticator) exchange(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", a.clientID)
	form.Set("client_secret", a.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, &domain.AuthenticationError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", 0, &domain.AuthenticationError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return "", 0, &domain.AuthenticationError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, &domain.AuthenticationError{
			Status: resp.StatusCode,
			Detail: strings.TrimSpace(string(body)),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, &domain.AuthenticationError{
			Status: resp.StatusCode,
			Detail: "token response is not valid JSON",
		}
	}
	if tr.AccessToken == "" {
		return "", 0, &domain.AuthenticationError{
			Status: resp.StatusCode,
			Detail: "token response contained no access_token",
		}
	}

	lifetime := defaultTokenLifetime
	if tr.ExpiresIn > 0 {
		lifetime = time.Duration(tr.ExpiresIn) * time.Second
	}
	return tr.AccessToken, lifetime, nil
}
