package vasttrafik

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/vastmap/internal/pkg/metrics"
)

// tokenValidityMargin is how long before expiry a cached token is
// considered stale. Callers are guaranteed at least this much validity
// unless the refresh itself failed.
const tokenValidityMargin = 60 * time.Second

// defaultTokenExpiry is assumed when the token endpoint omits expires_in.
const defaultTokenExpiry = 3600

// TokenClient implements ports.TokenSource against the Västtrafik OAuth2
// token endpoint using the client-credentials grant.
//
// The cached token is replaced wholesale under a single guard. The
// double-checked pattern (read-lock check, write-lock re-check) keeps
// concurrent cell fetches from triggering a refresh storm.
type TokenClient struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string

	mu     sync.RWMutex
	token  string
	expiry time.Time

	now func() time.Time
}

// NewTokenClient creates a token client with a 10s request timeout.
func NewTokenClient(tokenURL, clientID, clientSecret string) *TokenClient {
	return &TokenClient{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

// Token returns a currently valid bearer token, refreshing only when no
// token is cached or the cached one expires within the validity margin.
// When a refresh fails the previous token is returned as a last resort;
// an error means no token has ever been obtained.
func (t *TokenClient) Token(ctx context.Context) (string, error) {
	t.mu.RLock()
	if t.validLocked() {
		token := t.token
		t.mu.RUnlock()
		return token, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if t.validLocked() {
		return t.token, nil
	}

	if err := t.refreshLocked(ctx); err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		if t.token != "" {
			slog.Warn("token refresh failed, reusing previous token", "error", err)
			return t.token, nil
		}
		return "", fmt.Errorf("token refresh: %w", err)
	}

	metrics.TokenRefreshes.WithLabelValues("ok").Inc()
	return t.token, nil
}

func (t *TokenClient) validLocked() bool {
	return t.token != "" && t.now().Before(t.expiry.Add(-tokenValidityMargin))
}

func (t *TokenClient) refreshLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(t.clientID, t.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", t.tokenURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("token endpoint returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return fmt.Errorf("token endpoint returned empty access_token")
	}
	if body.ExpiresIn <= 0 {
		body.ExpiresIn = defaultTokenExpiry
	}

	t.token = body.AccessToken
	t.expiry = t.now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return nil
}
