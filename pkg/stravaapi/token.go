package stravaapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// DefaultTokenURL is the Strava OAuth token endpoint.
const DefaultTokenURL = "https://www.strava.com/oauth/token"

// tokenRefreshBuffer is the number of seconds before expiry to trigger refresh.
const tokenRefreshBuffer = 5 * 60

// Credentials is an immutable snapshot of the OAuth credential set.
// A successful refresh replaces the whole snapshot, never individual fields.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds; 0 means unknown, refresh before first use
}

// TokenStore persists refreshed credentials. Optional: without a store the
// refresh result lives in process memory only and is logged.
type TokenStore interface {
	Save(ctx context.Context, creds Credentials) error
}

// TokenSource owns a credential snapshot and refreshes it proactively.
// Token serializes the check-and-refresh sequence under a mutex so that
// concurrent tool calls cannot race two refreshes and lose one result.
type TokenSource struct {
	mu       sync.Mutex
	creds    Credentials
	tokenURL string
	client   *http.Client
	store    TokenStore

	now func() time.Time // test hook
}

// TokenOption configures a TokenSource.
type TokenOption func(*TokenSource)

// WithTokenURL overrides the token endpoint (tests point it at a mock server).
func WithTokenURL(u string) TokenOption {
	return func(s *TokenSource) { s.tokenURL = u }
}

// WithTokenStore sets the persistence hook for refreshed credentials.
func WithTokenStore(store TokenStore) TokenOption {
	return func(s *TokenSource) { s.store = store }
}

// WithTokenHTTPClient overrides the HTTP client used for refresh calls.
func WithTokenHTTPClient(c *http.Client) TokenOption {
	return func(s *TokenSource) { s.client = c }
}

// NewTokenSource creates a token source from an initial credential snapshot.
func NewTokenSource(creds Credentials, opts ...TokenOption) *TokenSource {
	s := &TokenSource{
		creds:    creds,
		tokenURL: DefaultTokenURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Credentials returns the current snapshot.
func (s *TokenSource) Credentials() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

// needsRefresh checks the proactive-refresh invariant: a token is stale once
// the current time reaches expires_at minus the refresh buffer.
func (s *TokenSource) needsRefresh() bool {
	return s.now().Unix() >= s.creds.ExpiresAt-tokenRefreshBuffer
}

// Token ensures the access token is fresh and returns it.
// If the token is expired or about to expire, a single refresh attempt is
// made synchronously; on failure the AuthError is surfaced to the caller.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.needsRefresh() {
		return s.creds.AccessToken, nil
	}

	refreshed, err := s.refresh(ctx)
	if err != nil {
		return "", err
	}
	s.creds = refreshed
	s.saveTokens(ctx)
	return s.creds.AccessToken, nil
}

// refresh performs the refresh-token grant. Single attempt, no backoff.
func (s *TokenSource) refresh(ctx context.Context) (Credentials, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", s.creds.ClientID)
	data.Set("client_secret", s.creds.ClientSecret)
	data.Set("refresh_token", s.creds.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", s.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return Credentials{}, errors.Wrap(err, "create refresh request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "refresh token")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Credentials{}, &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresAt    int64  `json:"expires_at"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return Credentials{}, errors.Wrap(err, "decode token response")
	}

	next := Credentials{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ClientID:     s.creds.ClientID,
		ClientSecret: s.creds.ClientSecret,
		ExpiresAt:    tokenResp.ExpiresAt,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = s.creds.RefreshToken
	}
	if next.ExpiresAt == 0 && tokenResp.ExpiresIn > 0 {
		next.ExpiresAt = s.now().Unix() + tokenResp.ExpiresIn
	}
	return next, nil
}

// saveTokens persists the refreshed snapshot if a store is configured,
// otherwise only logs the new expiry. Persistence failures never fail the
// refresh itself.
func (s *TokenSource) saveTokens(ctx context.Context) {
	if s.store == nil {
		log.Printf("[stravaapi] new access token obtained, expires at: %d", s.creds.ExpiresAt)
		return
	}
	if err := s.store.Save(ctx, s.creds); err != nil {
		log.Printf("[stravaapi] failed to save refreshed token: %v", err)
	}
}
