package stravaapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fixedNow(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestNeedsRefresh(t *testing.T) {
	const now = 1_700_000_000

	tests := []struct {
		name      string
		expiresAt int64
		want      bool
	}{
		{"already expired", now - 100, true},
		{"expires within buffer", now + 120, true},
		{"exactly at buffer boundary", now + tokenRefreshBuffer, true},
		{"one second before buffer", now + tokenRefreshBuffer + 1, false},
		{"well before buffer", now + 3600, false},
		{"zero expiry refreshes before first use", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTokenSource(Credentials{ExpiresAt: tt.expiresAt})
			s.now = fixedNow(now)
			if got := s.needsRefresh(); got != tt.want {
				t.Errorf("needsRefresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenNoRefreshWhenFresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected refresh request for a fresh token")
	}))
	defer srv.Close()

	s := NewTokenSource(
		Credentials{AccessToken: "fresh-token", ExpiresAt: time.Now().Unix() + 3600},
		WithTokenURL(srv.URL),
	)

	token, err := s.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "fresh-token" {
		t.Errorf("token = %q, want %q", token, "fresh-token")
	}
}

func TestTokenRefreshOnExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.Form.Get("client_id"); got != "client-1" {
			t.Errorf("client_id = %q, want client-1", got)
		}
		if got := r.Form.Get("refresh_token"); got != "old-refresh" {
			t.Errorf("refresh_token = %q, want old-refresh", got)
		}
		fmt.Fprintf(w, `{"access_token":"new-access","refresh_token":"new-refresh","expires_at":%d}`, time.Now().Unix()+21600)
	}))
	defer srv.Close()

	s := NewTokenSource(
		Credentials{
			AccessToken:  "stale-access",
			RefreshToken: "old-refresh",
			ClientID:     "client-1",
			ClientSecret: "secret-1",
			ExpiresAt:    time.Now().Unix() - 10,
		},
		WithTokenURL(srv.URL),
	)

	token, err := s.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "new-access" {
		t.Errorf("token = %q, want %q", token, "new-access")
	}

	creds := s.Credentials()
	if creds.RefreshToken != "new-refresh" {
		t.Errorf("refresh token = %q, want %q", creds.RefreshToken, "new-refresh")
	}
	if creds.ClientID != "client-1" || creds.ClientSecret != "secret-1" {
		t.Error("client credentials must survive a refresh")
	}
}

func TestTokenRefreshAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"Bad Request","errors":[{"field":"refresh_token","code":"invalid"}]}`)
	}))
	defer srv.Close()

	s := NewTokenSource(
		Credentials{RefreshToken: "revoked", ExpiresAt: time.Now().Unix() - 10},
		WithTokenURL(srv.URL),
	)

	_, err := s.Token(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	authErr, ok := err.(*AuthError)
	if !ok {
		t.Fatalf("expected *AuthError, got %T: %v", err, err)
	}
	if authErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", authErr.StatusCode, http.StatusBadRequest)
	}
	if authErr.Body == "" || authErr.Body[0] != '{' {
		t.Errorf("expected upstream body in error, got %q", authErr.Body)
	}
}

func TestTokenRefreshSerialized(t *testing.T) {
	var refreshes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		fmt.Fprintf(w, `{"access_token":"a","refresh_token":"r","expires_at":%d}`, time.Now().Unix()+21600)
	}))
	defer srv.Close()

	s := NewTokenSource(
		Credentials{ExpiresAt: time.Now().Unix() - 10},
		WithTokenURL(srv.URL),
	)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Token(context.Background()); err != nil {
				t.Errorf("Token: %v", err)
			}
		}()
	}
	wg.Wait()

	// The first caller refreshes; everyone else must see the fresh snapshot.
	if got := atomic.LoadInt32(&refreshes); got != 1 {
		t.Errorf("refresh count = %d, want 1", got)
	}
}

type recordingStore struct {
	mu    sync.Mutex
	saved []Credentials
}

func (r *recordingStore) Save(_ context.Context, creds Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, creds)
	return nil
}

func TestTokenStoreReceivesRefreshedSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"persisted","refresh_token":"r2","expires_at":2000000000}`)
	}))
	defer srv.Close()

	store := &recordingStore{}
	s := NewTokenSource(
		Credentials{ExpiresAt: time.Now().Unix() - 10},
		WithTokenURL(srv.URL),
		WithTokenStore(store),
	)

	if _, err := s.Token(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saved) != 1 {
		t.Fatalf("saved %d snapshots, want 1", len(store.saved))
	}
	if store.saved[0].AccessToken != "persisted" {
		t.Errorf("saved access token = %q, want %q", store.saved[0].AccessToken, "persisted")
	}
}
