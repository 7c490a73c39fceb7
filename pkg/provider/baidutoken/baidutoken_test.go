package baidutoken_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/yxz1025/ai-helper/pkg/provider/baidutoken"
)

func tokenServer(t *testing.T, fetches *atomic.Int32, expiresIn int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)

		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.Form.Get("client_id"); got != "ak" {
			t.Errorf("client_id = %q", got)
		}
		if got := r.Form.Get("client_secret"); got != "sk" {
			t.Errorf("client_secret = %q", got)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"expires_in":   expiresIn,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenFetchesAndCaches(t *testing.T) {
	var fetches atomic.Int32
	srv := tokenServer(t, &fetches, 2592000)

	c := baidutoken.New("ak", "sk", baidutoken.WithEndpoint(srv.URL))

	for i := 0; i < 3; i++ {
		tok, err := c.Token(t.Context())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if tok != "tok-1" {
			t.Fatalf("Token = %q, want tok-1", tok)
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("endpoint hit %d times, want 1", got)
	}
}

func TestTokenRefetchesNearExpiry(t *testing.T) {
	var fetches atomic.Int32
	// Lifetime shorter than the safety margin, so the cached token is always
	// considered expired.
	srv := tokenServer(t, &fetches, 30)

	c := baidutoken.New("ak", "sk", baidutoken.WithEndpoint(srv.URL))

	c.Token(t.Context())
	c.Token(t.Context())
	if got := fetches.Load(); got != 2 {
		t.Errorf("endpoint hit %d times, want 2", got)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	var fetches atomic.Int32
	srv := tokenServer(t, &fetches, 2592000)

	c := baidutoken.New("ak", "sk", baidutoken.WithEndpoint(srv.URL))

	c.Token(t.Context())
	c.Invalidate()
	c.Token(t.Context())
	if got := fetches.Load(); got != 2 {
		t.Errorf("endpoint hit %d times, want 2", got)
	}
}

func TestTokenRequiresCredentials(t *testing.T) {
	c := baidutoken.New("", "")
	if _, err := c.Token(t.Context()); !errors.Is(err, baidutoken.ErrNoCredentials) {
		t.Errorf("Token = %v, want ErrNoCredentials", err)
	}
}

func TestTokenSurfacesOAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_client",
			"error_description": "unknown client id",
		})
	}))
	t.Cleanup(srv.Close)

	c := baidutoken.New("ak", "sk", baidutoken.WithEndpoint(srv.URL))
	_, err := c.Token(t.Context())
	if err == nil || !strings.Contains(err.Error(), "invalid_client") {
		t.Errorf("Token = %v, want invalid_client error", err)
	}
}
