// Package baidutoken implements the OAuth client-credentials token flow used
// by all Baidu AI Cloud services (speech recognition, speech synthesis, and
// the ERNIE chat API).
//
// A single [Cache] should be shared by every provider talking to the same
// Baidu application so that the access token is fetched once and reused until
// shortly before it expires. Cache is safe for concurrent use.
package baidutoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokenEndpoint is the Baidu OAuth 2.0 token endpoint.
const tokenEndpoint = "https://aip.baidubce.com/oauth/2.0/token"

// expirySafetyMargin is subtracted from the reported token lifetime so a
// token is refreshed before Baidu actually rejects it.
const expirySafetyMargin = 60 * time.Second

// ErrNoCredentials is returned by Token when the cache was created without an
// API key or secret.
var ErrNoCredentials = errors.New("baidutoken: api key and secret are required")

// Cache fetches and caches a Baidu access token. The zero value is not usable;
// create instances with [New].
type Cache struct {
	apiKey     string
	secretKey  string
	endpoint   string
	httpClient *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// Option is a functional option for [New].
type Option func(*Cache)

// WithEndpoint overrides the token endpoint. Used in tests.
func WithEndpoint(u string) Option {
	return func(c *Cache) { c.endpoint = u }
}

// WithHTTPClient overrides the HTTP client used for token requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Cache) { c.httpClient = hc }
}

// New creates a token cache for the given Baidu application credentials.
func New(apiKey, secretKey string, opts ...Option) *Cache {
	c := &Cache{
		apiKey:     apiKey,
		secretKey:  secretKey,
		endpoint:   tokenEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// tokenResponse is the JSON body returned by the Baidu token endpoint.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Token returns a valid access token, fetching a fresh one when the cached
// token is absent or within the safety margin of its expiry.
func (c *Cache) Token(ctx context.Context) (string, error) {
	if c.apiKey == "" || c.secretKey == "" {
		return "", ErrNoCredentials
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	token, expiresIn, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expires = time.Now().Add(time.Duration(expiresIn)*time.Second - expirySafetyMargin)
	return c.token, nil
}

// Invalidate discards the cached token so the next Token call fetches a new
// one. Call this after a Baidu API reports an auth failure.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expires = time.Time{}
}

// fetch performs the client-credentials request. Must be called with c.mu held.
func (c *Cache) fetch(ctx context.Context) (string, int64, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.apiKey},
		"client_secret": {c.secretKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("baidutoken: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("baidutoken: request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("baidutoken: read response: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("baidutoken: decode response: %w", err)
	}
	if tr.Error != "" {
		return "", 0, fmt.Errorf("baidutoken: %s: %s", tr.Error, tr.ErrorDescription)
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("baidutoken: empty access_token in response (status %d)", resp.StatusCode)
	}
	return tr.AccessToken, tr.ExpiresIn, nil
}
