// Package baidu provides a speech synthesis provider backed by the Baidu
// text-to-audio REST API.
package baidu

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yxz1025/ai-helper/pkg/provider/baidutoken"
	"github.com/yxz1025/ai-helper/pkg/provider/tts"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// synthesizeEndpoint is the Baidu text-to-audio endpoint.
const synthesizeEndpoint = "https://tsn.baidu.com/text2audio"

// defaultCUID identifies this backend to the Baidu API.
const defaultCUID = "ai-helper-backend"

// maxAudioBytes caps the downloaded clip size.
const maxAudioBytes = 8 << 20

// Provider implements tts.Provider against the Baidu REST API.
//
// The endpoint returns raw audio bytes on success and a JSON error document
// on failure; the two are distinguished by the response Content-Type.
type Provider struct {
	tokens     *baidutoken.Cache
	endpoint   string
	cuid       string
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithEndpoint overrides the synthesis endpoint. Used in tests.
func WithEndpoint(u string) Option {
	return func(p *Provider) { p.endpoint = u }
}

// WithCUID overrides the device identifier sent with every request.
func WithCUID(cuid string) Option {
	return func(p *Provider) { p.cuid = cuid }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) { p.httpClient = hc }
}

// New constructs a Baidu speech synthesis provider. tokens must not be nil.
func New(tokens *baidutoken.Cache, opts ...Option) (*Provider, error) {
	if tokens == nil {
		return nil, fmt.Errorf("baidu tts: token cache must not be nil")
	}
	p := &Provider{
		tokens:     tokens,
		endpoint:   synthesizeEndpoint,
		cuid:       defaultCUID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, params tts.Params) (*types.AudioClip, error) {
	if text == "" {
		return nil, fmt.Errorf("baidu tts: text must not be empty")
	}

	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("baidu tts: obtain token: %w", err)
	}

	params = params.Clamp()
	lang := params.Language
	if lang == "" {
		lang = "en"
	}

	form := url.Values{
		"tex":  {text},
		"tok":  {token},
		"cuid": {p.cuid},
		"ctp":  {"1"},
		"lan":  {lang},
		"spd":  {strconv.Itoa(params.Speed)},
		"pit":  {strconv.Itoa(params.Pitch)},
		"vol":  {strconv.Itoa(params.Volume)},
		"per":  {strconv.Itoa(params.Voice)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("baidu tts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("baidu tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("baidu tts: read response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "audio") {
		// Non-audio means a JSON error document.
		return nil, fmt.Errorf("baidu tts: api error: %s", strings.TrimSpace(string(body)))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("baidu tts: empty audio in response")
	}

	return &types.AudioClip{Data: body, Format: "mp3"}, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "baidu" }

var _ tts.Provider = (*Provider)(nil)
