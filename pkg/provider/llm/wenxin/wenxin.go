// Package wenxin provides an LLM provider backed by the Baidu ERNIE
// (Wenxin Workshop) chat completion API.
package wenxin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yxz1025/ai-helper/pkg/provider/baidutoken"
	"github.com/yxz1025/ai-helper/pkg/provider/llm"
)

// chatEndpoint is the ERNIE chat completion endpoint. The access token is
// appended as a query parameter.
const chatEndpoint = "https://aip.baidubce.com/rpc/2.0/ai_custom/v1/wenxinworkshop/chat/completions_pro"

// Provider implements llm.Provider against the ERNIE REST API. All requests
// authenticate with an access token from the shared [baidutoken.Cache].
type Provider struct {
	tokens     *baidutoken.Cache
	endpoint   string
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithEndpoint overrides the chat endpoint. Used in tests.
func WithEndpoint(u string) Option {
	return func(p *Provider) { p.endpoint = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) { p.httpClient = hc }
}

// New constructs an ERNIE provider. tokens must not be nil.
func New(tokens *baidutoken.Cache, opts ...Option) (*Provider, error) {
	if tokens == nil {
		return nil, fmt.Errorf("wenxin: token cache must not be nil")
	}
	p := &Provider{
		tokens:     tokens,
		endpoint:   chatEndpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// chatMessage is one entry of the ERNIE messages array.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the JSON request body for the chat endpoint.
type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
}

// chatResponse is the JSON response body. On failure ErrorCode is non-zero
// and Result is empty.
type chatResponse struct {
	Result    string `json:"result"`
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Complete implements llm.Provider. ERNIE has no dedicated system slot, so a
// SystemPrompt is prepended to the user message.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("wenxin: obtain token: %w", err)
	}

	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + prompt
	}

	body := chatRequest{
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: req.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("wenxin: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.endpoint+"?access_token="+token, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("wenxin: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("wenxin: chat completion: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("wenxin: read response: %w", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("wenxin: decode response: %w", err)
	}
	if cr.ErrorCode != 0 {
		// Token may have been revoked server-side; force a refresh for the
		// next attempt.
		if cr.ErrorCode == 110 || cr.ErrorCode == 111 {
			p.tokens.Invalidate()
		}
		return nil, fmt.Errorf("wenxin: api error %d: %s", cr.ErrorCode, cr.ErrorMsg)
	}
	if cr.Result == "" {
		return nil, fmt.Errorf("wenxin: empty result in response (status %d)", resp.StatusCode)
	}

	return &llm.Response{
		Content: strings.TrimSpace(cr.Result),
		Model:   "ernie",
	}, nil
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "wenxin" }

var _ llm.Provider = (*Provider)(nil)
