package baidu_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yxz1025/ai-helper/pkg/provider/asr"
	"github.com/yxz1025/ai-helper/pkg/provider/asr/baidu"
	"github.com/yxz1025/ai-helper/pkg/provider/baidutoken"
)

func tokens(t *testing.T) *baidutoken.Cache {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": int64(2592000)})
	}))
	t.Cleanup(srv.Close)
	return baidutoken.New("ak", "sk", baidutoken.WithEndpoint(srv.URL))
}

func TestNewRequiresTokenCache(t *testing.T) {
	if _, err := baidu.New(nil); err == nil {
		t.Error("New(nil) succeeded")
	}
}

func TestRecognize(t *testing.T) {
	audio := []byte("fake-mp3-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Format  string `json:"format"`
			Rate    int    `json:"rate"`
			Channel int    `json:"channel"`
			CUID    string `json:"cuid"`
			Token   string `json:"token"`
			Speech  string `json:"speech"`
			Len     int    `json:"len"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Format != "wav" || req.Rate != 8000 || req.Channel != 1 {
			t.Errorf("audio config = %s/%d/%d", req.Format, req.Rate, req.Channel)
		}
		if req.Token != "tok-1" {
			t.Errorf("token = %q", req.Token)
		}
		if req.Speech != base64.StdEncoding.EncodeToString(audio) || req.Len != len(audio) {
			t.Error("speech payload mismatch")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"err_no": 0,
			"sn":     "sn-123",
			"result": []string{"hello world", "hello word"},
		})
	}))
	t.Cleanup(srv.Close)

	p, err := baidu.New(tokens(t), baidu.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Recognize(t.Context(), audio, asr.AudioConfig{Format: "wav", SampleRate: 8000, Channels: 1})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if got.Text != "hello world" {
		t.Errorf("Text = %q, want first candidate", got.Text)
	}
	if got.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9 for a served request", got.Confidence)
	}
}

func TestRecognizeDefaultsAudioConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Format  string `json:"format"`
			Rate    int    `json:"rate"`
			Channel int    `json:"channel"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Format != "mp3" || req.Rate != 16000 || req.Channel != 1 {
			t.Errorf("defaults = %s/%d/%d, want mp3/16000/1", req.Format, req.Rate, req.Channel)
		}
		json.NewEncoder(w).Encode(map[string]any{"err_no": 0, "result": []string{"hi"}})
	}))
	t.Cleanup(srv.Close)

	p, _ := baidu.New(tokens(t), baidu.WithEndpoint(srv.URL))
	got, err := p.Recognize(t.Context(), []byte("audio"), asr.AudioConfig{})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	// No serial number in the response lowers the confidence estimate.
	if got.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", got.Confidence)
	}
}

func TestRecognizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"err_no": 3301, "err_msg": "audio quality too low"})
	}))
	t.Cleanup(srv.Close)

	p, _ := baidu.New(tokens(t), baidu.WithEndpoint(srv.URL))
	_, err := p.Recognize(t.Context(), []byte("audio"), asr.AudioConfig{})
	if err == nil || !strings.Contains(err.Error(), "3301") {
		t.Errorf("Recognize = %v, want api error 3301", err)
	}
}

func TestRecognizeEmptyAudio(t *testing.T) {
	p, _ := baidu.New(tokens(t))
	if _, err := p.Recognize(t.Context(), nil, asr.AudioConfig{}); err == nil {
		t.Error("Recognize(empty) succeeded")
	}
}
