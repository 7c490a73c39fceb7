package baidu_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yxz1025/ai-helper/pkg/provider/baidutoken"
	"github.com/yxz1025/ai-helper/pkg/provider/tts"
	"github.com/yxz1025/ai-helper/pkg/provider/tts/baidu"
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

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.Form.Get("tex"); got != "Hello there!" {
			t.Errorf("tex = %q", got)
		}
		if got := r.Form.Get("tok"); got != "tok-1" {
			t.Errorf("tok = %q", got)
		}
		if got := r.Form.Get("lan"); got != "en" {
			t.Errorf("lan = %q", got)
		}
		if r.Form.Get("spd") != "4" || r.Form.Get("pit") != "6" || r.Form.Get("vol") != "5" || r.Form.Get("per") != "0" {
			t.Errorf("voice params = spd %s pit %s vol %s per %s",
				r.Form.Get("spd"), r.Form.Get("pit"), r.Form.Get("vol"), r.Form.Get("per"))
		}
		w.Header().Set("Content-Type", "audio/mp3")
		w.Write([]byte("mp3-bytes"))
	}))
	t.Cleanup(srv.Close)

	p, err := baidu.New(tokens(t), baidu.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	clip, err := p.Synthesize(t.Context(), "Hello there!", tts.Params{Language: "en", Speed: 4, Pitch: 6, Volume: 5, Voice: 0})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(clip.Data) != "mp3-bytes" || clip.Format != "mp3" {
		t.Errorf("clip = %q/%s", clip.Data, clip.Format)
	}
}

func TestSynthesizeClampsParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("spd") != "15" || r.Form.Get("pit") != "0" {
			t.Errorf("params not clamped: spd %s pit %s", r.Form.Get("spd"), r.Form.Get("pit"))
		}
		w.Header().Set("Content-Type", "audio/mp3")
		w.Write([]byte("x"))
	}))
	t.Cleanup(srv.Close)

	p, _ := baidu.New(tokens(t), baidu.WithEndpoint(srv.URL))
	if _, err := p.Synthesize(t.Context(), "Hi", tts.Params{Speed: 99, Pitch: -2}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
}

func TestSynthesizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"err_no": 502, "err_msg": "speech quota exceeded"})
	}))
	t.Cleanup(srv.Close)

	p, _ := baidu.New(tokens(t), baidu.WithEndpoint(srv.URL))
	_, err := p.Synthesize(t.Context(), "Hi", tts.Params{})
	if err == nil || !strings.Contains(err.Error(), "quota") {
		t.Errorf("Synthesize = %v, want api error", err)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	p, _ := baidu.New(tokens(t))
	if _, err := p.Synthesize(t.Context(), "", tts.Params{}); err == nil {
		t.Error("Synthesize(empty) succeeded")
	}
}
