package audiocache_test

import (
	"errors"
	"testing"

	"github.com/yxz1025/ai-helper/pkg/audiocache"
	"github.com/yxz1025/ai-helper/pkg/provider/tts"
	"github.com/yxz1025/ai-helper/pkg/types"
)

func open(t *testing.T) *audiocache.Cache {
	t.Helper()
	c, err := audiocache.Open(audiocache.Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutGet(t *testing.T) {
	c := open(t)
	key := audiocache.Key("Hello there!", tts.Params{Language: "en", Speed: 4, Pitch: 6, Volume: 5})

	clip := &types.AudioClip{Data: []byte("mp3-bytes"), Format: "mp3"}
	if err := c.Put(key, clip); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Data) != "mp3-bytes" || got.Format != "mp3" {
		t.Errorf("Get = %q/%s", got.Data, got.Format)
	}
}

func TestGetMissing(t *testing.T) {
	c := open(t)
	if _, err := c.Get("nope"); !errors.Is(err, audiocache.ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

func TestPutRejectsEmptyClip(t *testing.T) {
	c := open(t)
	if err := c.Put("key", nil); err == nil {
		t.Error("Put(nil) succeeded")
	}
	if err := c.Put("key", &types.AudioClip{Format: "mp3"}); err == nil {
		t.Error("Put(empty) succeeded")
	}
}

func TestKeyDistinguishesParams(t *testing.T) {
	base := tts.Params{Language: "en", Speed: 4, Pitch: 6, Volume: 5, Voice: 0}

	k1 := audiocache.Key("Hello!", base)
	if k2 := audiocache.Key("Hello!", base); k2 != k1 {
		t.Error("identical inputs produced different keys")
	}
	if k2 := audiocache.Key("Goodbye!", base); k2 == k1 {
		t.Error("different text produced the same key")
	}

	changed := base
	changed.Pitch++
	if k2 := audiocache.Key("Hello!", changed); k2 == k1 {
		t.Error("different params produced the same key")
	}
}
