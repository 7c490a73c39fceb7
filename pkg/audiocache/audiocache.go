// Package audiocache caches synthesised audio clips in an embedded Badger
// store. Template speech rarely changes, so the scheduler consults the cache
// before calling the synthesis provider and stores every successful result.
//
// Keys are derived from the synthesised text and the full voice parameter
// set, so two learners with different personas never share a clip.
package audiocache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/yxz1025/ai-helper/pkg/provider/tts"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// ErrNotFound is returned by Get when no clip is cached under the key.
var ErrNotFound = errors.New("audiocache: not found")

// defaultTTL is how long cached clips live before Badger expires them.
const defaultTTL = 7 * 24 * time.Hour

// Cache is a Badger-backed clip cache. Safe for concurrent use.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// Options configures a [Cache].
type Options struct {
	// Dir is the on-disk location of the store. Ignored when InMemory is set.
	Dir string

	// InMemory keeps the store entirely in RAM. Used in tests and when no
	// persistent cache directory is configured.
	InMemory bool

	// TTL is how long cached clips are kept. Zero means a one-week default.
	TTL time.Duration
}

// Open creates or opens a clip cache.
func Open(opts Options) (*Cache, error) {
	bopts := badger.DefaultOptions(opts.Dir).
		WithInMemory(opts.InMemory).
		WithLogger(nil)
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("audiocache: open store: %w", err)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// Key derives the cache key for a (text, params) pair.
func Key(text string, params tts.Params) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d|%d|%d", text, params.Language,
		params.Speed, params.Pitch, params.Volume, params.Voice)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached clip for key, or [ErrNotFound].
func (c *Cache) Get(key string) (*types.AudioClip, error) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("audiocache: get: %w", err)
	}
	return &types.AudioClip{Data: data, Format: "mp3"}, nil
}

// Put stores clip under key with the cache TTL.
func (c *Cache) Put(key string, clip *types.AudioClip) error {
	if clip == nil || clip.Empty() {
		return fmt.Errorf("audiocache: refusing to cache empty clip")
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), clip.Data).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("audiocache: put: %w", err)
	}
	return nil
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}
