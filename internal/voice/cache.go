package voice

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
)

// AudioCache is a thread-safe two-tier cache (in-memory + filesystem)
// for synthesized audio. Safety check-ins and command acknowledgements
// come from fixed phrase pools, so the same text is spoken over and
// over — caching avoids re-hitting the TTS backend on every walk.
//
// The key is sha256(voice + ":" + text) so a voice change invalidates
// old entries without deleting them.
type AudioCache struct {
	mu      sync.RWMutex
	entries map[string][]byte // hash -> WAV bytes
	log     *logger.Logger
	voice   string
	dir     string // filesystem cache directory, "" = memory only
	hits    int64
	misses  int64
}

// NewAudioCache creates an audio cache. dir may be "" for a pure
// in-memory cache.
func NewAudioCache(voice, dir string, log *logger.Logger) *AudioCache {
	c := &AudioCache{
		entries: make(map[string][]byte),
		log:     log,
		voice:   voice,
		dir:     dir,
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("cache: creating %s: %v", dir, err)
			c.dir = ""
		}
	}
	return c
}

// Get returns cached audio for the text, checking memory then disk.
func (c *AudioCache) Get(text string) ([]byte, bool) {
	key := c.hashKey(text)

	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.bump(&c.hits)
		return data, true
	}

	if c.dir != "" {
		if data, err := os.ReadFile(c.path(key)); err == nil {
			c.mu.Lock()
			c.entries[key] = data
			c.hits++
			c.mu.Unlock()
			c.log.Debug("cache hit (disk): %s", truncate(text, 40))
			return data, true
		}
	}

	c.bump(&c.misses)
	return nil, false
}

// Put stores audio for the text in memory and, when configured, on disk.
func (c *AudioCache) Put(text string, audio []byte) {
	key := c.hashKey(text)

	c.mu.Lock()
	c.entries[key] = audio
	c.mu.Unlock()

	if c.dir != "" {
		if err := os.WriteFile(c.path(key), audio, 0o644); err != nil {
			c.log.Error("cache: writing %s: %v", key, err)
		}
	}
}

// Has reports whether the text is cached without touching hit counters.
func (c *AudioCache) Has(text string) bool {
	key := c.hashKey(text)
	c.mu.RLock()
	_, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return true
	}
	if c.dir != "" {
		if _, err := os.Stat(c.path(key)); err == nil {
			return true
		}
	}
	return false
}

// Stats returns the hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *AudioCache) bump(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

func (c *AudioCache) hashKey(text string) string {
	sum := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(sum[:])
}

func (c *AudioCache) path(key string) string {
	return filepath.Join(c.dir, key+".wav")
}
