package botguard

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MemoryCache keeps tokens for the life of the process.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]Output
	now  func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]Output), now: time.Now}
}

// Get returns an unexpired token.
func (c *MemoryCache) Get(key string) (Output, bool) {
	c.mu.RLock()
	v, ok := c.data[key]
	c.mu.RUnlock()
	if !ok || v.Expired(c.now()) {
		return Output{}, false
	}
	return v, true
}

// Set stores value under key.
func (c *MemoryCache) Set(key string, value Output) {
	c.mu.Lock()
	c.data[key] = value
	c.mu.Unlock()
}

// DirCache persists tokens as JSON files, one per key, so they survive
// between runs.
type DirCache struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewDirCache creates dir if needed.
func NewDirCache(dir string) (*DirCache, error) {
	if dir == "" {
		return nil, errors.New("botguard cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DirCache{dir: dir, now: time.Now}, nil
}

func (c *DirCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

// Get returns an unexpired token; unreadable or expired files are removed.
func (c *DirCache) Get(key string) (Output, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.path(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return Output{}, false
	}
	var out Output
	if err := json.Unmarshal(b, &out); err != nil || out.Expired(c.now()) {
		_ = os.Remove(p)
		return Output{}, false
	}
	return out, true
}

// Set writes value atomically.
func (c *DirCache) Set(key string, value Output) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	p := c.path(key)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, p)
}
