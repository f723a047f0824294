package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/snapetech/chancat/internal/catalog"
)

type cacheEntry struct {
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

// ProbeCache maps stream URL to the last probe outcome so repeated validate
// runs skip recently-probed channels. Safe for concurrent use: the dispatch
// loop checks freshness while probe workers record new outcomes.
type ProbeCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewProbeCache() *ProbeCache {
	return &ProbeCache{entries: make(map[string]cacheEntry)}
}

// LoadProbeCache loads a cache from path. Returns an empty (non-nil) cache
// if path is "" or the file is absent or unreadable.
func LoadProbeCache(path string) *ProbeCache {
	c := NewProbeCache()
	if path == "" {
		return c
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	_ = json.Unmarshal(data, &c.entries)
	if c.entries == nil {
		c.entries = make(map[string]cacheEntry)
	}
	return c
}

// Put records a probe outcome.
func (c *ProbeCache) Put(url string, state catalog.Reachability) {
	c.mu.Lock()
	c.entries[url] = cacheEntry{State: state.String(), At: time.Now()}
	c.mu.Unlock()
}

// Fresh returns the cached state for url when it is younger than ttl.
func (c *ProbeCache) Fresh(url string, ttl time.Duration) (catalog.Reachability, bool) {
	c.mu.Lock()
	e, ok := c.entries[url]
	c.mu.Unlock()
	if !ok || time.Since(e.At) > ttl {
		return catalog.ReachUnknown, false
	}
	state := catalog.ParseReachability(e.State)
	if state == catalog.ReachUnknown {
		// A cached entry always holds a terminal state; anything else is a
		// corrupt or foreign file.
		return catalog.ReachUnknown, false
	}
	return state, true
}

// Save writes the cache to path atomically (temp file + rename).
// Returns nil if path is "".
func (c *ProbeCache) Save(path string) error {
	if path == "" {
		return nil
	}
	c.mu.Lock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.Unlock()
	if err != nil {
		return err
	}
	dir := filepath.Dir(filepath.Clean(path))
	tmp, err := os.CreateTemp(dir, ".probes-*.json.tmp")
	if err != nil {
		return fmt.Errorf("probe cache: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("probe cache: write: %w", writeErr)
		}
		return fmt.Errorf("probe cache: close: %w", closeErr)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("probe cache: rename: %w", err)
	}
	return nil
}
