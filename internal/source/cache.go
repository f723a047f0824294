package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Cache is the on-disk fetched-document cache, one file per source URL keyed
// by a stable hash of the URL. An entry is fresh while its mtime is within
// TTL; there is no other invalidation besides Clear.
type Cache struct {
	Dir string
	TTL time.Duration
}

// NewCache creates the cache directory if needed.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	return &Cache{Dir: dir, TTL: ttl}, nil
}

func (c *Cache) pathFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(c.Dir, hex.EncodeToString(sum[:8])+".cache")
}

// Get returns the cached content for url when present and fresh.
func (c *Cache) Get(url string) ([]byte, bool) {
	path := c.pathFor(url)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(fi.ModTime()) >= c.TTL {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put stores content for url atomically (temp file + rename) so a concurrent
// Get never reads a half-written entry.
func (c *Cache) Put(url string, data []byte) error {
	path := c.pathFor(url)
	tmp, err := os.CreateTemp(c.Dir, ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("cache put: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("cache put: write: %w", writeErr)
		}
		return fmt.Errorf("cache put: close: %w", closeErr)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache put: rename: %w", err)
	}
	return nil
}

// Clear removes every cache entry.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".cache" {
			continue
		}
		if err := os.Remove(filepath.Join(c.Dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
