package rss

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultCacheEntries = 256

// cache keeps raw feed documents for a TTL, in memory and optionally on
// disk so that restarts within the TTL do not hit the network.
type cache struct {
	dir string
	ttl time.Duration
	mem *expirable.LRU[string, []byte]
	now func() time.Time
}

func newCache(dir string, ttl time.Duration, size int) (*cache, error) {
	if size <= 0 {
		size = defaultCacheEntries
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	return &cache{
		dir: dir,
		ttl: ttl,
		mem: expirable.NewLRU[string, []byte](size, nil, ttl),
		now: time.Now,
	}, nil
}

func (c *cache) get(url string) ([]byte, bool) {
	if body, ok := c.mem.Get(url); ok {
		return body, true
	}
	if c.dir == "" {
		return nil, false
	}

	path := c.path(url)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	age := c.now().Sub(info.ModTime())
	if age >= c.ttl {
		_ = os.Remove(path)
		return nil, false
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	c.mem.Add(url, body)
	return body, true
}

func (c *cache) put(url string, body []byte) error {
	c.mem.Add(url, body)
	if c.dir == "" {
		return nil
	}

	tmp, err := os.CreateTemp(c.dir, "feed-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(url)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename cache entry: %w", err)
	}
	return nil
}

func (c *cache) path(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".xml")
}
