package edsm

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/ristretto"
)

const (
	// DefaultCacheDir is used when no cache directory is configured.
	DefaultCacheDir = ".edsm_data"
	// DefaultCacheTTL bounds how long the hot tier keeps a payload.
	DefaultCacheTTL = 30 * time.Minute

	cacheNumCounters = 100_000
	cacheMaxCost     = 64 << 20 // 64MB of raw payloads
	cacheBufferItems = 64
)

// Cache is the two-tier response cache: a ristretto hot tier over a
// per-endpoint file tier. Payloads are raw response bytes; interpretation
// (including not-found markers) happens above the cache, so negative
// results are cached the same way as hits.
type Cache struct {
	dir string
	ttl time.Duration
	hot *ristretto.Cache
}

// NewCache creates the cache rooted at dir, creating the directory when
// missing. A non-positive ttl falls back to DefaultCacheTTL.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		dir = DefaultCacheDir
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}

	hot, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: cacheBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("create hot cache: %w", err)
	}

	return &Cache{dir: dir, ttl: ttl, hot: hot}, nil
}

// Path returns the file-tier location for one endpoint/system pair. The
// system name is hashed so arbitrary names stay filesystem-safe.
func (c *Cache) Path(endpoint, systemName string) string {
	sum := sha1.Sum([]byte(systemName))
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.json", endpoint, hex.EncodeToString(sum[:])))
}

// Get returns the cached payload for the endpoint/system pair. File-tier
// hits rewarm the hot tier; corrupt file entries are deleted so the next
// fetch goes to the network.
func (c *Cache) Get(endpoint, systemName string) ([]byte, bool) {
	key := endpoint + "/" + systemName

	if value, found := c.hot.Get(key); found {
		if raw, ok := value.([]byte); ok {
			return raw, true
		}
	}

	path := c.Path(endpoint, systemName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	if !json.Valid(raw) {
		os.Remove(path)
		return nil, false
	}

	c.hot.SetWithTTL(key, raw, int64(len(raw)), c.ttl)
	return raw, true
}

// Put stores the payload in both tiers. File-tier write failures are
// returned so callers can log them; the hot tier still holds the entry.
func (c *Cache) Put(endpoint, systemName string, raw []byte) error {
	key := endpoint + "/" + systemName
	c.hot.SetWithTTL(key, raw, int64(len(raw)), c.ttl)

	path := c.Path(endpoint, systemName)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write cache file %s: %w", path, err)
	}
	return nil
}

// Close releases the hot tier.
func (c *Cache) Close() {
	c.hot.Close()
}
