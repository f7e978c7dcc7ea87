package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ResponseCache is a content-addressed on-disk cache for external API
// responses. Entries are immutable once written: a changed request produces a
// new key, never an overwrite. The cache is strictly an optimization — any
// read problem (missing, corrupt, unreadable) is reported as a miss, never as
// an error.
type ResponseCache struct {
	root string
}

// Entry is one memoized response.
type Entry struct {
	Payload   []byte
	FetchedAt time.Time
}

// New creates the cache root directory if needed and returns a handle bound
// to it. The root is created once at startup and never implicitly recreated
// mid-run.
func New(root string) (*ResponseCache, error) {
	if root == "" {
		return nil, fmt.Errorf("cache root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root %s: %w", root, err)
	}
	return &ResponseCache{root: root}, nil
}

// Key computes the deterministic cache key for a request: a SHA-256 hash of
// the URL joined with its query parameters sorted by name. Two requests that
// differ only in parameter order hash to the same key.
func Key(rawURL string, params url.Values) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(rawURL)
	for _, name := range names {
		vals := append([]string(nil), params[name]...)
		sort.Strings(vals)
		for _, v := range vals {
			b.WriteByte('&')
			b.WriteString(name)
			b.WriteByte('=')
			b.WriteString(v)
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached entry for the key, or (nil, false) on a miss.
// Unreadable and empty entries count as misses and are evicted on the spot so
// a later Put can rewrite the key.
func (c *ResponseCache) Get(key string) (*Entry, bool) {
	path := c.path(key)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, false
	}

	payload, err := os.ReadFile(path)
	if err != nil || len(payload) == 0 {
		os.Remove(path)
		return nil, false
	}

	return &Entry{Payload: payload, FetchedAt: info.ModTime()}, true
}

// Put durably stores a payload under the key. The write goes through a
// temporary file and an atomic rename so concurrent readers never observe a
// partially written entry. Writing the same key twice is a no-op.
func (c *ResponseCache) Put(key string, payload []byte) error {
	path := c.path(key)

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	tmp, err := os.CreateTemp(c.root, "put-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache entry: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

// Root returns the cache root directory.
func (c *ResponseCache) Root() string {
	return c.root
}

func (c *ResponseCache) path(key string) string {
	return filepath.Join(c.root, key+".json")
}
