// Package extractcache persists one extraction result per content hash under
// the workspace cache directory. A cache hit lets a run skip the inference
// service entirely, so results are reused across runs until a forced
// re-extraction overwrites them.
package extractcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"coworker/internal/document"
	"coworker/internal/logging"
)

var (
	// ErrNotFound is returned by FindByPrefix when no entry matches.
	ErrNotFound = errors.New("no cached result matches")
	// ErrAmbiguous is returned by FindByPrefix when several entries match.
	ErrAmbiguous = errors.New("hash prefix matches more than one cached result")
)

const entrySuffix = ".json"

// Entry pairs a cached result with its hash.
type Entry struct {
	Hash   string
	Result document.Result
}

// Cache provides thread-safe access to the per-hash result files.
type Cache struct {
	dir    string
	logger *slog.Logger
	mu     sync.RWMutex
}

// New creates a cache rooted at dir. The directory is created lazily on the
// first Put.
func New(dir string, logger *slog.Logger) *Cache {
	return &Cache{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "extractcache"),
	}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) path(hash string) string {
	return filepath.Join(c.dir, hash+entrySuffix)
}

// Get returns the cached result for hash. A missing entry is a miss. An
// unreadable or undecodable entry is also a miss and is logged.
func (c *Cache) Get(hash string) (document.Result, bool) {
	if !validHash(hash) {
		return document.Result{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.path(hash))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.warnCorrupt(hash, err)
		}
		return document.Result{}, false
	}
	var result document.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.warnCorrupt(hash, err)
		return document.Result{}, false
	}
	return result, true
}

func (c *Cache) warnCorrupt(hash string, err error) {
	logging.WarnWithContext(c.logger, "cached result unreadable; treating as miss", "extract_cache_corrupt",
		logging.String(logging.FieldHash, hash),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "the entry will be rewritten by the next extraction"),
		logging.String(logging.FieldImpact, "the document is sent to the extraction service again"),
	)
}

// Put persists result for hash, replacing any prior entry. The write goes
// through a temp file and rename so readers never see a partial entry.
func (c *Cache) Put(hash string, result document.Result) error {
	if !validHash(hash) {
		return fmt.Errorf("invalid cache key %q", hash)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	target := c.path(hash)
	tmpPath := target + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	c.logger.Debug("cached extraction result",
		logging.String(logging.FieldHash, hash),
		logging.String("doc_type", result.DocType),
		logging.Float64("confidence", result.Confidence))
	return nil
}

// hashes lists the keys present on disk, sorted.
func (c *Cache) hashes() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache directory: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, entrySuffix) {
			continue
		}
		hash := strings.TrimSuffix(name, entrySuffix)
		if validHash(hash) {
			out = append(out, hash)
		}
	}
	sort.Strings(out)
	return out, nil
}

// FindByPrefix resolves a unique hash prefix to its cached entry.
func (c *Cache) FindByPrefix(prefix string) (Entry, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return Entry{}, ErrNotFound
	}
	hashes, err := c.hashes()
	if err != nil {
		return Entry{}, err
	}
	var matches []string
	for _, hash := range hashes {
		if strings.HasPrefix(hash, prefix) {
			matches = append(matches, hash)
		}
	}
	switch len(matches) {
	case 0:
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
	default:
		return Entry{}, fmt.Errorf("%w: %s (%d matches)", ErrAmbiguous, prefix, len(matches))
	}
	result, ok := c.Get(matches[0])
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s is unreadable", ErrNotFound, matches[0])
	}
	return Entry{Hash: matches[0], Result: result}, nil
}

// List returns every readable entry sorted by hash. Unreadable entries are
// logged and skipped.
func (c *Cache) List() ([]Entry, error) {
	hashes, err := c.hashes()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(hashes))
	for _, hash := range hashes {
		if result, ok := c.Get(hash); ok {
			out = append(out, Entry{Hash: hash, Result: result})
		}
	}
	return out, nil
}

// Count returns the number of entries on disk.
func (c *Cache) Count() int {
	hashes, err := c.hashes()
	if err != nil {
		return 0
	}
	return len(hashes)
}

func validHash(hash string) bool {
	if hash == "" {
		return false
	}
	for _, r := range hash {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
