package tle

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/metrics"
)

// Cache keeps recently fetched TLE documents on disk, one directory per
// locator.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache creates a Cache rooted at dir that keeps at most maxFiles
// documents per locator.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// locatorDir maps a locator to its cache directory.
func (c *Cache) locatorDir(locator string) string {
	h := fnv.New64a()
	h.Write([]byte(locator))
	return filepath.Join(c.dir, strconv.FormatUint(h.Sum64(), 16))
}

// Write saves data to a timestamped file and prunes old files beyond maxFiles.
func (c *Cache) Write(locator string, data []byte, ts time.Time) error {
	dir := c.locatorDir(locator)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("tle_%d.txt", ts.Unix()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return c.prune(dir)
}

// LoadLatest reads the newest cached document for locator.
// Returns the data, the timestamp, and any error.
func (c *Cache) LoadLatest(locator string) ([]byte, time.Time, error) {
	dir := c.locatorDir(locator)
	files, err := listFiles(dir)
	if err != nil {
		return nil, time.Time{}, err
	}

	if len(files) == 0 {
		return nil, time.Time{}, fmt.Errorf("no cache files for %s", locator)
	}

	// Files are sorted oldest first; take the last one.
	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}

	return data, latest.ts, nil
}

type cacheFile struct {
	name string
	ts   time.Time
}

func listFiles(dir string) ([]cacheFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "tle_") || !strings.HasSuffix(name, ".txt") {
			continue
		}
		tsStr := strings.TrimSuffix(strings.TrimPrefix(name, "tle_"), ".txt")
		unix, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.Unix(unix, 0)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})

	return files, nil
}

func (c *Cache) prune(dir string) error {
	files, err := listFiles(dir)
	if err != nil {
		return err
	}
	if len(files) <= c.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}

// CachedSource writes every successful fetch to a Cache and serves the most
// recent cached copy when the underlying source fails.
type CachedSource struct {
	src    Source
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewCachedSource wraps src with cache.
func NewCachedSource(src Source, cache *Cache, logger *slog.Logger) *CachedSource {
	return &CachedSource{src: src, cache: cache, logger: logger, now: time.Now}
}

// Fetch implements Source.
func (s *CachedSource) Fetch(ctx context.Context, locator string) ([]byte, error) {
	data, err := s.src.Fetch(ctx, locator)
	if err == nil {
		if werr := s.cache.Write(locator, data, s.now()); werr != nil {
			s.logger.Warn("failed to cache TLE document", "component", "tle", "locator", locator, "error", werr)
		}
		return data, nil
	}

	cached, ts, cerr := s.cache.LoadLatest(locator)
	if cerr != nil {
		return nil, err
	}
	metrics.IncFetch("cache")
	s.logger.Warn("fetch failed, serving cached TLE document",
		"component", "tle",
		"locator", locator,
		"cached_at", ts.UTC().Format(time.RFC3339),
		"error", err,
	)
	return cached, nil
}
