// Package cache is the disk-backed, TTL-gated fetch cache for the channel
// repository. Entries are content-addressed by md5 of the source URL and
// stored gzip-compressed; validity is derived from the file mtime. A small
// in-memory side-table holds derived data not tied to a single URL (e.g. the
// discovered category list) and is mirrored to memory_cache.json on every
// write.
//
// The cache is disposable: it can be deleted at any time and is rebuilt from
// the remote source. That is why the opaque hash naming is acceptable.
package cache

import (
	"compress/gzip"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gardentv/e2garden/internal/httpclient"
)

// DefaultTTL is the entry lifetime when the caller does not override it.
const DefaultTTL = time.Hour

const memFileName = "memory_cache.json"

// Options configures a Store. Zero values get safe defaults.
type Options struct {
	TTL               time.Duration
	Client            *http.Client
	RequestsPerSecond float64 // politeness cap on network GETs; default 5
	UserAgent         string
}

// Store is a single cache directory plus its memory side-table. Safe for use
// from one logical thread; the mutex only guards the in-process map against
// accidental reentrancy, not cross-process writers.
type Store struct {
	dir     string
	ttl     time.Duration
	client  *http.Client
	limiter *rate.Limiter
	agent   string

	// diskless is set when the cache directory cannot be created; fetches
	// still work, nothing is persisted.
	diskless bool

	mu  sync.Mutex
	mem map[string]any
}

// CacheStats is a best-effort directory summary.
type CacheStats struct {
	Files int
	Bytes int64
}

// New opens (and lazily creates) a cache directory. It never fails: when the
// directory cannot be created the store degrades to network-only operation,
// which keeps a receiver with a broken flash partition browsing.
func New(dir string, opts Options) *Store {
	s := &Store{
		dir:    dir,
		ttl:    opts.TTL,
		client: opts.Client,
		agent:  opts.UserAgent,
		mem:    make(map[string]any),
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.client == nil {
		s.client = httpclient.Default()
	}
	if s.agent == "" {
		s.agent = "e2garden/1.0"
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("cache: cannot create %s (%v); running diskless", dir, err)
		s.diskless = true
		return s
	}
	s.loadMem()
	return s
}

// Key returns the cache key for a URL: md5 of the URL, hex-encoded. Distinct
// query strings get distinct slots for free.
func Key(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (s *Store) entryPath(url string) string {
	return filepath.Join(s.dir, Key(url)+".json.gz")
}

// fresh reports whether the entry file exists and is younger than ttl.
func (s *Store) fresh(path string, ttl time.Duration) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(fi.ModTime()) < ttl
}

// Cached decodes the on-disk entry for url regardless of TTL. This is the
// explicit stale-data fallback for callers that prefer old data over none
// after a failed refresh.
func (s *Store) Cached(url string) (any, bool) {
	return s.readEntry(s.entryPath(url))
}

func (s *Store) readEntry(path string) (any, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, false
	}
	defer zr.Close()
	var v any
	if err := json.NewDecoder(zr).Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

func (s *Store) writeEntry(path string, v any) error {
	if s.diskless {
		return nil
	}
	// Lazily recreate: the whole directory may have been deleted between calls.
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// InvalidateAll deletes every cache entry and clears the side-table.
// Idempotent: a missing directory or empty cache is success.
func (s *Store) InvalidateAll() error {
	s.mu.Lock()
	s.mem = make(map[string]any)
	s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var firstErr error
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".json.gz") && name != memFileName {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats summarises the cache directory. Best-effort: any filesystem error
// degrades to zero values, never an error.
func (s *Store) Stats() CacheStats {
	var st CacheStats
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return st
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".json.gz") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		st.Files++
		st.Bytes += fi.Size()
	}
	return st
}

// ─── Memory side-table ───────────────────────────────────────────────────────

// MemGet returns a side-table value by logical name.
func (s *Store) MemGet(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.mem[name]
	return v, ok
}

// MemSet stores a side-table value and mirrors the whole table to disk.
// Last write wins; the single-process access model makes that acceptable.
func (s *Store) MemSet(name string, v any) {
	s.mu.Lock()
	s.mem[name] = v
	snapshot := make(map[string]any, len(s.mem))
	for k, val := range s.mem {
		snapshot[k] = val
	}
	s.mu.Unlock()

	if s.diskless {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("cache: side-table marshal: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(s.dir, memFileName), data, 0o644); err != nil {
		log.Printf("cache: side-table write: %v", err)
	}
}

func (s *Store) loadMem() {
	data, err := os.ReadFile(filepath.Join(s.dir, memFileName))
	if err != nil {
		return
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		log.Printf("cache: side-table unreadable, starting empty: %v", err)
		return
	}
	s.mu.Lock()
	s.mem = m
	s.mu.Unlock()
}

// drainAndClose discards the rest of a body so the connection can be reused.
func drainAndClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, rc)
	rc.Close()
}
