package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gardentv/e2garden/internal/httpclient"
	"github.com/gardentv/e2garden/internal/metrics"
)

// FetchError is returned when the network GET itself fails or the server
// answers with a non-success status. A stale cache entry is NOT served in its
// place; callers that want stale data ask Cached explicitly.
type FetchError struct {
	URL    string
	Status int // 0 when the request never completed
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetch returns the payload for url. A present, non-expired entry short-
// circuits the network entirely unless force is set. On a miss the body is
// fetched, parsed (JSON, then gzip-then-JSON, then raw text; a partially
// broken payload is better than none on a set-top box), stored compressed,
// and returned. ttl <= 0 uses the store default.
func (s *Store) Fetch(ctx context.Context, url string, force bool, ttl time.Duration) (any, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	path := s.entryPath(url)

	if !force && s.fresh(path, ttl) {
		if v, ok := s.readEntry(path); ok {
			metrics.CacheHits.Inc()
			return v, nil
		}
		// Unreadable entry: fall through to a refetch that overwrites it.
	}
	metrics.CacheMisses.Inc()

	body, err := s.get(ctx, url)
	if err != nil {
		return nil, err
	}

	v := parsePayload(body)
	if err := s.writeEntry(path, v); err != nil {
		// Persist failure degrades to a working fetch without a cache.
		metrics.FetchErrors.WithLabelValues("store").Inc()
		return v, nil
	}
	return v, nil
}

func (s *Store) get(ctx context.Context, url string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", s.agent)
	req.Header.Set("Accept-Encoding", httpclient.AcceptEncoding)

	resp, err := httpclient.DoWithRetry(ctx, s.client, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("network").Inc()
		return nil, &FetchError{URL: url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drainAndClose(resp.Body)
		metrics.FetchErrors.WithLabelValues("status").Inc()
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}

	rc, err := httpclient.DecodeBody(resp)
	if err != nil {
		resp.Body.Close()
		metrics.FetchErrors.WithLabelValues("decode").Inc()
		return nil, &FetchError{URL: url, Err: err}
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("network").Inc()
		return nil, &FetchError{URL: url, Err: err}
	}
	return body, nil
}

// parsePayload decodes a response body with decreasing strictness:
// JSON, gzip-wrapped JSON (some mirrors double-compress), then raw text.
func parsePayload(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	if zr, err := gzip.NewReader(bytes.NewReader(body)); err == nil {
		if plain, err := io.ReadAll(zr); err == nil {
			if err := json.Unmarshal(plain, &v); err == nil {
				return v
			}
			return string(plain)
		}
	}
	return string(body)
}
