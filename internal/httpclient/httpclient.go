package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
)

const (
	DefaultTimeout         = 10 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 4
)

// AcceptEncoding is sent on every catalog request. The raw-repository host
// serves brotli to clients that advertise it; gzip is the fallback.
const AcceptEncoding = "br, gzip"

var defaultClient *http.Client

func init() {
	defaultClient = &http.Client{
		Timeout: DefaultTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        16,
			MaxIdleConnsPerHost: MaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
			// Compression is negotiated by hand so brotli bodies are
			// handled the same way as gzip ones.
			DisableCompression: true,
		},
	}
}

// Default returns the shared tuned HTTP client used by the fetch cache and
// the reload signal.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout and the same transport as Default (or a copy).
func WithTimeout(timeout time.Duration) *http.Client {
	t, ok := defaultClient.Transport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: t.Clone(),
	}
}

// DecodeBody wraps resp.Body with the decoder matching its Content-Encoding.
// Unknown or absent encodings return the body unchanged. The returned reader
// must be closed by the caller; closing it closes the underlying body.
func DecodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		return &wrappedBody{r: brotli.NewReader(resp.Body), c: resp.Body}, nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return &wrappedBody{r: zr, c: multiCloser{zr, resp.Body}}, nil
	default:
		return resp.Body, nil
	}
}

type wrappedBody struct {
	r io.Reader
	c io.Closer
}

func (w *wrappedBody) Read(p []byte) (int, error) { return w.r.Read(p) }
func (w *wrappedBody) Close() error               { return w.c.Close() }

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
