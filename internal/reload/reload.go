// Package reload asks a local OpenWebif instance to re-read the receiver's
// bouquet files after an export rewrote them.
package reload

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gardentv/e2garden/internal/bouquet"
)

// Client talks to the OpenWebif HTTP API on the receiver itself. It
// implements bouquet.Reloader.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for the given OpenWebif base URL, typically
// http://127.0.0.1 when running on the receiver.
func New(base string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: client}
}

// Trigger asks the receiver to reload its service lists. The modern
// /api/servicelistreload endpoint is tried first; older images only ship the
// /web variant. When neither answers, the user has to restart the GUI, which
// the caller reports instead of failing the export.
func (c *Client) Trigger(ctx context.Context) bouquet.ReloadOutcome {
	paths := []string{
		"/api/servicelistreload?mode=0",
		"/web/servicelistreload?mode=0",
	}
	for _, p := range paths {
		ok, err := c.get(ctx, p)
		if err != nil {
			log.Printf("reload: %s: %v", p, err)
			continue
		}
		if ok {
			return bouquet.ReloadDone
		}
	}
	return bouquet.ReloadRestartRequired
}

func (c *Client) get(ctx context.Context, path string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return false, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	return res.StatusCode == http.StatusOK, nil
}
