package reload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gardentv/e2garden/internal/bouquet"
)

func TestTrigger_apiEndpoint(t *testing.T) {
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	if got := c.Trigger(context.Background()); got != bouquet.ReloadDone {
		t.Errorf("outcome = %q, want %q", got, bouquet.ReloadDone)
	}
	if len(hits) != 1 || hits[0] != "/api/servicelistreload" {
		t.Errorf("hits = %v, want a single /api call", hits)
	}
}

func TestTrigger_fallsBackToWebEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/servicelistreload" {
			http.NotFound(w, r)
			return
		}
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	if got := c.Trigger(context.Background()); got != bouquet.ReloadDone {
		t.Errorf("outcome = %q, want %q", got, bouquet.ReloadDone)
	}
}

func TestTrigger_unreachableReceiver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := New(srv.URL, nil)
	if got := c.Trigger(context.Background()); got != bouquet.ReloadRestartRequired {
		t.Errorf("outcome = %q, want %q", got, bouquet.ReloadRestartRequired)
	}
}
