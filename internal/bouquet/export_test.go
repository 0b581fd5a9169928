package bouquet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avfs/avfs"
	"github.com/avfs/avfs/vfs/memfs"

	"github.com/gardentv/e2garden/internal/cache"
	"github.com/gardentv/e2garden/internal/channel"
)

const dir = "/etc/enigma2"

func newTestExporter(fs avfs.VFS, store *cache.Store) *Exporter {
	return New(fs, dir, "e2garden", store, nil)
}

func mustRead(t *testing.T, fs avfs.VFS, name string) string {
	t.Helper()
	data, err := fs.ReadFile(dir + "/" + name)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func testChannels() []channel.Record {
	return []channel.Record{
		{ID: "1", Name: "US One", StreamURL: "http://us/1.m3u8", Country: "US", FoundIn: channel.FoundInIPTV},
		{ID: "2", Name: "US Two", StreamURL: "http://us/2.m3u8", Country: "US", FoundIn: channel.FoundInIPTV},
		{ID: "3", Name: "UK One", StreamURL: "http://uk/1.m3u8", Country: "UK", FoundIn: channel.FoundInIPTV},
	}
}

func TestExportList_countryGroupsAndServiceLines(t *testing.T) {
	fs := memfs.New()
	e := newTestExporter(fs, nil)

	res, err := e.ExportList(context.Background(), "Favorites", testChannels())
	if err != nil {
		t.Fatalf("ExportList: %v", err)
	}
	if res.Channels != 3 || res.Countries != 2 {
		t.Errorf("result = %+v, want 3 channels in 2 countries", res)
	}

	body := mustRead(t, fs, res.Files[0])
	lines := strings.Split(body, "\n")

	if !strings.HasPrefix(lines[0], "#NAME ") {
		t.Errorf("first line = %q, want #NAME header", lines[0])
	}

	var services, markers int
	var ukBlock, usBlock bool
	for _, line := range lines {
		if strings.HasPrefix(line, "#SERVICE 4097:") {
			services++
		}
		if strings.HasPrefix(line, "#SERVICE 1:64:") {
			markers++
			if strings.Contains(line, "UK (1)") {
				ukBlock = true
			}
			if strings.Contains(line, "US (2)") {
				usBlock = true
			}
		}
	}
	if services != 3 {
		t.Errorf("#SERVICE 4097: lines = %d, want 3", services)
	}
	// Header marker plus one marker per country.
	if markers != 3 {
		t.Errorf("1:64 marker lines = %d, want 3", markers)
	}
	if !ukBlock || !usBlock {
		t.Errorf("missing country markers (uk=%v us=%v):\n%s", ukBlock, usBlock, body)
	}

	// Each marker block is followed by exactly its channel count of
	// service/description pairs.
	ukIdx := indexOfLine(lines, "UK (1)")
	if !strings.HasPrefix(lines[ukIdx+2], "#SERVICE 4097:") || strings.HasPrefix(lines[ukIdx+4], "#SERVICE 4097:") {
		t.Error("UK block should contain exactly one service pair")
	}
}

func indexOfLine(lines []string, substr string) int {
	for i, l := range lines {
		if strings.HasPrefix(l, "#SERVICE 1:64:") && strings.Contains(l, substr) {
			return i
		}
	}
	return -1
}

func TestEscape_everyColonSubstituted(t *testing.T) {
	url := "rtmp://host:1234/path"
	escaped := Escape(url)
	if strings.Contains(escaped, ":") {
		t.Errorf("escaped URL still has colons: %q", escaped)
	}
	want := strings.Count(url, ":")
	if got := strings.Count(escaped, "%3a"); got != want {
		t.Errorf("substitutions = %d, want %d (one per source colon)", got, want)
	}

	line := serviceLine(1, 1, url, "Some: Name")
	if !strings.Contains(line, "rtmp%3a//host%3a1234/path") {
		t.Errorf("service line URL not escaped: %q", line)
	}
	if !strings.Contains(line, "Some%3a Name") {
		t.Errorf("service line name not escaped: %q", line)
	}
}

func TestExportList_zeroChannelsNoFileNoIndex(t *testing.T) {
	fs := memfs.New()
	e := newTestExporter(fs, nil)

	_, err := e.ExportList(context.Background(), "Empty", nil)
	if !errors.Is(err, ErrNoChannels) {
		t.Fatalf("err = %v, want ErrNoChannels", err)
	}
	if _, statErr := fs.Stat(dir + "/" + FileName("e2garden", "Empty")); statErr == nil {
		t.Error("no bouquet file should exist after a failed export")
	}
	if _, statErr := fs.Stat(dir + "/" + IndexName); statErr == nil {
		t.Error("index must not be touched when nothing was exported")
	}
}

func TestExportList_uniqueServiceRefs(t *testing.T) {
	fs := memfs.New()
	e := newTestExporter(fs, nil)
	res, err := e.ExportList(context.Background(), "refs", testChannels())
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	for _, line := range strings.Split(mustRead(t, fs, res.Files[0]), "\n") {
		if !strings.HasPrefix(line, "#SERVICE 4097:") {
			continue
		}
		parts := strings.SplitN(line, ":", 6)
		ref := parts[3] + ":" + parts[4] // SID:TSID
		if seen[ref] {
			t.Errorf("duplicate service ref %s", ref)
		}
		seen[ref] = true
	}
}

func catalogServer(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
}

// routeAll points the test's HTTP client at the fake catalog server for any
// URL, so source.AllChannelsURL() resolves without touching the network.
type routeAll struct{ srv *httptest.Server }

func (rt routeAll) RoundTrip(req *http.Request) (*http.Response, error) {
	redirected := *req
	u := *req.URL
	su := rt.srv.URL
	u.Scheme = "http"
	u.Host = strings.TrimPrefix(su, "http://")
	redirected.URL = &u
	return http.DefaultTransport.RoundTrip(&redirected)
}

func newCatalogStore(t *testing.T, payload string) *cache.Store {
	t.Helper()
	srv := catalogServer(t, payload)
	t.Cleanup(srv.Close)
	client := &http.Client{Transport: routeAll{srv}}
	return cache.New(t.TempDir(), cache.Options{Client: client, RequestsPerSecond: 1000})
}

const catalogJSON = `[
 {"name":"US A","country":"US","nanoid":"ua","iptv_urls":["http://us/a.m3u8"]},
 {"name":"US B","country":"US","nanoid":"ub","iptv_urls":["http://us/b.m3u8"]},
 {"name":"DE A","country":"DE","nanoid":"da","iptv_urls":["http://de/a.m3u8"]},
 {"name":"Nowhere","country":"","nanoid":"nw","iptv_urls":["http://x/n.m3u8"]},
 {"name":"DRM","country":"US","nanoid":"dr","iptv_urls":["http://bad/drm/x.m3u8"]},
 {"name":"Joy","country":"US","nanoid":"jy","iptv_urls":["http://moveonjoy.com/x.m3u8"]}
]`

func TestExportAll_relaxedDenylist(t *testing.T) {
	fs := memfs.New()
	e := newTestExporter(fs, newCatalogStore(t, catalogJSON))

	res, err := e.ExportAll(context.Background(), 0)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	// "drm" is on both lists; moveonjoy only on the browse list, so the
	// bulk export keeps it.
	if res.Channels != 5 {
		t.Errorf("channels = %d, want 5", res.Channels)
	}
	if res.Counts.Problematic != 1 {
		t.Errorf("problematic = %d, want 1 (drm only)", res.Counts.Problematic)
	}

	body := mustRead(t, fs, res.Files[0])
	if !strings.Contains(body, "moveonjoy.com") {
		t.Error("bulk export should keep moveonjoy streams")
	}
	if strings.Contains(body, "/drm/") {
		t.Error("bulk export must still drop drm streams")
	}
	if !strings.Contains(body, "UNKNOWN (1)") {
		t.Errorf("empty country should bucket under Unknown:\n%s", body)
	}
}

func TestExportSplit_everyChannelInExactlyOneChild(t *testing.T) {
	fs := memfs.New()
	e := newTestExporter(fs, newCatalogStore(t, catalogJSON))

	res, err := e.ExportSplit(context.Background(), 0, 2)
	if err != nil {
		t.Fatalf("ExportSplit: %v", err)
	}

	parent := FileName("e2garden", "all")
	urls := map[string]int{}
	var children int
	for _, f := range res.Files {
		if f == parent {
			continue
		}
		children++
		for _, line := range strings.Split(mustRead(t, fs, f), "\n") {
			if strings.HasPrefix(line, "#SERVICE 4097:") {
				parts := strings.Split(line, ":")
				urls[parts[10]]++
			}
		}
	}
	if children != 3 {
		t.Errorf("children = %d, want 3 (5 channels, 2 per file)", children)
	}
	if len(urls) != 5 {
		t.Errorf("distinct exported URLs = %d, want 5", len(urls))
	}
	for u, n := range urls {
		if n != 1 {
			t.Errorf("url %s appears %d times across children, want 1", u, n)
		}
	}

	// Parent references each child exactly once and is registered.
	parentBody := mustRead(t, fs, parent)
	for _, f := range res.Files {
		if f == parent {
			continue
		}
		if strings.Count(parentBody, `"`+f+`"`) != 1 {
			t.Errorf("parent should reference %s exactly once", f)
		}
	}
	idx := mustRead(t, fs, IndexName)
	if !strings.Contains(idx, `"`+parent+`"`) {
		t.Error("parent bouquet not registered in index")
	}
}

func TestExportAll_fetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	client := &http.Client{Transport: routeAll{srv}}
	store := cache.New(t.TempDir(), cache.Options{Client: client, RequestsPerSecond: 1000})

	fs := memfs.New()
	e := newTestExporter(fs, store)
	if _, err := e.ExportAll(context.Background(), 0); err == nil {
		t.Fatal("expected error when the catalog fetch fails")
	}
	if _, statErr := fs.Stat(dir + "/" + IndexName); statErr == nil {
		t.Error("index must stay untouched after a failed export")
	}
}

func TestFileName(t *testing.T) {
	cases := []struct{ tag, name, want string }{
		{"e2garden", "Favorites", "userbouquet.e2garden_favorites.tv"},
		{"e2garden", "All Channels!", "userbouquet.e2garden_all_channels.tv"},
		{"Garden TV", "", "userbouquet.garden_tv_bouquet.tv"},
	}
	for _, c := range cases {
		if got := FileName(c.tag, c.name); got != c.want {
			t.Errorf("FileName(%q, %q) = %q, want %q", c.tag, c.name, got, c.want)
		}
	}
}
