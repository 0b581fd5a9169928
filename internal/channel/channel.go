// Package channel defines the normalized channel record and the normalizer
// that produces it from the heterogeneous raw JSON served by the channel-list
// repository. Raw payloads are not contractually stable (bare array vs object
// wrapper, varying field names, numbers where strings are expected), so the
// package works on loosely-typed documents with explicit accessors instead of
// a fixed schema.
package channel

import "strings"

// Provenance says which source list a record's playable URL came from.
type Provenance string

const (
	FoundInIPTV    Provenance = "iptv"
	FoundInYouTube Provenance = "youtube"
)

// Record is one playable entity. Records are built by Normalize and never
// mutated afterwards; a subset is persisted by the favorites store.
type Record struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	StreamURL   string     `json:"stream_url"`
	Logo        string     `json:"logo,omitempty"`
	Description string     `json:"description,omitempty"`
	Group       string     `json:"group,omitempty"`
	Language    string     `json:"language,omitempty"`
	Country     string     `json:"country,omitempty"`
	FoundIn     Provenance `json:"found_in"`
	IsYouTube   bool       `json:"is_youtube"`
}

// ProblemPatterns marks streams that are DRM-protected or known-dead. A URL
// containing any of these substrings (lower-cased match) is dropped during
// normalization. Kept deliberately distinct from BulkExportProblemPatterns;
// see that constant.
var ProblemPatterns = []string{
	"moveonjoy.com",
	".mpd",
	"/dash/",
	"drm",
	"widevine",
	"playready",
	"fairplay",
	"keydelivery",
	"license.",
	"encryption",
	"akamaihd.net",
	"level3.net",
}

// BulkExportProblemPatterns is the reduced denylist applied by the
// all-database bouquet export. It diverges from ProblemPatterns (5 patterns
// vs 12); whether that relaxation is intentional is an open product question,
// so the two lists are kept separate instead of being unified.
var BulkExportProblemPatterns = []string{
	".mpd",
	"/dash/",
	"drm",
	"widevine",
	"flex-cdn.net",
}

// ValidStreamURL reports whether a URL looks playable: a known streaming
// scheme, or ".m3u8" anywhere in the URL. The substring match is applied to
// the whole URL, so query strings like "?fmt=.m3u8" pass; the channel corpus
// relies on that permissiveness.
func ValidStreamURL(u string) bool {
	lower := strings.ToLower(strings.TrimSpace(u))
	if lower == "" {
		return false
	}
	for _, prefix := range []string{"http://", "https://", "rtmp://", "rtsp://"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return strings.Contains(lower, ".m3u8")
}

// MatchProblem returns the first denylist pattern contained in the URL, or "".
func MatchProblem(u string, patterns []string) string {
	lower := strings.ToLower(u)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return p
		}
	}
	return ""
}
