package channel

import (
	"log"
	"strconv"

	"github.com/gardentv/e2garden/internal/metrics"
)

// Counts reports what happened to the raw input of a Normalize run. Purely
// informational: status display and logging, never control flow.
type Counts struct {
	Input       int // raw records examined (after truncation)
	Valid       int // records that became a Record
	YouTube     int // skipped: only a YouTube URL was available
	Problematic int // dropped: URL matched the denylist
	NoURL       int // dropped: no playable URL at all, or URL failed validation
	Truncated   int // raw records never examined because of the input limit
}

// Normalize builds a Record from one raw channel document. index is the
// zero-based position in the source list, used for name and id fallbacks.
// Returns nil when the document is filtered out; reason accounting is the
// caller's job (see NormalizeAll).
//
// URL selection prefers the IPTV list over the YouTube list; a record whose
// only URL is a YouTube one is produced with IsYouTube set so the caller can
// count it, but it is never part of a playable set.
func Normalize(d Doc, index int) *Record {
	streamURL, found := pickURL(d)
	if streamURL == "" {
		return nil
	}

	name := d.Str("name")
	if name == "" {
		name = "Channel " + strconv.Itoa(index+1)
	}
	id := d.Str("nanoid")
	if id == "" {
		id = "ch-" + strconv.Itoa(index+1)
	}

	return &Record{
		ID:          id,
		Name:        name,
		StreamURL:   streamURL,
		Logo:        d.Str("logo", "icon", "image"),
		Description: d.Str("description"),
		Group:       d.Str("group"),
		Language:    d.Str("language"),
		Country:     d.Str("country"),
		FoundIn:     found,
		IsYouTube:   found == FoundInYouTube,
	}
}

// pickURL scans iptv_urls for the first non-empty entry, then youtube_urls.
func pickURL(d Doc) (string, Provenance) {
	for _, u := range d.StrList("iptv_urls") {
		return u, FoundInIPTV
	}
	for _, u := range d.StrList("youtube_urls") {
		return u, FoundInYouTube
	}
	return "", ""
}

// NormalizeAll runs the full filter pipeline over a raw channel list.
// limit > 0 truncates the *input* iteration: filtering happens after the
// cut, so the number of valid outputs can be below the limit even when more
// valid candidates exist later in the source. That asymmetry matches the
// original data paths and is preserved on purpose.
func NormalizeAll(docs []Doc, limit int, denylist []string) ([]Record, Counts) {
	var counts Counts
	out := make([]Record, 0, len(docs))

	for i, d := range docs {
		if limit > 0 && i >= limit {
			counts.Truncated = len(docs) - limit
			break
		}
		counts.Input++

		rec := Normalize(d, i)
		if rec == nil {
			counts.NoURL++
			metrics.ChannelsDropped.WithLabelValues("no_url").Inc()
			continue
		}
		if rec.IsYouTube {
			counts.YouTube++
			metrics.ChannelsDropped.WithLabelValues("youtube").Inc()
			continue
		}
		if !ValidStreamURL(rec.StreamURL) {
			counts.NoURL++
			metrics.ChannelsDropped.WithLabelValues("no_url").Inc()
			continue
		}
		if p := MatchProblem(rec.StreamURL, denylist); p != "" {
			counts.Problematic++
			metrics.ChannelsDropped.WithLabelValues("problematic").Inc()
			log.Printf("channel: dropping %q: url matches %q", rec.Name, p)
			continue
		}

		counts.Valid++
		out = append(out, *rec)
	}
	return out, counts
}
