// Package bouquet serializes channel lists into Enigma2 bouquet files and
// splices them into the receiver's bouquet index. The bouquet format is
// line-oriented: a #NAME header, marker lines (type 1:64) for groups, and a
// service/description line pair per channel. Files are regenerated wholesale
// on every export; the filesystem is the source of truth.
package bouquet

import (
	"fmt"
	"strings"
)

// Escape replaces literal colons with %3a so a URL or name can sit inside
// the fixed-arity colon-delimited service reference. Nothing else is
// escaped: a raw % or newline in a channel name would corrupt the line, a
// known limitation the current channel corpus does not exercise.
func Escape(s string) string {
	return strings.ReplaceAll(s, ":", "%3a")
}

// refCounter hands out the pseudo service/transport-stream identifiers that
// keep two exported entries from aliasing to the same player slot. Fresh per
// export: ids only need to be unique within one bouquet generation.
type refCounter struct{ n int }

func (c *refCounter) next() int {
	c.n++
	return c.n
}

// serviceLine renders one playable channel entry. 4097 is the IPTV/GStreamer
// service type; SID and TSID are the synthesized per-export identifiers.
func serviceLine(sid, tsid int, url, name string) string {
	return fmt.Sprintf("#SERVICE 4097:0:1:%X:%X:EC:0:0:0:0:%s:%s", sid, tsid, Escape(url), Escape(name))
}

// markerLine renders a non-playable group separator carrying a label.
func markerLine(idx int, label string) string {
	return fmt.Sprintf("#SERVICE 1:64:%X:0:0:0:0:0:0:0::%s", idx, Escape(label))
}

func descriptionLine(text string) string {
	return "#DESCRIPTION " + text
}

// header renders the block that opens every bouquet file: the #NAME line, a
// self-referential marker with the human-readable title, and its echo.
func header(title string, refs *refCounter) []string {
	return []string{
		"#NAME " + title,
		markerLine(refs.next(), title),
		descriptionLine(title),
	}
}

// countryLabel is the group caption: upper-cased country plus channel count.
func countryLabel(country string, count int) string {
	return fmt.Sprintf("%s (%d)", strings.ToUpper(country), count)
}

// sanitizeName maps a bouquet display name to its filename fragment.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		out = "bouquet"
	}
	return out
}

// FileName builds the bouquet filename: userbouquet.<tag>_<name>.tv.
func FileName(tag, name string) string {
	return "userbouquet." + sanitizeName(tag) + "_" + sanitizeName(name) + ".tv"
}
