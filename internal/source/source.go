// Package source builds the canonical remote URLs of the public channel-list
// repository. The repository is a static file layout: one JSON document per
// country, one per category, a merged full-catalog document and a metadata
// document describing available countries.
//
// Every function is pure: same input, same URL, no I/O. Malformed input (an
// empty code) still yields a syntactically valid URL; it will simply 404 at
// fetch time, which is where errors belong.
package source

import "strings"

// BaseURL is the raw-content root of the channel-list repository.
const BaseURL = "https://raw.githubusercontent.com/TVGarden/tv-garden-channel-list/main"

// CountryURL returns the per-country channel document URL. Country codes are
// case-normalised to lower case so "US" and "us" share one cache slot.
func CountryURL(code string) string {
	return BaseURL + "/channels/raw/countries/" + strings.ToLower(strings.TrimSpace(code)) + ".json"
}

// CategoryURL returns the per-category channel document URL.
func CategoryURL(id string) string {
	return BaseURL + "/channels/raw/categories/" + strings.ToLower(strings.TrimSpace(id)) + ".json"
}

// AllChannelsURL returns the merged full-catalog document URL, used by the
// all-database bouquet export to bypass per-country pagination.
func AllChannelsURL() string {
	return BaseURL + "/channels/raw/all_channels.json"
}

// MetadataURL returns the countries metadata document URL (names, flags,
// channel counts). The directory service derives the category list from it.
func MetadataURL() string {
	return BaseURL + "/metadata/countries_metadata.json"
}
