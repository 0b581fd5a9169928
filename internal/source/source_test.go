package source

import (
	"strings"
	"testing"
)

func TestCountryURL_caseNormalised(t *testing.T) {
	if CountryURL("US") != CountryURL("us") {
		t.Errorf("country URL should be case-insensitive: %q vs %q", CountryURL("US"), CountryURL("us"))
	}
	if got := CountryURL(" It "); !strings.HasSuffix(got, "/countries/it.json") {
		t.Errorf("CountryURL(\" It \") = %q", got)
	}
}

func TestCountryURL_deterministic(t *testing.T) {
	if CountryURL("de") != CountryURL("de") {
		t.Error("same input must yield the same URL")
	}
}

func TestEmptyInputStillValid(t *testing.T) {
	// Empty codes build a 404-bound but well-formed URL; errors surface at fetch time.
	if got := CountryURL(""); got != BaseURL+"/channels/raw/countries/.json" {
		t.Errorf("CountryURL(\"\") = %q", got)
	}
	if got := CategoryURL(""); !strings.HasPrefix(got, BaseURL) {
		t.Errorf("CategoryURL(\"\") = %q", got)
	}
}

func TestCategoryURL(t *testing.T) {
	if got := CategoryURL("News"); got != BaseURL+"/channels/raw/categories/news.json" {
		t.Errorf("CategoryURL(News) = %q", got)
	}
}
