// Package directory is the browse/search layer: it composes the URL
// resolver, the fetch cache and the channel normalizer into the operations a
// frontend actually asks for.
package directory

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/gardentv/e2garden/internal/cache"
	"github.com/gardentv/e2garden/internal/channel"
	"github.com/gardentv/e2garden/internal/source"
)

// categoriesKey is the memory side-table slot for the discovered category
// list, so repeated Categories calls skip the probe round.
const categoriesKey = "available_categories"

// candidateCategories is the probe set for category discovery. The remote
// repository has no category manifest; a category exists when its document
// fetches and contains channels.
var candidateCategories = []string{
	"animation", "business", "classic", "comedy", "cooking", "culture",
	"documentary", "education", "entertainment", "family", "general", "kids",
	"legislative", "lifestyle", "movies", "music", "news", "outdoor",
	"relax", "religious", "science", "series", "shop", "sports", "travel",
	"weather",
}

// Service answers browse and search requests over the remote channel
// directory. All network traffic goes through the cache store.
type Service struct {
	store *cache.Store
	limit int // input cap per listing, 0 = unlimited
	ttl   time.Duration
}

func New(store *cache.Store, limit int, ttl time.Duration) *Service {
	return &Service{store: store, limit: limit, ttl: ttl}
}

// Listing is one resolved browse result.
type Listing struct {
	Channels []channel.Record
	Counts   channel.Counts
	Stale    bool // served from an expired cache entry after a failed refresh
}

// Country is one entry of the remote countries metadata document.
type Country struct {
	Code string
	Name string
}

// ChannelsForCountry lists the normalized channels of one country document.
func (s *Service) ChannelsForCountry(ctx context.Context, code string) (*Listing, error) {
	return s.browse(ctx, source.CountryURL(code))
}

// ChannelsForCategory lists the normalized channels of one category document.
func (s *Service) ChannelsForCategory(ctx context.Context, id string) (*Listing, error) {
	return s.browse(ctx, source.CategoryURL(id))
}

// AllChannels lists the merged full catalog, still with the strict browse
// denylist; bulk bouquet export applies its own relaxed one.
func (s *Service) AllChannels(ctx context.Context) (*Listing, error) {
	return s.browse(ctx, source.AllChannelsURL())
}

// browse is the shared fetch+normalize path. When the refresh fails but an
// expired entry is still on disk, the stale entry is served and the listing
// is marked degraded instead of failing the whole browse.
func (s *Service) browse(ctx context.Context, url string) (*Listing, error) {
	stale := false
	v, err := s.store.Fetch(ctx, url, false, s.ttl)
	if err != nil {
		cached, ok := s.store.Cached(url)
		if !ok {
			return nil, err
		}
		log.Printf("directory: refresh failed (%v); serving stale cache for %s", err, url)
		v = cached
		stale = true
	}

	docs := channel.ExtractList(v)
	recs, counts := channel.NormalizeAll(docs, s.limit, channel.ProblemPatterns)
	return &Listing{Channels: recs, Counts: counts, Stale: stale}, nil
}

// Scope narrows a search to one country or one category; the zero value
// searches the full catalog. Country wins when both are set.
type Scope struct {
	Country  string
	Category string
}

// Search filters a scoped listing by case-insensitive substring match over
// name, group and description. An empty query returns the listing unchanged.
func (s *Service) Search(ctx context.Context, query string, scope Scope) (*Listing, error) {
	var (
		listing *Listing
		err     error
	)
	switch {
	case scope.Country != "":
		listing, err = s.ChannelsForCountry(ctx, scope.Country)
	case scope.Category != "":
		listing, err = s.ChannelsForCategory(ctx, scope.Category)
	default:
		listing, err = s.AllChannels(ctx)
	}
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return listing, nil
	}
	matched := listing.Channels[:0:0]
	for _, rec := range listing.Channels {
		if strings.Contains(strings.ToLower(rec.Name), q) ||
			strings.Contains(strings.ToLower(rec.Group), q) ||
			strings.Contains(strings.ToLower(rec.Description), q) {
			matched = append(matched, rec)
		}
	}
	listing.Channels = matched
	return listing, nil
}

// Countries lists the countries the remote repository knows about, from its
// metadata document. The document shape varies between a bare array of
// country objects and a code-keyed map; both are accepted.
func (s *Service) Countries(ctx context.Context) ([]Country, error) {
	v, err := s.store.Fetch(ctx, source.MetadataURL(), false, s.ttl)
	if err != nil {
		return nil, err
	}
	out := parseCountries(v)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func parseCountries(v any) []Country {
	var out []Country
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if d, ok := e.(map[string]any); ok {
				c := Country{Code: channel.Doc(d).Str("code", "country_code", "id"), Name: channel.Doc(d).Str("name", "country")}
				if c.Code != "" {
					out = append(out, c)
				}
			}
		}
	case map[string]any:
		for code, e := range t {
			name := code
			if d, ok := e.(map[string]any); ok {
				if n := channel.Doc(d).Str("name", "country"); n != "" {
					name = n
				}
			}
			out = append(out, Country{Code: code, Name: name})
		}
	}
	return out
}

// Categories discovers which category documents exist by probing the known
// candidate set. The discovered list is kept in the cache side-table so the
// probe round runs once per cache lifetime.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	if v, ok := s.store.MemGet(categoriesKey); ok {
		if list, ok := v.([]any); ok {
			out := make([]string, 0, len(list))
			for _, e := range list {
				if str, ok := e.(string); ok {
					out = append(out, str)
				}
			}
			return out, nil
		}
	}

	var found []string
	for _, id := range candidateCategories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := s.store.Fetch(ctx, source.CategoryURL(id), false, s.ttl)
		if err != nil {
			continue // absent category, or transient failure; probe the rest
		}
		if len(channel.ExtractList(v)) > 0 {
			found = append(found, id)
		}
	}

	// Side-table values round-trip through JSON, so store the generic form.
	stored := make([]any, len(found))
	for i, id := range found {
		stored[i] = id
	}
	s.store.MemSet(categoriesKey, stored)
	return found, nil
}
