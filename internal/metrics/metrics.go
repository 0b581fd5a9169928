// Package metrics exposes Prometheus counters for the fetch/cache pipeline
// and the bouquet exporter. Registration is done at init via promauto; the
// process decides whether to serve them (the CLI only logs, long-running
// deployments can mount promhttp).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts Fetch calls answered from a valid disk entry.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "e2garden_cache_hits_total",
		Help: "Fetch calls served from a non-expired disk cache entry",
	})

	// CacheMisses counts Fetch calls that went to the network.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "e2garden_cache_misses_total",
		Help: "Fetch calls that performed a network GET (miss, expiry or forced refresh)",
	})

	// FetchErrors counts failed network fetches by reason.
	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "e2garden_fetch_errors_total",
		Help: "Network fetches that failed",
	}, []string{"reason"})

	// ChannelsDropped counts normalizer rejections by reason
	// (no_url, youtube, problematic).
	ChannelsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "e2garden_channels_dropped_total",
		Help: "Raw channel records dropped during normalization",
	}, []string{"reason"})

	// BouquetExports counts export runs by variant and outcome.
	BouquetExports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "e2garden_bouquet_exports_total",
		Help: "Bouquet export runs",
	}, []string{"variant", "outcome"})

	// FavoritesSize tracks the current number of stored favorites.
	FavoritesSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "e2garden_favorites_size",
		Help: "Number of favorite channels currently stored",
	})
)
