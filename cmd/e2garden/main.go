// Command e2garden: headless driver for the TV Garden directory core.
//
//	channels   List channels for a country, a category, or the full catalog
//	search     Case-insensitive substring search over name/group/description
//	favorites  Manage the persistent favorites store (list/add/remove/search/clear)
//	export     Write Enigma2 bouquet files and register them in bouquets.tv
//	cache      Cache maintenance: stats, clear
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/avfs/avfs/vfs/osfs"

	"github.com/gardentv/e2garden/internal/bouquet"
	"github.com/gardentv/e2garden/internal/cache"
	"github.com/gardentv/e2garden/internal/channel"
	"github.com/gardentv/e2garden/internal/config"
	"github.com/gardentv/e2garden/internal/directory"
	"github.com/gardentv/e2garden/internal/favorites"
	"github.com/gardentv/e2garden/internal/httpclient"
	"github.com/gardentv/e2garden/internal/reload"
)

func newStore(cfg *config.Config) *cache.Store {
	return cache.New(cfg.CacheDir, cache.Options{
		TTL:    cfg.CacheTTL,
		Client: httpclient.WithTimeout(cfg.ConnectionTimeout),
	})
}

func newExporter(cfg *config.Config, store *cache.Store) *bouquet.Exporter {
	var reloader bouquet.Reloader
	if cfg.AutoRefreshBouquet {
		reloader = reload.New(cfg.OpenWebifBase, httpclient.WithTimeout(cfg.ConnectionTimeout))
	}
	return bouquet.New(osfs.New(), cfg.BouquetDir, cfg.BouquetNamePrefix, store, reloader)
}

func printChannels(listing *directory.Listing) {
	for _, rec := range listing.Channels {
		country := rec.Country
		if country == "" {
			country = "??"
		}
		fmt.Printf("%-18s %-4s %s\n", rec.ID, strings.ToUpper(country), rec.Name)
	}
	c := listing.Counts
	log.Printf("%d channels (dropped: %d no-url, %d youtube, %d problematic; truncated %d)",
		len(listing.Channels), c.NoURL, c.YouTube, c.Problematic, c.Truncated)
	if listing.Stale {
		log.Print("Served from expired cache; refresh failed")
	}
}

func reportExport(res *bouquet.Result) {
	log.Printf("Exported %d channels across %d countries into %s",
		res.Channels, res.Countries, strings.Join(res.Files, ", "))
	if res.Counts.Problematic > 0 || res.Counts.YouTube > 0 || res.Counts.NoURL > 0 {
		log.Printf("Dropped on the way: %d no-url, %d youtube, %d problematic",
			res.Counts.NoURL, res.Counts.YouTube, res.Counts.Problematic)
	}
	if res.Degraded {
		log.Print("Bouquet files written but index registration failed; add them manually")
	}
	log.Printf("Service list reload: %s", res.Reload)
}

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[e2garden] ")

	channelsCmd := flag.NewFlagSet("channels", flag.ExitOnError)
	chCountry := channelsCmd.String("country", "", "Country code (e.g. us)")
	chCategory := channelsCmd.String("category", "", "Category id (e.g. news)")
	chCountries := channelsCmd.Bool("countries", false, "List known countries instead of channels")
	chCategories := channelsCmd.Bool("categories", false, "List discovered categories instead of channels")

	searchCmd := flag.NewFlagSet("search", flag.ExitOnError)
	seQuery := searchCmd.String("q", "", "Search query (required)")
	seCountry := searchCmd.String("country", "", "Restrict to one country")
	seCategory := searchCmd.String("category", "", "Restrict to one category")

	favCmd := flag.NewFlagSet("favorites", flag.ExitOnError)
	favName := favCmd.String("name", "", "Channel name (for add)")
	favURL := favCmd.String("url", "", "Stream URL (for add/remove)")
	favGroup := favCmd.String("group", "", "Channel group (for add)")
	favQuery := favCmd.String("q", "", "Query (for search)")

	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exTarget := exportCmd.String("target", "favorites", "favorites | all | country code (e.g. us)")
	exPerFile := exportCmd.Int("per-file", 0, "Split the all-database export, N channels per file (default: E2GARDEN_MAX_CHANNELS_PER_BOUQUET)")
	exLimit := exportCmd.Int("limit", -1, "Input cap for the all-database export (default: E2GARDEN_MAX_CHANNELS_FOR_BOUQUET)")

	cacheCmd := flag.NewFlagSet("cache", flag.ExitOnError)

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <channels|search|favorites|export|cache> [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  channels   List channels (-country us | -category news | full catalog)\n")
		fmt.Fprintf(os.Stderr, "  search     Search channels (-q query, optional -country/-category)\n")
		fmt.Fprintf(os.Stderr, "  favorites  list|add|remove|search|clear\n")
		fmt.Fprintf(os.Stderr, "  export     Write bouquet files (-target favorites|all|<country>)\n")
		fmt.Fprintf(os.Stderr, "  cache      stats|clear\n")
		os.Exit(1)
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "channels":
		_ = channelsCmd.Parse(os.Args[2:])
		store := newStore(cfg)
		dir := directory.New(store, cfg.MaxChannels, cfg.CacheTTL)
		switch {
		case *chCountries:
			countries, err := dir.Countries(ctx)
			if err != nil {
				log.Printf("List countries failed: %v", err)
				os.Exit(1)
			}
			for _, c := range countries {
				fmt.Printf("%-4s %s\n", c.Code, c.Name)
			}
		case *chCategories:
			cats, err := dir.Categories(ctx)
			if err != nil {
				log.Printf("List categories failed: %v", err)
				os.Exit(1)
			}
			for _, c := range cats {
				fmt.Println(c)
			}
		default:
			var (
				listing *directory.Listing
				err     error
			)
			switch {
			case *chCountry != "":
				listing, err = dir.ChannelsForCountry(ctx, *chCountry)
			case *chCategory != "":
				listing, err = dir.ChannelsForCategory(ctx, *chCategory)
			default:
				listing, err = dir.AllChannels(ctx)
			}
			if err != nil {
				log.Printf("List channels failed: %v", err)
				os.Exit(1)
			}
			printChannels(listing)
		}

	case "search":
		_ = searchCmd.Parse(os.Args[2:])
		if strings.TrimSpace(*seQuery) == "" {
			log.Print("Set -q <query>")
			os.Exit(1)
		}
		store := newStore(cfg)
		dir := directory.New(store, cfg.MaxChannels, cfg.CacheTTL)
		listing, err := dir.Search(ctx, *seQuery, directory.Scope{Country: *seCountry, Category: *seCategory})
		if err != nil {
			log.Printf("Search failed: %v", err)
			os.Exit(1)
		}
		printChannels(listing)

	case "favorites":
		action := "list"
		rest := os.Args[2:]
		if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
			action, rest = rest[0], rest[1:]
		}
		_ = favCmd.Parse(rest)
		store := favorites.New(osfs.New(), cfg.FavoritesPath)
		switch action {
		case "list":
			for _, f := range store.List() {
				fmt.Printf("%-18s %-20s %s\n", f.ID, f.Group, f.Name)
			}
			log.Printf("%d favorites in %s", store.Len(), cfg.FavoritesPath)
		case "add":
			if *favName == "" || *favURL == "" {
				log.Print("Set -name and -url")
				os.Exit(1)
			}
			ok, msg := store.Add(channel.Record{Name: *favName, StreamURL: *favURL, Group: *favGroup})
			log.Print(msg)
			if !ok {
				os.Exit(1)
			}
		case "remove":
			if *favURL == "" {
				log.Print("Set -url")
				os.Exit(1)
			}
			ok, msg := store.Remove(channel.Record{StreamURL: *favURL})
			log.Print(msg)
			if !ok {
				os.Exit(1)
			}
		case "search":
			for _, f := range store.Search(*favQuery) {
				fmt.Printf("%-18s %-20s %s\n", f.ID, f.Group, f.Name)
			}
		case "clear":
			_, msg := store.ClearAll()
			log.Print(msg)
		default:
			log.Printf("Unknown favorites action %q; use list|add|remove|search|clear", action)
			os.Exit(1)
		}

	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		if !cfg.ExportEnabled {
			log.Print("Export disabled (E2GARDEN_EXPORT_ENABLED=false)")
			os.Exit(1)
		}
		store := newStore(cfg)
		exporter := newExporter(cfg, store)
		limit := *exLimit
		if limit < 0 {
			limit = cfg.MaxChannelsForBouquet
		}
		perFile := *exPerFile
		if perFile <= 0 {
			perFile = cfg.MaxChannelsPerBouquet
		}

		var (
			res *bouquet.Result
			err error
		)
		switch target := strings.ToLower(strings.TrimSpace(*exTarget)); target {
		case "favorites":
			favs := favorites.New(osfs.New(), cfg.FavoritesPath)
			recs := make([]channel.Record, 0, favs.Len())
			for _, f := range favs.List() {
				recs = append(recs, f.Record)
			}
			res, err = exporter.ExportList(ctx, "Favorites", recs)
		case "all":
			if perFile > 0 {
				res, err = exporter.ExportSplit(ctx, limit, perFile)
			} else {
				res, err = exporter.ExportAll(ctx, limit)
			}
		default:
			dir := directory.New(store, cfg.MaxChannels, cfg.CacheTTL)
			var listing *directory.Listing
			listing, err = dir.ChannelsForCountry(ctx, target)
			if err == nil {
				res, err = exporter.ExportList(ctx, strings.ToUpper(target), listing.Channels)
			}
		}
		if err != nil {
			log.Printf("Export failed: %v", err)
			os.Exit(1)
		}
		reportExport(res)

	case "cache":
		action := "stats"
		if len(os.Args) > 2 {
			action = os.Args[2]
		}
		_ = cacheCmd.Parse(nil)
		store := newStore(cfg)
		switch action {
		case "stats":
			st := store.Stats()
			log.Printf("Cache %s: %d files, %d bytes (TTL %v)", cfg.CacheDir, st.Files, st.Bytes, cfg.CacheTTL)
		case "clear":
			start := time.Now()
			if err := store.InvalidateAll(); err != nil {
				log.Printf("Cache clear failed: %v", err)
				os.Exit(1)
			}
			log.Printf("Cache cleared in %v", time.Since(start).Round(time.Millisecond))
		default:
			log.Printf("Unknown cache action %q; use stats|clear", action)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		os.Exit(1)
	}
}
