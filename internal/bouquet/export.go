package bouquet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/avfs/avfs"

	"github.com/gardentv/e2garden/internal/cache"
	"github.com/gardentv/e2garden/internal/channel"
	"github.com/gardentv/e2garden/internal/metrics"
	"github.com/gardentv/e2garden/internal/source"
)

// ErrNoChannels is returned when filtering leaves nothing to export; no file
// is written and the index is untouched.
var ErrNoChannels = errors.New("bouquet: no valid channels to export")

// Reloader asks the playback subsystem to reload its service lists. A nil
// Reloader skips the signal (the CLI's dry-run mode).
type Reloader interface {
	Trigger(ctx context.Context) ReloadOutcome
}

// ReloadOutcome is what the reload signal achieved after an export.
type ReloadOutcome string

const (
	ReloadDone            ReloadOutcome = "reloaded"
	ReloadSkipped         ReloadOutcome = "skipped"
	ReloadRestartRequired ReloadOutcome = "restart required"
)

// Result summarises one export run. Degraded is set when the bouquet file
// exists but the index splice failed: the export did happen, the receiver
// just won't list it until the index is fixed.
type Result struct {
	Files     []string
	Channels  int
	Countries int
	Counts    channel.Counts
	Degraded  bool
	Reload    ReloadOutcome
}

// Exporter writes bouquet files into one receiver directory. It exclusively
// owns the files it names; nothing is cached in memory between calls.
type Exporter struct {
	vfs      avfs.VFS
	dir      string
	tag      string
	store    *cache.Store
	reloader Reloader
}

// New returns an Exporter writing into dir with the configured name tag.
// store may be nil when only explicit-list exports are used.
func New(vfs avfs.VFS, dir, tag string, store *cache.Store, reloader Reloader) *Exporter {
	if tag == "" {
		tag = "e2garden"
	}
	return &Exporter{vfs: vfs, dir: dir, tag: tag, store: store, reloader: reloader}
}

func (e *Exporter) indexPath() string { return filepath.Join(e.dir, IndexName) }

// ExportList writes one bouquet file for an explicit channel list (already
// filtered by the caller), grouped by country, then registers it.
func (e *Exporter) ExportList(ctx context.Context, name string, channels []channel.Record) (*Result, error) {
	res, err := e.writeGrouped(ctx, FileName(e.tag, name), "TV Garden - "+name, channels)
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	metrics.BouquetExports.WithLabelValues("list", outcome).Inc()
	return res, err
}

// ExportAll fetches the full catalog, applies the relaxed bulk-export
// denylist, and writes a single bouquet grouped by country. The input cap
// (0 = unlimited) truncates catalog iteration before filtering, same
// semantics as browsing.
func (e *Exporter) ExportAll(ctx context.Context, limit int) (*Result, error) {
	channels, counts, err := e.fetchAll(ctx, limit)
	if err != nil {
		metrics.BouquetExports.WithLabelValues("all", "failed").Inc()
		return nil, err
	}

	res, err := e.writeGrouped(ctx, FileName(e.tag, "all"), "TV Garden - All Channels", channels)
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	} else {
		res.Counts = counts
	}
	metrics.BouquetExports.WithLabelValues("all", outcome).Inc()
	return res, err
}

// ExportSplit is ExportAll across multiple files: children hold at most
// perFile channels each and a parent container bouquet references them.
// Every channel an ExportAll run would emit lands in exactly one child.
func (e *Exporter) ExportSplit(ctx context.Context, limit, perFile int) (*Result, error) {
	if perFile <= 0 {
		return e.ExportAll(ctx, limit)
	}
	channels, counts, err := e.fetchAll(ctx, limit)
	if err != nil {
		metrics.BouquetExports.WithLabelValues("split", "failed").Inc()
		return nil, err
	}
	if len(channels) == 0 {
		metrics.BouquetExports.WithLabelValues("split", "failed").Inc()
		return nil, ErrNoChannels
	}

	groups, order := groupByCountry(assignRefs(channels))

	// Fill children country by country so each file stays browsable; a
	// country larger than perFile spills over into the next child.
	var (
		files     []string
		current   []entry
		childIdx  int
		childRefs []string
	)
	flush := func() error {
		if len(current) == 0 {
			return nil
		}
		childIdx++
		name := FileName(e.tag, "all_"+strconv.Itoa(childIdx))
		title := fmt.Sprintf("TV Garden - All Channels %d", childIdx)
		if err := e.writeEntries(name, title, current); err != nil {
			return err
		}
		files = append(files, name)
		childRefs = append(childRefs, name)
		current = nil
		return nil
	}
	for _, country := range order {
		for _, en := range groups[country] {
			current = append(current, en)
			if len(current) >= perFile {
				if err := flush(); err != nil {
					metrics.BouquetExports.WithLabelValues("split", "failed").Inc()
					return nil, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		metrics.BouquetExports.WithLabelValues("split", "failed").Inc()
		return nil, err
	}

	// Parent container referencing every child.
	parent := FileName(e.tag, "all")
	refs := &refCounter{}
	lines := header("TV Garden - All Channels", refs)
	for i, child := range childRefs {
		lines = append(lines,
			indexLine(child),
			descriptionLine(fmt.Sprintf("Part %d", i+1)))
	}
	if err := e.writeFile(parent, lines); err != nil {
		metrics.BouquetExports.WithLabelValues("split", "failed").Inc()
		return nil, err
	}
	files = append(files, parent)

	res := &Result{Files: files, Channels: len(channels), Countries: len(order), Counts: counts}
	if err := e.Splice(parent); err != nil {
		log.Printf("bouquet: index splice failed: %v", err)
		res.Degraded = true
	}
	res.Reload = e.reload(ctx)
	metrics.BouquetExports.WithLabelValues("split", "ok").Inc()
	return res, nil
}

// fetchAll pulls the merged catalog through the cache and normalizes it with
// the relaxed bulk-export denylist.
func (e *Exporter) fetchAll(ctx context.Context, limit int) ([]channel.Record, channel.Counts, error) {
	if e.store == nil {
		return nil, channel.Counts{}, errors.New("bouquet: no cache store configured for catalog export")
	}
	payload, err := e.store.Fetch(ctx, source.AllChannelsURL(), false, 0)
	if err != nil {
		return nil, channel.Counts{}, fmt.Errorf("bouquet: catalog fetch: %w", err)
	}
	docs := channel.ExtractList(payload)
	records, counts := channel.NormalizeAll(docs, limit, channel.BulkExportProblemPatterns)
	return records, counts, nil
}

// entry pairs a record with its synthesized identifiers.
type entry struct {
	rec  channel.Record
	sid  int
	tsid int
}

// assignRefs hands out per-export identifiers in input order.
func assignRefs(records []channel.Record) []entry {
	refs := &refCounter{}
	out := make([]entry, len(records))
	for i, r := range records {
		n := refs.next()
		out[i] = entry{rec: r, sid: n, tsid: n}
	}
	return out
}

// groupByCountry buckets entries, empty country going to "Unknown". Group
// order is alphabetical with Unknown last, so repeated exports of the same
// catalog produce identical files.
func groupByCountry(entries []entry) (map[string][]entry, []string) {
	groups := make(map[string][]entry)
	for _, en := range entries {
		country := en.rec.Country
		if strings.TrimSpace(country) == "" {
			country = "Unknown"
		}
		groups[country] = append(groups[country], en)
	}
	order := make([]string, 0, len(groups))
	for c := range groups {
		if c != "Unknown" {
			order = append(order, c)
		}
	}
	sort.Strings(order)
	if _, ok := groups["Unknown"]; ok {
		order = append(order, "Unknown")
	}
	return groups, order
}

// writeGrouped is the single-file primitive shared by ExportList and
// ExportAll: group, serialize, write, splice, reload.
func (e *Exporter) writeGrouped(ctx context.Context, fileName, title string, channels []channel.Record) (*Result, error) {
	if len(channels) == 0 {
		return nil, ErrNoChannels
	}
	groups, order := groupByCountry(assignRefs(channels))

	refs := &refCounter{}
	lines := header(title, refs)
	for _, country := range order {
		ens := groups[country]
		label := countryLabel(country, len(ens))
		lines = append(lines, markerLine(refs.next(), label), descriptionLine(label))
		for _, en := range ens {
			lines = append(lines,
				serviceLine(en.sid, en.tsid, en.rec.StreamURL, en.rec.Name),
				descriptionLine(en.rec.Name))
		}
	}

	// The bouquet file must be complete on disk before the index learns
	// about it; a failed write must not leave a dangling registration.
	if err := e.writeFile(fileName, lines); err != nil {
		return nil, fmt.Errorf("bouquet: write %s: %w", fileName, err)
	}

	res := &Result{Files: []string{fileName}, Channels: len(channels), Countries: len(order)}
	if err := e.Splice(fileName); err != nil {
		log.Printf("bouquet: index splice failed: %v", err)
		res.Degraded = true
	}
	res.Reload = e.reload(ctx)
	return res, nil
}

// writeEntries writes one child bouquet of a split export.
func (e *Exporter) writeEntries(fileName, title string, entries []entry) error {
	refs := &refCounter{}
	lines := header(title, refs)
	var lastCountry string
	count := countPerCountry(entries)
	for _, en := range entries {
		country := en.rec.Country
		if strings.TrimSpace(country) == "" {
			country = "Unknown"
		}
		if country != lastCountry {
			label := countryLabel(country, count[country])
			lines = append(lines, markerLine(refs.next(), label), descriptionLine(label))
			lastCountry = country
		}
		lines = append(lines,
			serviceLine(en.sid, en.tsid, en.rec.StreamURL, en.rec.Name),
			descriptionLine(en.rec.Name))
	}
	return e.writeFile(fileName, lines)
}

func countPerCountry(entries []entry) map[string]int {
	out := make(map[string]int)
	for _, en := range entries {
		country := en.rec.Country
		if strings.TrimSpace(country) == "" {
			country = "Unknown"
		}
		out[country]++
	}
	return out
}

func (e *Exporter) writeFile(fileName string, lines []string) error {
	if err := e.vfs.MkdirAll(e.dir, 0o755); err != nil {
		return err
	}
	body := strings.Join(lines, "\n") + "\n"
	return e.vfs.WriteFile(filepath.Join(e.dir, fileName), []byte(body), 0o644)
}

func (e *Exporter) reload(ctx context.Context) ReloadOutcome {
	if e.reloader == nil {
		return ReloadSkipped
	}
	return e.reloader.Trigger(ctx)
}

