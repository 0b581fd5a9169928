// Package favorites persists the user's favorite channels as one ordered
// JSON document. Insertion order is display order. The store goes through an
// avfs filesystem so tests run on an in-memory fs and the receiver runs on
// the real one.
//
// Every public operation returns a result pair instead of raising: a
// long-uptime set-top box must keep running with a broken flash partition,
// so persistence failures degrade, they never crash.
package favorites

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avfs/avfs"

	"github.com/gardentv/e2garden/internal/channel"
	"github.com/gardentv/e2garden/internal/metrics"
)

// Favorite is a persisted channel record plus bookkeeping. Its ID is always
// the derived one (see DeriveID), regardless of what the source record had.
type Favorite struct {
	channel.Record
	Added time.Time `json:"added"`
}

// favoriteDoc tolerates the legacy "url" key on load.
type favoriteDoc struct {
	Favorite
	LegacyURL string `json:"url,omitempty"`
}

// DeriveID builds the favorite identifier: md5 of the stream URL when one is
// present, md5 of name+group otherwise. Two URL-less favorites with the same
// name and group therefore collide; that matches the persisted corpus and
// stays as-is.
func DeriveID(rec channel.Record) string {
	src := rec.StreamURL
	if src == "" {
		src = rec.Name + rec.Group
	}
	sum := md5.Sum([]byte(src))
	return hex.EncodeToString(sum[:])[:16]
}

// Store holds the in-memory list mirrored to one JSON file. Single logical
// writer; the mutex guards against in-process reentrancy only.
type Store struct {
	vfs  avfs.VFS
	path string

	// memOnly is set when the favorites directory cannot be created; the
	// store keeps working without persistence.
	memOnly bool

	mu    sync.Mutex
	items []Favorite
}

// New loads the favorites document at path. A missing file starts empty; an
// unreadable or corrupt one logs and degrades to an empty in-memory list.
func New(vfs avfs.VFS, path string) *Store {
	s := &Store{vfs: vfs, path: path}

	if err := vfs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("favorites: cannot create %s (%v); memory-only mode", filepath.Dir(path), err)
		s.memOnly = true
		return s
	}

	data, err := vfs.ReadFile(path)
	if err != nil {
		return s // first run
	}
	var docs []favoriteDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		log.Printf("favorites: %s unreadable (%v); starting empty", path, err)
		return s
	}
	for _, d := range docs {
		f := d.Favorite
		if f.StreamURL == "" && d.LegacyURL != "" {
			f.StreamURL = d.LegacyURL
		}
		if f.ID == "" {
			f.ID = DeriveID(f.Record)
		}
		s.items = append(s.items, f)
	}
	metrics.FavoritesSize.Set(float64(len(s.items)))
	return s
}

// Len returns the number of stored favorites.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// List returns the favorites in storage order.
func (s *Store) List() []Favorite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Favorite, len(s.items))
	copy(out, s.items)
	return out
}

// IsFavorite reports whether the channel is stored. URL match takes priority
// over the derived id so records whose id was generated differently still hit.
func (s *Store) IsFavorite(rec channel.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(rec) >= 0
}

// indexOf must be called with the lock held.
func (s *Store) indexOf(rec channel.Record) int {
	id := DeriveID(rec)
	for i, f := range s.items {
		if rec.StreamURL != "" && f.StreamURL == rec.StreamURL {
			return i
		}
		if f.ID == id {
			return i
		}
	}
	return -1
}

// Add appends the channel unless it is already stored (by URL, then by
// derived id). The full list is written back on success.
func (s *Store) Add(rec channel.Record) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(rec) >= 0 {
		return false, "already in favorites"
	}

	fav := Favorite{Record: rec, Added: time.Now()}
	fav.ID = DeriveID(rec)
	s.items = append(s.items, fav)

	if err := s.persistLocked(); err != nil {
		s.items = s.items[:len(s.items)-1]
		return false, "could not save favorites: " + err.Error()
	}
	metrics.FavoritesSize.Set(float64(len(s.items)))
	return true, "added " + fav.Name
}

// Remove deletes the favorite with the channel's derived id.
func (s *Store) Remove(rec channel.Record) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := DeriveID(rec)
	idx := -1
	for i, f := range s.items {
		if f.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, "not in favorites"
	}

	removed := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	if err := s.persistLocked(); err != nil {
		return false, "could not save favorites: " + err.Error()
	}
	metrics.FavoritesSize.Set(float64(len(s.items)))
	return true, "removed " + removed.Name
}

// Search returns favorites whose name, group or description contains the
// query, case-insensitively. No ranking: storage order is preserved.
func (s *Store) Search(query string) []Favorite {
	q := strings.ToLower(strings.TrimSpace(query))
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Favorite
	for _, f := range s.items {
		if q == "" ||
			strings.Contains(strings.ToLower(f.Name), q) ||
			strings.Contains(strings.ToLower(f.Group), q) ||
			strings.Contains(strings.ToLower(f.Description), q) {
			out = append(out, f)
		}
	}
	return out
}

// ClearAll truncates the list. Irreversible; confirmation is the UI's job.
func (s *Store) ClearAll() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	if err := s.persistLocked(); err != nil {
		return false, "could not save favorites: " + err.Error()
	}
	metrics.FavoritesSize.Set(0)
	return true, "favorites cleared"
}

// persistLocked writes the whole document. Never patches in place.
func (s *Store) persistLocked() error {
	if s.memOnly {
		return nil
	}
	items := s.items
	if items == nil {
		items = []Favorite{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return s.vfs.WriteFile(s.path, data, 0o644)
}
