// Package bookmark stores per-timeline resume positions in the user data
// directory.
package bookmark

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quasilyte/gdata/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const bookmarkObject = "bookmarks"

// Bookmark is a saved resume position.
type Bookmark struct {
	Timeline string    `yaml:"timeline"`
	Percent  float64   `yaml:"percent"`
	SavedAt  time.Time `yaml:"saved_at"`
}

// Store keeps bookmarks in memory and, when a gdata manager is available,
// on disk. A nil manager is a degraded mode: Save and Load still work for
// the life of the process and never return an error.
type Store struct {
	mu      sync.Mutex
	manager *gdata.Manager
	cache   map[string]Bookmark
}

// Open opens the gdata store for app. When the platform data directory
// cannot be used, it logs a warning and returns an in-memory store.
func Open(app string) *Store {
	m, err := gdata.Open(gdata.Config{AppName: app})
	if err != nil {
		log.Warn().Err(err).Str("app", app).Msg("bookmark storage unavailable; keeping bookmarks in memory")
		return New(nil)
	}
	return New(m)
}

// New wraps manager, which may be nil.
func New(manager *gdata.Manager) *Store {
	return &Store{manager: manager, cache: make(map[string]Bookmark)}
}

// Persistent reports whether bookmarks survive the process.
func (s *Store) Persistent() bool { return s.manager != nil }

// Save records percent for timeline.
func (s *Store) Save(timeline string, percent float64) error {
	b := Bookmark{Timeline: timeline, Percent: percent, SavedAt: time.Now().UTC()}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[timeline] = b
	if s.manager == nil {
		return nil
	}

	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal bookmark: %w", err)
	}
	if err := s.manager.SaveObjectProp(bookmarkObject, propName(timeline), data); err != nil {
		return fmt.Errorf("failed to save bookmark: %w", err)
	}
	return nil
}

// Load returns the bookmark for timeline. ok is false when none exists.
func (s *Store) Load(timeline string) (b Bookmark, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.cache[timeline]; ok {
		return b, true, nil
	}
	if s.manager == nil {
		return Bookmark{}, false, nil
	}

	key := propName(timeline)
	if !s.manager.ObjectPropExists(bookmarkObject, key) {
		return Bookmark{}, false, nil
	}
	data, err := s.manager.LoadObjectProp(bookmarkObject, key)
	if err != nil {
		return Bookmark{}, false, fmt.Errorf("failed to load bookmark: %w", err)
	}
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Bookmark{}, false, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}
	s.cache[timeline] = b
	return b, true, nil
}

// propName maps a timeline name to a portable property key.
func propName(timeline string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(timeline) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}
