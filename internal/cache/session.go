package cache

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"codescope/internal/ast"
	"codescope/internal/project"
)

// DefaultSessionEntries bounds each per-language LRU.
const DefaultSessionEntries = 100

// Session is the in-memory tier: one bounded LRU per language.
type Session struct {
	size int

	mu    sync.Mutex
	tiers map[project.Language]*lru.Cache[Fingerprint, *ast.File]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewSession creates a session tier holding up to size entries per language.
func NewSession(size int) *Session {
	if size <= 0 {
		size = DefaultSessionEntries
	}
	return &Session{size: size, tiers: make(map[project.Language]*lru.Cache[Fingerprint, *ast.File])}
}

func (s *Session) tier(lang project.Language) *lru.Cache[Fingerprint, *ast.File] {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.tiers[lang]
	if !ok {
		// NewWithEvict only fails for a non-positive size
		c, _ = lru.NewWithEvict[Fingerprint, *ast.File](s.size, func(Fingerprint, *ast.File) {
			s.evictions.Add(1)
		})
		s.tiers[lang] = c
	}
	return c
}

// Get returns the cached file for key.
func (s *Session) Get(lang project.Language, key Fingerprint) (*ast.File, bool) {
	file, ok := s.tier(lang).Get(key)
	if ok {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	return file, ok
}

// Put stores file under key.
func (s *Session) Put(lang project.Language, key Fingerprint, file *ast.File) {
	s.tier(lang).Add(key, file)
}

// Len is the number of entries across all languages.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.tiers {
		n += c.Len()
	}
	return n
}

// Purge empties every tier. Dropped entries are not counted as evictions.
func (s *Session) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers = make(map[project.Language]*lru.Cache[Fingerprint, *ast.File])
}

// Stats snapshots the tier counters.
func (s *Session) Stats() TierStats {
	return TierStats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Entries:   int64(s.Len()),
	}
}
