package resolver

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sidestake/events"
	"sidestake/metrics"
	"sidestake/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxAge is the staleness window for cached matches
const DefaultMaxAge = 5 * time.Minute

// DefaultProviderTimeout bounds each external provider call
const DefaultProviderTimeout = 10 * time.Second

// EventEmitter receives match.updated notifications; nil disables them
type EventEmitter interface {
	Emit(ctx context.Context, event events.Event)
}

type cacheEntry struct {
	match          *models.Match
	fetchedAt      time.Time
	sourcePriority int
}

// Config configures a Cache
type Config struct {
	Store           MatchStore
	Providers       []Provider
	MaxAge          time.Duration
	ProviderTimeout time.Duration
	Bus             EventEmitter
}

// Cache resolves match IDs through the store and the provider chain,
// keeping an in-memory entry per match. The entry map and the in-flight
// fetch tracking are owned exclusively by the cache; nothing outside this
// package mutates them.
type Cache struct {
	store     MatchStore
	providers []Provider
	maxAge    time.Duration
	timeout   time.Duration
	bus       EventEmitter

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	group   singleflight.Group

	now func() time.Time
}

// NewCache creates a match resolution cache. Providers are tried highest
// priority first regardless of the order given.
func NewCache(cfg Config) *Cache {
	providers := make([]Provider, len(cfg.Providers))
	copy(providers, cfg.Providers)
	sort.SliceStable(providers, func(i, j int) bool {
		return providers[i].Priority() > providers[j].Priority()
	})

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}

	return &Cache{
		store:     cfg.Store,
		providers: providers,
		maxAge:    maxAge,
		timeout:   timeout,
		bus:       cfg.Bus,
		entries:   make(map[string]*cacheEntry),
		now:       time.Now,
	}
}

// Resolve returns match data for the given ID. A fresh cached entry is
// returned without contacting any provider; otherwise the chain is walked
// in priority order. Concurrent resolutions of the same ID attach to the
// single in-flight fetch instead of fetching again.
func (c *Cache) Resolve(ctx context.Context, matchID string, forceRefresh bool) (*models.Match, error) {
	if matchID == "" {
		return nil, models.NewValidationError("matchId", "must not be empty")
	}

	if !forceRefresh {
		if match := c.freshEntry(matchID); match != nil {
			metrics.CacheHits.Inc()
			return match, nil
		}
	}
	metrics.CacheMisses.Inc()

	v, err, _ := c.group.Do(matchID, func() (any, error) {
		// A caller that attached to an earlier fetch may already have
		// filled the entry.
		if !forceRefresh {
			if match := c.freshEntry(matchID); match != nil {
				return match, nil
			}
		}
		return c.fetch(ctx, matchID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Match), nil
}

// fetch walks the chain: persistent store, then each provider highest
// priority first
func (c *Cache) fetch(ctx context.Context, matchID string) (*models.Match, error) {
	stored, err := c.store.GetByID(ctx, matchID)
	if err != nil {
		log.WithFields(log.Fields{
			"matchId": matchID,
			"error":   err,
		}).Warn("Match store lookup failed, falling through to providers")
	}
	if stored != nil {
		c.admit(stored, PriorityStore)
		return stored, nil
	}

	answered := false
	for _, p := range c.providers {
		match, err := c.fetchFrom(ctx, p, matchID)
		if err != nil {
			metrics.ProviderFailures.WithLabelValues(p.Name()).Inc()
			log.WithFields(log.Fields{
				"provider": p.Name(),
				"matchId":  matchID,
				"error":    err,
			}).Warn("Provider fetch failed, trying next in chain")
			continue
		}
		answered = true
		if match == nil {
			continue // provider healthy but does not know this match
		}
		return match, nil
	}

	if !answered && len(c.providers) > 0 {
		return nil, fmt.Errorf("match %s: %w", matchID, models.ErrProviderUnavailable)
	}
	return nil, fmt.Errorf("match %s: %w", matchID, models.ErrMatchUnresolved)
}

// fetchFrom queries one provider under the configured timeout, writes the
// feed through to the store, and admits the requested match
func (c *Cache) fetchFrom(ctx context.Context, p Provider, matchID string) (*models.Match, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	matches, err := p.FetchMatches(fetchCtx)
	if err != nil {
		return nil, err
	}
	metrics.ProviderFetches.WithLabelValues(p.Name()).Inc()

	now := c.now()
	for _, m := range matches {
		m.Provenance = p.Name()
		m.FetchedAt = now
		if p.Priority() == PriorityStatic {
			// The bundled dataset is a placeholder of last resort; it can
			// never complete a match and is not written back.
			m.Completed = false
		}
	}

	if p.Priority() > PriorityStatic && c.store != nil {
		if _, err := c.store.Store(ctx, matches); err != nil {
			log.WithFields(log.Fields{
				"provider": p.Name(),
				"error":    err,
			}).Warn("Write-through to match store failed")
		}
	}

	for _, m := range matches {
		if m.ID == matchID {
			c.admit(m, p.Priority())
			return m, nil
		}
	}
	return nil, nil
}

// admit installs a match in the in-memory cache subject to the overwrite
// rule: a higher-priority source always wins, a same-or-lower priority
// source only replaces a stale entry
func (c *Cache) admit(match *models.Match, priority int) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[match.ID]; ok {
		fresh := now.Sub(existing.fetchedAt) < c.maxAge
		if priority <= existing.sourcePriority && fresh {
			return
		}
	}
	c.entries[match.ID] = &cacheEntry{
		match:          match,
		fetchedAt:      now,
		sourcePriority: priority,
	}
}

// freshEntry returns the cached match when the entry is inside the
// staleness window
func (c *Cache) freshEntry(matchID string) *models.Match {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[matchID]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.fetchedAt) >= c.maxAge {
		return nil
	}
	return entry.match
}

// UpdateScores applies a live score update to the persistent store and the
// in-memory entry together, then notifies subscribers. Independent of the
// fetch chain.
func (c *Cache) UpdateScores(ctx context.Context, matchID string, homeScore, awayScore int, completed bool) error {
	updated, err := c.store.UpdateScores(ctx, matchID, homeScore, awayScore, completed)
	if err != nil {
		return fmt.Errorf("failed to update scores: %w", err)
	}

	c.mu.Lock()
	entry, cached := c.entries[matchID]
	if cached {
		// Replace rather than mutate: earlier callers may still hold the
		// old match pointer.
		updatedMatch := *entry.match
		updatedMatch.HomeScore = &homeScore
		updatedMatch.AwayScore = &awayScore
		updatedMatch.Completed = completed
		c.entries[matchID] = &cacheEntry{
			match:          &updatedMatch,
			fetchedAt:      c.now(),
			sourcePriority: PriorityStore,
		}
	}
	c.mu.Unlock()

	if !updated && !cached {
		return fmt.Errorf("match %s: %w", matchID, models.ErrNotFound)
	}

	if c.bus != nil {
		c.bus.Emit(ctx, events.MatchUpdatedEvent{
			MatchID:   matchID,
			Completed: completed,
			HomeScore: &homeScore,
			AwayScore: &awayScore,
		})
	}

	log.WithFields(log.Fields{
		"matchId":   matchID,
		"homeScore": homeScore,
		"awayScore": awayScore,
		"completed": completed,
	}).Info("Match scores updated")

	return nil
}

// Upcoming lists uncompleted matches from the persistent store
func (c *Cache) Upcoming(ctx context.Context, limit int) ([]*models.Match, error) {
	return c.store.GetUpcoming(ctx, limit)
}
