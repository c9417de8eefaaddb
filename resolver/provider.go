// Package resolver resolves match identifiers to match data through an
// ordered chain of providers with write-back caching and staleness control.
package resolver

import (
	"context"
	"strings"

	"sidestake/models"
)

// Provider priorities. The chain is evaluated highest first and stops at
// the first success; a higher-priority fetch always overwrites a cached
// record from a lower-priority one.
const (
	PriorityStore     = 3 // persistent store, authoritative once written
	PriorityPrimary   = 2 // authenticated odds API
	PrioritySecondary = 1 // scraped score feed
	PriorityStatic    = 0 // bundled fallback dataset, never completed
)

// Provider is one uniform strategy in the fallback chain. Implementations
// own their transport and parsing; the cache only sees matches.
type Provider interface {
	// Name identifies the provider in logs, metrics and provenance
	Name() string

	// Priority orders the provider within the chain
	Priority() int

	// FetchMatches returns the provider's current view of its fixtures
	FetchMatches(ctx context.Context) ([]*models.Match, error)
}

// MatchStore is the persistent store collaborator consumed by the cache
type MatchStore interface {
	GetByID(ctx context.Context, id string) (*models.Match, error)
	Store(ctx context.Context, matches []*models.Match) (int, error)
	UpdateScores(ctx context.Context, id string, homeScore, awayScore int, completed bool) (bool, error)
	GetUpcoming(ctx context.Context, limit int) ([]*models.Match, error)
}

// sideID derives a stable participant ID from a team name so that the same
// team resolves to the same side across providers
func sideID(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
