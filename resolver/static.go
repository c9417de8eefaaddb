package resolver

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"sidestake/models"
)

//go:embed static_matches.json
var staticMatchesJSON []byte

// StaticProvider serves the bundled fixture dataset. It always succeeds,
// which makes it the terminal link of the chain, and it never reports a
// match as completed: settlement must come from a real source.
type StaticProvider struct{}

// NewStaticProvider creates the fallback provider
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

// Name identifies the provider
func (p *StaticProvider) Name() string {
	return "static"
}

// Priority orders the provider within the chain
func (p *StaticProvider) Priority() int {
	return PriorityStatic
}

type staticMatch struct {
	ID            string    `json:"id"`
	HomeTeam      string    `json:"homeTeam"`
	AwayTeam      string    `json:"awayTeam"`
	ScheduledTime time.Time `json:"scheduledTime"`
	HomeOdds      float64   `json:"homeOdds"`
	AwayOdds      float64   `json:"awayOdds"`
}

// FetchMatches returns the bundled fixtures
func (p *StaticProvider) FetchMatches(ctx context.Context) ([]*models.Match, error) {
	var fixtures []staticMatch
	if err := json.Unmarshal(staticMatchesJSON, &fixtures); err != nil {
		// A broken bundled dataset is a build defect, not a runtime
		// condition.
		return nil, fmt.Errorf("failed to decode bundled fixtures: %w", err)
	}

	matches := make([]*models.Match, 0, len(fixtures))
	for _, f := range fixtures {
		matches = append(matches, &models.Match{
			ID:            f.ID,
			Home:          models.Participant{ID: sideID(f.HomeTeam), Name: f.HomeTeam},
			Away:          models.Participant{ID: sideID(f.AwayTeam), Name: f.AwayTeam},
			ScheduledTime: f.ScheduledTime,
			Completed:     false,
			OddsBySource: map[string]models.OddsPair{
				"static": {Home: f.HomeOdds, Away: f.AwayOdds},
			},
		})
	}
	return matches, nil
}
