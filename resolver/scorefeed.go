package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"sidestake/models"
)

// ScoreFeedProvider is the secondary provider, scraping a public
// scoreboard JSON endpoint. It carries schedule, scores and completion but
// no odds, so it can still settle bets when the paid API is down.
type ScoreFeedProvider struct {
	feedURL    string
	httpClient *http.Client
}

// NewScoreFeedProvider creates the secondary provider
func NewScoreFeedProvider(feedURL string) *ScoreFeedProvider {
	return &ScoreFeedProvider{
		feedURL: feedURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name identifies the provider
func (p *ScoreFeedProvider) Name() string {
	return "score-feed"
}

// Priority orders the provider within the chain
func (p *ScoreFeedProvider) Priority() int {
	return PrioritySecondary
}

// scoreboard mirrors the scraped endpoint's shape
type scoreboard struct {
	Events []struct {
		ID   string `json:"id"`
		Date string `json:"date"`
		// "pre", "in" or "post"
		State       string `json:"state"`
		Competitors []struct {
			Name     string `json:"name"`
			HomeAway string `json:"homeAway"`
			Score    string `json:"score"`
		} `json:"competitors"`
	} `json:"events"`
}

// FetchMatches scrapes the scoreboard and maps it to matches
func (p *ScoreFeedProvider) FetchMatches(ctx context.Context) ([]*models.Match, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("score feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("score feed returned %d: %s", resp.StatusCode, body)
	}

	var board scoreboard
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		return nil, fmt.Errorf("failed to decode score feed: %w", err)
	}

	matches := make([]*models.Match, 0, len(board.Events))
	for _, ev := range board.Events {
		match := &models.Match{
			ID:           ev.ID,
			Completed:    ev.State == "post",
			OddsBySource: map[string]models.OddsPair{},
		}
		if t, err := time.Parse(time.RFC3339, ev.Date); err == nil {
			match.ScheduledTime = t
		}

		for _, comp := range ev.Competitors {
			participant := models.Participant{ID: sideID(comp.Name), Name: comp.Name}
			var score *int
			if n, err := strconv.Atoi(comp.Score); err == nil {
				score = &n
			}
			if comp.HomeAway == "home" {
				match.Home = participant
				match.HomeScore = score
			} else {
				match.Away = participant
				match.AwayScore = score
			}
		}

		matches = append(matches, match)
	}

	return matches, nil
}
