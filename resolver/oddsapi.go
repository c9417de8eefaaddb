package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"sidestake/models"
)

// OddsAPIProvider is the primary authenticated odds provider. It expects a
// feed in the common odds-API shape: a JSON array of events with bookmaker
// head-to-head prices.
type OddsAPIProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOddsAPIProvider creates the primary provider
func NewOddsAPIProvider(baseURL, apiKey string) *OddsAPIProvider {
	return &OddsAPIProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Name identifies the provider
func (p *OddsAPIProvider) Name() string {
	return "odds-api"
}

// Priority orders the provider within the chain
func (p *OddsAPIProvider) Priority() int {
	return PriorityPrimary
}

type oddsAPIEvent struct {
	ID           string    `json:"id"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	CommenceTime time.Time `json:"commence_time"`
	Completed    bool      `json:"completed"`
	Scores       []struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	} `json:"scores"`
	Bookmakers []struct {
		Key     string `json:"key"`
		Markets []struct {
			Key      string `json:"key"`
			Outcomes []struct {
				Name  string  `json:"name"`
				Price float64 `json:"price"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"bookmakers"`
}

// FetchMatches pulls the current feed and maps it to matches
func (p *OddsAPIProvider) FetchMatches(ctx context.Context) ([]*models.Match, error) {
	endpoint := fmt.Sprintf("%s/events?apiKey=%s", p.baseURL, url.QueryEscape(p.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("odds api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("odds api returned %d: %s", resp.StatusCode, body)
	}

	var feed []oddsAPIEvent
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode odds api feed: %w", err)
	}

	matches := make([]*models.Match, 0, len(feed))
	for _, ev := range feed {
		match := &models.Match{
			ID:            ev.ID,
			Home:          models.Participant{ID: sideID(ev.HomeTeam), Name: ev.HomeTeam},
			Away:          models.Participant{ID: sideID(ev.AwayTeam), Name: ev.AwayTeam},
			ScheduledTime: ev.CommenceTime,
			Completed:     ev.Completed,
			OddsBySource:  map[string]models.OddsPair{},
		}

		for _, score := range ev.Scores {
			s := score.Score
			switch score.Name {
			case ev.HomeTeam:
				match.HomeScore = &s
			case ev.AwayTeam:
				match.AwayScore = &s
			}
		}

		for _, book := range ev.Bookmakers {
			for _, market := range book.Markets {
				if market.Key != "h2h" {
					continue
				}
				pair := models.OddsPair{}
				for _, outcome := range market.Outcomes {
					switch outcome.Name {
					case ev.HomeTeam:
						pair.Home = outcome.Price
					case ev.AwayTeam:
						pair.Away = outcome.Price
					}
				}
				if pair.Home > 0 || pair.Away > 0 {
					match.OddsBySource[book.Key] = pair
				}
			}
		}

		matches = append(matches, match)
	}

	return matches, nil
}
