package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"sidestake/database"
	"sidestake/models"

	"github.com/jackc/pgx/v5"
)

// MatchRepository is the Postgres-backed persistent match store consumed by
// the resolution cache. Unlike the bet-side repositories it is used outside
// the unit of work; the cache owns its consistency.
type MatchRepository struct {
	q queryable
}

// NewMatchRepository creates a new match repository over the pool
func NewMatchRepository(db *database.DB) *MatchRepository {
	return &MatchRepository{q: db.Pool}
}

const matchColumns = `id, home_id, home_name, away_id, away_name, scheduled_time,
	odds_by_source, home_score, away_score, completed, provenance, fetched_at`

func scanMatch(row pgx.Row) (*models.Match, error) {
	var match models.Match
	var oddsJSON []byte
	err := row.Scan(
		&match.ID,
		&match.Home.ID,
		&match.Home.Name,
		&match.Away.ID,
		&match.Away.Name,
		&match.ScheduledTime,
		&oddsJSON,
		&match.HomeScore,
		&match.AwayScore,
		&match.Completed,
		&match.Provenance,
		&match.FetchedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(oddsJSON) > 0 {
		if err := json.Unmarshal(oddsJSON, &match.OddsBySource); err != nil {
			return nil, fmt.Errorf("failed to decode odds for match %s: %w", match.ID, err)
		}
	}
	return &match, nil
}

// GetByID retrieves a match by its ID, returning nil when absent
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	match, err := scanMatch(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match %s: %w", id, err)
	}

	return match, nil
}

// Store upserts a batch of matches and returns how many were written.
// Completion and scores are never regressed by a provider snapshot: once a
// stored match is completed it stays completed.
func (r *MatchRepository) Store(ctx context.Context, matches []*models.Match) (int, error) {
	stored := 0
	for _, m := range matches {
		oddsJSON, err := json.Marshal(m.OddsBySource)
		if err != nil {
			return stored, fmt.Errorf("failed to encode odds for match %s: %w", m.ID, err)
		}

		_, err = r.q.Exec(ctx, `
			INSERT INTO matches (id, home_id, home_name, away_id, away_name,
				scheduled_time, odds_by_source, home_score, away_score,
				completed, provenance, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
			ON CONFLICT (id) DO UPDATE SET
				home_name = EXCLUDED.home_name,
				away_name = EXCLUDED.away_name,
				scheduled_time = EXCLUDED.scheduled_time,
				odds_by_source = EXCLUDED.odds_by_source,
				home_score = COALESCE(EXCLUDED.home_score, matches.home_score),
				away_score = COALESCE(EXCLUDED.away_score, matches.away_score),
				completed = matches.completed OR EXCLUDED.completed,
				provenance = EXCLUDED.provenance,
				fetched_at = NOW()
		`,
			m.ID, m.Home.ID, m.Home.Name, m.Away.ID, m.Away.Name,
			m.ScheduledTime, oddsJSON, m.HomeScore, m.AwayScore,
			m.Completed, m.Provenance,
		)
		if err != nil {
			return stored, fmt.Errorf("failed to store match %s: %w", m.ID, err)
		}
		stored++
	}
	return stored, nil
}

// UpdateScores sets the scores and completion flag for a match, reporting
// whether a stored record was updated
func (r *MatchRepository) UpdateScores(ctx context.Context, id string, homeScore, awayScore int, completed bool) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE matches
		SET home_score = $1, away_score = $2, completed = $3, fetched_at = NOW()
		WHERE id = $4
	`, homeScore, awayScore, completed, id)
	if err != nil {
		return false, fmt.Errorf("failed to update scores for match %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetUpcoming returns uncompleted matches ordered by scheduled time
func (r *MatchRepository) GetUpcoming(ctx context.Context, limit int) ([]*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE NOT completed
		ORDER BY scheduled_time
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get upcoming matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read matches: %w", err)
	}
	return matches, nil
}
