package repository

import (
	"context"
	"fmt"

	"sidestake/database"
	"sidestake/models"
	"sidestake/service"

	"github.com/jackc/pgx/v5"
)

// BetRepository implements service.BetRepository on Postgres
type BetRepository struct {
	q queryable
}

// NewBetRepository creates a new bet repository over the pool
func NewBetRepository(db *database.DB) *BetRepository {
	return &BetRepository{q: db.Pool}
}

func newBetRepositoryWithTx(tx queryable) *BetRepository {
	return &BetRepository{q: tx}
}

const betColumns = `id, creator_id, acceptor_id, match_id, selected_side_id, stake,
	status, winner_id, note, escrow_id, created_at, accepted_at, settled_at, cancelled_at`

func scanBet(row pgx.Row) (*models.Bet, error) {
	var bet models.Bet
	err := row.Scan(
		&bet.ID,
		&bet.Creator,
		&bet.Acceptor,
		&bet.MatchID,
		&bet.SelectedSideID,
		&bet.Stake,
		&bet.Status,
		&bet.WinnerID,
		&bet.Note,
		&bet.EscrowID,
		&bet.CreatedAt,
		&bet.AcceptedAt,
		&bet.SettledAt,
		&bet.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &bet, nil
}

// Create creates a new bet record
func (r *BetRepository) Create(ctx context.Context, bet *models.Bet) error {
	query := `
		INSERT INTO bets (id, creator_id, acceptor_id, match_id, selected_side_id,
			stake, status, winner_id, note, escrow_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		bet.ID,
		bet.Creator,
		bet.Acceptor,
		bet.MatchID,
		bet.SelectedSideID,
		bet.Stake,
		bet.Status,
		bet.WinnerID,
		bet.Note,
		bet.EscrowID,
	).Scan(&bet.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bet %s: %w", bet.ID, err)
	}

	return nil
}

// GetByID retrieves a bet by its ID
func (r *BetRepository) GetByID(ctx context.Context, id string) (*models.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE id = $1`

	bet, err := scanBet(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bet %s: %w", id, err)
	}

	return bet, nil
}

// Update persists a bet with a compare-and-swap on the previous status.
// The status predicate makes the "is this bet still OPEN" check and the
// transition one atomic step; a concurrent writer that lost the race gets
// models.ErrInvalidState.
func (r *BetRepository) Update(ctx context.Context, bet *models.Bet, expected models.BetStatus) error {
	query := `
		UPDATE bets
		SET acceptor_id = $1, status = $2, winner_id = $3,
			accepted_at = $4, settled_at = $5, cancelled_at = $6
		WHERE id = $7 AND status = $8
	`

	tag, err := r.q.Exec(ctx, query,
		bet.Acceptor,
		bet.Status,
		bet.WinnerID,
		bet.AcceptedAt,
		bet.SettledAt,
		bet.CancelledAt,
		bet.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update bet %s: %w", bet.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bet %s is no longer %s: %w", bet.ID, expected, models.ErrInvalidState)
	}

	return nil
}

// GetByUser returns bets where the account is creator or acceptor, newest
// first. Account IDs compare case-insensitively.
func (r *BetRepository) GetByUser(ctx context.Context, accountID string, limit int) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE LOWER(creator_id) = LOWER($1) OR LOWER(acceptor_id) = LOWER($1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get bets for %s: %w", accountID, err)
	}
	defer rows.Close()

	return collectBets(rows)
}

// GetOpen returns open bets, newest first
func (r *BetRepository) GetOpen(ctx context.Context, limit int) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE status = 'open'
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get open bets: %w", err)
	}
	defer rows.Close()

	return collectBets(rows)
}

// GetActive returns all bets awaiting settlement
func (r *BetRepository) GetActive(ctx context.Context) ([]*models.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE status = 'active' ORDER BY created_at`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active bets: %w", err)
	}
	defer rows.Close()

	return collectBets(rows)
}

func collectBets(rows pgx.Rows) ([]*models.Bet, error) {
	var bets []*models.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bets: %w", err)
	}
	return bets, nil
}

var _ service.BetRepository = (*BetRepository)(nil)
