package repository

import (
	"context"
	"fmt"

	"sidestake/database"
	"sidestake/models"
	"sidestake/service"

	"github.com/jackc/pgx/v5"
)

// EscrowRepository implements service.EscrowRepository on Postgres
type EscrowRepository struct {
	q queryable
}

// NewEscrowRepository creates a new escrow repository over the pool
func NewEscrowRepository(db *database.DB) *EscrowRepository {
	return &EscrowRepository{q: db.Pool}
}

func newEscrowRepositoryWithTx(tx queryable) *EscrowRepository {
	return &EscrowRepository{q: tx}
}

const escrowColumns = `id, bet_id, creator_id, creator_amount, acceptor_id,
	acceptor_amount, status, created_at, updated_at`

func scanEscrow(row pgx.Row) (*models.Escrow, error) {
	var escrow models.Escrow
	err := row.Scan(
		&escrow.ID,
		&escrow.BetID,
		&escrow.CreatorID,
		&escrow.CreatorAmount,
		&escrow.AcceptorID,
		&escrow.AcceptorAmount,
		&escrow.Status,
		&escrow.CreatedAt,
		&escrow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}

// Create creates a new escrow record
func (r *EscrowRepository) Create(ctx context.Context, escrow *models.Escrow) error {
	query := `
		INSERT INTO escrows (id, bet_id, creator_id, creator_amount,
			acceptor_id, acceptor_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		escrow.ID,
		escrow.BetID,
		escrow.CreatorID,
		escrow.CreatorAmount,
		escrow.AcceptorID,
		escrow.AcceptorAmount,
		escrow.Status,
	).Scan(&escrow.CreatedAt, &escrow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create escrow %s: %w", escrow.ID, err)
	}

	return nil
}

// GetByID retrieves an escrow by its ID
func (r *EscrowRepository) GetByID(ctx context.Context, id string) (*models.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE id = $1`

	escrow, err := scanEscrow(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow %s: %w", id, err)
	}

	return escrow, nil
}

// GetByBetID retrieves the escrow backing a bet
func (r *EscrowRepository) GetByBetID(ctx context.Context, betID string) (*models.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE bet_id = $1`

	escrow, err := scanEscrow(r.q.QueryRow(ctx, query, betID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow for bet %s: %w", betID, err)
	}

	return escrow, nil
}

// Update persists an escrow with a compare-and-swap on the previous status
func (r *EscrowRepository) Update(ctx context.Context, escrow *models.Escrow, expected models.EscrowStatus) error {
	query := `
		UPDATE escrows
		SET acceptor_id = $1, acceptor_amount = $2, status = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5
	`

	tag, err := r.q.Exec(ctx, query,
		escrow.AcceptorID,
		escrow.AcceptorAmount,
		escrow.Status,
		escrow.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update escrow %s: %w", escrow.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("escrow %s is no longer %s: %w", escrow.ID, expected, models.ErrInvalidState)
	}

	return nil
}

var _ service.EscrowRepository = (*EscrowRepository)(nil)
