package repository

import (
	"context"
	"fmt"
	"strings"

	"sidestake/database"
	"sidestake/models"
	"sidestake/service"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// LedgerRepository is the Postgres-backed points-ledger collaborator.
// Account IDs are normalized to lower case on write so that comparisons
// elsewhere can be case-insensitive.
type LedgerRepository struct {
	q               queryable
	startingBalance int64
}

// NewLedgerRepository creates a new ledger repository over the pool
func NewLedgerRepository(db *database.DB, startingBalance int64) *LedgerRepository {
	return &LedgerRepository{q: db.Pool, startingBalance: startingBalance}
}

func newLedgerRepositoryWithTx(tx queryable, startingBalance int64) *LedgerRepository {
	return &LedgerRepository{q: tx, startingBalance: startingBalance}
}

func normalizeAccountID(accountID string) string {
	return strings.ToLower(strings.TrimSpace(accountID))
}

// GetOrCreateAccount retrieves an account, seeding it with the starting
// balance when it does not exist yet
func (r *LedgerRepository) GetOrCreateAccount(ctx context.Context, accountID string) (*models.Account, error) {
	id := normalizeAccountID(accountID)
	if id == "" {
		return nil, models.NewValidationError("accountId", "must not be empty")
	}

	query := `
		INSERT INTO accounts (id, balance)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET updated_at = accounts.updated_at
		RETURNING id, balance, created_at, updated_at
	`

	var account models.Account
	err := r.q.QueryRow(ctx, query, id, r.startingBalance).Scan(
		&account.ID,
		&account.Balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create account %s: %w", id, err)
	}

	return &account, nil
}

// GetAccount retrieves an account, returning nil when absent
func (r *LedgerRepository) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	query := `SELECT id, balance, created_at, updated_at FROM accounts WHERE id = $1`

	var account models.Account
	err := r.q.QueryRow(ctx, query, normalizeAccountID(accountID)).Scan(
		&account.ID,
		&account.Balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}

	return &account, nil
}

// Debit removes points from an account. The balance predicate makes the
// sufficient-funds check and the deduction one atomic step. A replayed
// refID is a successful no-op.
func (r *LedgerRepository) Debit(ctx context.Context, accountID string, amount int64, refID, reason string) error {
	if amount <= 0 {
		return models.NewValidationError("amount", "must be positive")
	}
	id := normalizeAccountID(accountID)

	applied, err := r.recordEntry(ctx, id, amount, "debit", refID, reason)
	if err != nil {
		return err
	}
	if !applied {
		log.WithFields(log.Fields{
			"accountId": id,
			"refId":     refID,
		}).Debug("Debit replayed, no-op")
		return nil
	}

	tag, err := r.q.Exec(ctx, `
		UPDATE accounts
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
	`, amount, id)
	if err != nil {
		return fmt.Errorf("failed to debit account %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Take the entry back out so a retry with the same refID is not
		// mistaken for a replay.
		if _, delErr := r.q.Exec(ctx, `
			DELETE FROM ledger_entries
			WHERE account_id = $1 AND ref_id = $2 AND direction = 'debit'
		`, id, refID); delErr != nil {
			log.WithFields(log.Fields{
				"accountId": id,
				"refId":     refID,
				"error":     delErr,
			}).Warn("Failed to remove ledger entry for rejected debit")
		}
		return fmt.Errorf("account %s cannot cover %d: %w", id, amount, models.ErrInsufficientBalance)
	}

	return nil
}

// Credit adds points to an account. A replayed refID is a successful no-op.
func (r *LedgerRepository) Credit(ctx context.Context, accountID string, amount int64, refID, reason string) error {
	if amount <= 0 {
		return models.NewValidationError("amount", "must be positive")
	}
	id := normalizeAccountID(accountID)

	applied, err := r.recordEntry(ctx, id, amount, "credit", refID, reason)
	if err != nil {
		return err
	}
	if !applied {
		log.WithFields(log.Fields{
			"accountId": id,
			"refId":     refID,
		}).Debug("Credit replayed, no-op")
		return nil
	}

	_, err = r.q.Exec(ctx, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
	`, amount, id)
	if err != nil {
		return fmt.Errorf("failed to credit account %s: %w", id, err)
	}

	return nil
}

// recordEntry inserts the ledger entry and reports whether it was new.
// The unique (account_id, ref_id, direction) index carries the idempotency
// guarantee.
func (r *LedgerRepository) recordEntry(ctx context.Context, accountID string, amount int64, direction, refID, reason string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO ledger_entries (account_id, amount, direction, ref_id, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, ref_id, direction) DO NOTHING
	`, accountID, amount, direction, refID, reason)
	if err != nil {
		return false, fmt.Errorf("failed to record %s for account %s: %w", direction, accountID, err)
	}
	return tag.RowsAffected() > 0, nil
}

var _ service.Ledger = (*LedgerRepository)(nil)
