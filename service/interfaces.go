package service

import (
	"context"

	"sidestake/events"
	"sidestake/models"
)

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Create creates a new bet record
	Create(ctx context.Context, bet *models.Bet) error

	// GetByID retrieves a bet by its ID, returning nil when absent
	GetByID(ctx context.Context, id string) (*models.Bet, error)

	// Update persists a bet's mutable fields with a compare-and-swap on the
	// previous status; returns models.ErrInvalidState if the stored status
	// no longer matches expected.
	Update(ctx context.Context, bet *models.Bet, expected models.BetStatus) error

	// GetByUser returns bets where the account is creator or acceptor
	GetByUser(ctx context.Context, accountID string, limit int) ([]*models.Bet, error)

	// GetOpen returns open bets, newest first (the marketplace view)
	GetOpen(ctx context.Context, limit int) ([]*models.Bet, error)

	// GetActive returns all bets awaiting settlement
	GetActive(ctx context.Context) ([]*models.Bet, error)
}

// EscrowRepository defines the interface for escrow data access
type EscrowRepository interface {
	// Create creates a new escrow record
	Create(ctx context.Context, escrow *models.Escrow) error

	// GetByID retrieves an escrow by its ID, returning nil when absent
	GetByID(ctx context.Context, id string) (*models.Escrow, error)

	// GetByBetID retrieves the escrow backing a bet
	GetByBetID(ctx context.Context, betID string) (*models.Escrow, error)

	// Update persists an escrow with a compare-and-swap on the previous
	// status; the status write is always the last step of a mutation.
	Update(ctx context.Context, escrow *models.Escrow, expected models.EscrowStatus) error
}

// Ledger is the points-ledger collaborator. Debit and Credit are atomic
// and idempotent per refID: replaying a refID is a successful no-op.
type Ledger interface {
	// GetOrCreateAccount retrieves an account, creating it with the
	// configured starting balance when absent
	GetOrCreateAccount(ctx context.Context, accountID string) (*models.Account, error)

	// GetAccount retrieves an account, returning nil when absent
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)

	// Debit removes points from an account, failing with
	// models.ErrInsufficientBalance when the balance does not cover amount
	Debit(ctx context.Context, accountID string, amount int64, refID, reason string) error

	// Credit adds points to an account
	Credit(ctx context.Context, accountID string, amount int64, refID, reason string) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// MatchResolver resolves a match ID to cached match data. Settlement is
// gated on the resolved match reporting Completed.
type MatchResolver interface {
	Resolve(ctx context.Context, matchID string, forceRefresh bool) (*models.Match, error)
}

// BetService defines the bet lifecycle operations
type BetService interface {
	// Create opens a bet and escrows the creator's stake
	Create(ctx context.Context, creatorID, matchID, selectedSideID string, stake int64, note string) (*models.Bet, error)

	// Accept joins an open bet as the second party
	Accept(ctx context.Context, betID, acceptorID string) (*models.Bet, error)

	// Settle pays out an active bet whose match has completed
	Settle(ctx context.Context, betID string) (*models.Bet, error)

	// Cancel refunds and cancels an open or active bet
	Cancel(ctx context.Context, betID, requesterID string) (*models.Bet, error)

	// GetBet retrieves a bet by ID
	GetBet(ctx context.Context, betID string) (*models.Bet, error)

	// GetBetsByUser returns bets the account participates in
	GetBetsByUser(ctx context.Context, accountID string, limit int) ([]*models.Bet, error)

	// GetOpenBets returns open bets for the marketplace view
	GetOpenBets(ctx context.Context, limit int) ([]*models.Bet, error)

	// SettleDue settles every active bet whose match has completed,
	// returning the number settled
	SettleDue(ctx context.Context) (int, error)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	// Repository getters
	BetRepository() BetRepository
	EscrowRepository() EscrowRepository
	Ledger() Ledger
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance
	Create() UnitOfWork
}
