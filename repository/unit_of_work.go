package repository

import (
	"context"
	"fmt"

	"sidestake/database"
	"sidestake/events"
	"sidestake/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the service.UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	startingBalance  int64
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	betRepo          service.BetRepository
	escrowRepo       service.EscrowRepository
	ledger           service.Ledger
}

type unitOfWorkFactory struct {
	db              *database.DB
	eventBus        *events.Bus
	startingBalance int64
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus, startingBalance int64) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:              db,
		eventBus:        eventBus,
		startingBalance: startingBalance,
	}
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		startingBalance:  f.startingBalance,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.betRepo = newBetRepositoryWithTx(tx)
	u.escrowRepo = newEscrowRepositoryWithTx(tx)
	u.ledger = newLedgerRepositoryWithTx(tx, u.startingBalance)

	return nil
}

// Commit commits the transaction, then flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction and discards pending events
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// BetRepository returns the bet repository for this unit of work
func (u *unitOfWork) BetRepository() service.BetRepository {
	if u.betRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.betRepo
}

// EscrowRepository returns the escrow repository for this unit of work
func (u *unitOfWork) EscrowRepository() service.EscrowRepository {
	if u.escrowRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.escrowRepo
}

// Ledger returns the points ledger for this unit of work
func (u *unitOfWork) Ledger() service.Ledger {
	if u.ledger == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ledger
}

// EventBus returns the transactional event publisher; events published here
// reach subscribers only after Commit
func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}
