package service

import (
	"context"
	"fmt"

	"sidestake/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EscrowCoordinator manages the points held against an in-flight bet. Its
// operations run inside the caller's unit of work so ledger movement and
// escrow state change commit or roll back together. Every mutation checks
// status first and writes status last, so a resubmitted call after a
// partial failure is rejected rather than double-applied.
type EscrowCoordinator struct{}

// NewEscrowCoordinator creates a new escrow coordinator
func NewEscrowCoordinator() *EscrowCoordinator {
	return &EscrowCoordinator{}
}

// Open debits the creator's stake and creates a pending escrow. If the
// debit fails no escrow is created.
func (c *EscrowCoordinator) Open(ctx context.Context, uow UnitOfWork, betID, creatorID string, amount int64) (*models.Escrow, error) {
	escrowID := uuid.NewString()

	if err := uow.Ledger().Debit(ctx, creatorID, amount, escrowID+":creator", "bet stake"); err != nil {
		return nil, fmt.Errorf("failed to debit creator stake: %w", err)
	}

	escrow := &models.Escrow{
		ID:            escrowID,
		BetID:         betID,
		CreatorID:     creatorID,
		CreatorAmount: amount,
		Status:        models.EscrowStatusPending,
	}
	if err := uow.EscrowRepository().Create(ctx, escrow); err != nil {
		return nil, fmt.Errorf("failed to create escrow: %w", err)
	}

	return escrow, nil
}

// Join debits the acceptor's stake and promotes the escrow to active.
// Fails with models.ErrInvalidState unless the escrow is pending.
func (c *EscrowCoordinator) Join(ctx context.Context, uow UnitOfWork, escrowID, acceptorID string, amount int64) (*models.Escrow, error) {
	escrow, err := uow.EscrowRepository().GetByID(ctx, escrowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow: %w", err)
	}
	if escrow == nil {
		return nil, fmt.Errorf("escrow %s: %w", escrowID, models.ErrNotFound)
	}
	if escrow.Status != models.EscrowStatusPending {
		return nil, fmt.Errorf("escrow %s is %s, not pending: %w", escrowID, escrow.Status, models.ErrInvalidState)
	}

	if err := uow.Ledger().Debit(ctx, acceptorID, amount, escrowID+":acceptor", "bet stake"); err != nil {
		return nil, fmt.Errorf("failed to debit acceptor stake: %w", err)
	}

	escrow.AcceptorID = &acceptorID
	escrow.AcceptorAmount = amount
	escrow.Status = models.EscrowStatusActive
	if err := uow.EscrowRepository().Update(ctx, escrow, models.EscrowStatusPending); err != nil {
		return nil, err
	}

	return escrow, nil
}

// Complete credits the full held amount to the winner and finalizes the
// escrow. Completing an already-terminal escrow is rejected, never
// double-paid.
func (c *EscrowCoordinator) Complete(ctx context.Context, uow UnitOfWork, escrowID, winnerID string) (*models.Escrow, error) {
	escrow, err := uow.EscrowRepository().GetByID(ctx, escrowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow: %w", err)
	}
	if escrow == nil {
		return nil, fmt.Errorf("escrow %s: %w", escrowID, models.ErrNotFound)
	}
	if escrow.Status != models.EscrowStatusActive {
		return nil, fmt.Errorf("escrow %s is %s, not active: %w", escrowID, escrow.Status, models.ErrInvalidState)
	}

	if err := uow.Ledger().Credit(ctx, winnerID, escrow.TotalAmount(), escrowID+":payout", "bet payout"); err != nil {
		return nil, fmt.Errorf("failed to credit winner: %w", err)
	}

	escrow.Status = models.EscrowStatusCompleted
	if err := uow.EscrowRepository().Update(ctx, escrow, models.EscrowStatusActive); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"escrowId": escrowID,
		"winnerId": winnerID,
		"amount":   escrow.TotalAmount(),
	}).Info("Escrow completed")

	return escrow, nil
}

// Refund returns each contributing party its own leg and finalizes the
// escrow. Fails with models.ErrInvalidState if the escrow is already
// terminal.
func (c *EscrowCoordinator) Refund(ctx context.Context, uow UnitOfWork, escrowID string) (*models.Escrow, error) {
	escrow, err := uow.EscrowRepository().GetByID(ctx, escrowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow: %w", err)
	}
	if escrow == nil {
		return nil, fmt.Errorf("escrow %s: %w", escrowID, models.ErrNotFound)
	}
	if escrow.Status.IsTerminal() {
		return nil, fmt.Errorf("escrow %s is already %s: %w", escrowID, escrow.Status, models.ErrInvalidState)
	}

	if err := uow.Ledger().Credit(ctx, escrow.CreatorID, escrow.CreatorAmount, escrowID+":refund:creator", "bet refund"); err != nil {
		return nil, fmt.Errorf("failed to refund creator: %w", err)
	}
	if escrow.AcceptorID != nil && escrow.AcceptorAmount > 0 {
		if err := uow.Ledger().Credit(ctx, *escrow.AcceptorID, escrow.AcceptorAmount, escrowID+":refund:acceptor", "bet refund"); err != nil {
			return nil, fmt.Errorf("failed to refund acceptor: %w", err)
		}
	}

	previous := escrow.Status
	escrow.Status = models.EscrowStatusRefunded
	if err := uow.EscrowRepository().Update(ctx, escrow, previous); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"escrowId": escrowID,
		"amount":   escrow.TotalAmount(),
	}).Info("Escrow refunded")

	return escrow, nil
}
