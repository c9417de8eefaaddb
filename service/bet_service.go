package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sidestake/events"
	"sidestake/metrics"
	"sidestake/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type betService struct {
	uowFactory UnitOfWorkFactory
	escrow     *EscrowCoordinator
	resolver   MatchResolver
	locks      *keyedMutex
}

// NewBetService creates a new bet lifecycle service
func NewBetService(uowFactory UnitOfWorkFactory, escrow *EscrowCoordinator, resolver MatchResolver) BetService {
	return &betService{
		uowFactory: uowFactory,
		escrow:     escrow,
		resolver:   resolver,
		locks:      newKeyedMutex(),
	}
}

// Create opens a bet and escrows the creator's stake. The ledger debit,
// the escrow insert and the bet insert share one transaction, so a failed
// write rolls the debit back with it.
func (s *betService) Create(ctx context.Context, creatorID, matchID, selectedSideID string, stake int64, note string) (*models.Bet, error) {
	if creatorID == "" {
		return nil, models.NewValidationError("creatorId", "must not be empty")
	}
	if stake <= 0 {
		return nil, models.NewValidationError("stake", "must be positive")
	}
	if matchID == "" {
		return nil, models.NewValidationError("matchId", "must not be empty")
	}

	match, err := s.resolver.Resolve(ctx, matchID, false)
	if err != nil {
		if errors.Is(err, models.ErrMatchUnresolved) {
			return nil, fmt.Errorf("match %s: %w", matchID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to resolve match: %w", err)
	}
	if match.Completed {
		return nil, models.NewValidationError("matchId", "match has already completed")
	}
	if !match.HasSide(selectedSideID) {
		return nil, models.NewValidationError("selectedSideId", "side does not belong to match")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := uow.Ledger().GetOrCreateAccount(ctx, creatorID); err != nil {
		return nil, fmt.Errorf("failed to get creator account: %w", err)
	}

	betID := uuid.NewString()
	escrow, err := s.escrow.Open(ctx, uow, betID, creatorID, stake)
	if err != nil {
		return nil, err
	}

	bet := &models.Bet{
		ID:             betID,
		Creator:        creatorID,
		MatchID:        matchID,
		SelectedSideID: selectedSideID,
		Stake:          stake,
		Status:         models.BetStatusOpen,
		Note:           note,
		EscrowID:       escrow.ID,
	}
	if err := uow.BetRepository().Create(ctx, bet); err != nil {
		return nil, fmt.Errorf("failed to create bet: %w", err)
	}

	uow.EventBus().Publish(events.BetCreatedEvent{Bet: bet})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"betId":   bet.ID,
		"creator": creatorID,
		"matchId": matchID,
		"stake":   stake,
	}).Info("Bet created")

	return bet, nil
}

// Accept joins an open bet as the second party. The per-bet lock plus the
// compare-and-swap status write guarantee that of two concurrent accepts
// exactly one succeeds; the second fails with models.ErrInvalidState.
func (s *betService) Accept(ctx context.Context, betID, acceptorID string) (*models.Bet, error) {
	if acceptorID == "" {
		return nil, models.NewValidationError("acceptorId", "must not be empty")
	}

	unlock := s.locks.Lock(betID)
	defer unlock()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bet, err := uow.BetRepository().GetByID(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, fmt.Errorf("bet %s: %w", betID, models.ErrNotFound)
	}
	if models.SameAccount(bet.Creator, acceptorID) {
		return nil, fmt.Errorf("bet %s: %w", betID, models.ErrSelfAcceptance)
	}
	if bet.Status != models.BetStatusOpen {
		return nil, fmt.Errorf("bet %s is %s, not open: %w", betID, bet.Status, models.ErrInvalidState)
	}

	if _, err := uow.Ledger().GetOrCreateAccount(ctx, acceptorID); err != nil {
		return nil, fmt.Errorf("failed to get acceptor account: %w", err)
	}

	if _, err := s.escrow.Join(ctx, uow, bet.EscrowID, acceptorID, bet.Stake); err != nil {
		return nil, err
	}

	now := time.Now()
	bet.Acceptor = &acceptorID
	bet.Status = models.BetStatusActive
	bet.AcceptedAt = &now
	if err := uow.BetRepository().Update(ctx, bet, models.BetStatusOpen); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.BetAcceptedEvent{Bet: bet, AcceptorID: acceptorID})

	if err := uow.Commit(); err != nil {
		return nil, s.commitWarning(bet.ID, "accept", err)
	}

	log.WithFields(log.Fields{
		"betId":    bet.ID,
		"acceptor": acceptorID,
	}).Info("Bet accepted")

	return bet, nil
}

// Settle pays out an active bet whose match the resolution cache reports
// completed
func (s *betService) Settle(ctx context.Context, betID string) (*models.Bet, error) {
	unlock := s.locks.Lock(betID)
	defer unlock()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bet, err := uow.BetRepository().GetByID(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, fmt.Errorf("bet %s: %w", betID, models.ErrNotFound)
	}
	if bet.Status != models.BetStatusActive {
		return nil, fmt.Errorf("bet %s is %s, not active: %w", betID, bet.Status, models.ErrInvalidState)
	}

	match, err := s.resolver.Resolve(ctx, bet.MatchID, false)
	if err != nil {
		if errors.Is(err, models.ErrMatchUnresolved) {
			return nil, fmt.Errorf("match %s: %w", bet.MatchID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to resolve match: %w", err)
	}
	if !match.Completed {
		return nil, fmt.Errorf("match %s: %w", bet.MatchID, models.ErrMatchNotCompleted)
	}

	winningSide := match.WinningSideID()
	if winningSide == "" {
		// Level scores: nobody won. The bet stays active for a participant
		// to cancel and refund.
		return nil, fmt.Errorf("match %s ended level: %w", bet.MatchID, models.ErrWinnerUndetermined)
	}

	winnerID := bet.Creator
	if bet.SelectedSideID != winningSide {
		winnerID = *bet.Acceptor
	}

	escrow, err := s.escrow.Complete(ctx, uow, bet.EscrowID, winnerID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	bet.Status = models.BetStatusCompleted
	bet.WinnerID = &winnerID
	bet.SettledAt = &now
	if err := uow.BetRepository().Update(ctx, bet, models.BetStatusActive); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.BetSettledEvent{
		Bet:      bet,
		WinnerID: winnerID,
		Payout:   escrow.TotalAmount(),
	})

	if err := uow.Commit(); err != nil {
		return nil, s.commitWarning(bet.ID, "settle", err)
	}

	metrics.BetsSettled.Inc()
	log.WithFields(log.Fields{
		"betId":    bet.ID,
		"winnerId": winnerID,
		"payout":   escrow.TotalAmount(),
	}).Info("Bet settled")

	return bet, nil
}

// Cancel refunds both legs and cancels an open or active bet. Only a
// participant may cancel.
func (s *betService) Cancel(ctx context.Context, betID, requesterID string) (*models.Bet, error) {
	unlock := s.locks.Lock(betID)
	defer unlock()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bet, err := uow.BetRepository().GetByID(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, fmt.Errorf("bet %s: %w", betID, models.ErrNotFound)
	}
	if bet.Status.IsTerminal() {
		return nil, fmt.Errorf("bet %s is already %s: %w", betID, bet.Status, models.ErrInvalidState)
	}
	if !bet.IsParticipant(requesterID) {
		return nil, fmt.Errorf("account %s is not a participant of bet %s: %w", requesterID, betID, models.ErrInvalidState)
	}

	if _, err := s.escrow.Refund(ctx, uow, bet.EscrowID); err != nil {
		return nil, err
	}

	previous := bet.Status
	now := time.Now()
	bet.Status = models.BetStatusCancelled
	bet.CancelledAt = &now
	if err := uow.BetRepository().Update(ctx, bet, previous); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.BetCancelledEvent{Bet: bet, RequesterID: requesterID})

	if err := uow.Commit(); err != nil {
		return nil, s.commitWarning(bet.ID, "cancel", err)
	}

	metrics.BetsCancelled.Inc()
	log.WithFields(log.Fields{
		"betId":     bet.ID,
		"requester": requesterID,
	}).Info("Bet cancelled")

	return bet, nil
}

// GetBet retrieves a bet by ID
func (s *betService) GetBet(ctx context.Context, betID string) (*models.Bet, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bet, err := uow.BetRepository().GetByID(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, fmt.Errorf("bet %s: %w", betID, models.ErrNotFound)
	}
	return bet, nil
}

// GetBetsByUser returns bets the account participates in
func (s *betService) GetBetsByUser(ctx context.Context, accountID string, limit int) ([]*models.Bet, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bets, err := uow.BetRepository().GetByUser(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get bets: %w", err)
	}
	return bets, nil
}

// GetOpenBets returns open bets for the marketplace view
func (s *betService) GetOpenBets(ctx context.Context, limit int) ([]*models.Bet, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bets, err := uow.BetRepository().GetOpen(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get open bets: %w", err)
	}
	return bets, nil
}

// SettleDue settles every active bet whose match has completed. Bets whose
// match is still running are skipped; a level final score is logged and
// left for a participant to cancel.
func (s *betService) SettleDue(ctx context.Context) (int, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	active, err := uow.BetRepository().GetActive(ctx)
	uow.Rollback()
	if err != nil {
		return 0, fmt.Errorf("failed to list active bets: %w", err)
	}

	settled := 0
	for _, bet := range active {
		if _, err := s.Settle(ctx, bet.ID); err != nil {
			switch {
			case errors.Is(err, models.ErrMatchNotCompleted):
				// still running
			case errors.Is(err, models.ErrWinnerUndetermined):
				log.WithField("betId", bet.ID).Warn("Match ended level, bet needs manual cancellation")
			default:
				log.WithFields(log.Fields{
					"betId": bet.ID,
					"error": err,
				}).Warn("Failed to settle bet")
			}
			continue
		}
		settled++
	}

	return settled, nil
}

// commitWarning wraps a commit failure. The escrow mutation shares the
// transaction, so nothing economic has happened yet; still, surface it
// loudly because the caller's operation did not take effect.
func (s *betService) commitWarning(betID, op string, err error) error {
	log.WithFields(log.Fields{
		"betId":     betID,
		"operation": op,
		"error":     err,
	}).Warn("Commit failed, operation rolled back")
	return fmt.Errorf("failed to commit %s: %w", op, err)
}
