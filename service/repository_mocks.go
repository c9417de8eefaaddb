package service

import (
	"context"

	"sidestake/events"
	"sidestake/models"

	"github.com/stretchr/testify/mock"
)

// MockBetRepository is a mock implementation of BetRepository
type MockBetRepository struct {
	mock.Mock
}

func (m *MockBetRepository) Create(ctx context.Context, bet *models.Bet) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockBetRepository) GetByID(ctx context.Context, id string) (*models.Bet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bet), args.Error(1)
}

func (m *MockBetRepository) Update(ctx context.Context, bet *models.Bet, expected models.BetStatus) error {
	args := m.Called(ctx, bet, expected)
	return args.Error(0)
}

func (m *MockBetRepository) GetByUser(ctx context.Context, accountID string, limit int) ([]*models.Bet, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

func (m *MockBetRepository) GetOpen(ctx context.Context, limit int) ([]*models.Bet, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

func (m *MockBetRepository) GetActive(ctx context.Context) ([]*models.Bet, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

// MockEscrowRepository is a mock implementation of EscrowRepository
type MockEscrowRepository struct {
	mock.Mock
}

func (m *MockEscrowRepository) Create(ctx context.Context, escrow *models.Escrow) error {
	args := m.Called(ctx, escrow)
	return args.Error(0)
}

func (m *MockEscrowRepository) GetByID(ctx context.Context, id string) (*models.Escrow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *MockEscrowRepository) GetByBetID(ctx context.Context, betID string) (*models.Escrow, error) {
	args := m.Called(ctx, betID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *MockEscrowRepository) Update(ctx context.Context, escrow *models.Escrow, expected models.EscrowStatus) error {
	args := m.Called(ctx, escrow, expected)
	return args.Error(0)
}

// MockLedger is a mock implementation of the points-ledger collaborator
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) GetOrCreateAccount(ctx context.Context, accountID string) (*models.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockLedger) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockLedger) Debit(ctx context.Context, accountID string, amount int64, refID, reason string) error {
	args := m.Called(ctx, accountID, amount, refID, reason)
	return args.Error(0)
}

func (m *MockLedger) Credit(ctx context.Context, accountID string, amount int64, refID, reason string) error {
	args := m.Called(ctx, accountID, amount, refID, reason)
	return args.Error(0)
}

// MockMatchResolver is a mock implementation of MatchResolver
type MockMatchResolver struct {
	mock.Mock
}

func (m *MockMatchResolver) Resolve(ctx context.Context, matchID string, forceRefresh bool) (*models.Match, error) {
	args := m.Called(ctx, matchID, forceRefresh)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Match), args.Error(1)
}

// capturingPublisher records published events for assertions
type capturingPublisher struct {
	published []events.Event
}

func (p *capturingPublisher) Publish(event events.Event) {
	p.published = append(p.published, event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repositories are
// injected with SetRepositories; published events are captured on the
// Events field.
type MockUnitOfWork struct {
	mock.Mock
	betRepo    BetRepository
	escrowRepo EscrowRepository
	ledger     Ledger
	Events     *capturingPublisher
}

// SetRepositories wires the repositories the unit of work hands out
func (m *MockUnitOfWork) SetRepositories(betRepo BetRepository, escrowRepo EscrowRepository, ledger Ledger) {
	m.betRepo = betRepo
	m.escrowRepo = escrowRepo
	m.ledger = ledger
	m.Events = &capturingPublisher{}
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) BetRepository() BetRepository {
	return m.betRepo
}

func (m *MockUnitOfWork) EscrowRepository() EscrowRepository {
	return m.escrowRepo
}

func (m *MockUnitOfWork) Ledger() Ledger {
	return m.ledger
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.Events
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
