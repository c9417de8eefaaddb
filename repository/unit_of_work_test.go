package repository

import (
	"context"
	"testing"

	"sidestake/events"
	"sidestake/models"
	"sidestake/repository/testutil"
	"sidestake/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_CommitPersistsAndFlushesEvents(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	var received []events.Event
	bus.Subscribe(events.TopicBetCreated, func(ctx context.Context, event events.Event) {
		received = append(received, event)
	})

	factory := NewUnitOfWorkFactory(testDB.DB, bus, 1000)
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	_, err := uow.Ledger().GetOrCreateAccount(ctx, "alice")
	require.NoError(t, err)

	bet := testutil.CreateTestBet("alice", "m1", "los-angeles-lakers", 100)
	escrow := testutil.CreateTestEscrow(bet.ID, "alice", 100)
	require.NoError(t, uow.EscrowRepository().Create(ctx, escrow))
	bet.EscrowID = escrow.ID
	require.NoError(t, uow.BetRepository().Create(ctx, bet))

	uow.EventBus().Publish(events.BetCreatedEvent{Bet: bet})
	assert.Empty(t, received, "events stay pending until commit")

	require.NoError(t, uow.Commit())

	require.Len(t, received, 1)

	stored, err := NewBetRepository(testDB.DB).GetByID(ctx, bet.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.BetStatusOpen, stored.Status)
}

func TestUnitOfWork_RollbackDiscardsWritesAndEvents(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	delivered := 0
	bus.Subscribe(events.TopicBetCreated, func(ctx context.Context, event events.Event) { delivered++ })

	factory := NewUnitOfWorkFactory(testDB.DB, bus, 1000)
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	_, err := uow.Ledger().GetOrCreateAccount(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, uow.Ledger().Debit(ctx, "alice", 400, "e1:creator", "bet stake"))

	bet := testutil.CreateTestBet("alice", "m1", "los-angeles-lakers", 100)
	escrow := testutil.CreateTestEscrow(bet.ID, "alice", 100)
	require.NoError(t, uow.EscrowRepository().Create(ctx, escrow))
	uow.EventBus().Publish(events.BetCreatedEvent{Bet: bet})

	require.NoError(t, uow.Rollback())

	assert.Equal(t, 0, delivered)

	ledger := NewLedgerRepository(testDB.DB, 1000)
	account, err := ledger.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, account, "account creation rolled back")

	stored, err := NewEscrowRepository(testDB.DB).GetByID(ctx, escrow.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

// staticResolver satisfies service.MatchResolver for lifecycle tests without
// any provider infrastructure
type staticResolver struct {
	match *models.Match
}

func (r *staticResolver) Resolve(ctx context.Context, matchID string, forceRefresh bool) (*models.Match, error) {
	if r.match == nil || r.match.ID != matchID {
		return nil, models.ErrMatchUnresolved
	}
	return r.match, nil
}

func TestBetLifecycle_EndToEnd(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	var topics []events.Topic
	for _, topic := range []events.Topic{events.TopicBetCreated, events.TopicBetAccepted, events.TopicBetSettled} {
		topic := topic
		bus.Subscribe(topic, func(ctx context.Context, event events.Event) {
			topics = append(topics, topic)
		})
	}

	match := testutil.CreateTestMatch("m1")
	resolver := &staticResolver{match: match}

	factory := NewUnitOfWorkFactory(testDB.DB, bus, 1000)
	betService := service.NewBetService(factory, service.NewEscrowCoordinator(), resolver)
	ledger := NewLedgerRepository(testDB.DB, 1000)

	// create: creator's stake moves into escrow
	bet, err := betService.Create(ctx, "alice", "m1", "los-angeles-lakers", 100, "xmas game")
	require.NoError(t, err)

	account, err := ledger.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(900), account.Balance)

	// accept: acceptor's stake joins
	bet, err = betService.Accept(ctx, bet.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.BetStatusActive, bet.Status)

	account, err = ledger.GetAccount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(900), account.Balance)

	// settle before completion is rejected
	_, err = betService.Settle(ctx, bet.ID)
	require.ErrorIs(t, err, models.ErrMatchNotCompleted)

	// settle: home side won, creator takes the pot
	home, away := 101, 98
	match.Completed = true
	match.HomeScore = &home
	match.AwayScore = &away

	bet, err = betService.Settle(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BetStatusCompleted, bet.Status)
	require.NotNil(t, bet.WinnerID)
	assert.Equal(t, "alice", *bet.WinnerID)

	account, err = ledger.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1100), account.Balance)

	account, err = ledger.GetAccount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(900), account.Balance)

	// settled bet cannot be cancelled
	_, err = betService.Cancel(ctx, bet.ID, "bob")
	require.ErrorIs(t, err, models.ErrInvalidState)

	assert.Equal(t, []events.Topic{
		events.TopicBetCreated,
		events.TopicBetAccepted,
		events.TopicBetSettled,
	}, topics)
}
