package events

import (
	"context"
	"sync"

	"sidestake/models"

	log "github.com/sirupsen/logrus"
)

// Topic names an event stream on the notification bus
type Topic string

const (
	TopicBetCreated   Topic = "bet.created"
	TopicBetAccepted  Topic = "bet.accepted"
	TopicBetSettled   Topic = "bet.settled"
	TopicBetCancelled Topic = "bet.cancelled"
	TopicMatchUpdated Topic = "match.updated"
)

// Event is the base interface for all bus events
type Event interface {
	Topic() Topic
}

// BetCreatedEvent is published when a bet enters the open state
type BetCreatedEvent struct {
	Bet *models.Bet
}

func (e BetCreatedEvent) Topic() Topic {
	return TopicBetCreated
}

// BetAcceptedEvent is published when a second party joins a bet
type BetAcceptedEvent struct {
	Bet        *models.Bet
	AcceptorID string
}

func (e BetAcceptedEvent) Topic() Topic {
	return TopicBetAccepted
}

// BetSettledEvent is published when escrow has been paid out to the winner
type BetSettledEvent struct {
	Bet      *models.Bet
	WinnerID string
	Payout   int64
}

func (e BetSettledEvent) Topic() Topic {
	return TopicBetSettled
}

// BetCancelledEvent is published when a bet is cancelled and refunded
type BetCancelledEvent struct {
	Bet         *models.Bet
	RequesterID string
}

func (e BetCancelledEvent) Topic() Topic {
	return TopicBetCancelled
}

// MatchUpdatedEvent is published when cached match data changes, including
// live score updates
type MatchUpdatedEvent struct {
	MatchID   string
	Completed bool
	HomeScore *int
	AwayScore *int
}

func (e MatchUpdatedEvent) Topic() Topic {
	return TopicMatchUpdated
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching. Delivery is synchronous
// and in registration order; a topic with no subscribers is a no-op.
// Events are a best-effort same-session signal, never persisted, so every
// subscriber must also be able to recover its view by re-querying.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Topic][]Handler),
	}
}

// Subscribe adds a handler for a topic
func (b *Bus) Subscribe(topic Topic, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[topic] = append(b.handlers[topic], handler)

	log.WithFields(log.Fields{
		"topic":        topic,
		"handlerCount": len(b.handlers[topic]),
	}).Debug("Subscribed handler to topic")
}

// Emit delivers an event to all registered handlers, in the order they
// subscribed. A panicking handler is recovered so it cannot take down the
// caller or starve later handlers.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Topic()]))
	copy(handlers, b.handlers[event.Topic()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"topic":        event.Topic(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event")

	for i, handler := range handlers {
		func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"topic":        event.Topic(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds pending events coupled to a unit of work and
// flushes them to the underlying bus only after the transaction commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

// NewTransactionalBus wraps a bus for use inside a transaction
func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

// Publish stashes an event until Flush
func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits all pending events. Called after a successful commit; a
// background context is used so event handling outlives the transaction
// context.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing pending events")

	eventCtx := context.Background()
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard drops pending events. Called after rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
