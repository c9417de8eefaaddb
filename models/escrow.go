package models

import "time"

// EscrowStatus represents the state of the funds held for a bet
type EscrowStatus string

const (
	EscrowStatusPending   EscrowStatus = "pending"
	EscrowStatusActive    EscrowStatus = "active"
	EscrowStatusCompleted EscrowStatus = "completed"
	EscrowStatusRefunded  EscrowStatus = "refunded"
)

// IsTerminal reports whether the escrow can no longer change state
func (s EscrowStatus) IsTerminal() bool {
	return s == EscrowStatusCompleted || s == EscrowStatusRefunded
}

// Escrow tracks the points held against exactly one bet. The total held is
// always the sum of the two legs; TotalAmount derives it so the invariant
// cannot drift.
type Escrow struct {
	ID             string       `db:"id"`
	BetID          string       `db:"bet_id"`
	CreatorID      string       `db:"creator_id"`
	CreatorAmount  int64        `db:"creator_amount"`
	AcceptorID     *string      `db:"acceptor_id"`
	AcceptorAmount int64        `db:"acceptor_amount"`
	Status         EscrowStatus `db:"status"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

// TotalAmount returns the sum of both legs
func (e *Escrow) TotalAmount() int64 {
	return e.CreatorAmount + e.AcceptorAmount
}
