package models

import (
	"strings"
	"time"
)

// BetStatus represents the lifecycle state of a bet
type BetStatus string

const (
	BetStatusOpen      BetStatus = "open"
	BetStatusActive    BetStatus = "active"
	BetStatusCompleted BetStatus = "completed"
	BetStatusCancelled BetStatus = "cancelled"
)

// betTransitions encodes the one-directional lifecycle:
// open -> active -> completed, open/active -> cancelled.
var betTransitions = map[BetStatus][]BetStatus{
	BetStatusOpen:   {BetStatusActive, BetStatusCancelled},
	BetStatusActive: {BetStatusCompleted, BetStatusCancelled},
}

// CanTransitionTo reports whether moving from s to next is a legal transition
func (s BetStatus) CanTransitionTo(next BetStatus) bool {
	for _, allowed := range betTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions
func (s BetStatus) IsTerminal() bool {
	return s == BetStatusCompleted || s == BetStatusCancelled
}

// Bet represents a peer-to-peer wager on a match outcome
type Bet struct {
	ID             string     `db:"id"`
	Creator        string     `db:"creator_id"`
	Acceptor       *string    `db:"acceptor_id"`
	MatchID        string     `db:"match_id"`
	SelectedSideID string     `db:"selected_side_id"`
	Stake          int64      `db:"stake"`
	Status         BetStatus  `db:"status"`
	WinnerID       *string    `db:"winner_id"`
	Note           string     `db:"note"`
	EscrowID       string     `db:"escrow_id"`
	CreatedAt      time.Time  `db:"created_at"`
	AcceptedAt     *time.Time `db:"accepted_at"`
	SettledAt      *time.Time `db:"settled_at"`
	CancelledAt    *time.Time `db:"cancelled_at"`
}

// SameAccount compares two account IDs. Account IDs are compared
// case-insensitively everywhere in the system.
func SameAccount(a, b string) bool {
	return strings.EqualFold(a, b)
}

// IsParticipant checks whether the account is the creator or acceptor
func (b *Bet) IsParticipant(accountID string) bool {
	if SameAccount(b.Creator, accountID) {
		return true
	}
	return b.Acceptor != nil && SameAccount(*b.Acceptor, accountID)
}

// Opponent returns the other participant's account ID, or "" when the
// account is not a participant or the bet has no acceptor yet.
func (b *Bet) Opponent(accountID string) string {
	if b.Acceptor == nil {
		return ""
	}
	if SameAccount(b.Creator, accountID) {
		return *b.Acceptor
	}
	if SameAccount(*b.Acceptor, accountID) {
		return b.Creator
	}
	return ""
}

// CanBeAcceptedBy checks whether the account may accept this bet
func (b *Bet) CanBeAcceptedBy(accountID string) bool {
	return b.Status == BetStatusOpen && !SameAccount(b.Creator, accountID)
}
