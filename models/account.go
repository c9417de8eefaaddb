package models

import "time"

// Account is a points-ledger account. Balances only change through the
// ledger's debit/credit operations.
type Account struct {
	ID        string    `db:"id"`
	Balance   int64     `db:"balance"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
