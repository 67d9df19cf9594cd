package model

import (
	"time"
)

// TransactionStatus is the lifecycle state of a balance top-up.
// Transitions are one-way: pending -> success or pending -> failed.
type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionSuccess TransactionStatus = "success"
	TransactionFailed  TransactionStatus = "failed"
)

// Transaction records one purchase of transcription seconds. The row is
// created before the user is redirected to the payment provider and is
// completed exactly once when the provider reports a final status.
// PaymentRef stays nil until the gateway assigns an external id.
type Transaction struct {
	ID           string            `json:"id" db:"id"`
	UserID       int64             `json:"user_id" db:"user_id"`
	Provider     string            `json:"provider" db:"provider"`
	AmountRub    int64             `json:"amount_rub" db:"amount_rub"`
	SecondsAdded float64           `json:"seconds_added" db:"seconds_added"`
	PaymentRef   *string           `json:"payment_ref,omitempty" db:"payment_ref"`
	Status       TransactionStatus `json:"status" db:"status"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
}

// TableName returns the table name for Transaction
func (Transaction) TableName() string {
	return "transactions"
}

// Final reports whether the transaction has reached a terminal status.
func (t *Transaction) Final() bool {
	return t.Status == TransactionSuccess || t.Status == TransactionFailed
}
