package model

import (
	"math"
	"time"
)

// User represents a Telegram account known to the service together with
// its quota counters: how much of the lifetime free allowance has been
// consumed and how many purchased seconds remain.
type User struct {
	ID              int64     `json:"id" db:"id"`
	Username        string    `json:"username" db:"username"`
	FirstName       string    `json:"first_name" db:"first_name"`
	UsedFreeSeconds float64   `json:"used_free_seconds" db:"used_free_seconds"`
	BalanceSeconds  float64   `json:"balance_seconds" db:"balance_seconds"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	LastActivityAt  time.Time `json:"last_activity_at" db:"last_activity_at"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// RemainingFreeSeconds is the unconsumed part of the free allowance,
// never negative even if the stored counter drifted past the ceiling.
func (u *User) RemainingFreeSeconds(allowance float64) float64 {
	return math.Max(0, allowance-u.UsedFreeSeconds)
}

// AvailableSeconds is the total audio time the user can still pay for,
// free allowance and purchased balance combined.
func (u *User) AvailableSeconds(allowance float64) float64 {
	return u.RemainingFreeSeconds(allowance) + u.BalanceSeconds
}

// SplitDebit computes how a debit of seconds is covered: free allowance
// first, purchased balance second. Both returned amounts are clipped so
// that usedFree never exceeds the allowance and balance never goes
// negative, even when the caller asks for more than is available.
func SplitDebit(usedFree, balance, seconds, allowance float64) (fromFree, fromBalance float64) {
	if seconds <= 0 {
		return 0, 0
	}
	remainingFree := math.Max(0, allowance-usedFree)
	fromFree = math.Min(seconds, remainingFree)
	fromBalance = math.Min(balance, seconds-fromFree)
	return fromFree, fromBalance
}
