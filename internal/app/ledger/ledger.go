package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/dmlat/STT-Telegram/internal/app/repository"
)

// Availability is the answer to "can this user afford N seconds".
// FreeRemaining and BalanceSeconds are a snapshot for display; the
// authoritative check happens again inside Debit's transaction.
type Availability struct {
	Allowed        bool    `json:"allowed"`
	MissingSeconds float64 `json:"missing_seconds"`
	FreeRemaining  float64 `json:"free_remaining"`
	BalanceSeconds float64 `json:"balance_seconds"`
}

// Ledger owns the per-user quota counters: a lifetime free allowance
// consumed first and a purchased balance consumed second. All mutation
// goes through the DAO in single atomic operations, so concurrent jobs
// for one user cannot overspend.
type Ledger struct {
	users     repository.UserDAO
	allowance float64
	logger    *zap.Logger
}

func New(users repository.UserDAO, allowanceSeconds float64, logger *zap.Logger) *Ledger {
	return &Ledger{
		users:     users,
		allowance: allowanceSeconds,
		logger:    logger,
	}
}

// AllowanceSeconds returns the configured free allowance ceiling.
func (l *Ledger) AllowanceSeconds() float64 {
	return l.allowance
}

// Availability reports whether requestedSeconds fit into the user's
// remaining free allowance plus balance. A user that was never seen
// counts as having the full allowance; the row is materialized later by
// the first debit or credit.
func (l *Ledger) Availability(ctx context.Context, userID int64, requestedSeconds float64) (Availability, error) {
	freeRemaining := l.allowance
	balance := 0.0

	u, err := l.users.GetUser(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// fresh user, full allowance
	case err != nil:
		return Availability{}, fmt.Errorf("availability for user %d: %w", userID, err)
	default:
		freeRemaining = u.RemainingFreeSeconds(l.allowance)
		balance = u.BalanceSeconds
	}

	total := freeRemaining + balance
	avail := Availability{
		Allowed:        total >= requestedSeconds,
		FreeRemaining:  freeRemaining,
		BalanceSeconds: balance,
	}
	if !avail.Allowed {
		avail.MissingSeconds = requestedSeconds - total
	}
	return avail, nil
}

// Debit consumes seconds, free allowance first. The split is computed
// and applied inside one DAO transaction; a debit that exceeds what is
// available clips at zero instead of going negative.
func (l *Ledger) Debit(ctx context.Context, userID int64, seconds float64) error {
	if seconds <= 0 {
		return nil
	}
	fromFree, fromBalance, err := l.users.DebitSeconds(ctx, userID, seconds, l.allowance)
	if err != nil {
		return fmt.Errorf("debit %.1fs from user %d: %w", seconds, userID, err)
	}
	if clipped := seconds - fromFree - fromBalance; clipped > 1e-9 {
		l.logger.Warn("debit exceeded availability, clipped at zero",
			zap.Int64("user_id", userID),
			zap.Float64("requested_seconds", seconds),
			zap.Float64("clipped_seconds", clipped))
	}
	l.logger.Debug("debited seconds",
		zap.Int64("user_id", userID),
		zap.Float64("from_free", fromFree),
		zap.Float64("from_balance", fromBalance))
	return nil
}

// Credit adds purchased seconds to the user's balance. It never touches
// the free allowance counter.
func (l *Ledger) Credit(ctx context.Context, userID int64, seconds float64) error {
	if seconds <= 0 || math.IsNaN(seconds) {
		return fmt.Errorf("credit for user %d: invalid amount %f", userID, seconds)
	}
	if err := l.users.CreditSeconds(ctx, userID, seconds); err != nil {
		return fmt.Errorf("credit %.1fs to user %d: %w", seconds, userID, err)
	}
	l.logger.Info("credited seconds",
		zap.Int64("user_id", userID),
		zap.Float64("seconds", seconds))
	return nil
}
