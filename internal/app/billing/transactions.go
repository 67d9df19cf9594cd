package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmlat/STT-Telegram/internal/app/ledger"
	"github.com/dmlat/STT-Telegram/internal/app/model"
	"github.com/dmlat/STT-Telegram/internal/app/repository"
)

// TransactionStore owns the purchase lifecycle: transactions start
// pending, move exactly once to success or failed, and the success
// transition is the only place in the system that credits purchased
// seconds to a balance.
type TransactionStore struct {
	txns   repository.TransactionDAO
	ledger *ledger.Ledger
	logger *zap.Logger
}

func NewTransactionStore(txns repository.TransactionDAO, ledger *ledger.Ledger, logger *zap.Logger) *TransactionStore {
	return &TransactionStore{
		txns:   txns,
		ledger: ledger,
		logger: logger,
	}
}

// Create opens a pending transaction for a purchase. The payment
// reference may be attached later once the gateway assigns one.
func (s *TransactionStore) Create(ctx context.Context, userID int64, provider string, amountRub int64, secondsToAdd float64, paymentRef *string) (*model.Transaction, error) {
	if amountRub <= 0 {
		return nil, fmt.Errorf("create transaction: invalid amount %d rub", amountRub)
	}
	if secondsToAdd <= 0 {
		return nil, fmt.Errorf("create transaction: invalid seconds %f", secondsToAdd)
	}

	t := &model.Transaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Provider:     provider,
		AmountRub:    amountRub,
		SecondsAdded: secondsToAdd,
		PaymentRef:   paymentRef,
		Status:       model.TransactionPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.txns.InsertTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("create transaction for user %d: %w", userID, err)
	}

	s.logger.Info("created pending transaction",
		zap.String("transaction_id", t.ID),
		zap.Int64("user_id", userID),
		zap.String("provider", provider),
		zap.Int64("amount_rub", amountRub),
		zap.Float64("seconds", secondsToAdd))
	return t, nil
}

func (s *TransactionStore) Get(ctx context.Context, id string) (*model.Transaction, error) {
	return s.txns.GetTransaction(ctx, id)
}

// AttachPaymentRef records the gateway's payment id on the transaction.
func (s *TransactionStore) AttachPaymentRef(ctx context.Context, id, paymentRef string) error {
	if err := s.txns.SetPaymentRef(ctx, id, paymentRef); err != nil {
		return fmt.Errorf("attach payment ref to transaction %s: %w", id, err)
	}
	return nil
}

// Complete moves a pending transaction to a terminal status. The first
// caller to flip the status wins and, on success, triggers the balance
// credit; every later or losing call returns false and changes nothing.
// Poll and webhook paths both land here, so a payment confirmed twice
// still credits once.
func (s *TransactionStore) Complete(ctx context.Context, id string, outcome model.TransactionStatus) (bool, error) {
	if outcome != model.TransactionSuccess && outcome != model.TransactionFailed {
		return false, fmt.Errorf("complete transaction %s: invalid outcome %q", id, outcome)
	}

	t, err := s.txns.GetTransaction(ctx, id)
	if err != nil {
		return false, fmt.Errorf("complete transaction %s: %w", id, err)
	}

	won, err := s.txns.CompletePending(ctx, id, outcome, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("complete transaction %s: %w", id, err)
	}
	if !won {
		s.logger.Debug("transaction already completed",
			zap.String("transaction_id", id),
			zap.String("outcome", string(outcome)))
		return false, nil
	}

	if outcome == model.TransactionSuccess {
		if err := s.ledger.Credit(ctx, t.UserID, t.SecondsAdded); err != nil {
			// The status flip is committed at this point, so a retry
			// through Complete would be a no-op. Surface the error for
			// manual reconciliation.
			return true, fmt.Errorf("credit after completing transaction %s: %w", id, err)
		}
		s.logger.Info("transaction completed, balance credited",
			zap.String("transaction_id", id),
			zap.Int64("user_id", t.UserID),
			zap.Float64("seconds", t.SecondsAdded))
		return true, nil
	}

	s.logger.Info("transaction marked failed",
		zap.String("transaction_id", id),
		zap.Int64("user_id", t.UserID))
	return true, nil
}

// ListPending returns pending transactions created before the cutoff.
func (s *TransactionStore) ListPending(ctx context.Context, createdBefore time.Time) ([]model.Transaction, error) {
	return s.txns.ListPending(ctx, createdBefore)
}
