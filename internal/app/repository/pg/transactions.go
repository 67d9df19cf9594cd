package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmlat/STT-Telegram/internal/app/model"
	"github.com/dmlat/STT-Telegram/internal/app/repository"
)

const selectTransactionSQL = `
	SELECT id, user_id, provider, amount_rub, seconds_added, payment_ref, status, created_at, completed_at
	FROM transactions`

func (pdb *PostgresDB) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	_, err := pdb.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, provider, amount_rub, seconds_added, payment_ref, status, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.UserID, t.Provider, t.AmountRub, t.SecondsAdded, t.PaymentRef, string(t.Status), t.CreatedAt.UTC(), t.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}
	return nil
}

func (pdb *PostgresDB) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := pdb.db.QueryRowContext(ctx, selectTransactionSQL+` WHERE id = $1`, id)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

func (pdb *PostgresDB) SetPaymentRef(ctx context.Context, id, paymentRef string) error {
	_, err := pdb.db.ExecContext(ctx, `UPDATE transactions SET payment_ref = $1 WHERE id = $2`, paymentRef, id)
	if err != nil {
		return fmt.Errorf("set payment ref for transaction %s: %w", id, err)
	}
	return nil
}

// CompletePending is the guarded one-way transition out of pending. The
// status predicate makes concurrent completions race for a single
// affected row, so exactly one caller observes true.
func (pdb *PostgresDB) CompletePending(ctx context.Context, id string, status model.TransactionStatus, completedAt time.Time) (bool, error) {
	res, err := pdb.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, completed_at = $2
		WHERE id = $3 AND status = $4`,
		string(status), completedAt.UTC(), id, string(model.TransactionPending))
	if err != nil {
		return false, fmt.Errorf("complete transaction %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete transaction %s: %w", id, err)
	}
	return n == 1, nil
}

func (pdb *PostgresDB) ListPending(ctx context.Context, createdBefore time.Time) ([]model.Transaction, error) {
	rows, err := pdb.db.QueryContext(ctx, selectTransactionSQL+`
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at`,
		string(model.TransactionPending), createdBefore.UTC())
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]model.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

func scanTransaction(scan func(dest ...any) error) (*model.Transaction, error) {
	var t model.Transaction
	var status string
	err := scan(&t.ID, &t.UserID, &t.Provider, &t.AmountRub, &t.SecondsAdded, &t.PaymentRef, &status, &t.CreatedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	t.Status = model.TransactionStatus(status)
	return &t, nil
}
