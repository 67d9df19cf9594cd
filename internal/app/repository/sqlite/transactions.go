package sqlite

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

func (sdb *SQLiteDB) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	_, err := sdb.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, provider, amount_rub, seconds_added, payment_ref, status, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Provider, t.AmountRub, t.SecondsAdded, t.PaymentRef, string(t.Status), t.CreatedAt.UTC(), t.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}
	return nil
}

func (sdb *SQLiteDB) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := sdb.db.QueryRowContext(ctx, selectTransactionSQL+` WHERE id = ?`, id)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

func (sdb *SQLiteDB) SetPaymentRef(ctx context.Context, id, paymentRef string) error {
	_, err := sdb.db.ExecContext(ctx, `UPDATE transactions SET payment_ref = ? WHERE id = ?`, paymentRef, id)
	if err != nil {
		return fmt.Errorf("set payment ref for transaction %s: %w", id, err)
	}
	return nil
}

// CompletePending is the guarded one-way transition out of pending. The
// status predicate in the WHERE clause makes concurrent completions race
// for a single affected row, so exactly one caller observes true.
func (sdb *SQLiteDB) CompletePending(ctx context.Context, id string, status model.TransactionStatus, completedAt time.Time) (bool, error) {
	res, err := sdb.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
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

func (sdb *SQLiteDB) ListPending(ctx context.Context, createdBefore time.Time) ([]model.Transaction, error) {
	rows, err := sdb.db.QueryContext(ctx, selectTransactionSQL+`
		WHERE status = ? AND created_at < ?
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
