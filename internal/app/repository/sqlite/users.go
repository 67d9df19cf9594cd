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

const selectUserSQL = `
	SELECT id, username, first_name, used_free_seconds, balance_seconds, created_at, last_activity_at
	FROM users
	WHERE id = ?`

func (sdb *SQLiteDB) UpsertUser(ctx context.Context, id int64, username, firstName string) (*model.User, error) {
	now := time.Now().UTC()
	_, err := sdb.db.ExecContext(ctx, `
		INSERT INTO users (id, username, first_name, used_free_seconds, balance_seconds, created_at, last_activity_at)
		VALUES (?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_activity_at = excluded.last_activity_at`,
		id, username, firstName, now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert user %d: %w", id, err)
	}
	return sdb.GetUser(ctx, id)
}

func (sdb *SQLiteDB) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := sdb.db.QueryRowContext(ctx, selectUserSQL, id).
		Scan(&u.ID, &u.Username, &u.FirstName, &u.UsedFreeSeconds, &u.BalanceSeconds, &u.CreatedAt, &u.LastActivityAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

// DebitSeconds runs the whole read-split-write inside one immediate
// transaction so two jobs for the same user cannot both spend the same
// seconds. Unknown users are materialized with zero counters first.
func (sdb *SQLiteDB) DebitSeconds(ctx context.Context, id int64, seconds, allowance float64) (float64, float64, error) {
	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin debit tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var usedFree, balance float64
	err = tx.QueryRowContext(ctx, `SELECT used_free_seconds, balance_seconds FROM users WHERE id = ?`, id).
		Scan(&usedFree, &balance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, username, first_name, used_free_seconds, balance_seconds, created_at, last_activity_at)
			VALUES (?, '', '', 0, 0, ?, ?)`, id, now, now); err != nil {
			return 0, 0, fmt.Errorf("materialize user %d: %w", id, err)
		}
	case err != nil:
		return 0, 0, fmt.Errorf("read counters for user %d: %w", id, err)
	}

	fromFree, fromBalance := model.SplitDebit(usedFree, balance, seconds, allowance)
	_, err = tx.ExecContext(ctx, `
		UPDATE users
		SET used_free_seconds = ?, balance_seconds = ?, last_activity_at = ?
		WHERE id = ?`,
		usedFree+fromFree, balance-fromBalance, now, id)
	if err != nil {
		return 0, 0, fmt.Errorf("apply debit for user %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit debit for user %d: %w", id, err)
	}
	return fromFree, fromBalance, nil
}

func (sdb *SQLiteDB) CreditSeconds(ctx context.Context, id int64, seconds float64) error {
	now := time.Now().UTC()
	_, err := sdb.db.ExecContext(ctx, `
		INSERT INTO users (id, username, first_name, used_free_seconds, balance_seconds, created_at, last_activity_at)
		VALUES (?, '', '', 0, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			balance_seconds = balance_seconds + excluded.balance_seconds,
			last_activity_at = excluded.last_activity_at`,
		id, seconds, now, now)
	if err != nil {
		return fmt.Errorf("credit user %d: %w", id, err)
	}
	return nil
}
