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

const selectUserSQL = `
	SELECT id, username, first_name, used_free_seconds, balance_seconds, created_at, last_activity_at
	FROM users
	WHERE id = $1`

func (pdb *PostgresDB) UpsertUser(ctx context.Context, id int64, username, firstName string) (*model.User, error) {
	now := time.Now().UTC()
	_, err := pdb.db.ExecContext(ctx, `
		INSERT INTO users (id, username, first_name, used_free_seconds, balance_seconds, created_at, last_activity_at)
		VALUES ($1, $2, $3, 0, 0, $4, $4)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_activity_at = EXCLUDED.last_activity_at`,
		id, username, firstName, now)
	if err != nil {
		return nil, fmt.Errorf("upsert user %d: %w", id, err)
	}
	return pdb.GetUser(ctx, id)
}

func (pdb *PostgresDB) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := pdb.db.QueryRowContext(ctx, selectUserSQL, id).
		Scan(&u.ID, &u.Username, &u.FirstName, &u.UsedFreeSeconds, &u.BalanceSeconds, &u.CreatedAt, &u.LastActivityAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

// DebitSeconds locks the user row for the duration of the split so
// concurrent jobs for the same user serialize instead of double
// spending. Unknown users are materialized with zero counters first.
func (pdb *PostgresDB) DebitSeconds(ctx context.Context, id int64, seconds, allowance float64) (float64, float64, error) {
	tx, err := pdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin debit tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var usedFree, balance float64
	err = tx.QueryRowContext(ctx,
		`SELECT used_free_seconds, balance_seconds FROM users WHERE id = $1 FOR UPDATE`, id).
		Scan(&usedFree, &balance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// FOR UPDATE cannot lock a row that does not exist yet, so two
		// first-ever debits could interleave. Insert, then lock the row
		// that is now guaranteed to be there.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, username, first_name, used_free_seconds, balance_seconds, created_at, last_activity_at)
			VALUES ($1, '', '', 0, 0, $2, $2)
			ON CONFLICT (id) DO NOTHING`, id, now); err != nil {
			return 0, 0, fmt.Errorf("materialize user %d: %w", id, err)
		}
		err = tx.QueryRowContext(ctx,
			`SELECT used_free_seconds, balance_seconds FROM users WHERE id = $1 FOR UPDATE`, id).
			Scan(&usedFree, &balance)
		if err != nil {
			return 0, 0, fmt.Errorf("read counters for user %d: %w", id, err)
		}
	case err != nil:
		return 0, 0, fmt.Errorf("read counters for user %d: %w", id, err)
	}

	fromFree, fromBalance := model.SplitDebit(usedFree, balance, seconds, allowance)
	_, err = tx.ExecContext(ctx, `
		UPDATE users
		SET used_free_seconds = $1, balance_seconds = $2, last_activity_at = $3
		WHERE id = $4`,
		usedFree+fromFree, balance-fromBalance, now, id)
	if err != nil {
		return 0, 0, fmt.Errorf("apply debit for user %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit debit for user %d: %w", id, err)
	}
	return fromFree, fromBalance, nil
}

func (pdb *PostgresDB) CreditSeconds(ctx context.Context, id int64, seconds float64) error {
	now := time.Now().UTC()
	_, err := pdb.db.ExecContext(ctx, `
		INSERT INTO users (id, username, first_name, used_free_seconds, balance_seconds, created_at, last_activity_at)
		VALUES ($1, '', '', 0, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE SET
			balance_seconds = users.balance_seconds + EXCLUDED.balance_seconds,
			last_activity_at = EXCLUDED.last_activity_at`,
		id, seconds, now)
	if err != nil {
		return fmt.Errorf("credit user %d: %w", id, err)
	}
	return nil
}
