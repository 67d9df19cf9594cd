package pg

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS users (
	id BIGINT PRIMARY KEY,
	username TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	used_free_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	balance_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	last_activity_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	user_id BIGINT NOT NULL,
	provider TEXT NOT NULL,
	amount_rub BIGINT NOT NULL,
	seconds_added DOUBLE PRECISION NOT NULL,
	payment_ref TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status, created_at);

CREATE TABLE IF NOT EXISTS jobs (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL,
	duration_seconds DOUBLE PRECISION NOT NULL,
	transcription_chars BIGINT,
	processing_seconds DOUBLE PRECISION,
	status TEXT NOT NULL,
	error_reason TEXT,
	transcription_text TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_user ON jobs(user_id, created_at);
`

type PostgresDB struct {
	db *sql.DB
}

func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}
	return &PostgresDB{db: db}, nil
}

func (pdb *PostgresDB) Close() error {
	return pdb.db.Close()
}
