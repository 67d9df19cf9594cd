package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	username TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	used_free_seconds REAL NOT NULL DEFAULT 0,
	balance_seconds REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	last_activity_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	provider TEXT NOT NULL,
	amount_rub INTEGER NOT NULL,
	seconds_added REAL NOT NULL,
	payment_ref TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status, created_at);

CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	duration_seconds REAL NOT NULL,
	transcription_chars INTEGER,
	processing_seconds REAL,
	status TEXT NOT NULL,
	error_reason TEXT,
	transcription_text TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_user ON jobs(user_id, created_at);
`

type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (creating if necessary) the database file and makes
// sure the schema exists. The DSN forces immediate transactions so that
// concurrent ledger debits serialize on the write lock instead of
// failing on snapshot upgrade.
func NewSQLiteDB(dbFilePath string) (*SQLiteDB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate&_foreign_keys=on", dbFilePath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", dbFilePath, err)
	}
	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

func (sdb *SQLiteDB) Close() error {
	return sdb.db.Close()
}
