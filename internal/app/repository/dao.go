package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dmlat/STT-Telegram/internal/app/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("repository: not found")

// UserDAO persists user identities and their quota counters. DebitSeconds
// and CreditSeconds materialize missing rows lazily, so the ledger never
// has to create a user before touching its counters.
type UserDAO interface {
	// UpsertUser creates the user on first contact or refreshes the
	// identity fields and activity timestamp on a repeat visit.
	UpsertUser(ctx context.Context, id int64, username, firstName string) (*model.User, error)

	// GetUser returns ErrNotFound for users that were never seen.
	GetUser(ctx context.Context, id int64) (*model.User, error)

	// DebitSeconds atomically consumes seconds from the free allowance
	// first and the paid balance second, clipping at zero instead of
	// going negative. It reports how much came from each bucket.
	DebitSeconds(ctx context.Context, id int64, seconds, allowance float64) (fromFree, fromBalance float64, err error)

	// CreditSeconds adds purchased seconds to the balance.
	CreditSeconds(ctx context.Context, id int64, seconds float64) error
}

// TransactionDAO persists purchase transactions. Status transitions are
// one-way: CompletePending is the only mutation after insert besides
// attaching the gateway's payment reference.
type TransactionDAO interface {
	InsertTransaction(ctx context.Context, t *model.Transaction) error

	// GetTransaction returns ErrNotFound for unknown ids.
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)

	SetPaymentRef(ctx context.Context, id, paymentRef string) error

	// CompletePending flips a pending transaction to the given terminal
	// status. It returns false without touching the row if the
	// transaction already left pending, which makes repeated completion
	// attempts safe.
	CompletePending(ctx context.Context, id string, status model.TransactionStatus, completedAt time.Time) (bool, error)

	// ListPending returns pending transactions created before the cutoff,
	// oldest first. Used by the payment watcher to poll the gateway.
	ListPending(ctx context.Context, createdBefore time.Time) ([]model.Transaction, error)
}

// JobDAO is the append-only history of finished transcription jobs.
type JobDAO interface {
	InsertJob(ctx context.Context, rec *model.JobRecord) (int64, error)

	JobsByUser(ctx context.Context, userID int64) ([]model.JobRecord, error)

	// ListJobsSince returns jobs created at or after since, oldest
	// first. A zero time returns everything.
	ListJobsSince(ctx context.Context, since time.Time) ([]model.JobRecord, error)

	// UserStats aggregates the job history of one user. The now argument
	// anchors the 7 and 30 day windows so callers and tests agree on
	// boundaries.
	UserStats(ctx context.Context, userID int64, now time.Time) (*model.UserStats, error)
}

// Store bundles the three DAOs behind a single database connection.
type Store interface {
	UserDAO
	TransactionDAO
	JobDAO

	Close() error
}
