package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmlat/STT-Telegram/internal/app/model"
	"github.com/dmlat/STT-Telegram/internal/app/repository"
)

// MemoryStore is an in-memory repository.Store with the same observable
// semantics as the SQL backends: lazy user materialization, the guarded
// one-way transaction transition and append-only job records. Errors can
// be injected per method via FailOn, and every call is logged so tests
// can assert ordering.
type MemoryStore struct {
	mu sync.RWMutex

	Users        map[int64]*model.User
	Transactions map[string]*model.Transaction
	Jobs         []model.JobRecord
	nextJobID    int64

	// FailOn maps a method name ("DebitSeconds", "InsertJob", ...) to an
	// error that method should return.
	FailOn map[string]error

	// Calls records method names in invocation order.
	Calls []string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Users:        make(map[int64]*model.User),
		Transactions: make(map[string]*model.Transaction),
		FailOn:       make(map[string]error),
	}
}

// SetError makes the named method fail with err.
func (s *MemoryStore) SetError(method string, err error) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailOn[method] = err
	return s
}

// CallCount returns how many times the named method was invoked.
func (s *MemoryStore) CallCount(method string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.Calls {
		if c == method {
			n++
		}
	}
	return n
}

func (s *MemoryStore) enter(method string) error {
	s.Calls = append(s.Calls, method)
	return s.FailOn[method]
}

func (s *MemoryStore) materialize(id int64, now time.Time) *model.User {
	u, ok := s.Users[id]
	if !ok {
		u = &model.User{ID: id, CreatedAt: now, LastActivityAt: now}
		s.Users[id] = u
	}
	return u
}

func (s *MemoryStore) UpsertUser(_ context.Context, id int64, username, firstName string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpsertUser"); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := s.materialize(id, now)
	u.Username = username
	u.FirstName = firstName
	u.LastActivityAt = now
	clone := *u
	return &clone, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetUser"); err != nil {
		return nil, err
	}
	u, ok := s.Users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *MemoryStore) DebitSeconds(_ context.Context, id int64, seconds, allowance float64) (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DebitSeconds"); err != nil {
		return 0, 0, err
	}
	now := time.Now().UTC()
	u := s.materialize(id, now)
	fromFree, fromBalance := model.SplitDebit(u.UsedFreeSeconds, u.BalanceSeconds, seconds, allowance)
	u.UsedFreeSeconds += fromFree
	u.BalanceSeconds -= fromBalance
	u.LastActivityAt = now
	return fromFree, fromBalance, nil
}

func (s *MemoryStore) CreditSeconds(_ context.Context, id int64, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreditSeconds"); err != nil {
		return err
	}
	now := time.Now().UTC()
	u := s.materialize(id, now)
	u.BalanceSeconds += seconds
	u.LastActivityAt = now
	return nil
}

func (s *MemoryStore) InsertTransaction(_ context.Context, t *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertTransaction"); err != nil {
		return err
	}
	clone := *t
	s.Transactions[t.ID] = &clone
	return nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetTransaction"); err != nil {
		return nil, err
	}
	t, ok := s.Transactions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (s *MemoryStore) SetPaymentRef(_ context.Context, id, paymentRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetPaymentRef"); err != nil {
		return err
	}
	t, ok := s.Transactions[id]
	if !ok {
		return repository.ErrNotFound
	}
	ref := paymentRef
	t.PaymentRef = &ref
	return nil
}

func (s *MemoryStore) CompletePending(_ context.Context, id string, status model.TransactionStatus, completedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CompletePending"); err != nil {
		return false, err
	}
	t, ok := s.Transactions[id]
	if !ok || t.Status != model.TransactionPending {
		return false, nil
	}
	at := completedAt.UTC()
	t.Status = status
	t.CompletedAt = &at
	return true, nil
}

func (s *MemoryStore) ListPending(_ context.Context, createdBefore time.Time) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListPending"); err != nil {
		return nil, err
	}
	pending := make([]model.Transaction, 0)
	for _, t := range s.Transactions {
		if t.Status == model.TransactionPending && t.CreatedAt.Before(createdBefore) {
			pending = append(pending, *t)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	return pending, nil
}

func (s *MemoryStore) InsertJob(_ context.Context, rec *model.JobRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertJob"); err != nil {
		return 0, err
	}
	s.nextJobID++
	clone := *rec
	clone.ID = s.nextJobID
	s.Jobs = append(s.Jobs, clone)
	return clone.ID, nil
}

func (s *MemoryStore) JobsByUser(_ context.Context, userID int64) ([]model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("JobsByUser"); err != nil {
		return nil, err
	}
	jobs := make([]model.JobRecord, 0)
	for _, j := range s.Jobs {
		if j.UserID == userID {
			jobs = append(jobs, j)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs, nil
}

func (s *MemoryStore) ListJobsSince(_ context.Context, since time.Time) ([]model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListJobsSince"); err != nil {
		return nil, err
	}
	jobs := make([]model.JobRecord, 0)
	for _, j := range s.Jobs {
		if since.IsZero() || !j.CreatedAt.Before(since) {
			jobs = append(jobs, j)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

func (s *MemoryStore) UserStats(_ context.Context, userID int64, now time.Time) (*model.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UserStats"); err != nil {
		return nil, err
	}
	stats := model.UserStats{UserID: userID}
	if u, ok := s.Users[userID]; ok {
		stats.RegisteredAt = u.CreatedAt
		stats.LastActivityAt = u.LastActivityAt
	}
	var durSum, charSum float64
	var charCount int64
	for _, j := range s.Jobs {
		if j.UserID != userID {
			continue
		}
		stats.TotalJobs++
		durSum += j.DurationSeconds
		if !j.CreatedAt.Before(now.AddDate(0, 0, -30)) {
			stats.Jobs30d++
		}
		if !j.CreatedAt.Before(now.AddDate(0, 0, -7)) {
			stats.Jobs7d++
		}
		if j.TranscriptionChars != nil {
			charSum += float64(*j.TranscriptionChars)
			charCount++
		}
	}
	if stats.TotalJobs > 0 {
		stats.AvgDurationSeconds = durSum / float64(stats.TotalJobs)
	}
	if charCount > 0 {
		stats.AvgChars = charSum / float64(charCount)
	}
	return &stats, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Interface compliance check
var _ repository.Store = (*MemoryStore)(nil)
