package billing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmlat/STT-Telegram/internal/app/model"
)

// fakeGateway answers status queries from a fixed map and records which
// payments were polled.
type fakeGateway struct {
	mu       sync.Mutex
	statuses map[string]PaymentStatus
	polled   []string
}

func (g *fakeGateway) CreatePayment(_ context.Context, _ int64, _ string, _ map[string]string) (*Payment, error) {
	return &Payment{ID: "fake-payment", RedirectURL: "https://example.test/pay"}, nil
}

func (g *fakeGateway) QueryStatus(_ context.Context, paymentID string) (PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.polled = append(g.polled, paymentID)
	status, ok := g.statuses[paymentID]
	if !ok {
		return PaymentPending, nil
	}
	return status, nil
}

func TestWatcher_PollCompletesSettledPayments(t *testing.T) {
	ctx := context.Background()
	store, mem := newTestStore(t)

	paid := createWithRef(t, store, 21, "pay-ok")
	canceled := createWithRef(t, store, 22, "pay-bad")
	waiting := createWithRef(t, store, 23, "pay-wait")
	noRef, err := store.Create(ctx, 24, "yookassa", 49, 600, nil)
	require.NoError(t, err)

	gateway := &fakeGateway{statuses: map[string]PaymentStatus{
		"pay-ok":   PaymentSucceeded,
		"pay-bad":  PaymentCanceled,
		"pay-wait": PaymentPending,
	}}
	w := NewWatcher(store, gateway, 0, zap.NewNop())
	w.pollOnce(ctx)

	assertStatus(t, store, paid, model.TransactionSuccess)
	assertStatus(t, store, canceled, model.TransactionFailed)
	assertStatus(t, store, waiting, model.TransactionPending)
	assertStatus(t, store, noRef.ID, model.TransactionPending)

	// Transactions without a payment ref are never sent to the gateway.
	assert.NotContains(t, gateway.polled, "")
	assert.Len(t, gateway.polled, 3)

	u, err := mem.GetUser(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, 600.0, u.BalanceSeconds)
}

func TestWatcher_PollTwiceCreditsOnce(t *testing.T) {
	ctx := context.Background()
	store, mem := newTestStore(t)

	id := createWithRef(t, store, 31, "pay-ok")
	gateway := &fakeGateway{statuses: map[string]PaymentStatus{"pay-ok": PaymentSucceeded}}
	w := NewWatcher(store, gateway, 0, zap.NewNop())

	w.pollOnce(ctx)
	w.pollOnce(ctx)

	assertStatus(t, store, id, model.TransactionSuccess)
	u, err := mem.GetUser(ctx, 31)
	require.NoError(t, err)
	assert.Equal(t, 600.0, u.BalanceSeconds, "second poll must not credit again")
}

func createWithRef(t *testing.T, store *TransactionStore, userID int64, paymentRef string) string {
	t.Helper()
	tx, err := store.Create(context.Background(), userID, "yookassa", 49, 600, nil)
	require.NoError(t, err)
	require.NoError(t, store.AttachPaymentRef(context.Background(), tx.ID, paymentRef))
	return tx.ID
}

func assertStatus(t *testing.T, store *TransactionStore, id string, want model.TransactionStatus) {
	t.Helper()
	tx, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, want, tx.Status, "transaction %s", id)
}
