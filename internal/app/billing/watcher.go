package billing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dmlat/STT-Telegram/internal/app/model"
)

// Watcher polls the gateway for every pending transaction and completes
// the ones the gateway settled. It is the fallback for lost webhooks;
// both paths go through TransactionStore.Complete, so double delivery is
// harmless.
type Watcher struct {
	store    *TransactionStore
	gateway  PaymentGateway
	interval time.Duration
	logger   *zap.Logger
}

func NewWatcher(store *TransactionStore, gateway PaymentGateway, interval time.Duration, logger *zap.Logger) *Watcher {
	return &Watcher{
		store:    store,
		gateway:  gateway,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until the context is canceled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("payment watcher started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("payment watcher stopped")
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *Watcher) pollOnce(ctx context.Context) {
	pending, err := w.store.ListPending(ctx, time.Now().UTC())
	if err != nil {
		w.logger.Error("list pending transactions", zap.Error(err))
		return
	}

	for _, t := range pending {
		if t.PaymentRef == nil {
			// No gateway payment was opened yet, nothing to poll.
			continue
		}
		status, err := w.gateway.QueryStatus(ctx, *t.PaymentRef)
		if err != nil {
			w.logger.Warn("query payment status",
				zap.String("transaction_id", t.ID),
				zap.String("payment_id", *t.PaymentRef),
				zap.Error(err))
			continue
		}

		switch status {
		case PaymentSucceeded:
			if _, err := w.store.Complete(ctx, t.ID, model.TransactionSuccess); err != nil {
				w.logger.Error("complete transaction", zap.String("transaction_id", t.ID), zap.Error(err))
			}
		case PaymentCanceled:
			if _, err := w.store.Complete(ctx, t.ID, model.TransactionFailed); err != nil {
				w.logger.Error("fail transaction", zap.String("transaction_id", t.ID), zap.Error(err))
			}
		}
	}
}
