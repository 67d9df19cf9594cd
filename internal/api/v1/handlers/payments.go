package handlers

import (
	goerrors "errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmlat/STT-Telegram/internal/api/errors"
	"github.com/dmlat/STT-Telegram/internal/api/middleware"
	"github.com/dmlat/STT-Telegram/internal/api/v1/dto"
	"github.com/dmlat/STT-Telegram/internal/app/billing"
	"github.com/dmlat/STT-Telegram/internal/app/model"
	"github.com/dmlat/STT-Telegram/internal/app/repository"
	"github.com/dmlat/STT-Telegram/internal/metrics"
)

const paymentProvider = "yookassa"

// PaymentsHandler opens purchases and settles gateway callbacks.
type PaymentsHandler struct {
	pricing *billing.Pricing
	store   *billing.TransactionStore
	gateway billing.PaymentGateway
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewPaymentsHandler(
	pricing *billing.Pricing,
	store *billing.TransactionStore,
	gateway billing.PaymentGateway,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PaymentsHandler {
	return &PaymentsHandler{
		pricing: pricing,
		store:   store,
		gateway: gateway,
		metrics: m,
		logger:  logger,
	}
}

// Tariffs handles GET /api/v1/payments/tariffs.
func (h *PaymentsHandler) Tariffs(c *gin.Context) {
	tariffs := h.pricing.Tariffs()
	items := make([]dto.TariffItem, 0, len(tariffs))
	for _, t := range tariffs {
		items = append(items, dto.TariffItem{
			Minutes:      t.Minutes,
			AmountRub:    t.AmountRub,
			SecondsAdded: billing.SecondsFor(t.Minutes),
		})
	}
	c.JSON(http.StatusOK, gin.H{"tariffs": items})
}

// Create handles POST /api/v1/payments: price the minutes, open a
// pending transaction, then a gateway payment, and hand the
// confirmation URL back.
func (h *PaymentsHandler) Create(c *gin.Context) {
	if h.gateway == nil {
		middleware.HandleError(c, errors.NewServiceUnavailableError("payments are not configured"))
		return
	}

	var req dto.CreatePaymentRequest
	if err := middleware.ValidateRequest(c, &req); err != nil {
		middleware.HandleError(c, err)
		return
	}

	amountRub := h.pricing.AmountRub(req.Minutes)
	seconds := billing.SecondsFor(req.Minutes)

	txn, err := h.store.Create(c.Request.Context(), req.UserID, paymentProvider, amountRub, seconds, nil)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	payment, err := h.gateway.CreatePayment(c.Request.Context(), amountRub,
		fmt.Sprintf("Transcription time: %d min", req.Minutes),
		map[string]string{
			"transaction_id": txn.ID,
			"user_id":        strconv.FormatInt(req.UserID, 10),
		})
	if err != nil {
		// Without a gateway payment the transaction can never succeed,
		// so it is closed instead of left for the watcher.
		if _, cErr := h.store.Complete(c.Request.Context(), txn.ID, model.TransactionFailed); cErr != nil {
			h.logger.Error("close transaction after gateway failure",
				zap.String("transaction_id", txn.ID), zap.Error(cErr))
		}
		h.logger.Error("create gateway payment", zap.String("transaction_id", txn.ID), zap.Error(err))
		middleware.HandleError(c, errors.NewServiceUnavailableError("payment gateway is unavailable"))
		return
	}

	if err := h.store.AttachPaymentRef(c.Request.Context(), txn.ID, payment.ID); err != nil {
		// The webhook still settles it through the metadata, only the
		// poll fallback is lost.
		h.logger.Error("attach payment ref",
			zap.String("transaction_id", txn.ID),
			zap.String("payment_id", payment.ID),
			zap.Error(err))
	}

	c.JSON(http.StatusCreated, dto.PaymentResponse{
		TransactionID:   txn.ID,
		PaymentID:       payment.ID,
		ConfirmationURL: payment.RedirectURL,
		AmountRub:       amountRub,
		SecondsAdded:    seconds,
	})
}

// Webhook handles POST /api/v1/payments/webhook. Settlement is
// idempotent, so redelivery and the poll watcher racing this endpoint
// are both harmless.
func (h *PaymentsHandler) Webhook(c *gin.Context) {
	var note dto.WebhookNotification
	if err := c.ShouldBindJSON(&note); err != nil {
		middleware.HandleError(c, errors.NewBadRequestError("malformed notification"))
		return
	}

	var outcome model.TransactionStatus
	switch note.Event {
	case "payment.succeeded":
		outcome = model.TransactionSuccess
	case "payment.canceled":
		outcome = model.TransactionFailed
	default:
		// Unknown events are acknowledged so the gateway stops
		// redelivering them.
		c.JSON(http.StatusOK, gin.H{"processed": false})
		return
	}

	txID := note.Object.Metadata["transaction_id"]
	if txID == "" {
		h.logger.Warn("webhook without transaction metadata",
			zap.String("event", note.Event),
			zap.String("payment_id", note.Object.ID))
		c.JSON(http.StatusOK, gin.H{"processed": false})
		return
	}

	won, err := h.store.Complete(c.Request.Context(), txID, outcome)
	if err != nil {
		if goerrors.Is(err, repository.ErrNotFound) {
			h.logger.Warn("webhook for unknown transaction", zap.String("transaction_id", txID))
			c.JSON(http.StatusOK, gin.H{"processed": false})
			return
		}
		middleware.HandleError(c, err)
		return
	}
	if won {
		h.metrics.RecordPayment(string(outcome))
	}

	c.JSON(http.StatusOK, gin.H{"processed": won})
}
