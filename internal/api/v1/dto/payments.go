package dto

import "fmt"

// maxPurchaseMinutes caps a single purchase at the largest package size.
const maxPurchaseMinutes = 600

// CreatePaymentRequest opens a purchase of transcription minutes.
type CreatePaymentRequest struct {
	UserID  int64 `json:"user_id" binding:"required,min=1"`
	Minutes int   `json:"minutes" binding:"required,min=1"`
}

// Validate applies the purchase rules tag validation cannot express.
func (r *CreatePaymentRequest) Validate() error {
	if r.Minutes > maxPurchaseMinutes {
		return fmt.Errorf("minutes must not exceed %d per purchase", maxPurchaseMinutes)
	}
	return nil
}

// PaymentResponse points the client at the gateway's confirmation page.
type PaymentResponse struct {
	TransactionID   string  `json:"transaction_id"`
	PaymentID       string  `json:"payment_id"`
	ConfirmationURL string  `json:"confirmation_url"`
	AmountRub       int64   `json:"amount_rub"`
	SecondsAdded    float64 `json:"seconds_added"`
}

// WebhookNotification is the gateway's payment callback. Only the
// fields the handler acts on are bound.
type WebhookNotification struct {
	Event  string        `json:"event" binding:"required"`
	Object WebhookObject `json:"object"`
}

// WebhookObject carries the gateway payment and the metadata we
// attached when opening it.
type WebhookObject struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// TariffItem is one purchasable package.
type TariffItem struct {
	Minutes      int     `json:"minutes"`
	AmountRub    int64   `json:"amount_rub"`
	SecondsAdded float64 `json:"seconds_added"`
}
