package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const defaultYooKassaBaseURL = "https://api.yookassa.ru/v3"

// YooKassa implements PaymentGateway against the YooKassa REST API.
// Every create call carries a fresh Idempotence-Key, so a retried HTTP
// request cannot open two payments.
type YooKassa struct {
	baseURL   string
	shopID    string
	secretKey string
	returnURL string
	client    *http.Client
}

var _ PaymentGateway = (*YooKassa)(nil)

func NewYooKassa(shopID, secretKey, returnURL string) *YooKassa {
	return &YooKassa{
		baseURL:   defaultYooKassaBaseURL,
		shopID:    shopID,
		secretKey: secretKey,
		returnURL: returnURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type yooAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yooConfirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type yooCreateRequest struct {
	Amount       yooAmount         `json:"amount"`
	Confirmation yooConfirmation   `json:"confirmation"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type yooPayment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Confirmation *yooConfirmation  `json:"confirmation,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (y *YooKassa) CreatePayment(ctx context.Context, amountRub int64, description string, metadata map[string]string) (*Payment, error) {
	body, err := json.Marshal(yooCreateRequest{
		Amount:       yooAmount{Value: fmt.Sprintf("%d.00", amountRub), Currency: "RUB"},
		Confirmation: yooConfirmation{Type: "redirect", ReturnURL: y.returnURL},
		Capture:      true,
		Description:  description,
		Metadata:     metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())
	req.SetBasicAuth(y.shopID, y.secretKey)

	var p yooPayment
	if err := y.do(req, &p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	if p.ID == "" || p.Confirmation == nil || p.Confirmation.ConfirmationURL == "" {
		return nil, fmt.Errorf("create payment: response missing id or confirmation url")
	}

	return &Payment{ID: p.ID, RedirectURL: p.Confirmation.ConfirmationURL}, nil
}

func (y *YooKassa) QueryStatus(ctx context.Context, paymentID string) (PaymentStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return "", fmt.Errorf("build status request: %w", err)
	}
	req.SetBasicAuth(y.shopID, y.secretKey)

	var p yooPayment
	if err := y.do(req, &p); err != nil {
		return "", fmt.Errorf("query payment %s: %w", paymentID, err)
	}
	return mapYooStatus(p.Status)
}

func (y *YooKassa) do(req *http.Request, out *yooPayment) error {
	resp, err := y.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// mapYooStatus collapses YooKassa's payment states onto the three the
// transaction lifecycle understands. waiting_for_capture counts as
// pending because capture:true settles it without our involvement.
func mapYooStatus(status string) (PaymentStatus, error) {
	switch status {
	case "succeeded":
		return PaymentSucceeded, nil
	case "canceled":
		return PaymentCanceled, nil
	case "pending", "waiting_for_capture":
		return PaymentPending, nil
	default:
		return "", fmt.Errorf("unexpected payment status %q", status)
	}
}
