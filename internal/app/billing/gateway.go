package billing

import "context"

// PaymentStatus is the gateway-side view of a payment, reduced to the
// three states the transaction lifecycle cares about.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentCanceled  PaymentStatus = "canceled"
)

// Payment is what the gateway hands back on creation: its own id for the
// payment and the URL the user is sent to for confirmation.
type Payment struct {
	ID          string
	RedirectURL string
}

// PaymentGateway abstracts the payment provider. Metadata travels with
// the payment and comes back in status notifications, which is how a
// webhook finds the internal transaction again.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, amountRub int64, description string, metadata map[string]string) (*Payment, error)
	QueryStatus(ctx context.Context, paymentID string) (PaymentStatus, error)
}
