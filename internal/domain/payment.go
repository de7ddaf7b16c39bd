package domain

import (
	"context"
	"net/http"
	"time"
)

// PaymentStatus is the local state of a registration fee payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Pricing tiers.
const (
	TierStudent  = "student"
	TierStandard = "standard"
)

// Payment is the registration fee of one user for one conference.
// swagger:model Payment
type Payment struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	ConferenceID      string        `json:"conference_id"`
	AmountCents       int64         `json:"amount_cents"`
	Currency          string        `json:"currency"`
	Tier              string        `json:"tier"`
	ProviderOrderID   *string       `json:"provider_order_id,omitempty"`
	ProviderCaptureID *string       `json:"provider_capture_id,omitempty"`
	Status            PaymentStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// PricingTiers computes registration fees. Amounts come from configuration.
type PricingTiers struct {
	Currency              string
	StudentCents          int64
	StandardCents         int64
	DiscountedOccupations []Occupation
}

// PriceFor returns the tier name and amount for an occupation.
func (p PricingTiers) PriceFor(o Occupation) (tier string, amountCents int64) {
	for _, d := range p.DiscountedOccupations {
		if d == o {
			return TierStudent, p.StudentCents
		}
	}
	return TierStandard, p.StandardCents
}

// PaymentRepository defines storage operations for payments.
type PaymentRepository interface {
	GetByUserAndConference(ctx context.Context, userID, conferenceID string) (*Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
	GetByCaptureID(ctx context.Context, captureID string) (*Payment, error)
	// Upsert creates the payment or resets an existing non-completed one to pending with new amounts.
	// Returns ErrAlreadyPaid when the existing payment is completed.
	Upsert(ctx context.Context, p *Payment) error
	// SetOrder records the provider order id. Returns ErrDuplicatePayment if the id is already used.
	SetOrder(ctx context.Context, id, orderID string) error
	// SetCapture records the provider capture id. Returns ErrDuplicatePayment if the id is already used.
	SetCapture(ctx context.Context, id, captureID string) error
	// MarkCompleted completes a payment; applied is false if it was already completed.
	MarkCompleted(ctx context.Context, id string) (applied bool, err error)
	// MarkFailed fails a payment unless it is completed.
	MarkFailed(ctx context.Context, id string) error
	// MarkCancelled cancels a pending payment.
	MarkCancelled(ctx context.Context, id string) error
}

// Provider order and capture states.
const (
	OrderStatusCompleted = "COMPLETED"
	OrderStatusApproved  = "APPROVED"
	OrderStatusPending   = "PENDING"
)

// OrderRequest is a provider order to create.
type OrderRequest struct {
	ReferenceID string
	Description string
	AmountCents int64
	Currency    string
	RequestID   string
}

// Order is a provider-side order.
type Order struct {
	ID         string
	Status     string
	ApproveURL string
	// CaptureID and CaptureStatus are set once the order has been captured.
	CaptureID     string
	CaptureStatus string
}

// WebhookEvent is a verified provider notification.
type WebhookEvent struct {
	ID           string
	EventType    string
	ResourceID   string
	RelatedOrder string
}

// Webhook event types handled by the orchestrator.
const (
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
)

// PaymentGateway is the payment provider port.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// CaptureOrder captures an approved order. Returns ErrOrderAlreadyCaptured if it was captured before.
	CaptureOrder(ctx context.Context, orderID string) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	// VerifyWebhook checks authenticity and parses the event. Returns ErrWebhookSignature if unverified.
	VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (*WebhookEvent, error)
}

// CheckoutResult is returned when a checkout starts.
type CheckoutResult struct {
	Payment    *Payment `json:"payment"`
	ApproveURL string   `json:"approve_url"`
}

// PaymentService orchestrates registration fee payments.
type PaymentService interface {
	Checkout(ctx context.Context, userID, slug string) (*CheckoutResult, error)
	CompleteReturn(ctx context.Context, userID, orderID string) (*Payment, error)
	Cancel(ctx context.Context, userID, orderID string) (*Payment, error)
	Status(ctx context.Context, userID, slug string) (*Payment, error)
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) error
}
