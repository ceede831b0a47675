package payments

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/priyankdesai/storefront-backend/pkg/cashfree"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
	"github.com/priyankdesai/storefront-backend/pkg/razorpay"
)

// RazorpayGateway is the slice of the Razorpay client the payments layer uses.
type RazorpayGateway interface {
	ClientKey() string
	CreateOrder(ctx context.Context, params razorpay.OrderCreateParams) (*razorpay.Order, error)
	FetchOrderPayments(ctx context.Context, orderID string) ([]razorpay.Payment, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
}

// CashfreeGateway is the slice of the Cashfree client the payments layer uses.
type CashfreeGateway interface {
	CreateSession(ctx context.Context, params cashfree.SessionCreateParams) (*cashfree.Session, error)
	GetOrder(ctx context.Context, orderID string) (*cashfree.OrderState, error)
}

// Session carries everything the client needs to collect an online payment.
// Razorpay sessions expose the order ref and publishable key; Cashfree
// sessions expose the session token plus a hosted page fallback.
type Session struct {
	Provider         enums.PaymentProvider `json:"provider"`
	ProviderOrderRef string                `json:"providerOrderRef"`
	AmountPaise      int64                 `json:"amountPaise"`
	Currency         string                `json:"currency"`
	ClientKey        string                `json:"clientKey,omitempty"`
	PaymentSessionID string                `json:"paymentSessionId,omitempty"`
	HostedPageURL    string                `json:"hostedPageUrl,omitempty"`
}

// SessionInput describes the pending charge a session is opened for.
type SessionInput struct {
	TempOrderID   string
	CustomerID    string
	CustomerPhone string
	Amount        decimal.Decimal
}

// Broker opens provider payment sessions for online checkouts.
type Broker interface {
	Open(ctx context.Context, provider enums.PaymentProvider, input SessionInput) (*Session, error)
}

// VerifyInput identifies the payment attempt being confirmed. PaymentRef and
// Signature are only present on the Razorpay callback path.
type VerifyInput struct {
	TempOrderID      string
	ProviderOrderRef string
	PaymentRef       string
	Signature        string
	Amount           decimal.Decimal
}

// VerificationResult is the provider's confirmed view of a payment.
type VerificationResult struct {
	Captured   bool
	PaymentRef string
	Reason     string
}

// Verifier confirms with the provider that a payment was actually captured.
type Verifier interface {
	Verify(ctx context.Context, provider enums.PaymentProvider, input VerifyInput) (*VerificationResult, error)
}
