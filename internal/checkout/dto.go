package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/priyankdesai/storefront-backend/internal/payments"
	"github.com/priyankdesai/storefront-backend/pkg/db/models"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
)

// Quote is the priced view of the checkout at its current selections.
// Totals are derived from the live cart on every read; they are only frozen
// into a payment intent at placement.
type Quote struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	ShippingCharges decimal.Decimal `json:"shippingCharges"`
	Total           decimal.Decimal `json:"total"`
	ItemCount       int             `json:"itemCount"`
}

// View is the stepper state returned to the client.
type View struct {
	Step            enums.CheckoutStep     `json:"step"`
	AddressID       *uuid.UUID             `json:"addressId,omitempty"`
	PaymentMethod   *enums.PaymentMethod   `json:"paymentMethod,omitempty"`
	PaymentProvider *enums.PaymentProvider `json:"paymentProvider,omitempty"`
	TempOrderID     *string                `json:"tempOrderId,omitempty"`
	LastError       *string                `json:"lastError,omitempty"`
	Quote           *Quote                 `json:"quote,omitempty"`
	Methods         payments.MethodsView   `json:"methods"`
}

// PlacementResult is what Place hands back: a finished order on the COD
// path, or the provider session the client must pay through.
type PlacementResult struct {
	TempOrderID string            `json:"tempOrderId,omitempty"`
	Order       *models.Order     `json:"order,omitempty"`
	Payment     *payments.Session `json:"payment,omitempty"`
}

// ConfirmInput carries the client callback after an online payment attempt.
type ConfirmInput struct {
	TempOrderID string
	PaymentRef  string
	Signature   string
}
