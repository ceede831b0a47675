package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/priyankdesai/storefront-backend/pkg/enums"
)

// PaymentIntent is the ephemeral placeholder between "place order" and
// successful order creation. It is never a business order; the reconciler
// sweeps rows that were captured but not consumed, or abandoned outright.
type PaymentIntent struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TempOrderID        string                `gorm:"column:temp_order_id;not null;uniqueIndex:idx_payment_intents_temp_order"`
	UserID             uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index:idx_payment_intents_user"`
	Provider           enums.PaymentProvider `gorm:"column:provider;type:text;not null"`
	Amount             decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	AmountPaise        int64                 `gorm:"column:amount_paise;not null"`
	ShippingCharges    decimal.Decimal       `gorm:"column:shipping_charges;type:numeric(12,2);not null"`
	AddressID          uuid.UUID             `gorm:"column:address_id;type:uuid;not null"`
	Status             enums.IntentStatus    `gorm:"column:status;type:text;not null;default:'pending'"`
	ProviderOrderRef   *string               `gorm:"column:provider_order_ref"`
	ProviderPaymentRef *string               `gorm:"column:provider_payment_ref"`
	FailureReason      *string               `gorm:"column:failure_reason"`
	ReconcileAttempts  int                   `gorm:"column:reconcile_attempts;not null;default:0"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
