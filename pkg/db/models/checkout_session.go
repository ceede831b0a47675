package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/priyankdesai/storefront-backend/pkg/enums"
)

// CheckoutSession holds the stepper state for a user's in-progress checkout.
// One row per user; placement resets it back to the address step.
type CheckoutSession struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_checkout_sessions_user"`
	Step            enums.CheckoutStep     `gorm:"column:step;type:text;not null;default:'address'"`
	AddressID       *uuid.UUID             `gorm:"column:address_id;type:uuid"`
	PaymentMethod   *enums.PaymentMethod   `gorm:"column:payment_method;type:text"`
	PaymentProvider *enums.PaymentProvider `gorm:"column:payment_provider;type:text"`
	TempOrderID     *string                `gorm:"column:temp_order_id"`
	LastError       *string                `gorm:"column:last_error"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
