package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/priyankdesai/storefront-backend/pkg/enums"
)

// Order is a placed order. TotalAmount is frozen at creation:
// sum(item.Amount * item.Quantity at creation) + ShippingCharges.
// It is never recomputed, including after partial cancellations.
type Order struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"orderId"`
	UserID          uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index:idx_orders_user" json:"userId"`
	PaymentMethod   enums.PaymentMethod    `gorm:"column:payment_method;type:text;not null" json:"paymentMethod"`
	PaymentProvider *enums.PaymentProvider `gorm:"column:payment_provider;type:text" json:"paymentProvider,omitempty"`
	TransactionID   *string                `gorm:"column:transaction_id;uniqueIndex:idx_orders_transaction" json:"transactionId,omitempty"`
	ShippingInfo    ShippingInfo           `gorm:"embedded" json:"shippingInfo"`
	ShippingCharges decimal.Decimal        `gorm:"column:shipping_charges;type:numeric(12,2);not null" json:"shippingCharges"`
	TotalAmount     decimal.Decimal        `gorm:"column:total_amount;type:numeric(12,2);not null" json:"totalAmount"`
	Status          enums.OrderStatus      `gorm:"column:status;type:text;not null;default:'placed'" json:"status"`
	OrderedAt       time.Time              `gorm:"column:ordered_at;not null" json:"orderedAt"`
	Items           []OrderItem            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}
