package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/priyankdesai/storefront-backend/pkg/enums"
)

// RefundRequest is filed by the buyer against a cancelled, online-paid
// order item. Resolution arrives from the payment provider, not from us.
type RefundRequest struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null" json:"orderId"`
	OrderItemID       uuid.UUID          `gorm:"column:order_item_id;type:uuid;not null;uniqueIndex:idx_refund_requests_item" json:"orderItemId"`
	UserID            uuid.UUID          `gorm:"column:user_id;type:uuid;not null" json:"userId"`
	Amount            decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Reason            string             `gorm:"column:reason;not null" json:"reason"`
	Status            enums.RefundStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	ProviderRefundRef *string            `gorm:"column:provider_refund_ref" json:"providerRefundRef,omitempty"`
	ResolvedAt        *time.Time         `gorm:"column:resolved_at" json:"resolvedAt,omitempty"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}
