package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/priyankdesai/storefront-backend/pkg/enums"
)

// OrderItem is one order line. Quantity is the remaining (non-cancelled)
// count; partial cancellations decrement it and accumulate CancelledQuantity.
type OrderItem struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"itemId"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index:idx_order_items_order" json:"orderId"`
	ProductID         uuid.UUID           `gorm:"column:product_id;type:uuid;not null" json:"productId"`
	ColorID           uuid.UUID           `gorm:"column:color_id;type:uuid;not null" json:"colorId"`
	Size              string              `gorm:"column:size;not null" json:"size"`
	ProductName       string              `gorm:"column:product_name;not null" json:"productName"`
	ImageURL          string              `gorm:"column:image_url" json:"imageUrl"`
	ColorName         string              `gorm:"column:color_name" json:"colorName"`
	Quantity          int                 `gorm:"column:quantity;not null" json:"quantity"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Status            enums.OrderItemStatus `gorm:"column:status;type:text;not null;default:'ordered'" json:"orderStatus"`
	CancelledQuantity int                 `gorm:"column:cancelled_quantity;not null;default:0" json:"cancelledQuantity"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at" json:"cancelledAt,omitempty"`
	RefundRequestedAt *time.Time          `gorm:"column:refund_requested_at" json:"refundRequestedAt,omitempty"`
	RefundStatus      *enums.RefundStatus `gorm:"column:refund_status;type:text" json:"refundStatus,omitempty"`
	RefundAmount      *decimal.Decimal    `gorm:"column:refund_amount;type:numeric(12,2)" json:"refundAmount,omitempty"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}
