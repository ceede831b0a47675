package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is one line of the user's active cart. Display fields are
// denormalized at add time so the cart renders without product lookups.
type CartItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index:idx_cart_items_user" json:"userId"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null" json:"productId"`
	ColorID     uuid.UUID       `gorm:"column:color_id;type:uuid;not null" json:"colorId"`
	Size        string          `gorm:"column:size;not null" json:"size"`
	Quantity    int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unitPrice"`
	ProductName string          `gorm:"column:product_name;not null" json:"productName"`
	ImageURL    string          `gorm:"column:image_url" json:"imageUrl"`
	ColorName   string          `gorm:"column:color_name" json:"colorName"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// LineTotal is the unit price times the remaining quantity.
func (c CartItem) LineTotal() decimal.Decimal {
	return c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity)))
}
