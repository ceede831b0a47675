package models

import (
	"time"

	"github.com/google/uuid"
)

// Address is a saved shipping address owned by a user account.
// Orders copy the fields at creation time; they never reference the row.
type Address struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_addresses_user" json:"userId"`
	Phone      string    `gorm:"column:phone;not null" json:"phone"`
	Line1      string    `gorm:"column:line1;not null" json:"line1"`
	City       string    `gorm:"column:city;not null" json:"city"`
	State      string    `gorm:"column:state;not null" json:"state"`
	PostalCode string    `gorm:"column:postal_code;not null" json:"postalCode"`
	Country    string    `gorm:"column:country;not null;default:'IN'" json:"country"`
	IsDefault  bool      `gorm:"column:is_default;not null;default:false" json:"isDefault"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// ShippingInfo is the address snapshot embedded into an order so later
// address edits never mutate historical orders.
type ShippingInfo struct {
	Phone      string `gorm:"column:ship_phone;not null" json:"phone"`
	Line1      string `gorm:"column:ship_line1;not null" json:"line1"`
	City       string `gorm:"column:ship_city;not null" json:"city"`
	State      string `gorm:"column:ship_state;not null" json:"state"`
	PostalCode string `gorm:"column:ship_postal_code;not null" json:"postalCode"`
	Country    string `gorm:"column:ship_country;not null" json:"country"`
}

// Snapshot copies the address into an order-embeddable value.
func (a Address) Snapshot() ShippingInfo {
	return ShippingInfo{
		Phone:      a.Phone,
		Line1:      a.Line1,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}
