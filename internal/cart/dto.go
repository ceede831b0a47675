package cart

import (
	"github.com/shopspring/decimal"

	"github.com/priyankdesai/storefront-backend/pkg/db/models"
)

// CartView is the aggregated cart returned to callers: the lines plus the
// derived subtotal and item count. Totals are recomputed on every read so a
// stale client copy never drives a charge.
type CartView struct {
	Items     []models.CartItem `json:"items"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
	ItemCount int               `json:"itemCount"`
}

// IsEmpty reports whether the cart has no purchasable lines.
func (v *CartView) IsEmpty() bool {
	return v == nil || len(v.Items) == 0
}

func buildView(items []models.CartItem) *CartView {
	view := &CartView{Items: items, Subtotal: decimal.Zero}
	if view.Items == nil {
		view.Items = []models.CartItem{}
	}
	for _, item := range items {
		view.Subtotal = view.Subtotal.Add(item.LineTotal())
		view.ItemCount += item.Quantity
	}
	return view
}
