package orders

import (
	"github.com/shopspring/decimal"

	"github.com/priyankdesai/storefront-backend/pkg/db/models"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
)

// RefundDisplay is the buyer-facing refund state of an item, derived from
// the stored fields rather than persisted separately.
func RefundDisplay(item models.OrderItem) string {
	if item.RefundStatus == nil {
		return ""
	}
	switch *item.RefundStatus {
	case enums.RefundStatusPending:
		return "refund requested"
	case enums.RefundStatusRefunded:
		return "refunded"
	case enums.RefundStatusRejected:
		return "refund rejected"
	default:
		return ""
	}
}

func decimalFromInt(v int) decimal.Decimal {
	return decimal.NewFromInt(int64(v))
}
