package shipping

import (
	"github.com/shopspring/decimal"

	"github.com/priyankdesai/storefront-backend/pkg/config"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
)

// Calculator derives the delivery charge for a checkout quote.
type Calculator interface {
	Fee(method enums.PaymentMethod, subtotal decimal.Decimal) decimal.Decimal
}

type calculator struct {
	codFee          decimal.Decimal
	onlineFee       decimal.Decimal
	freeOnlineAbove decimal.Decimal
}

// NewCalculator builds a calculator from the configured rate card.
func NewCalculator(cfg config.ShippingConfig) Calculator {
	return &calculator{
		codFee:          cfg.CODFeeAmount(),
		onlineFee:       cfg.OnlineFeeAmount(),
		freeOnlineAbove: cfg.FreeOnlineThreshold(),
	}
}

// Fee applies the rate card. COD always carries the flat charge. Online
// orders ship free once the subtotal reaches the threshold. A method the
// rate card does not know yields zero so a quote never blocks on it.
func (c *calculator) Fee(method enums.PaymentMethod, subtotal decimal.Decimal) decimal.Decimal {
	switch method {
	case enums.PaymentMethodCOD:
		return c.codFee
	case enums.PaymentMethodOnline:
		if subtotal.GreaterThanOrEqual(c.freeOnlineAbove) {
			return decimal.Zero
		}
		return c.onlineFee
	default:
		return decimal.Zero
	}
}
