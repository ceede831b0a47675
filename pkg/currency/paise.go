// Package currency owns the unit boundary between the domain model,
// which carries decimal rupee amounts, and the payment providers,
// which accept integer paise only.
package currency

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/priyankdesai/storefront-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// ToPaise converts a rupee amount to integer paise. Amounts with sub-paise
// precision are rejected rather than rounded, so a charge can never drift
// from the frozen order total.
func ToPaise(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	paise := amount.Mul(hundred)
	if !paise.Equal(paise.Truncate(0)) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount has sub-paise precision")
	}
	return paise.IntPart(), nil
}

// FromPaise converts integer paise back to a rupee amount.
func FromPaise(paise int64) decimal.Decimal {
	return decimal.NewFromInt(paise).Div(hundred)
}
