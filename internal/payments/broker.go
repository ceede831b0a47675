package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/priyankdesai/storefront-backend/pkg/cashfree"
	"github.com/priyankdesai/storefront-backend/pkg/currency"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
	pkgerrors "github.com/priyankdesai/storefront-backend/pkg/errors"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
	"github.com/priyankdesai/storefront-backend/pkg/razorpay"
)

type broker struct {
	razorpay RazorpayGateway
	cashfree CashfreeGateway
	logger   *logger.Logger
}

// NewBroker builds a session broker over the configured gateways. Either
// gateway may be nil when its provider is disabled; opening a session on a
// nil gateway fails with a provider init error.
func NewBroker(rzp RazorpayGateway, cf CashfreeGateway, logg *logger.Logger) (Broker, error) {
	if logg == nil {
		return nil, fmt.Errorf("payments logger required")
	}
	return &broker{razorpay: rzp, cashfree: cf, logger: logg}, nil
}

func (b *broker) Open(ctx context.Context, provider enums.PaymentProvider, input SessionInput) (*Session, error) {
	if strings.TrimSpace(input.TempOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "temp order id is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session amount must be positive")
	}

	ctx = b.logger.WithProvider(ctx, provider.String())
	switch provider {
	case enums.PaymentProviderRazorpay:
		return b.openRazorpay(ctx, input)
	case enums.PaymentProviderCashfree:
		return b.openCashfree(ctx, input)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unsupported payment provider %q", provider))
	}
}

func (b *broker) openRazorpay(ctx context.Context, input SessionInput) (*Session, error) {
	if b.razorpay == nil {
		return nil, pkgerrors.New(pkgerrors.CodeProviderInit, "razorpay is not configured")
	}
	paise, err := currency.ToPaise(input.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "session amount not chargeable")
	}

	order, err := b.razorpay.CreateOrder(ctx, razorpay.OrderCreateParams{
		AmountPaise: paise,
		Currency:    "INR",
		Receipt:     input.TempOrderID,
		Notes:       map[string]string{"temp_order_id": input.TempOrderID},
	})
	if err != nil {
		b.logger.Error(ctx, "open razorpay session", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeProviderInit, err, "could not start razorpay payment")
	}

	return &Session{
		Provider:         enums.PaymentProviderRazorpay,
		ProviderOrderRef: order.ID,
		AmountPaise:      paise,
		Currency:         "INR",
		ClientKey:        b.razorpay.ClientKey(),
	}, nil
}

func (b *broker) openCashfree(ctx context.Context, input SessionInput) (*Session, error) {
	if b.cashfree == nil {
		return nil, pkgerrors.New(pkgerrors.CodeProviderInit, "cashfree is not configured")
	}
	paise, err := currency.ToPaise(input.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "session amount not chargeable")
	}

	session, err := b.cashfree.CreateSession(ctx, cashfree.SessionCreateParams{
		OrderID:       input.TempOrderID,
		Amount:        input.Amount,
		Currency:      "INR",
		CustomerID:    input.CustomerID,
		CustomerPhone: input.CustomerPhone,
	})
	if err != nil {
		b.logger.Error(ctx, "open cashfree session", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeProviderInit, err, "could not start cashfree payment")
	}

	return &Session{
		Provider:         enums.PaymentProviderCashfree,
		ProviderOrderRef: session.OrderID,
		AmountPaise:      paise,
		Currency:         "INR",
		PaymentSessionID: session.PaymentSessionID,
		HostedPageURL:    session.HostedPageURL,
	}, nil
}
