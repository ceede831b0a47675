package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/priyankdesai/storefront-backend/pkg/cashfree"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
	pkgerrors "github.com/priyankdesai/storefront-backend/pkg/errors"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
	"github.com/priyankdesai/storefront-backend/pkg/razorpay"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultPollRetries  = 10
)

// ErrPaymentPending reports that the provider still shows the payment in
// flight. Single-attempt callers match on it to revisit the payment later.
var ErrPaymentPending = errors.New("payment not yet settled")

type verifier struct {
	razorpay     RazorpayGateway
	cashfree     CashfreeGateway
	logger       *logger.Logger
	pollInterval time.Duration
	pollRetries  uint64
}

// VerifierOption tunes polling behavior.
type VerifierOption func(*verifier)

// WithPolling overrides the poll cadence, mainly for tests.
func WithPolling(interval time.Duration, retries uint64) VerifierOption {
	return func(v *verifier) {
		if interval > 0 {
			v.pollInterval = interval
		}
		v.pollRetries = retries
	}
}

// WithSingleCheck disables polling so each Verify makes exactly one provider
// call. A payment still in flight surfaces as ErrPaymentPending instead of
// being waited on.
func WithSingleCheck() VerifierOption {
	return func(v *verifier) {
		v.pollRetries = 0
	}
}

// NewVerifier builds a payment verifier over the configured gateways.
func NewVerifier(rzp RazorpayGateway, cf CashfreeGateway, logg *logger.Logger, opts ...VerifierOption) (Verifier, error) {
	if logg == nil {
		return nil, fmt.Errorf("payments logger required")
	}
	v := &verifier{
		razorpay:     rzp,
		cashfree:     cf,
		logger:       logg,
		pollInterval: defaultPollInterval,
		pollRetries:  defaultPollRetries,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify confirms a capture with the provider. The provider's answer is the
// only source of truth; a client callback alone never marks a payment paid.
func (v *verifier) Verify(ctx context.Context, provider enums.PaymentProvider, input VerifyInput) (*VerificationResult, error) {
	if strings.TrimSpace(input.ProviderOrderRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider order ref is required")
	}

	ctx = v.logger.WithProvider(ctx, provider.String())
	switch provider {
	case enums.PaymentProviderRazorpay:
		return v.verifyRazorpay(ctx, input)
	case enums.PaymentProviderCashfree:
		return v.verifyCashfree(ctx, input)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unsupported payment provider %q", provider))
	}
}

func (v *verifier) verifyRazorpay(ctx context.Context, input VerifyInput) (*VerificationResult, error) {
	if v.razorpay == nil {
		return nil, pkgerrors.New(pkgerrors.CodeProviderInit, "razorpay is not configured")
	}

	// Callback path: reject a bad signature before touching the API.
	if input.Signature != "" {
		if !v.razorpay.VerifyPaymentSignature(input.ProviderOrderRef, input.PaymentRef, input.Signature) {
			return nil, pkgerrors.New(pkgerrors.CodeVerificationFailed, "payment signature mismatch")
		}
	}

	var result *VerificationResult
	err := v.poll(ctx, func(ctx context.Context) error {
		payments, err := v.razorpay.FetchOrderPayments(ctx, input.ProviderOrderRef)
		if err != nil {
			return retry.RetryableError(err)
		}
		settled, pending := settleRazorpay(payments, input.PaymentRef)
		if settled != nil {
			result = settled
			return nil
		}
		if pending {
			return retry.RetryableError(ErrPaymentPending)
		}
		return pkgerrors.New(pkgerrors.CodeVerificationFailed, "payment was not captured")
	})
	if err != nil {
		return nil, v.pollFailure(ctx, err)
	}
	if !result.Captured {
		return result, pkgerrors.New(pkgerrors.CodeVerificationFailed, result.Reason)
	}
	return result, nil
}

// settleRazorpay inspects the attempts against an order. Returns a terminal
// result, or pending=true when the order has no settled attempt yet.
func settleRazorpay(payments []razorpay.Payment, wantPaymentRef string) (*VerificationResult, bool) {
	pending := len(payments) == 0
	var failed *razorpay.Payment
	for i := range payments {
		p := payments[i]
		if wantPaymentRef != "" && p.ID != wantPaymentRef {
			continue
		}
		switch p.Status {
		case razorpay.PaymentStatusCaptured:
			return &VerificationResult{Captured: true, PaymentRef: p.ID}, false
		case razorpay.PaymentStatusFailed:
			failed = &p
		default:
			pending = true
		}
	}
	if pending {
		return nil, true
	}
	if failed != nil {
		reason := failed.ErrorDescription
		if reason == "" {
			reason = "payment failed at the gateway"
		}
		return &VerificationResult{Captured: false, PaymentRef: failed.ID, Reason: reason}, false
	}
	return nil, true
}

func (v *verifier) verifyCashfree(ctx context.Context, input VerifyInput) (*VerificationResult, error) {
	if v.cashfree == nil {
		return nil, pkgerrors.New(pkgerrors.CodeProviderInit, "cashfree is not configured")
	}

	var result *VerificationResult
	err := v.poll(ctx, func(ctx context.Context) error {
		state, err := v.cashfree.GetOrder(ctx, input.ProviderOrderRef)
		if err != nil {
			return retry.RetryableError(err)
		}
		switch state.Status {
		case cashfree.OrderStatusPaid:
			if !input.Amount.IsZero() && !state.Amount.Equal(input.Amount) {
				return pkgerrors.New(pkgerrors.CodeVerificationFailed, "paid amount does not match the quote")
			}
			result = &VerificationResult{Captured: true, PaymentRef: state.OrderID}
			return nil
		case cashfree.OrderStatusExpired, cashfree.OrderStatusTerminated:
			return pkgerrors.New(pkgerrors.CodeVerificationFailed,
				fmt.Sprintf("payment %s at the gateway", strings.ToLower(state.Status)))
		default:
			return retry.RetryableError(ErrPaymentPending)
		}
	})
	if err != nil {
		return nil, v.pollFailure(ctx, err)
	}
	return result, nil
}

func (v *verifier) poll(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(v.pollRetries, retry.NewConstant(v.pollInterval))
	return retry.Do(ctx, backoff, fn)
}

// pollFailure normalizes poll exits: a cancelled context propagates as-is so
// callers can distinguish user abandonment, exhaustion becomes a verification
// failure, and typed errors pass through.
func (v *verifier) pollFailure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	if !errors.Is(err, ErrPaymentPending) {
		v.logger.Error(ctx, "payment verification exhausted", err)
	}
	return pkgerrors.Wrap(pkgerrors.CodeVerificationFailed, err, "payment could not be confirmed in time")
}
