package payments

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priyankdesai/storefront-backend/pkg/cashfree"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
	pkgerrors "github.com/priyankdesai/storefront-backend/pkg/errors"
	"github.com/priyankdesai/storefront-backend/pkg/razorpay"
)

func newTestVerifier(t *testing.T, rzp RazorpayGateway, cf CashfreeGateway) Verifier {
	t.Helper()
	v, err := NewVerifier(rzp, cf, testLogger(), WithPolling(time.Millisecond, 3))
	require.NoError(t, err)
	return v
}

func TestVerifyRazorpayCaptured(t *testing.T) {
	rzp := &stubRazorpay{
		sigOK: true,
		payments: []razorpay.Payment{
			{ID: "pay_1", Status: razorpay.PaymentStatusCaptured},
		},
	}
	v := newTestVerifier(t, rzp, nil)

	result, err := v.Verify(context.Background(), enums.PaymentProviderRazorpay, VerifyInput{
		ProviderOrderRef: "order_r1",
		PaymentRef:       "pay_1",
		Signature:        "sig",
	})
	require.NoError(t, err)
	assert.True(t, result.Captured)
	assert.Equal(t, "pay_1", result.PaymentRef)
}

func TestVerifyRazorpayBadSignature(t *testing.T) {
	rzp := &stubRazorpay{sigOK: false}
	v := newTestVerifier(t, rzp, nil)

	_, err := v.Verify(context.Background(), enums.PaymentProviderRazorpay, VerifyInput{
		ProviderOrderRef: "order_r1",
		PaymentRef:       "pay_1",
		Signature:        "tampered",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeVerificationFailed, typed.Code())
	assert.Zero(t, rzp.fetchCalls, "a bad signature must never reach the gateway")
}

func TestVerifyRazorpayFailedPayment(t *testing.T) {
	rzp := &stubRazorpay{
		payments: []razorpay.Payment{
			{ID: "pay_1", Status: razorpay.PaymentStatusFailed, ErrorDescription: "card declined"},
		},
	}
	v := newTestVerifier(t, rzp, nil)

	_, err := v.Verify(context.Background(), enums.PaymentProviderRazorpay, VerifyInput{
		ProviderOrderRef: "order_r1",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeVerificationFailed, typed.Code())
	assert.Contains(t, typed.Message(), "card declined")
}

func TestVerifyRazorpayExhaustsPolling(t *testing.T) {
	rzp := &stubRazorpay{payments: nil}
	v := newTestVerifier(t, rzp, nil)

	_, err := v.Verify(context.Background(), enums.PaymentProviderRazorpay, VerifyInput{
		ProviderOrderRef: "order_r1",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeVerificationFailed, typed.Code())
	assert.Equal(t, 4, rzp.fetchCalls, "initial attempt plus three retries")
}

func TestVerifySingleCheckDoesNotPoll(t *testing.T) {
	rzp := &stubRazorpay{payments: nil}
	v, err := NewVerifier(rzp, nil, testLogger(), WithSingleCheck())
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), enums.PaymentProviderRazorpay, VerifyInput{
		ProviderOrderRef: "order_r1",
	})
	require.ErrorIs(t, err, ErrPaymentPending)
	assert.Equal(t, 1, rzp.fetchCalls, "a single check must hit the gateway exactly once")
}

func TestVerifyCashfreePaidAfterPolling(t *testing.T) {
	cf := &stubCashfree{states: []*cashfree.OrderState{
		{OrderID: "TMP-42", Status: cashfree.OrderStatusActive},
		{OrderID: "TMP-42", Status: cashfree.OrderStatusPaid, Amount: decimal.NewFromInt(650)},
	}}
	v := newTestVerifier(t, nil, cf)

	result, err := v.Verify(context.Background(), enums.PaymentProviderCashfree, VerifyInput{
		ProviderOrderRef: "TMP-42",
		Amount:           decimal.NewFromInt(650),
	})
	require.NoError(t, err)
	assert.True(t, result.Captured)
	assert.Equal(t, 2, cf.getCalls)
}

func TestVerifyCashfreeAmountMismatch(t *testing.T) {
	cf := &stubCashfree{states: []*cashfree.OrderState{
		{OrderID: "TMP-42", Status: cashfree.OrderStatusPaid, Amount: decimal.NewFromInt(600)},
	}}
	v := newTestVerifier(t, nil, cf)

	_, err := v.Verify(context.Background(), enums.PaymentProviderCashfree, VerifyInput{
		ProviderOrderRef: "TMP-42",
		Amount:           decimal.NewFromInt(650),
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeVerificationFailed, typed.Code())
}

func TestVerifyCashfreeTerminalStates(t *testing.T) {
	for _, status := range []string{cashfree.OrderStatusExpired, cashfree.OrderStatusTerminated} {
		cf := &stubCashfree{states: []*cashfree.OrderState{{OrderID: "TMP-42", Status: status}}}
		v := newTestVerifier(t, nil, cf)

		_, err := v.Verify(context.Background(), enums.PaymentProviderCashfree, VerifyInput{
			ProviderOrderRef: "TMP-42",
		})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, "status %s", status)
		assert.Equal(t, pkgerrors.CodeVerificationFailed, typed.Code())
		assert.Equal(t, 1, cf.getCalls, "terminal states must not be re-polled")
	}
}

func TestVerifyStopsOnContextCancel(t *testing.T) {
	cf := &stubCashfree{states: []*cashfree.OrderState{
		{OrderID: "TMP-42", Status: cashfree.OrderStatusActive},
	}}
	v, err := NewVerifier(nil, cf, testLogger(), WithPolling(50*time.Millisecond, 100))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = v.Verify(ctx, enums.PaymentProviderCashfree, VerifyInput{ProviderOrderRef: "TMP-42"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyRequiresOrderRef(t *testing.T) {
	v := newTestVerifier(t, &stubRazorpay{}, nil)
	_, err := v.Verify(context.Background(), enums.PaymentProviderRazorpay, VerifyInput{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
