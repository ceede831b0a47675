package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPaise(t *testing.T) {
	paise, err := ToPaise(decimal.RequireFromString("650"))
	require.NoError(t, err)
	assert.Equal(t, int64(65000), paise)

	paise, err = ToPaise(decimal.RequireFromString("649.50"))
	require.NoError(t, err)
	assert.Equal(t, int64(64950), paise)

	paise, err = ToPaise(decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, int64(0), paise)
}

func TestToPaiseRejectsSubPaisePrecision(t *testing.T) {
	_, err := ToPaise(decimal.RequireFromString("10.005"))
	require.Error(t, err)
}

func TestToPaiseRejectsNegative(t *testing.T) {
	_, err := ToPaise(decimal.RequireFromString("-1"))
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	for _, raw := range []string{"0", "0.01", "50", "599", "649.99", "100000.25"} {
		amount := decimal.RequireFromString(raw)
		paise, err := ToPaise(amount)
		require.NoError(t, err)
		assert.True(t, FromPaise(paise).Equal(amount), "round trip failed for %s", raw)
	}
}
