package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/priyankdesai/storefront-backend/internal/cart"
	"github.com/priyankdesai/storefront-backend/internal/orders"
	"github.com/priyankdesai/storefront-backend/internal/payments"
	"github.com/priyankdesai/storefront-backend/pkg/config"
	"github.com/priyankdesai/storefront-backend/pkg/db/models"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
	pkgerrors "github.com/priyankdesai/storefront-backend/pkg/errors"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
	"github.com/priyankdesai/storefront-backend/pkg/metrics"
)

func setupSweeperTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{`
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  color_id TEXT NOT NULL,
  size TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price TEXT NOT NULL,
  product_name TEXT NOT NULL,
  image_url TEXT,
  color_name TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  payment_method TEXT NOT NULL,
  payment_provider TEXT,
  transaction_id TEXT,
  ship_phone TEXT NOT NULL,
  ship_line1 TEXT NOT NULL,
  ship_city TEXT NOT NULL,
  ship_state TEXT NOT NULL,
  ship_postal_code TEXT NOT NULL,
  ship_country TEXT NOT NULL,
  shipping_charges TEXT NOT NULL,
  total_amount TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'placed',
  ordered_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_transaction
  ON orders (transaction_id) WHERE transaction_id IS NOT NULL;`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  color_id TEXT NOT NULL,
  size TEXT NOT NULL,
  product_name TEXT NOT NULL,
  image_url TEXT,
  color_name TEXT,
  quantity INTEGER NOT NULL,
  amount TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'ordered',
  cancelled_quantity INTEGER NOT NULL DEFAULT 0,
  cancelled_at DATETIME,
  refund_requested_at DATETIME,
  refund_status TEXT,
  refund_amount TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS payment_intents (
  id TEXT PRIMARY KEY,
  temp_order_id TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  amount TEXT NOT NULL,
  amount_paise INTEGER NOT NULL,
  shipping_charges TEXT NOT NULL,
  address_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  provider_order_ref TEXT,
  provider_payment_ref TEXT,
  failure_reason TEXT,
  reconcile_attempts INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`}
	for _, stmt := range ddl {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

type sweeperTx struct {
	db *gorm.DB
}

func (s sweeperTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

type stubSweepAddresses struct {
	byID map[uuid.UUID]models.Address
}

func (s *stubSweepAddresses) Get(_ context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	addr, ok := s.byID[addressID]
	if !ok || addr.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	out := addr
	return &out, nil
}

type stubSweepVerifier struct {
	result *payments.VerificationResult
	err    error
	calls  int
}

func (s *stubSweepVerifier) Verify(_ context.Context, _ enums.PaymentProvider, _ payments.VerifyInput) (*payments.VerificationResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubSweepLock struct {
	deny     bool
	acquired int
	released int
}

func (s *stubSweepLock) AcquireLock(_ context.Context, _ string, _ time.Duration) (bool, error) {
	if s.deny {
		return false, nil
	}
	s.acquired++
	return true, nil
}

func (s *stubSweepLock) ReleaseLock(_ context.Context, _ string) error {
	s.released++
	return nil
}

type sweeperHarness struct {
	sweeper  *Sweeper
	conn     *gorm.DB
	repo     orders.Repository
	verifier *stubSweepVerifier
	lock     *stubSweepLock
	userID   uuid.UUID
	address  models.Address
}

func newSweeperHarness(t *testing.T) *sweeperHarness {
	t.Helper()

	conn := setupSweeperTestDB(t)
	repo := orders.NewRepository(conn)
	logg := logger.New(logger.Options{ServiceName: "test"})

	creator, err := orders.NewCreator(repo, cart.NewRepository(conn), sweeperTx{db: conn}, logg)
	require.NoError(t, err)

	userID := uuid.New()
	address := models.Address{
		ID: uuid.New(), UserID: userID,
		Phone: "9876543210", Line1: "14 MG Road", City: "Bengaluru",
		State: "Karnataka", PostalCode: "560001", Country: "IN",
	}
	verifier := &stubSweepVerifier{}
	lock := &stubSweepLock{}

	sweeper, err := NewSweeper(SweeperParams{
		Logger:     logg,
		Intents:    repo,
		Creator:    creator,
		Addresses:  &stubSweepAddresses{byID: map[uuid.UUID]models.Address{address.ID: address}},
		Verifier:   verifier,
		Lock:       lock,
		Metrics:    metrics.NewCheckoutMetrics(prometheus.NewRegistry()),
		Config:     config.ReconcilerConfig{Interval: time.Minute, MaxAttempts: 3},
		AbandonTTL: 30 * time.Minute,
	})
	require.NoError(t, err)

	return &sweeperHarness{
		sweeper:  sweeper,
		conn:     conn,
		repo:     repo,
		verifier: verifier,
		lock:     lock,
		userID:   userID,
		address:  address,
	}
}

func (h *sweeperHarness) seedCart(t *testing.T) {
	t.Helper()

	item := models.CartItem{
		ID: uuid.New(), UserID: h.userID, ProductID: uuid.New(), ColorID: uuid.New(),
		Size: "M", Quantity: 2, UnitPrice: decimal.NewFromInt(325), ProductName: "Linen Shirt",
	}
	require.NoError(t, h.conn.Create(&item).Error)
}

func (h *sweeperHarness) seedIntent(t *testing.T, status enums.IntentStatus, mutate func(*models.PaymentIntent)) *models.PaymentIntent {
	t.Helper()

	orderRef := "order_rzp_9"
	intent := &models.PaymentIntent{
		ID: uuid.New(), TempOrderID: "TMP-" + uuid.NewString()[:8], UserID: h.userID,
		Provider: enums.PaymentProviderRazorpay,
		Amount:   decimal.NewFromInt(650), AmountPaise: 65000,
		ShippingCharges: decimal.Zero, AddressID: h.address.ID,
		Status: status, ProviderOrderRef: &orderRef,
	}
	if mutate != nil {
		mutate(intent)
	}
	created, err := h.repo.CreateIntent(context.Background(), intent)
	require.NoError(t, err)
	return created
}

// ahead makes every intent in the table older than the sweep grace period.
func (h *sweeperHarness) ahead(d time.Duration) {
	h.sweeper.now = func() time.Time { return time.Now().Add(d) }
}

func TestSweepSettlesCapturedIntent(t *testing.T) {
	h := newSweeperHarness(t)
	ctx := context.Background()

	h.seedCart(t)
	payRef := "pay_901"
	intent := h.seedIntent(t, enums.IntentStatusCaptured, func(i *models.PaymentIntent) {
		i.ProviderPaymentRef = &payRef
	})

	require.NoError(t, h.sweeper.sweepOnce(ctx))

	reloaded, err := h.repo.FindIntentByTempOrderID(ctx, intent.TempOrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.IntentStatusConsumed, reloaded.Status)

	order, err := h.repo.FindOrderByTransactionID(ctx, payRef)
	require.NoError(t, err)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(650)), "got %s", order.TotalAmount)
	assert.Equal(t, 1, h.lock.released)
}

func TestSweepRetriesWhenSettleFails(t *testing.T) {
	h := newSweeperHarness(t)
	ctx := context.Background()

	// no cart rows, so order creation cannot succeed yet
	payRef := "pay_902"
	intent := h.seedIntent(t, enums.IntentStatusCaptured, func(i *models.PaymentIntent) {
		i.ProviderPaymentRef = &payRef
	})

	require.NoError(t, h.sweeper.sweepOnce(ctx))

	reloaded, err := h.repo.FindIntentByTempOrderID(ctx, intent.TempOrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.IntentStatusCaptured, reloaded.Status, "stays captured for the next cycle")
	assert.Equal(t, 1, reloaded.ReconcileAttempts)
}

func TestSweepFlagsAfterMaxAttempts(t *testing.T) {
	h := newSweeperHarness(t)
	ctx := context.Background()

	payRef := "pay_903"
	intent := h.seedIntent(t, enums.IntentStatusCaptured, func(i *models.PaymentIntent) {
		i.ProviderPaymentRef = &payRef
		i.ReconcileAttempts = 2
	})

	require.NoError(t, h.sweeper.sweepOnce(ctx))

	reloaded, err := h.repo.FindIntentByTempOrderID(ctx, intent.TempOrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.IntentStatusFlagged, reloaded.Status)
	assert.Equal(t, 3, reloaded.ReconcileAttempts)
	require.NotNil(t, reloaded.FailureReason)
}

func TestSweepRecoversStalePending(t *testing.T) {
	h := newSweeperHarness(t)
	ctx := context.Background()

	h.seedCart(t)
	intent := h.seedIntent(t, enums.IntentStatusPending, nil)
	h.verifier.result = &payments.VerificationResult{Captured: true, PaymentRef: "pay_904"}
	h.ahead(10 * time.Minute)

	require.NoError(t, h.sweeper.sweepOnce(ctx))
	assert.Equal(t, 1, h.verifier.calls)

	reloaded, err := h.repo.FindIntentByTempOrderID(ctx, intent.TempOrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.IntentStatusConsumed, reloaded.Status)

	order, err := h.repo.FindOrderByTransactionID(ctx, "pay_904")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPlaced, order.Status)
}

func TestSweepMarksDefinitiveFailure(t *testing.T) {
	h := newSweeperHarness(t)
	ctx := context.Background()

	intent := h.seedIntent(t, enums.IntentStatusPending, nil)
	h.verifier.err = pkgerrors.New(pkgerrors.CodeVerificationFailed, "payment failed at the gateway")
	h.ahead(10 * time.Minute)

	require.NoError(t, h.sweeper.sweepOnce(ctx))

	reloaded, err := h.repo.FindIntentByTempOrderID(ctx, intent.TempOrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.IntentStatusFailed, reloaded.Status)
	require.NotNil(t, reloaded.FailureReason)
	assert.Contains(t, *reloaded.FailureReason, "payment failed")
}

func TestSweepDefersUnreachableProvider(t *testing.T) {
	h := newSweeperHarness(t)
	ctx := context.Background()

	intent := h.seedIntent(t, enums.IntentStatusPending, nil)
	h.verifier.err = pkgerrors.New(pkgerrors.CodeDependency, "gateway timeout")
	h.ahead(10 * time.Minute)

	require.NoError(t, h.sweeper.sweepOnce(ctx))

	reloaded, err := h.repo.FindIntentByTempOrderID(ctx, intent.TempOrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.IntentStatusPending, reloaded.Status, "kept for the next cycle while young")
}

func TestSweepDefersStillPendingPayment(t *testing.T) {
	h := newSweeperHarness(t)
	ctx := context.Background()

	intent := h.seedIntent(t, enums.IntentStatusPending, nil)
	h.verifier.err = pkgerrors.Wrap(pkgerrors.CodeVerificationFailed,
		payments.ErrPaymentPending, "payment could not be confirmed in time")
	h.ahead(10 * time.Minute)

	require.NoError(t, h.sweeper.sweepOnce(ctx))

	reloaded, err := h.repo.FindIntentByTempOrderID(ctx, intent.TempOrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.IntentStatusPending, reloaded.Status, "an in-flight payment is never marked failed")
	assert.Equal(t, 1, h.verifier.calls)
}

func TestSweepAbandonsExpiredPending(t *testing.T) {
	h := newSweeperHarness(t)
	ctx := context.Background()

	intent := h.seedIntent(t, enums.IntentStatusPending, nil)
	h.verifier.err = pkgerrors.New(pkgerrors.CodeDependency, "gateway timeout")
	h.ahead(time.Hour)

	require.NoError(t, h.sweeper.sweepOnce(ctx))

	reloaded, err := h.repo.FindIntentByTempOrderID(ctx, intent.TempOrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.IntentStatusAbandoned, reloaded.Status)
}

func TestSweepSkipsFreshPending(t *testing.T) {
	h := newSweeperHarness(t)
	ctx := context.Background()

	h.seedIntent(t, enums.IntentStatusPending, nil)

	require.NoError(t, h.sweeper.sweepOnce(ctx))
	assert.Zero(t, h.verifier.calls, "a payment inside the grace window is left alone")
}

func TestSweepSkipsWhenLockHeld(t *testing.T) {
	h := newSweeperHarness(t)
	ctx := context.Background()

	payRef := "pay_905"
	intent := h.seedIntent(t, enums.IntentStatusCaptured, func(i *models.PaymentIntent) {
		i.ProviderPaymentRef = &payRef
	})
	h.lock.deny = true

	require.NoError(t, h.sweeper.sweepOnce(ctx))

	reloaded, err := h.repo.FindIntentByTempOrderID(ctx, intent.TempOrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.IntentStatusCaptured, reloaded.Status)
	assert.Zero(t, reloaded.ReconcileAttempts)
}
