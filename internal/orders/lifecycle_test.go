package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/priyankdesai/storefront-backend/pkg/db/models"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
	pkgerrors "github.com/priyankdesai/storefront-backend/pkg/errors"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
)

func newLifecycle(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn), sqliteTx{db: conn}, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return svc
}

func TestCancelItemPartially(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := newLifecycle(t, conn)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.PaymentMethodCOD, 3)
	originalTotal := order.TotalAmount

	updated, err := svc.CancelItem(ctx, CancelItemInput{
		UserID: userID, OrderID: order.ID, ItemID: order.Items[0].ID, Quantity: 1,
	})
	require.NoError(t, err)

	item := updated.Items[0]
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 1, item.CancelledQuantity)
	assert.Equal(t, enums.OrderItemStatusOrdered, item.Status)
	assert.Equal(t, enums.OrderStatusPartiallyCancelled, updated.Status)
	assert.True(t, updated.TotalAmount.Equal(originalTotal), "order total must stay frozen")
}

func TestCancelItemFully(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := newLifecycle(t, conn)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.PaymentMethodCOD, 2)

	updated, err := svc.CancelItem(ctx, CancelItemInput{
		UserID: userID, OrderID: order.ID, ItemID: order.Items[0].ID, Quantity: 2,
	})
	require.NoError(t, err)

	item := updated.Items[0]
	assert.Equal(t, 0, item.Quantity)
	assert.Equal(t, enums.OrderItemStatusCancelled, item.Status)
	assert.NotNil(t, item.CancelledAt)
	assert.Equal(t, enums.OrderStatusCancelled, updated.Status, "single-item order fully cancels")
}

func TestCancelItemValidation(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := newLifecycle(t, conn)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.PaymentMethodCOD, 2)
	itemID := order.Items[0].ID

	_, err := svc.CancelItem(ctx, CancelItemInput{UserID: userID, OrderID: order.ID, ItemID: itemID, Quantity: 0})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.CancelItem(ctx, CancelItemInput{UserID: userID, OrderID: order.ID, ItemID: itemID, Quantity: 3})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestCancelCancelledItemConflicts(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := newLifecycle(t, conn)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.PaymentMethodCOD, 1)
	itemID := order.Items[0].ID

	_, err := svc.CancelItem(ctx, CancelItemInput{UserID: userID, OrderID: order.ID, ItemID: itemID, Quantity: 1})
	require.NoError(t, err)

	_, err = svc.CancelItem(ctx, CancelItemInput{UserID: userID, OrderID: order.ID, ItemID: itemID, Quantity: 1})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCancelForeignOrderNotFound(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := newLifecycle(t, conn)
	ctx := context.Background()

	order := seedOrder(t, conn, uuid.New(), enums.PaymentMethodCOD, 1)

	_, err := svc.CancelItem(ctx, CancelItemInput{
		UserID: uuid.New(), OrderID: order.ID, ItemID: order.Items[0].ID, Quantity: 1,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func cancelFully(t *testing.T, svc Service, userID uuid.UUID, order *models.Order) {
	t.Helper()
	_, err := svc.CancelItem(context.Background(), CancelItemInput{
		UserID: userID, OrderID: order.ID, ItemID: order.Items[0].ID, Quantity: order.Items[0].Quantity,
	})
	require.NoError(t, err)
}

func TestRequestRefundHappyPath(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := newLifecycle(t, conn)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.PaymentMethodOnline, 2)
	cancelFully(t, svc, userID, order)

	req, err := svc.RequestRefund(ctx, RefundRequestInput{
		UserID: userID, OrderID: order.ID, ItemID: order.Items[0].ID, Reason: "size issue",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, req.ID, "refund request must carry a real id")
	assert.Equal(t, enums.RefundStatusPending, req.Status)
	// two units at 325 each
	assert.True(t, req.Amount.Equal(decimal.NewFromInt(650)), "got %s", req.Amount)

	reloaded, err := svc.Get(ctx, userID, order.ID)
	require.NoError(t, err)
	item := reloaded.Items[0]
	assert.NotNil(t, item.RefundRequestedAt)
	require.NotNil(t, item.RefundStatus)
	assert.Equal(t, enums.RefundStatusPending, *item.RefundStatus)
	assert.Equal(t, "refund requested", RefundDisplay(item))
}

func TestRequestRefundGates(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := newLifecycle(t, conn)
	ctx := context.Background()

	t.Run("cod order", func(t *testing.T) {
		userID := uuid.New()
		order := seedOrder(t, conn, userID, enums.PaymentMethodCOD, 1)
		cancelFully(t, svc, userID, order)

		_, err := svc.RequestRefund(ctx, RefundRequestInput{
			UserID: userID, OrderID: order.ID, ItemID: order.Items[0].ID, Reason: "changed my mind",
		})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	})

	t.Run("item not cancelled", func(t *testing.T) {
		userID := uuid.New()
		order := seedOrder(t, conn, userID, enums.PaymentMethodOnline, 1)

		_, err := svc.RequestRefund(ctx, RefundRequestInput{
			UserID: userID, OrderID: order.ID, ItemID: order.Items[0].ID, Reason: "changed my mind",
		})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	})

	t.Run("second request", func(t *testing.T) {
		userID := uuid.New()
		order := seedOrder(t, conn, userID, enums.PaymentMethodOnline, 1)
		cancelFully(t, svc, userID, order)

		_, err := svc.RequestRefund(ctx, RefundRequestInput{
			UserID: userID, OrderID: order.ID, ItemID: order.Items[0].ID, Reason: "size issue",
		})
		require.NoError(t, err)

		_, err = svc.RequestRefund(ctx, RefundRequestInput{
			UserID: userID, OrderID: order.ID, ItemID: order.Items[0].ID, Reason: "size issue",
		})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	})
}

func TestResolveRefundIdempotent(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc := newLifecycle(t, conn)
	repo := NewRepository(conn)
	ctx := context.Background()

	userID := uuid.New()
	order := seedOrder(t, conn, userID, enums.PaymentMethodOnline, 1)
	cancelFully(t, svc, userID, order)
	req, err := svc.RequestRefund(ctx, RefundRequestInput{
		UserID: userID, OrderID: order.ID, ItemID: order.Items[0].ID, Reason: "size issue",
	})
	require.NoError(t, err)

	resolve := ResolveRefundInput{RequestID: req.ID, Outcome: enums.RefundStatusRefunded, ProviderRefundRef: "rfnd_1"}
	require.NoError(t, svc.ResolveRefund(ctx, resolve))
	require.NoError(t, svc.ResolveRefund(ctx, resolve), "re-delivery of the same outcome is a no-op")

	err = svc.ResolveRefund(ctx, ResolveRefundInput{RequestID: req.ID, Outcome: enums.RefundStatusRejected})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	resolved, err := repo.FindRefundRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RefundStatusRefunded, resolved.Status)
	require.NotNil(t, resolved.ProviderRefundRef)
	assert.Equal(t, "rfnd_1", *resolved.ProviderRefundRef)
	assert.NotNil(t, resolved.ResolvedAt)

	reloaded, err := svc.Get(ctx, userID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "refunded", RefundDisplay(reloaded.Items[0]))
}
