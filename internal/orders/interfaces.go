package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/priyankdesai/storefront-backend/pkg/db/models"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
)

// Repository defines persistence operations for orders, their items,
// payment intents, and refund requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	FindOrderByTransactionID(ctx context.Context, transactionID string) (*models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error

	FindItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.OrderItem, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error

	CreateIntent(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error)
	FindIntentByTempOrderID(ctx context.Context, tempOrderID string) (*models.PaymentIntent, error)
	UpdateIntent(ctx context.Context, intentID uuid.UUID, updates map[string]any) error
	ListSweepableIntents(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error)

	CreateRefundRequest(ctx context.Context, req *models.RefundRequest) (*models.RefundRequest, error)
	FindRefundRequest(ctx context.Context, requestID uuid.UUID) (*models.RefundRequest, error)
	FindRefundRequestByItem(ctx context.Context, itemID uuid.UUID) (*models.RefundRequest, error)
	UpdateRefundRequest(ctx context.Context, requestID uuid.UUID, updates map[string]any) error
}
