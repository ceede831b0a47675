package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/priyankdesai/storefront-backend/pkg/db/models"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
	pkgerrors "github.com/priyankdesai/storefront-backend/pkg/errors"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
)

// Service exposes order reads and the post-placement item lifecycle.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	CancelItem(ctx context.Context, input CancelItemInput) (*models.Order, error)
	RequestRefund(ctx context.Context, input RefundRequestInput) (*models.RefundRequest, error)
	ResolveRefund(ctx context.Context, input ResolveRefundInput) error
}

// CancelItemInput identifies the item (or part of it) being cancelled.
type CancelItemInput struct {
	UserID   uuid.UUID
	OrderID  uuid.UUID
	ItemID   uuid.UUID
	Quantity int
}

// RefundRequestInput files a refund for a cancelled, online-paid item.
type RefundRequestInput struct {
	UserID  uuid.UUID
	OrderID uuid.UUID
	ItemID  uuid.UUID
	Reason  string
}

// ResolveRefundInput applies the provider's refund outcome.
type ResolveRefundInput struct {
	RequestID         uuid.UUID
	Outcome           enums.RefundStatus
	ProviderRefundRef string
}

type service struct {
	repo   Repository
	tx     txRunner
	logger *logger.Logger
}

// NewService builds the order lifecycle service.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("orders logger required")
	}
	return &service{repo: repo, tx: tx, logger: logg}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	orders, err := s.repo.ListOrders(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}
	return orders, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.repo.FindOrder(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// CancelItem cancels up to the remaining quantity of an item. Cancelling the
// full remainder closes the item; the order status is re-derived from all
// items afterwards. The order total is never recomputed.
func (s *service) CancelItem(ctx context.Context, input CancelItemInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancel quantity must be at least 1")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.UserID, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		item, err := repo.FindItem(ctx, order.ID, input.ItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		if item.Status == enums.OrderItemStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "item is already cancelled")
		}
		if input.Quantity > item.Quantity {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("cannot cancel %d of %d remaining", input.Quantity, item.Quantity))
		}

		remaining := item.Quantity - input.Quantity
		updates := map[string]any{
			"quantity":           remaining,
			"cancelled_quantity": item.CancelledQuantity + input.Quantity,
		}
		if remaining == 0 {
			updates["status"] = enums.OrderItemStatusCancelled
			updates["cancelled_at"] = time.Now().UTC()
		}
		if err := repo.UpdateItem(ctx, item.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order item")
		}

		items, err := repo.ListItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		status := deriveOrderStatus(items)
		if status != order.Status {
			if err := repo.UpdateOrderStatus(ctx, order.ID, status); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, input.UserID, input.OrderID)
}

// deriveOrderStatus folds item states into the order's status. CancelledAt
// and cancelled quantities already reflect the update being derived for.
func deriveOrderStatus(items []models.OrderItem) enums.OrderStatus {
	if len(items) == 0 {
		return enums.OrderStatusPlaced
	}
	allCancelled := true
	anyCancellation := false
	for _, item := range items {
		if item.Status == enums.OrderItemStatusCancelled {
			anyCancellation = true
			continue
		}
		allCancelled = false
		if item.CancelledQuantity > 0 {
			anyCancellation = true
		}
	}
	switch {
	case allCancelled:
		return enums.OrderStatusCancelled
	case anyCancellation:
		return enums.OrderStatusPartiallyCancelled
	default:
		return enums.OrderStatusPlaced
	}
}

// RequestRefund files a refund for a cancelled item on an online-paid order.
// One request per item; the provider decides the outcome later.
func (s *service) RequestRefund(ctx context.Context, input RefundRequestInput) (*models.RefundRequest, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason is required")
	}

	var created *models.RefundRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.UserID, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		item, err := repo.FindItem(ctx, order.ID, input.ItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		if err := refundEligibility(order, item); err != nil {
			return err
		}

		amount := item.Amount.Mul(decimalFromInt(item.CancelledQuantity))
		created, err = repo.CreateRefundRequest(ctx, &models.RefundRequest{
			OrderID:     order.ID,
			OrderItemID: item.ID,
			UserID:      input.UserID,
			Amount:      amount,
			Reason:      strings.TrimSpace(input.Reason),
			Status:      enums.RefundStatusPending,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund request")
		}

		pending := enums.RefundStatusPending
		if err := repo.UpdateItem(ctx, item.ID, map[string]any{
			"refund_requested_at": time.Now().UTC(),
			"refund_status":       pending,
			"refund_amount":       amount,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark item refund requested")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// refundEligibility enforces the refund gate: online payment, item fully
// cancelled, and no prior request on the item.
func refundEligibility(order *models.Order, item *models.OrderItem) error {
	if order.PaymentMethod != enums.PaymentMethodOnline {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "refunds apply to online payments only")
	}
	if item.Status != enums.OrderItemStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only cancelled items can be refunded")
	}
	if item.RefundRequestedAt != nil || item.RefundStatus != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "a refund was already requested for this item")
	}
	return nil
}

// ResolveRefund applies the provider outcome idempotently: re-delivery of
// the same outcome is a no-op, a conflicting outcome is rejected.
func (s *service) ResolveRefund(ctx context.Context, input ResolveRefundInput) error {
	if input.Outcome != enums.RefundStatusRefunded && input.Outcome != enums.RefundStatusRejected {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund outcome must be refunded or rejected")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		req, err := repo.FindRefundRequest(ctx, input.RequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "refund request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund request")
		}
		if req.Status == input.Outcome {
			return nil
		}
		if req.Status != enums.RefundStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("refund request already resolved as %s", req.Status))
		}

		updates := map[string]any{
			"status":      input.Outcome,
			"resolved_at": time.Now().UTC(),
		}
		if ref := strings.TrimSpace(input.ProviderRefundRef); ref != "" {
			updates["provider_refund_ref"] = ref
		}
		if err := repo.UpdateRefundRequest(ctx, req.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update refund request")
		}
		if err := repo.UpdateItem(ctx, req.OrderItemID, map[string]any{
			"refund_status": input.Outcome,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item refund status")
		}

		s.logger.Info(s.logger.WithFields(ctx, map[string]any{
			"refund_request_id": req.ID.String(),
			"outcome":           string(input.Outcome),
		}), "refund resolved")
		return nil
	})
}
