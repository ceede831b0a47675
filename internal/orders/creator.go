package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/priyankdesai/storefront-backend/internal/cart"
	"github.com/priyankdesai/storefront-backend/pkg/db"
	"github.com/priyankdesai/storefront-backend/pkg/db/models"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
	pkgerrors "github.com/priyankdesai/storefront-backend/pkg/errors"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Creator turns the user's cart into a placed order.
type Creator interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
}

// CreateInput carries the frozen checkout decision an order is built from.
// ExpectedTotal is zero for COD; online placements set it to the amount the
// payment was taken for so a cart mutated mid-payment is rejected.
type CreateInput struct {
	UserID          uuid.UUID
	PaymentMethod   enums.PaymentMethod
	PaymentProvider *enums.PaymentProvider
	TransactionID   *string
	Address         models.Address
	ShippingCharges decimal.Decimal
	ExpectedTotal   decimal.Decimal
	IntentID        *uuid.UUID
}

type creator struct {
	repo     Repository
	cartRepo cart.Repository
	tx       txRunner
	logger   *logger.Logger
}

// NewCreator builds the order creator with the required dependencies.
func NewCreator(repo Repository, cartRepo cart.Repository, tx txRunner, logg *logger.Logger) (Creator, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("orders logger required")
	}
	return &creator{repo: repo, cartRepo: cartRepo, tx: tx, logger: logg}, nil
}

// Create re-reads the cart, builds the order with an address snapshot, marks
// the paying intent consumed, and clears the cart, all in one transaction.
// A transaction id that already produced an order returns that order, so
// reconciler retries stay idempotent.
func (c *creator) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}

	var order *models.Order
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		cartRepo := c.cartRepo.WithTx(tx)

		lines, err := cartRepo.ListByUser(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
		}

		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			subtotal = subtotal.Add(line.LineTotal())
			items = append(items, models.OrderItem{
				ProductID:   line.ProductID,
				ColorID:     line.ColorID,
				Size:        line.Size,
				ProductName: line.ProductName,
				ImageURL:    line.ImageURL,
				ColorName:   line.ColorName,
				Quantity:    line.Quantity,
				Amount:      line.UnitPrice,
				Status:      enums.OrderItemStatusOrdered,
			})
		}

		total := subtotal.Add(input.ShippingCharges)
		if !input.ExpectedTotal.IsZero() && !total.Equal(input.ExpectedTotal) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cart total %s no longer matches the paid amount %s", total, input.ExpectedTotal))
		}

		order, err = repo.CreateOrder(ctx, &models.Order{
			UserID:          input.UserID,
			PaymentMethod:   input.PaymentMethod,
			PaymentProvider: input.PaymentProvider,
			TransactionID:   input.TransactionID,
			ShippingInfo:    input.Address.Snapshot(),
			ShippingCharges: input.ShippingCharges,
			TotalAmount:     total,
			Status:          enums.OrderStatusPlaced,
			OrderedAt:       time.Now().UTC(),
			Items:           items,
		})
		if err != nil {
			return err
		}

		if input.IntentID != nil {
			updates := map[string]any{"status": enums.IntentStatusConsumed}
			if input.TransactionID != nil {
				updates["provider_payment_ref"] = *input.TransactionID
			}
			if err := repo.UpdateIntent(ctx, *input.IntentID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume payment intent")
			}
		}

		if err := cartRepo.ClearUser(ctx, input.UserID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
	if err != nil {
		if input.TransactionID != nil && db.IsUniqueViolation(err, "transaction_id") {
			existing, findErr := c.repo.FindOrderByTransactionID(ctx, *input.TransactionID)
			if findErr == nil {
				c.logger.Warn(c.logger.WithOrderID(ctx, existing.ID.String()),
					"order already created for transaction")
				return existing, nil
			}
			if !errors.Is(findErr, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load existing order")
			}
		}
		if typed := pkgerrors.As(err); typed != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}
