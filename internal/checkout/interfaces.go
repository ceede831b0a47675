package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/priyankdesai/storefront-backend/internal/cart"
	"github.com/priyankdesai/storefront-backend/pkg/db/models"
)

// SessionRepository persists the per-user checkout stepper state.
type SessionRepository interface {
	WithTx(tx *gorm.DB) SessionRepository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.CheckoutSession, error)
	Upsert(ctx context.Context, session *models.CheckoutSession) (*models.CheckoutSession, error)
	Update(ctx context.Context, sessionID uuid.UUID, updates map[string]any) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

type placementLocker interface {
	AcquireLock(ctx context.Context, scope string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, scope string) error
}

type cartReader interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*cart.CartView, error)
}

type addressLoader interface {
	Get(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
}
