package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/priyankdesai/storefront-backend/pkg/db/models"
)

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository builds a checkout session repository bound to the provided DB.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) WithTx(tx *gorm.DB) SessionRepository {
	if tx == nil {
		return r
	}
	return &sessionRepository{db: tx}
}

func (r *sessionRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Upsert(ctx context.Context, session *models.CheckoutSession) (*models.CheckoutSession, error) {
	// Insert with a fresh id so the only conflict the statement can hit is
	// the user_id uniqueness; an existing row keeps its id.
	record := *session
	record.ID = uuid.New()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"step", "address_id", "payment_method", "payment_provider", "temp_order_id", "last_error", "updated_at",
			}),
		}).
		Create(&record).Error
	if err != nil {
		return nil, err
	}
	return r.FindByUser(ctx, session.UserID)
}

func (r *sessionRepository) Update(ctx context.Context, sessionID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ?", sessionID).
		Updates(updates).Error
}

func (r *sessionRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CheckoutSession{}).Error
}
