package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/priyankdesai/storefront-backend/internal/orders"
	"github.com/priyankdesai/storefront-backend/internal/payments"
	"github.com/priyankdesai/storefront-backend/pkg/config"
	"github.com/priyankdesai/storefront-backend/pkg/db/models"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
	pkgerrors "github.com/priyankdesai/storefront-backend/pkg/errors"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
	"github.com/priyankdesai/storefront-backend/pkg/metrics"
)

const (
	lockScope = "reconcile:intents"

	// A pending intent younger than this is likely still on the payment
	// page; the sweep leaves it alone.
	pendingGrace = 5 * time.Minute

	sweepBatchSize    = 100
	defaultInterval   = time.Minute
	defaultAttempts   = 5
	defaultAbandonTTL = 30 * time.Minute
)

type intentStore interface {
	ListSweepableIntents(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error)
	UpdateIntent(ctx context.Context, intentID uuid.UUID, updates map[string]any) error
}

type orderCreator interface {
	Create(ctx context.Context, input orders.CreateInput) (*models.Order, error)
}

type addressLoader interface {
	Get(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

type sweepLock interface {
	AcquireLock(ctx context.Context, scope string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, scope string) error
}

// SweeperParams configure the payment intent sweeper.
type SweeperParams struct {
	Logger     *logger.Logger
	Intents    intentStore
	Creator    orderCreator
	Addresses  addressLoader
	Verifier   payments.Verifier
	Lock       sweepLock
	Metrics    *metrics.CheckoutMetrics
	Config     config.ReconcilerConfig
	AbandonTTL time.Duration
}

// Sweeper settles payment intents the checkout flow left behind: captures
// that never became orders are retried, stale pendings are re-verified with
// the provider, and the rest is abandoned or flagged for manual review.
type Sweeper struct {
	logg        *logger.Logger
	intents     intentStore
	creator     orderCreator
	addresses   addressLoader
	verifier    payments.Verifier
	lock        sweepLock
	metrics     *metrics.CheckoutMetrics
	interval    time.Duration
	maxAttempts int
	abandonTTL  time.Duration
	now         func() time.Time
}

// NewSweeper builds the reconciliation sweeper.
func NewSweeper(params SweeperParams) (*Sweeper, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Intents == nil {
		return nil, fmt.Errorf("intent store required")
	}
	if params.Creator == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address loader required")
	}
	if params.Verifier == nil {
		return nil, fmt.Errorf("payment verifier required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("sweep lock required")
	}
	if params.Metrics == nil {
		return nil, fmt.Errorf("checkout metrics required")
	}

	interval := params.Config.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	maxAttempts := params.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultAttempts
	}
	abandonTTL := params.AbandonTTL
	if abandonTTL <= 0 {
		abandonTTL = defaultAbandonTTL
	}
	return &Sweeper{
		logg:        params.Logger,
		intents:     params.Intents,
		creator:     params.Creator,
		addresses:   params.Addresses,
		verifier:    params.Verifier,
		lock:        params.Lock,
		metrics:     params.Metrics,
		interval:    interval,
		maxAttempts: maxAttempts,
		abandonTTL:  abandonTTL,
		now:         time.Now,
	}, nil
}

// Run sweeps on a fixed cadence until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.sweepOnce(ctx); err != nil {
		s.logg.Error(ctx, "reconciliation sweep failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "reconciler context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				s.logg.Error(ctx, "reconciliation sweep failed", err)
			}
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) error {
	locked, err := s.lock.AcquireLock(ctx, lockScope, s.interval)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another reconciler instance is sweeping; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.ReleaseLock(ctx, lockScope); relErr != nil {
			s.logg.Error(ctx, "failed to release sweep lock", relErr)
		}
	}()

	cutoff := s.now().Add(-pendingGrace)
	intents, err := s.intents.ListSweepableIntents(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("list sweepable intents: %w", err)
	}
	for i := range intents {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.handle(ctx, &intents[i])
	}
	return nil
}

func (s *Sweeper) handle(ctx context.Context, intent *models.PaymentIntent) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"temp_order_id": intent.TempOrderID,
		"provider":      intent.Provider.String(),
		"intent_status": string(intent.Status),
	})

	switch intent.Status {
	case enums.IntentStatusCaptured:
		s.settle(ctx, intent)
	case enums.IntentStatusPending:
		s.resolvePending(ctx, intent)
	}
}

// resolvePending asks the provider what happened to a payment the client
// never confirmed. The provider's answer is the only source of truth.
func (s *Sweeper) resolvePending(ctx context.Context, intent *models.PaymentIntent) {
	if intent.ProviderOrderRef == nil || *intent.ProviderOrderRef == "" {
		// A session was never opened with the provider; nothing to verify.
		s.abandonWhenExpired(ctx, intent, "no provider session was opened")
		return
	}

	result, err := s.verifier.Verify(ctx, intent.Provider, payments.VerifyInput{
		TempOrderID:      intent.TempOrderID,
		ProviderOrderRef: *intent.ProviderOrderRef,
		Amount:           intent.Amount,
	})
	if err != nil {
		if errors.Is(err, payments.ErrPaymentPending) {
			// Still in flight at the provider; pick it up next sweep.
			s.abandonWhenExpired(ctx, intent, "payment still pending at the provider")
			return
		}
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeVerificationFailed {
			s.updateIntent(ctx, intent.ID, map[string]any{
				"status":         enums.IntentStatusFailed,
				"failure_reason": err.Error(),
			})
			s.metrics.IncReconciliation("failed")
			s.logg.Info(ctx, "stale payment confirmed failed")
			return
		}
		// Provider unreachable or payment still in flight.
		s.abandonWhenExpired(ctx, intent, err.Error())
		return
	}

	updates := map[string]any{"status": enums.IntentStatusCaptured}
	if result.PaymentRef != "" {
		updates["provider_payment_ref"] = result.PaymentRef
		intent.ProviderPaymentRef = &result.PaymentRef
	}
	if !s.updateIntent(ctx, intent.ID, updates) {
		return
	}
	intent.Status = enums.IntentStatusCaptured
	s.logg.Info(ctx, "stale payment turned out captured")
	s.settle(ctx, intent)
}

// settle turns a captured intent into an order. Creation is idempotent on
// the provider payment ref, so retrying a partially settled intent is safe.
func (s *Sweeper) settle(ctx context.Context, intent *models.PaymentIntent) {
	order, err := s.createOrder(ctx, intent)
	if err != nil {
		attempts := intent.ReconcileAttempts + 1
		if attempts >= s.maxAttempts {
			s.updateIntent(ctx, intent.ID, map[string]any{
				"status":             enums.IntentStatusFlagged,
				"reconcile_attempts": attempts,
				"failure_reason":     err.Error(),
			})
			s.metrics.IncReconciliation("flagged")
			s.logg.Error(ctx, "captured payment flagged for manual review", err)
			return
		}
		s.updateIntent(ctx, intent.ID, map[string]any{"reconcile_attempts": attempts})
		s.metrics.IncReconciliation("retry")
		s.logg.Warn(ctx, "captured payment could not be settled yet: "+err.Error())
		return
	}

	s.metrics.IncReconciliation("recovered")
	s.logg.Info(ctx, "captured payment settled into order "+order.ID.String())
}

func (s *Sweeper) createOrder(ctx context.Context, intent *models.PaymentIntent) (*models.Order, error) {
	address, err := s.addresses.Get(ctx, intent.UserID, intent.AddressID)
	if err != nil {
		return nil, err
	}
	provider := intent.Provider
	return s.creator.Create(ctx, orders.CreateInput{
		UserID:          intent.UserID,
		PaymentMethod:   enums.PaymentMethodOnline,
		PaymentProvider: &provider,
		TransactionID:   intent.ProviderPaymentRef,
		Address:         *address,
		ShippingCharges: intent.ShippingCharges,
		ExpectedTotal:   intent.Amount,
		IntentID:        &intent.ID,
	})
}

func (s *Sweeper) abandonWhenExpired(ctx context.Context, intent *models.PaymentIntent, reason string) {
	if s.now().Sub(intent.CreatedAt) < s.abandonTTL {
		s.metrics.IncReconciliation("deferred")
		return
	}
	s.updateIntent(ctx, intent.ID, map[string]any{
		"status":         enums.IntentStatusAbandoned,
		"failure_reason": reason,
	})
	s.metrics.IncReconciliation("abandoned")
	s.logg.Info(ctx, "stale payment abandoned")
}

func (s *Sweeper) updateIntent(ctx context.Context, intentID uuid.UUID, updates map[string]any) bool {
	if err := s.intents.UpdateIntent(ctx, intentID, updates); err != nil {
		s.logg.Error(ctx, "update payment intent", err)
		return false
	}
	return true
}
