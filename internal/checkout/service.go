package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/priyankdesai/storefront-backend/internal/orders"
	"github.com/priyankdesai/storefront-backend/internal/payments"
	"github.com/priyankdesai/storefront-backend/internal/shipping"
	"github.com/priyankdesai/storefront-backend/pkg/config"
	"github.com/priyankdesai/storefront-backend/pkg/currency"
	"github.com/priyankdesai/storefront-backend/pkg/db/models"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
	pkgerrors "github.com/priyankdesai/storefront-backend/pkg/errors"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
	"github.com/priyankdesai/storefront-backend/pkg/metrics"
)

// Service drives the checkout stepper from address selection to a placed order.
type Service interface {
	Current(ctx context.Context, userID uuid.UUID) (*View, error)
	SelectAddress(ctx context.Context, userID, addressID uuid.UUID) (*View, error)
	SelectPayment(ctx context.Context, userID uuid.UUID, method enums.PaymentMethod, provider *enums.PaymentProvider) (*View, error)
	Back(ctx context.Context, userID uuid.UUID, target enums.CheckoutStep) (*View, error)
	Place(ctx context.Context, userID uuid.UUID) (*PlacementResult, error)
	Confirm(ctx context.Context, userID uuid.UUID, input ConfirmInput) (*models.Order, error)
	Abort(ctx context.Context, userID uuid.UUID, tempOrderID string) (*View, error)
}

// MethodsResolver reports the currently offered payment paths.
type MethodsResolver func() payments.MethodsView

type service struct {
	sessions  SessionRepository
	cart      cartReader
	addresses addressLoader
	shipping  shipping.Calculator
	broker    payments.Broker
	verifier  payments.Verifier
	creator   orders.Creator
	orders    orders.Repository
	locker    placementLocker
	methods   MethodsResolver
	metrics   *metrics.CheckoutMetrics
	logger    *logger.Logger
	lockTTL   time.Duration
}

// Deps bundles everything the checkout service needs.
type Deps struct {
	Sessions  SessionRepository
	Cart      cartReader
	Addresses addressLoader
	Shipping  shipping.Calculator
	Broker    payments.Broker
	Verifier  payments.Verifier
	Creator   orders.Creator
	Orders    orders.Repository
	Locker    placementLocker
	Methods   MethodsResolver
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
	Config    config.CheckoutConfig
}

// NewService builds the checkout orchestrator.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Sessions == nil:
		return nil, fmt.Errorf("checkout session repository required")
	case deps.Cart == nil:
		return nil, fmt.Errorf("cart reader required")
	case deps.Addresses == nil:
		return nil, fmt.Errorf("address loader required")
	case deps.Shipping == nil:
		return nil, fmt.Errorf("shipping calculator required")
	case deps.Broker == nil:
		return nil, fmt.Errorf("payment broker required")
	case deps.Verifier == nil:
		return nil, fmt.Errorf("payment verifier required")
	case deps.Creator == nil:
		return nil, fmt.Errorf("order creator required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Locker == nil:
		return nil, fmt.Errorf("placement locker required")
	case deps.Methods == nil:
		return nil, fmt.Errorf("methods resolver required")
	case deps.Metrics == nil:
		return nil, fmt.Errorf("checkout metrics required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("checkout logger required")
	}

	lockTTL := deps.Config.PlacementLockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	return &service{
		sessions:  deps.Sessions,
		cart:      deps.Cart,
		addresses: deps.Addresses,
		shipping:  deps.Shipping,
		broker:    deps.Broker,
		verifier:  deps.Verifier,
		creator:   deps.Creator,
		orders:    deps.Orders,
		locker:    deps.Locker,
		methods:   deps.Methods,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		lockTTL:   lockTTL,
	}, nil
}

func (s *service) Current(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	session, err := s.sessions.FindByUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	if session == nil {
		session = &models.CheckoutSession{UserID: userID, Step: enums.CheckoutStepAddress}
		// A fresh checkout preselects the default address when one exists.
		if addrs, addrErr := s.addresses.List(ctx, userID); addrErr == nil {
			for i := range addrs {
				if addrs[i].IsDefault {
					session.AddressID = &addrs[i].ID
					break
				}
			}
		}
	}
	return s.view(ctx, userID, session)
}

// SelectAddress pins a shipping address and advances the stepper. When a
// payment choice already exists the step lands on review, otherwise payment.
func (s *service) SelectAddress(ctx context.Context, userID, addressID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := s.requireOpenCheckout(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.addresses.Get(ctx, userID, addressID); err != nil {
		return nil, err
	}

	session := s.loadOrNewSession(ctx, userID)
	session.AddressID = &addressID
	session.LastError = nil
	if session.PaymentMethod != nil {
		session.Step = enums.CheckoutStepReview
	} else {
		session.Step = enums.CheckoutStepPayment
	}

	saved, err := s.sessions.Upsert(ctx, session)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}
	return s.view(ctx, userID, saved)
}

// SelectPayment records the payment choice. COD ignores the provider;
// online requires one that is currently offered.
func (s *service) SelectPayment(ctx context.Context, userID uuid.UUID, method enums.PaymentMethod, provider *enums.PaymentProvider) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	if err := s.requireOpenCheckout(ctx, userID); err != nil {
		return nil, err
	}

	offered := s.methods()
	if offered.Empty() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no payment methods are available right now")
	}

	session := s.loadOrNewSession(ctx, userID)
	if session.AddressID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "select a shipping address first")
	}

	switch method {
	case enums.PaymentMethodCOD:
		if !offered.CODEnabled {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash on delivery is not available")
		}
		session.PaymentProvider = nil
	case enums.PaymentMethodOnline:
		if provider == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "online payment requires a provider")
		}
		if !offered.SupportsProvider(*provider) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("payment provider %q is not available", *provider))
		}
		session.PaymentProvider = provider
	}
	session.PaymentMethod = &method
	session.Step = enums.CheckoutStepReview
	session.LastError = nil

	saved, err := s.sessions.Upsert(ctx, session)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}
	return s.view(ctx, userID, saved)
}

// Back moves the stepper to an earlier step without discarding selections.
func (s *service) Back(ctx context.Context, userID uuid.UUID, target enums.CheckoutStep) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !target.IsValid() || target.Rank() >= enums.CheckoutStepPlacing.Rank() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid step")
	}

	session, err := s.sessions.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no checkout in progress")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	if session.Step == enums.CheckoutStepPlacing {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "a placement is in progress; cancel the payment first")
	}
	if target.Rank() >= session.Step.Rank() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "can only move to an earlier step")
	}

	if err := s.sessions.Update(ctx, session.ID, map[string]any{"step": target}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}
	session.Step = target
	return s.view(ctx, userID, session)
}

// Place freezes the quote and either creates the order outright (COD) or
// opens a provider payment session. A per-user lock makes concurrent
// placements lose cleanly instead of double-ordering.
func (s *service) Place(ctx context.Context, userID uuid.UUID) (*PlacementResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	session, err := s.sessions.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no checkout in progress")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	if session.Step != enums.CheckoutStepReview {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is not ready to place")
	}
	if session.AddressID == nil || session.PaymentMethod == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "address and payment selections are incomplete")
	}

	acquired, err := s.locker.AcquireLock(ctx, placementScope(userID), s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire placement lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an order placement is already in progress")
	}

	started := time.Now()
	method := *session.PaymentMethod
	result, err := s.place(ctx, userID, session)
	if err != nil {
		s.metrics.IncPlacement(string(method), "error")
		_ = s.locker.ReleaseLock(ctx, placementScope(userID))
		return nil, err
	}
	s.metrics.ObservePlacement(string(method), time.Since(started))
	if result.Order != nil {
		// COD finishes synchronously; online keeps the lock until the
		// payment confirm or the TTL ends it.
		s.metrics.IncPlacement(string(method), "placed")
		_ = s.locker.ReleaseLock(ctx, placementScope(userID))
	} else {
		s.metrics.IncPlacement(string(method), "awaiting_payment")
	}
	return result, nil
}

func (s *service) place(ctx context.Context, userID uuid.UUID, session *models.CheckoutSession) (*PlacementResult, error) {
	address, err := s.addresses.Get(ctx, userID, *session.AddressID)
	if err != nil {
		return nil, err
	}
	quote, err := s.quote(ctx, userID, *session.PaymentMethod)
	if err != nil {
		return nil, err
	}

	if *session.PaymentMethod == enums.PaymentMethodCOD {
		order, err := s.creator.Create(ctx, orders.CreateInput{
			UserID:          userID,
			PaymentMethod:   enums.PaymentMethodCOD,
			Address:         *address,
			ShippingCharges: quote.ShippingCharges,
		})
		if err != nil {
			return nil, err
		}
		if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
			s.logger.Error(ctx, "clear checkout session", err)
		}
		return &PlacementResult{Order: order}, nil
	}

	provider := session.PaymentProvider
	if provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "online payment requires a provider")
	}
	paise, err := currency.ToPaise(quote.Total)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "quote total not chargeable")
	}

	tempOrderID := newTempOrderID()
	intent, err := s.orders.CreateIntent(ctx, &models.PaymentIntent{
		ID:              uuid.New(),
		TempOrderID:     tempOrderID,
		UserID:          userID,
		Provider:        *provider,
		Amount:          quote.Total,
		AmountPaise:     paise,
		ShippingCharges: quote.ShippingCharges,
		AddressID:       address.ID,
		Status:          enums.IntentStatusPending,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	paySession, err := s.broker.Open(ctx, *provider, payments.SessionInput{
		TempOrderID:   tempOrderID,
		CustomerID:    userID.String(),
		CustomerPhone: address.Phone,
		Amount:        quote.Total,
	})
	if err != nil {
		reason := err.Error()
		if updErr := s.orders.UpdateIntent(ctx, intent.ID, map[string]any{
			"status":         enums.IntentStatusFailed,
			"failure_reason": reason,
		}); updErr != nil {
			s.logger.Error(ctx, "mark intent failed", updErr)
		}
		return nil, err
	}

	if err := s.orders.UpdateIntent(ctx, intent.ID, map[string]any{
		"provider_order_ref": paySession.ProviderOrderRef,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record provider order ref")
	}
	if err := s.sessions.Update(ctx, session.ID, map[string]any{
		"step":          enums.CheckoutStepPlacing,
		"temp_order_id": tempOrderID,
		"last_error":    nil,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}

	return &PlacementResult{TempOrderID: tempOrderID, Payment: paySession}, nil
}

// Confirm verifies the payment with the provider and only then creates the
// order. A capture that cannot be turned into an order is surfaced as
// unreconciled and left for the sweeper; the cart stays intact.
func (s *service) Confirm(ctx context.Context, userID uuid.UUID, input ConfirmInput) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if strings.TrimSpace(input.TempOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "temp order id is required")
	}

	intent, err := s.orders.FindIntentByTempOrderID(ctx, input.TempOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment intent")
	}
	if intent.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
	}
	switch intent.Status {
	case enums.IntentStatusPending, enums.IntentStatusCaptured:
	case enums.IntentStatusConsumed:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "this payment already produced an order")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment attempt is %s", intent.Status))
	}

	ctx2 := s.logger.WithProvider(ctx, intent.Provider.String())
	if intent.Status == enums.IntentStatusPending {
		ref := ""
		if intent.ProviderOrderRef != nil {
			ref = *intent.ProviderOrderRef
		}
		result, verr := s.verifier.Verify(ctx2, intent.Provider, payments.VerifyInput{
			TempOrderID:      intent.TempOrderID,
			ProviderOrderRef: ref,
			PaymentRef:       input.PaymentRef,
			Signature:        input.Signature,
			Amount:           intent.Amount,
		})
		if verr != nil {
			if ctx.Err() != nil {
				return nil, verr
			}
			s.failPayment(ctx2, userID, intent.ID, verr.Error())
			return nil, verr
		}
		if !result.Captured {
			reason := result.Reason
			if reason == "" {
				reason = "payment was not captured"
			}
			s.failPayment(ctx2, userID, intent.ID, reason)
			return nil, pkgerrors.New(pkgerrors.CodeVerificationFailed, reason)
		}
		updates := map[string]any{"status": enums.IntentStatusCaptured}
		if result.PaymentRef != "" {
			updates["provider_payment_ref"] = result.PaymentRef
		}
		if err := s.orders.UpdateIntent(ctx2, intent.ID, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record capture")
		}
		if result.PaymentRef != "" {
			intent.ProviderPaymentRef = &result.PaymentRef
		}
	}

	order, err := s.createFromIntent(ctx2, userID, intent)
	if err != nil {
		s.metrics.IncPlacement(string(enums.PaymentMethodOnline), "unreconciled")
		s.noteCreationFailure(ctx2, userID, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnreconciled, err,
			"your payment was received but the order could not be created")
	}

	if err := s.sessions.DeleteByUser(ctx2, userID); err != nil {
		s.logger.Error(ctx2, "clear checkout session", err)
	}
	_ = s.locker.ReleaseLock(ctx2, placementScope(userID))
	s.metrics.IncPlacement(string(enums.PaymentMethodOnline), "placed")
	return order, nil
}

func (s *service) createFromIntent(ctx context.Context, userID uuid.UUID, intent *models.PaymentIntent) (*models.Order, error) {
	address, err := s.addresses.Get(ctx, userID, intent.AddressID)
	if err != nil {
		return nil, err
	}
	provider := intent.Provider
	return s.creator.Create(ctx, orders.CreateInput{
		UserID:          userID,
		PaymentMethod:   enums.PaymentMethodOnline,
		PaymentProvider: &provider,
		TransactionID:   intent.ProviderPaymentRef,
		Address:         *address,
		ShippingCharges: intent.ShippingCharges,
		ExpectedTotal:   intent.Amount,
		IntentID:        &intent.ID,
	})
}

// Abort abandons an in-flight online payment and reopens the review step.
func (s *service) Abort(ctx context.Context, userID uuid.UUID, tempOrderID string) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	intent, err := s.orders.FindIntentByTempOrderID(ctx, tempOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment intent")
	}
	if intent.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment attempt not found")
	}
	if intent.Status == enums.IntentStatusPending {
		if err := s.orders.UpdateIntent(ctx, intent.ID, map[string]any{
			"status": enums.IntentStatusAbandoned,
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "abandon payment intent")
		}
	}

	session, err := s.sessions.FindByUser(ctx, userID)
	if err == nil {
		if err := s.sessions.Update(ctx, session.ID, map[string]any{
			"step":          enums.CheckoutStepReview,
			"temp_order_id": nil,
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
		}
		session.Step = enums.CheckoutStepReview
		session.TempOrderID = nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}

	_ = s.locker.ReleaseLock(ctx, placementScope(userID))
	s.metrics.IncPlacement(string(enums.PaymentMethodOnline), "aborted")
	if session == nil {
		session = &models.CheckoutSession{UserID: userID, Step: enums.CheckoutStepAddress}
	}
	return s.view(ctx, userID, session)
}

func (s *service) failPayment(ctx context.Context, userID uuid.UUID, intentID uuid.UUID, reason string) {
	if err := s.orders.UpdateIntent(ctx, intentID, map[string]any{
		"status":         enums.IntentStatusFailed,
		"failure_reason": reason,
	}); err != nil {
		s.logger.Error(ctx, "mark intent failed", err)
	}
	if session, err := s.sessions.FindByUser(ctx, userID); err == nil {
		if err := s.sessions.Update(ctx, session.ID, map[string]any{
			"step":          enums.CheckoutStepReview,
			"temp_order_id": nil,
			"last_error":    reason,
		}); err != nil {
			s.logger.Error(ctx, "save checkout session", err)
		}
	}
	_ = s.locker.ReleaseLock(ctx, placementScope(userID))
	s.metrics.IncPlacement(string(enums.PaymentMethodOnline), "payment_failed")
}

func (s *service) noteCreationFailure(ctx context.Context, userID uuid.UUID, cause error) {
	if session, err := s.sessions.FindByUser(ctx, userID); err == nil {
		if err := s.sessions.Update(ctx, session.ID, map[string]any{
			"step":       enums.CheckoutStepReview,
			"last_error": cause.Error(),
		}); err != nil {
			s.logger.Error(ctx, "save checkout session", err)
		}
	}
}

// requireOpenCheckout rejects stepper edits while the cart is empty.
func (s *service) requireOpenCheckout(ctx context.Context, userID uuid.UUID) error {
	view, err := s.cart.GetCart(ctx, userID)
	if err != nil {
		return err
	}
	if view.IsEmpty() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}
	return nil
}

func (s *service) loadOrNewSession(ctx context.Context, userID uuid.UUID) *models.CheckoutSession {
	session, err := s.sessions.FindByUser(ctx, userID)
	if err != nil {
		return &models.CheckoutSession{UserID: userID, Step: enums.CheckoutStepAddress}
	}
	return session
}

func (s *service) quote(ctx context.Context, userID uuid.UUID, method enums.PaymentMethod) (*Quote, error) {
	view, err := s.cart.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if view.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}
	fee := s.shipping.Fee(method, view.Subtotal)
	return &Quote{
		Subtotal:        view.Subtotal,
		ShippingCharges: fee,
		Total:           view.Subtotal.Add(fee),
		ItemCount:       view.ItemCount,
	}, nil
}

func (s *service) view(ctx context.Context, userID uuid.UUID, session *models.CheckoutSession) (*View, error) {
	out := &View{
		Step:            session.Step,
		AddressID:       session.AddressID,
		PaymentMethod:   session.PaymentMethod,
		PaymentProvider: session.PaymentProvider,
		TempOrderID:     session.TempOrderID,
		LastError:       session.LastError,
		Methods:         s.methods(),
	}
	if session.PaymentMethod != nil {
		quote, err := s.quote(ctx, userID, *session.PaymentMethod)
		if err == nil {
			out.Quote = quote
		}
	}
	return out, nil
}

func placementScope(userID uuid.UUID) string {
	return "placement:" + userID.String()
}

func newTempOrderID() string {
	return "TMP-" + strings.ToUpper(uuid.NewString()[:12])
}
