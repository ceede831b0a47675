package razorpaywebhook

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/priyankdesai/storefront-backend/internal/orders"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
	pkgerrors "github.com/priyankdesai/storefront-backend/pkg/errors"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
)

// refundRequestIDNote is written into the refund's notes when the refund is
// initiated at the gateway, and carries the id back on the webhook.
const refundRequestIDNote = "refund_request_id"

type refundResolver interface {
	ResolveRefund(ctx context.Context, input orders.ResolveRefundInput) error
}

// ServiceParams configure the Razorpay webhook service.
type ServiceParams struct {
	Orders refundResolver
	Logger *logger.Logger
}

// Service applies Razorpay refund events to the order lifecycle.
type Service struct {
	orders refundResolver
	logg   *logger.Logger
}

// NewService builds the webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{orders: params.Orders, logg: params.Logger}, nil
}

// Event is the envelope Razorpay posts to the webhook endpoint.
type Event struct {
	Event   string  `json:"event"`
	Payload Payload `json:"payload"`
}

// Payload wraps the entities attached to an event.
type Payload struct {
	Refund *RefundWrapper `json:"refund,omitempty"`
}

// RefundWrapper matches Razorpay's entity nesting.
type RefundWrapper struct {
	Entity RefundEntity `json:"entity"`
}

// RefundEntity is the refund object inside a refund.* event.
type RefundEntity struct {
	ID        string            `json:"id"`
	PaymentID string            `json:"payment_id"`
	Amount    int64             `json:"amount"`
	Status    string            `json:"status"`
	Notes     map[string]string `json:"notes"`
}

// HandleEvent processes refund events. Events the service does not care
// about are acknowledged without action so the gateway stops retrying.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "razorpay event required")
	}

	switch strings.ToLower(event.Event) {
	case "refund.processed":
		return s.resolveRefund(ctx, event.Payload.Refund, enums.RefundStatusRefunded)
	case "refund.failed":
		return s.resolveRefund(ctx, event.Payload.Refund, enums.RefundStatusRejected)
	default:
		return nil
	}
}

func (s *Service) resolveRefund(ctx context.Context, refund *RefundWrapper, outcome enums.RefundStatus) error {
	if refund == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund payload missing")
	}
	requestID, err := requestIDFromNotes(refund.Entity.Notes)
	if err != nil {
		return err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"refund_request_id": requestID.String(),
		"refund_ref":        refund.Entity.ID,
	})
	if err := s.orders.ResolveRefund(ctx, orders.ResolveRefundInput{
		RequestID:         requestID,
		Outcome:           outcome,
		ProviderRefundRef: refund.Entity.ID,
	}); err != nil {
		return err
	}
	s.logg.Info(ctx, "refund webhook applied")
	return nil
}

func requestIDFromNotes(notes map[string]string) (uuid.UUID, error) {
	raw, ok := notes[refundRequestIDNote]
	if !ok || raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "refund notes carry no request id")
	}
	requestID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed refund request id")
	}
	return requestID, nil
}
