package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/priyankdesai/storefront-backend/internal/orders"
	razorpaywebhook "github.com/priyankdesai/storefront-backend/internal/webhooks/razorpay"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
}

type fakeRefundResolver struct {
	mu    sync.Mutex
	calls int
	last  orders.ResolveRefundInput
}

func (f *fakeRefundResolver) ResolveRefund(_ context.Context, input orders.ResolveRefundInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = input
	return nil
}

type fakeSignatureVerifier struct {
	accept bool
}

func (f *fakeSignatureVerifier) VerifyWebhookSignature(_ []byte, _ string) bool {
	return f.accept
}

type memoryIdemStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryIdemStore() *memoryIdemStore {
	return &memoryIdemStore{seen: map[string]bool{}}
}

func (m *memoryIdemStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memoryIdemStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.seen, key)
	}
	return nil
}

func (m *memoryIdemStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func buildRefundEvent(t *testing.T, eventName string, requestID uuid.UUID) []byte {
	t.Helper()
	event := razorpaywebhook.Event{
		Event: eventName,
		Payload: razorpaywebhook.Payload{
			Refund: &razorpaywebhook.RefundWrapper{
				Entity: razorpaywebhook.RefundEntity{
					ID:        "rfnd_" + uuid.NewString()[:8],
					PaymentID: "pay_123",
					Amount:    65000,
					Status:    "processed",
					Notes:     map[string]string{"refund_request_id": requestID.String()},
				},
			},
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func newRazorpayHandler(t *testing.T, resolver *fakeRefundResolver, accept bool) http.HandlerFunc {
	t.Helper()
	svc, err := razorpaywebhook.NewService(razorpaywebhook.ServiceParams{Orders: resolver, Logger: testLogger()})
	if err != nil {
		t.Fatalf("service setup: %v", err)
	}
	guard, err := razorpaywebhook.NewEventGuard(newMemoryIdemStore(), time.Minute)
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return RazorpayWebhook(svc, &fakeSignatureVerifier{accept: accept}, guard, nil)
}

func TestRazorpayWebhook_ProcessedAndIdempotent(t *testing.T) {
	requestID := uuid.New()
	payload := buildRefundEvent(t, "refund.processed", requestID)
	resolver := &fakeRefundResolver{}
	handler := newRazorpayHandler(t, resolver, true)

	eventID := "evt_" + uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(payload))
	req.Header.Set("X-Razorpay-Signature", "sig")
	req.Header.Set("X-Razorpay-Event-Id", eventID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if resolver.calls != 1 {
		t.Fatalf("expected resolver called once, got %d", resolver.calls)
	}
	if resolver.last.RequestID != requestID {
		t.Fatalf("expected request id %s, got %s", requestID, resolver.last.RequestID)
	}

	// Replay the same event id.
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(payload))
	req2.Header.Set("X-Razorpay-Signature", "sig")
	req2.Header.Set("X-Razorpay-Event-Id", eventID)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d", rec2.Code)
	}
	if resolver.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", resolver.calls)
	}
}

func TestRazorpayWebhook_InvalidSignature(t *testing.T) {
	payload := buildRefundEvent(t, "refund.processed", uuid.New())
	resolver := &fakeRefundResolver{}
	handler := newRazorpayHandler(t, resolver, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(payload))
	req.Header.Set("X-Razorpay-Signature", "bad")
	req.Header.Set("X-Razorpay-Event-Id", "evt_1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}
	if resolver.calls != 0 {
		t.Fatalf("resolver should not be invoked on bad signature")
	}
}

func TestRazorpayWebhook_MissingEventID(t *testing.T) {
	payload := buildRefundEvent(t, "refund.processed", uuid.New())
	handler := newRazorpayHandler(t, &fakeRefundResolver{}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(payload))
	req.Header.Set("X-Razorpay-Signature", "sig")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when event id missing, got %d", rec.Code)
	}
}

func TestRazorpayWebhook_IgnoresUnrelatedEvents(t *testing.T) {
	payload := buildRefundEvent(t, "payment.captured", uuid.New())
	resolver := &fakeRefundResolver{}
	handler := newRazorpayHandler(t, resolver, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(payload))
	req.Header.Set("X-Razorpay-Signature", "sig")
	req.Header.Set("X-Razorpay-Event-Id", "evt_2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for ignored event, got %d", rec.Code)
	}
	if resolver.calls != 0 {
		t.Fatalf("resolver should not run for unrelated events")
	}
}
