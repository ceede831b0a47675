package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/priyankdesai/storefront-backend/pkg/config"
	pkgerrors "github.com/priyankdesai/storefront-backend/pkg/errors"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
)

func TestNewClientValidatesCredentials(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})

	if _, err := NewClient(context.Background(), config.RazorpayConfig{}, logg); !errors.Is(err, errKeyIDRequired) {
		t.Fatalf("expected key id error, got %v", err)
	}
	if _, err := NewClient(context.Background(), config.RazorpayConfig{KeyID: "rzp_test_abc"}, logg); !errors.Is(err, errKeySecretRequired) {
		t.Fatalf("expected key secret error, got %v", err)
	}
	if _, err := NewClient(context.Background(), config.RazorpayConfig{KeyID: "rzp_test_abc", KeySecret: "sec"}, nil); !errors.Is(err, errLoggerRequired) {
		t.Fatalf("expected logger error, got %v", err)
	}

	c, err := NewClient(context.Background(), config.RazorpayConfig{KeyID: "rzp_test_abc", KeySecret: "sec"}, logg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ClientKey() != "rzp_test_abc" {
		t.Fatalf("expected client key to echo key id, got %q", c.ClientKey())
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("webhook_secret", "abc"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if out := c.redact("razorpay_signature", "sig"); out != "[REDACTED]" {
		t.Fatalf("expected redacted signature, got %v", out)
	}
	if out := c.redact("order_id", "order_123"); out != "order_123" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestMapError(t *testing.T) {
	c := &Client{}
	table := []struct {
		name     string
		err      error
		wantCode pkgerrors.Code
	}{
		{"auth failure", errors.New("Authentication failed"), pkgerrors.CodeUnauthorized},
		{"bad request", errors.New("BAD_REQUEST_ERROR: amount invalid"), pkgerrors.CodeValidation},
		{"missing order", errors.New("The id provided does not exist"), pkgerrors.CodeNotFound},
		{"network", errors.New("connection reset"), pkgerrors.CodeDependency},
	}
	for _, tt := range table {
		mapped := c.mapError(tt.err, "operation")
		typed := pkgerrors.As(mapped)
		if typed == nil {
			t.Fatalf("%s: result is not a domain error", tt.name)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tt.name, tt.wantCode, typed.Code())
		}
	}
}

func TestPayloadFieldHelpers(t *testing.T) {
	payload := map[string]interface{}{
		"id":     "order_123",
		"amount": float64(65000),
		"count":  3,
	}
	if got := stringField(payload, "id"); got != "order_123" {
		t.Fatalf("unexpected string field %q", got)
	}
	if got := int64Field(payload, "amount"); got != 65000 {
		t.Fatalf("unexpected amount %d", got)
	}
	if got := int64Field(payload, "count"); got != 3 {
		t.Fatalf("unexpected count %d", got)
	}
	if got := int64Field(payload, "missing"); got != 0 {
		t.Fatalf("expected zero for missing field, got %d", got)
	}
}

func TestVerifyPaymentSignature(t *testing.T) {
	c := &Client{keySecret: "sec"}
	mac := hmac.New(sha256.New, []byte("sec"))
	mac.Write([]byte("order_123|pay_456"))
	sig := hex.EncodeToString(mac.Sum(nil))

	if !c.VerifyPaymentSignature("order_123", "pay_456", sig) {
		t.Fatal("expected matching signature to verify")
	}
	if c.VerifyPaymentSignature("order_123", "pay_456", "deadbeef") {
		t.Fatal("expected mismatched signature to fail")
	}
	var nilClient *Client
	if nilClient.VerifyPaymentSignature("order_123", "pay_456", sig) {
		t.Fatal("expected nil client to fail verification")
	}
}

func TestVerifyWebhookSignatureRequiresSecret(t *testing.T) {
	c := &Client{}
	if c.VerifyWebhookSignature([]byte(`{}`), "sig") {
		t.Fatal("expected verification to fail without a webhook secret")
	}
}
