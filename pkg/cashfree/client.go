package cashfree

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/priyankdesai/storefront-backend/pkg/config"
	pkgerrors "github.com/priyankdesai/storefront-backend/pkg/errors"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	apiVersion     = "2023-08-01"
	requestTimeout = 15 * time.Second
)

// Order statuses reported by the gateway.
const (
	OrderStatusActive     = "ACTIVE"
	OrderStatusPaid       = "PAID"
	OrderStatusExpired    = "EXPIRED"
	OrderStatusTerminated = "TERMINATED"
)

var (
	errAppIDRequired     = errors.New("cashfree app id is required")
	errSecretKeyRequired = errors.New("cashfree secret key is required")
	errLoggerRequired    = errors.New("cashfree logger is required")
	errInvalidEnv        = fmt.Errorf("cashfree environment must be %q or %q", sandboxEnv, productionEnv)
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://sandbox.cashfree.com/pg",
	productionEnv: "https://api.cashfree.com/pg",
}

var hostedPageURLs = map[string]string{
	sandboxEnv:    "https://payments-test.cashfree.com/order/#%s",
	productionEnv: "https://payments.cashfree.com/order/#%s",
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Session is an opened checkout session on the gateway. The token drives the
// drop-in SDK and the hosted link is the fallback when the SDK cannot load.
type Session struct {
	OrderID          string
	PaymentSessionID string
	HostedPageURL    string
	Status           string
}

// OrderState is the gateway's view of an order when polled for verification.
type OrderState struct {
	OrderID string
	Status  string
	Amount  decimal.Decimal
}

// SessionCreateParams describes a checkout session to open.
type SessionCreateParams struct {
	OrderID       string
	Amount        decimal.Decimal
	Currency      string
	CustomerID    string
	CustomerPhone string
	ReturnURL     string
}

// Client exposes Cashfree primitives with centralized auth, logging, and error mapping.
type Client struct {
	http        httpDoer
	appID       string
	secretKey   string
	environment string
	baseURL     string
	logger      *logger.Logger
}

// NewClient initializes the Cashfree wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.CashfreeConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env := cfg.Environment()
	baseURL, ok := baseURLs[env]
	if !ok {
		return nil, errInvalidEnv
	}
	appID := strings.TrimSpace(cfg.AppID)
	if appID == "" {
		return nil, errAppIDRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}

	c := &Client{
		http:        &http.Client{Timeout: requestTimeout},
		appID:       appID,
		secretKey:   secretKey,
		environment: env,
		baseURL:     baseURL,
		logger:      logg,
	}

	logg.Info(ctx, "cashfree client initialized")
	return c, nil
}

// Environment reports the normalized Cashfree environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateSession opens a checkout session for the given order.
func (c *Client) CreateSession(ctx context.Context, params SessionCreateParams) (*Session, error) {
	if strings.TrimSpace(params.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cashfree order id is required")
	}
	currency := strings.TrimSpace(params.Currency)
	if currency == "" {
		currency = "INR"
	}

	payload := map[string]interface{}{
		"order_id":       params.OrderID,
		"order_amount":   params.Amount.InexactFloat64(),
		"order_currency": currency,
		"customer_details": map[string]interface{}{
			"customer_id":    params.CustomerID,
			"customer_phone": params.CustomerPhone,
		},
	}
	if url := strings.TrimSpace(params.ReturnURL); url != "" {
		payload["order_meta"] = map[string]interface{}{"return_url": url}
	}

	c.log(ctx, "request", "create_session", map[string]any{
		"order_id": params.OrderID,
		"amount":   params.Amount.String(),
		"currency": currency,
	})

	var resp struct {
		OrderID          string `json:"order_id"`
		PaymentSessionID string `json:"payment_session_id"`
		OrderStatus      string `json:"order_status"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", payload, &resp); err != nil {
		c.log(ctx, "error", "create_session", map[string]any{"error": err.Error()})
		return nil, err
	}

	session := &Session{
		OrderID:          resp.OrderID,
		PaymentSessionID: resp.PaymentSessionID,
		HostedPageURL:    fmt.Sprintf(hostedPageURLs[c.environment], resp.PaymentSessionID),
		Status:           resp.OrderStatus,
	}
	c.log(ctx, "response", "create_session", map[string]any{
		"order_id": session.OrderID,
		"status":   session.Status,
	})
	return session, nil
}

// GetOrder polls the gateway for the current state of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*OrderState, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cashfree order id is required")
	}

	c.log(ctx, "request", "get_order", map[string]any{"order_id": orderID})

	var resp struct {
		OrderID     string  `json:"order_id"`
		OrderStatus string  `json:"order_status"`
		OrderAmount float64 `json:"order_amount"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/"+orderID, nil, &resp); err != nil {
		c.log(ctx, "error", "get_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	state := &OrderState{
		OrderID: resp.OrderID,
		Status:  resp.OrderStatus,
		Amount:  decimal.NewFromFloat(resp.OrderAmount),
	}
	c.log(ctx, "response", "get_order", map[string]any{
		"order_id": state.OrderID,
		"status":   state.Status,
	})
	return state, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cashfree request encoding failed")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cashfree request build failed")
	}
	req.Header.Set("x-client-id", c.appID)
	req.Header.Set("x-client-secret", c.secretKey)
	req.Header.Set("x-api-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cashfree request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cashfree response read failed")
	}

	if resp.StatusCode >= 400 {
		return c.mapAPIError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cashfree response decoding failed")
		}
	}
	return nil
}

func (c *Client) mapAPIError(status int, raw []byte) error {
	var apiErr struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Type    string `json:"type"`
	}
	_ = json.Unmarshal(raw, &apiErr)
	message := strings.TrimSpace(apiErr.Message)
	if message == "" {
		message = "cashfree request rejected"
	}

	code := domainCodeForStatus(status)
	cause := fmt.Errorf("cashfree %s (%s): %s", apiErr.Type, apiErr.Code, message)
	return pkgerrors.Wrap(code, cause, message)
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("cashfree %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("cashfree %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"secret", "token", "session", "phone", "email"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
