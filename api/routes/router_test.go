package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	addresssvc "github.com/priyankdesai/storefront-backend/internal/address"
	"github.com/priyankdesai/storefront-backend/internal/cart"
	checkoutsvc "github.com/priyankdesai/storefront-backend/internal/checkout"
	"github.com/priyankdesai/storefront-backend/internal/orders"
	"github.com/priyankdesai/storefront-backend/internal/payments"
	pkgauth "github.com/priyankdesai/storefront-backend/pkg/auth"
	"github.com/priyankdesai/storefront-backend/pkg/config"
	"github.com/priyankdesai/storefront-backend/pkg/db/models"
	"github.com/priyankdesai/storefront-backend/pkg/enums"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
	"github.com/priyankdesai/storefront-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubCartService struct{}

func (stubCartService) GetCart(context.Context, uuid.UUID) (*cart.CartView, error) {
	return &cart.CartView{}, nil
}

func (stubCartService) AddItem(context.Context, uuid.UUID, cart.AddItemInput) (*cart.CartView, error) {
	return &cart.CartView{}, nil
}

func (stubCartService) UpdateQuantity(context.Context, uuid.UUID, uuid.UUID, int) (*cart.CartView, error) {
	return &cart.CartView{}, nil
}

func (stubCartService) RemoveLine(context.Context, uuid.UUID, uuid.UUID) (*cart.CartView, error) {
	return &cart.CartView{}, nil
}

func (stubCartService) Clear(context.Context, uuid.UUID) error { return nil }

type stubAddressService struct{}

func (stubAddressService) List(context.Context, uuid.UUID) ([]models.Address, error) {
	return nil, nil
}

func (stubAddressService) Get(context.Context, uuid.UUID, uuid.UUID) (*models.Address, error) {
	return nil, nil
}

func (stubAddressService) Create(context.Context, uuid.UUID, addresssvc.CreateInput) (*models.Address, error) {
	return &models.Address{}, nil
}

func (stubAddressService) SetDefault(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (stubAddressService) Delete(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type stubCheckoutService struct{}

func (stubCheckoutService) Current(context.Context, uuid.UUID) (*checkoutsvc.View, error) {
	return &checkoutsvc.View{Step: enums.CheckoutStepAddress}, nil
}

func (stubCheckoutService) SelectAddress(context.Context, uuid.UUID, uuid.UUID) (*checkoutsvc.View, error) {
	return &checkoutsvc.View{}, nil
}

func (stubCheckoutService) SelectPayment(context.Context, uuid.UUID, enums.PaymentMethod, *enums.PaymentProvider) (*checkoutsvc.View, error) {
	return &checkoutsvc.View{}, nil
}

func (stubCheckoutService) Back(context.Context, uuid.UUID, enums.CheckoutStep) (*checkoutsvc.View, error) {
	return &checkoutsvc.View{}, nil
}

func (stubCheckoutService) Place(context.Context, uuid.UUID) (*checkoutsvc.PlacementResult, error) {
	return &checkoutsvc.PlacementResult{}, nil
}

func (stubCheckoutService) Confirm(context.Context, uuid.UUID, checkoutsvc.ConfirmInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubCheckoutService) Abort(context.Context, uuid.UUID, string) (*checkoutsvc.View, error) {
	return &checkoutsvc.View{}, nil
}

type stubOrdersService struct{}

func (stubOrdersService) List(context.Context, uuid.UUID) ([]models.Order, error) { return nil, nil }

func (stubOrdersService) Get(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) CancelItem(context.Context, orders.CancelItemInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) RequestRefund(context.Context, orders.RefundRequestInput) (*models.RefundRequest, error) {
	return &models.RefundRequest{}, nil
}

func (stubOrdersService) ResolveRefund(context.Context, orders.ResolveRefundInput) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "storefront",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		stubCartService{},
		stubAddressService{},
		stubCheckoutService{},
		stubOrdersService{},
		func() payments.MethodsView { return payments.MethodsView{} },
		nil,
		nil,
		nil,
	)
}

func bearerToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Phone:  "9876543210",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestProtectedGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestProtectedGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", bearerToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPaymentMethodsRequiresAuth(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/config", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestWebhookRouteIsPublicButGuarded(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	// Wired without a gateway the route answers with a service error, never 401.
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without gateway got %d", resp.Code)
	}
}

func TestCheckoutStepperRoutesExist(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	token := bearerToken(t, cfg)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/checkout"},
		{http.MethodGet, "/api/v1/orders"},
		{http.MethodGet, "/api/v1/addresses"},
		{http.MethodGet, "/api/v1/payments/config"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s %s: expected 200 got %d (%s)", tc.method, tc.path, resp.Code, resp.Body.String())
		}
	}
}
