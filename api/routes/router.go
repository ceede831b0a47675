package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/priyankdesai/storefront-backend/api/controllers"
	webhookcontrollers "github.com/priyankdesai/storefront-backend/api/controllers/webhooks"
	"github.com/priyankdesai/storefront-backend/api/middleware"
	addresssvc "github.com/priyankdesai/storefront-backend/internal/address"
	"github.com/priyankdesai/storefront-backend/internal/cart"
	checkoutsvc "github.com/priyankdesai/storefront-backend/internal/checkout"
	"github.com/priyankdesai/storefront-backend/internal/orders"
	razorpaywebhook "github.com/priyankdesai/storefront-backend/internal/webhooks/razorpay"
	"github.com/priyankdesai/storefront-backend/pkg/config"
	"github.com/priyankdesai/storefront-backend/pkg/db"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
	"github.com/priyankdesai/storefront-backend/pkg/razorpay"
	"github.com/priyankdesai/storefront-backend/pkg/redis"
)

// NewRouter wires the HTTP surface. The razorpay client, webhook service and
// guard may be nil when the gateway is not configured; the webhook route then
// replies with a service error instead of panicking.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	cartService cart.Service,
	addressService addresssvc.Service,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	methods checkoutsvc.MethodsResolver,
	razorpayClient *razorpay.Client,
	razorpayWebhookService *razorpaywebhook.Service,
	razorpayWebhookGuard *razorpaywebhook.EventGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Assign through interface variables so a nil *Service stays a nil
	// interface and the controller's guards fire.
	var webhookService webhookcontrollers.RazorpayWebhookService
	if razorpayWebhookService != nil {
		webhookService = razorpayWebhookService
	}
	var webhookVerifier webhookcontrollers.RazorpayVerifier
	if razorpayClient != nil {
		webhookVerifier = razorpayClient
	}
	var webhookGuard webhookcontrollers.RazorpayWebhookGuard
	if razorpayWebhookGuard != nil {
		webhookGuard = razorpayWebhookGuard
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(webhookService, webhookVerifier, webhookGuard, logg))
	})

	var idemStore redis.IdempotencyStore
	var limitStore middleware.RateLimitStore
	if redisClient != nil {
		idemStore = redisClient
		limitStore = redisClient
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(addressService, logg))
			r.Post("/", controllers.AddressCreate(addressService, logg))
			r.Post("/{addressId}/default", controllers.AddressSetDefault(addressService, logg))
			r.Delete("/{addressId}", controllers.AddressDelete(addressService, logg))
		})

		r.Get("/payments/config", controllers.PaymentMethods(methods, logg))

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", controllers.CheckoutCurrent(checkoutService, logg))
			r.Post("/address", controllers.CheckoutSelectAddress(checkoutService, logg))
			r.Post("/payment", controllers.CheckoutSelectPayment(checkoutService, logg))
			r.Post("/back", controllers.CheckoutBack(checkoutService, logg))
			r.With(middleware.RateLimit(limitStore, "checkout-place", cfg.Checkout.PlaceRateLimit, cfg.Checkout.PlaceRateWindow, logg)).
				Post("/place", controllers.CheckoutPlace(checkoutService, logg))
			r.Post("/confirm", controllers.CheckoutConfirm(checkoutService, logg))
			r.Post("/abort", controllers.CheckoutAbort(checkoutService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(ordersService, logg))
			r.Get("/{orderId}", controllers.OrderFetch(ordersService, logg))
			r.Post("/{orderId}/items/{itemId}/cancel", controllers.OrderCancelItem(ordersService, logg))
			r.Post("/{orderId}/items/{itemId}/refund", controllers.OrderRequestRefund(ordersService, logg))
		})
	})

	return r
}
