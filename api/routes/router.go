package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/theluxmining/commerce-backend/api/controllers"
	webhookcontrollers "github.com/theluxmining/commerce-backend/api/controllers/webhooks"
	"github.com/theluxmining/commerce-backend/api/middleware"
	addresssvc "github.com/theluxmining/commerce-backend/internal/address"
	cartsvc "github.com/theluxmining/commerce-backend/internal/cart"
	ordersvc "github.com/theluxmining/commerce-backend/internal/orders"
	paymentsvc "github.com/theluxmining/commerce-backend/internal/payments"
	"github.com/theluxmining/commerce-backend/internal/products"
	shippingsvc "github.com/theluxmining/commerce-backend/internal/shipping"
	stripewebhook "github.com/theluxmining/commerce-backend/internal/webhooks/stripe"
	"github.com/theluxmining/commerce-backend/pkg/config"
	"github.com/theluxmining/commerce-backend/pkg/db"
	"github.com/theluxmining/commerce-backend/pkg/logger"
	"github.com/theluxmining/commerce-backend/pkg/redis"
	"github.com/theluxmining/commerce-backend/pkg/stripe"
)

type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             *db.Client
	Redis          *redis.Client
	ProductRepo    products.Repository
	CartService    cartsvc.Service
	ShippingSvc    shippingsvc.Service
	PaymentSvc     paymentsvc.Service
	OrderSvc       ordersvc.Service
	AddressSvc     addresssvc.Service
	StripeClient   *stripe.Client
	WebhookService *stripewebhook.Service
	WebhookGuard   *stripewebhook.IdempotencyGuard
	MetricsHandler http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/readyz", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.WebhookService, deps.StripeClient, deps.WebhookGuard, logg))
	})

	r.Get("/products", controllers.ProductsList(deps.ProductRepo, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(deps.CartService, logg))
			r.Post("/items", controllers.CartAddItem(deps.CartService, logg))
			r.Patch("/items/{productID}", controllers.CartUpdateItem(deps.CartService, logg))
			r.Delete("/items/{productID}", controllers.CartRemoveItem(deps.CartService, logg))
			r.Post("/quote", controllers.CartQuote(deps.ShippingSvc, logg))
			r.With(middleware.RequireUser(logg)).Post("/migrate", controllers.CartMigrate(deps.CartService, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))
			r.Post("/intent", controllers.CheckoutIntent(deps.PaymentSvc, logg))
			r.Post("/confirm", controllers.CheckoutConfirm(deps.PaymentSvc, logg))
			r.Get("/confirmation", controllers.CheckoutConfirmation(deps.OrderSvc, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))
			r.Get("/", controllers.OrdersList(deps.OrderSvc, logg))
			r.Get("/{id}", controllers.OrderGet(deps.OrderSvc, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))
			r.Get("/", controllers.AddressList(deps.AddressSvc, logg))
			r.Post("/", controllers.AddressCreate(deps.AddressSvc, logg))
			r.Patch("/{id}", controllers.AddressUpdate(deps.AddressSvc, logg))
			r.Delete("/{id}", controllers.AddressDelete(deps.AddressSvc, logg))
			r.Post("/{id}/default", controllers.AddressSetDefault(deps.AddressSvc, logg))
		})
	})

	return r
}
