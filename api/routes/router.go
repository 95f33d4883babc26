package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopzone/shopzone-backend/api/controllers"
	"github.com/shopzone/shopzone-backend/api/middleware"
	authsvc "github.com/shopzone/shopzone-backend/internal/auth"
	cartsvc "github.com/shopzone/shopzone-backend/internal/cart"
	catalogsvc "github.com/shopzone/shopzone-backend/internal/catalog"
	checkoutsvc "github.com/shopzone/shopzone-backend/internal/checkout"
	"github.com/shopzone/shopzone-backend/pkg/config"
	"github.com/shopzone/shopzone-backend/pkg/db"
	"github.com/shopzone/shopzone-backend/pkg/enums"
	"github.com/shopzone/shopzone-backend/pkg/logger"
	"github.com/shopzone/shopzone-backend/pkg/metrics"
	"github.com/shopzone/shopzone-backend/pkg/redis"
)

// Deps carries everything the router needs wired in.
type Deps struct {
	Cfg         *config.Config
	Logg        *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	HTTPMetrics *metrics.HTTPMetrics
	MetricsH    http.Handler

	Auth     authsvc.Service
	Catalog  catalogsvc.Service
	Cart     cartsvc.Service
	Checkout checkoutsvc.Service
}

// NewRouter assembles the HTTP surface.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Cfg
	logg := deps.Logg

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginPhoneLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.Live())
		r.Get("/ready", controllers.Ready(deps.DB, deps.Redis, logg))
	})

	metricsHandler := deps.MetricsH
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.Login(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/register", controllers.Register(deps.Auth, logg))
		r.Post("/verify", controllers.VerifyOTP(deps.Auth, logg))
		r.Post("/refresh", controllers.Refresh(deps.Auth, logg))
		r.Post("/otp/resend", controllers.ResendOTP(deps.Auth, logg))
		r.Post("/reset-password", controllers.RequestPasswordReset(deps.Auth, logg))
		r.Post("/reset-password/verify", controllers.VerifyPasswordResetOTP(deps.Auth, logg))
		r.Post("/reset-password/confirm", controllers.ResetPassword(deps.Auth, logg))
	})

	// Catalog browsing is public; everything below requires a token.
	r.Get("/products", controllers.ListProducts(deps.Catalog, logg))
	r.Route("/category", func(r chi.Router) {
		r.Get("/", controllers.ListCategories(deps.Catalog, logg))
		r.Post("/", controllers.CreateCategory(deps.Catalog, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/api/v1/auth/change-password", controllers.ChangePassword(deps.Auth, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(deps.Cart, logg))
			r.Post("/add", controllers.AddCartItems(deps.Cart, logg))
			r.Patch("/update_remove", controllers.UpdateOrRemoveCartItem(deps.Cart, logg))
		})

		r.Post("/payments", controllers.CreatePayment(deps.Checkout, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin.String(), logg))
			r.Post("/products", controllers.BulkCreateProducts(deps.Catalog, logg))
			r.Patch("/products/{categoryID}", controllers.BulkDeleteProducts(deps.Catalog, logg))
		})
	})

	return r
}
