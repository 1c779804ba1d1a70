package http

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/comeencasa/restaurant-api/internal/auth"
	"github.com/comeencasa/restaurant-api/internal/domain"
	"github.com/comeencasa/restaurant-api/internal/service"
	"github.com/comeencasa/restaurant-api/pkg/health"
	"github.com/comeencasa/restaurant-api/pkg/httputil"
	"github.com/comeencasa/restaurant-api/pkg/middleware"
)

// WelcomeMessage is served at the root path.
const WelcomeMessage = "Bienvenido a la API de Come en Casa"

const menuCacheSeconds = 30

// Services groups what the router dispatches to.
type Services struct {
	Auth   *service.AuthService
	Menu   *service.MenuService
	Orders *service.OrderService
}

// Guards groups the two access gates.
type Guards struct {
	Bearer *auth.BearerGuard
	Admin  *auth.BasicAuthGuard
}

// Options holds router settings that come from configuration.
type Options struct {
	ServiceName string
	CORS        middleware.CORSConfig

	// AuthRateLimit throttles /auth per client when set.
	AuthRateLimit *middleware.RateLimitConfig

	// PprofAllowlist mounts /debug/pprof, behind the admin gate, for these
	// networks. Empty leaves it unmounted.
	PprofAllowlist []netip.Prefix
}

// NewRouter creates a chi router with every route of the API registered.
func NewRouter(
	services Services,
	guards Guards,
	healthHandler *health.Handler,
	logger *slog.Logger,
	opts Options,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(opts.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(opts.ServiceName))
	r.Use(middleware.Tracing(opts.ServiceName))
	r.Use(middleware.RequestLogger(logger))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteData(w, http.StatusOK, map[string]string{"message": WelcomeMessage})
	})

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	if len(opts.PprofAllowlist) > 0 {
		middleware.RegisterPprof(r, opts.PprofAllowlist, logger, guards.Admin.Middleware)
	}

	authHandler := NewAuthHandler(services.Auth, logger)
	userHandler := NewUserHandler(services.Auth, logger)
	menuHandler := NewMenuHandler(services.Menu, logger)
	orderHandler := NewOrderHandler(services.Orders, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Auth endpoints (public)
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.NoStore)
			if opts.AuthRateLimit != nil {
				r.Use(middleware.RateLimit(*opts.AuthRateLimit, logger))
			}

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.With(guards.Bearer.Require("")).Post("/logout", authHandler.Logout)
		})

		// Menu reads (public)
		r.Route("/menu", func(r chi.Router) {
			r.Use(middleware.CacheControl(menuCacheSeconds))

			r.Get("/", menuHandler.List)
			r.Get("/{id}", menuHandler.Get)
		})

		// Bearer-authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Use(guards.Bearer.Require(""))

			r.Get("/users/me", userHandler.Me)

			r.Post("/orders", orderHandler.Create)
			r.Get("/orders", orderHandler.ListMine)
			r.Get("/orders/{id}", orderHandler.Get)
			r.Post("/orders/{id}/cancel", orderHandler.Cancel)
		})

		// Staff endpoints (bearer, admin role)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Use(guards.Bearer.Require(domain.RoleAdmin))

			r.Put("/orders/{id}/status", orderHandler.UpdateStatus)
			r.Get("/staff/orders", orderHandler.ListAll)
		})

		// Admin endpoints (basic auth)
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Use(guards.Admin.Middleware)

			r.Delete("/users/{id}", userHandler.Delete)

			r.Post("/menu", menuHandler.Create)
			r.Put("/menu/{id}", menuHandler.Update)
			r.Delete("/menu/{id}", menuHandler.Delete)
		})
	})

	return r
}
