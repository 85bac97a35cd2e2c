package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terroirco/farmlot-backend/api/controllers"
	"github.com/terroirco/farmlot-backend/api/middleware"
	"github.com/terroirco/farmlot-backend/internal/catalog"
	"github.com/terroirco/farmlot-backend/internal/lots"
	"github.com/terroirco/farmlot-backend/internal/opensales"
	"github.com/terroirco/farmlot-backend/internal/reservations"
	"github.com/terroirco/farmlot-backend/internal/users"
	"github.com/terroirco/farmlot-backend/pkg/config"
	"github.com/terroirco/farmlot-backend/pkg/db"
	"github.com/terroirco/farmlot-backend/pkg/enums"
	"github.com/terroirco/farmlot-backend/pkg/logger"
	"github.com/terroirco/farmlot-backend/pkg/metrics"
	"github.com/terroirco/farmlot-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	reqMetrics *metrics.RequestMetrics,
	userService users.Service,
	catalogService catalog.Service,
	lotService lots.Service,
	reservationService reservations.Service,
	openSaleService opensales.Service,
	statsRepo *lots.StatsRepository,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, reqMetrics),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
			Post("/login", controllers.AuthLogin(userService, logg))
		r.Post("/register", controllers.AuthRegister(userService, logg))
	})

	// Public storefront.
	r.Route("/api/v1/public", func(r chi.Router) {
		r.Get("/lots", controllers.LotsCatalog(lotService, logg))
		r.Get("/lots/recent", controllers.LotsRecent(lotService, logg))
		r.Get("/types", controllers.TypesList(catalogService, logg))
		r.Get("/products", controllers.ProductsList(catalogService, logg))
		r.Get("/products/{productID}", controllers.ProductsGet(catalogService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/auth/me", controllers.AuthMe(userService, logg))
		r.With(middleware.RequireRole(enums.UserRoleManager, logg)).
			Post("/auth/staff", controllers.AdminCreateStaff(userService, logg))

		r.Route("/lots", func(r chi.Router) {
			r.Get("/", controllers.LotsList(lotService, logg))
			r.Post("/", controllers.LotsPropose(lotService, logg))
			r.Get("/{lotID}", controllers.LotsGet(lotService, logg))
			r.Patch("/{lotID}/state", controllers.LotsUpdateState(lotService, logg))
			r.Post("/{lotID}/decrease", controllers.LotsDecreaseQuantity(lotService, logg))
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", controllers.ReservationsListMine(reservationService, logg))
			r.Post("/", controllers.ReservationsCreate(reservationService, logg))
			r.With(middleware.RequireStaff(logg)).
				Get("/all", controllers.ReservationsListAll(reservationService, logg))
			r.Get("/{reservationID}", controllers.ReservationsGet(reservationService, logg))
			r.Post("/{reservationID}/cancel", controllers.ReservationsCancel(reservationService, logg))
			r.With(middleware.RequireStaff(logg)).
				Patch("/{reservationID}/state", controllers.ReservationsUpdateState(reservationService, logg))
		})

		r.Route("/open-sales", func(r chi.Router) {
			r.Use(middleware.RequireStaff(logg))
			r.Get("/", controllers.OpenSalesList(openSaleService, logg))
			r.Post("/", controllers.OpenSalesCreate(openSaleService, logg))
			r.Get("/{saleID}", controllers.OpenSalesGet(openSaleService, logg))
		})

		r.Route("/catalog", func(r chi.Router) {
			r.With(middleware.RequireRole(enums.UserRoleManager, logg)).
				Post("/types", controllers.TypesCreate(catalogService, logg))
			r.With(middleware.RequireRole(enums.UserRoleManager, logg)).
				Post("/products", controllers.ProductsCreate(catalogService, logg))
			r.Post("/producers", controllers.ProducersRegister(catalogService, logg))
		})

		r.Route("/stats", func(r chi.Router) {
			r.Use(middleware.RequireStaff(logg))
			r.Get("/sales-per-day", controllers.StatsSalesPerDay(statsRepo, logg))
			r.Get("/lots-and-sales", controllers.StatsLotsAndSales(statsRepo, logg))
		})
	})

	return r
}
