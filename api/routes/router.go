package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	checkoutsvc "github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	idempotency redis.IdempotencyStore,
	gatherer prometheus.Gatherer,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisP,
		}))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Use(middleware.Identity(logg))

		r.Get("/summary", controllers.CheckoutSummary(checkoutService, logg))
		r.Post("/refresh", controllers.CheckoutRefresh(checkoutService, logg))
		r.Post("/pending", controllers.CheckoutSavePending(checkoutService, logg))
		r.Post("/vouchers", controllers.CheckoutApplyVoucher(checkoutService, logg))
		r.Delete("/vouchers/{code}", controllers.CheckoutRemoveVoucher(checkoutService, logg))
		r.With(middleware.Idempotency(idempotency, cfg.Checkout.IdempotencyTTL, logg)).Post("/", controllers.CheckoutSubmit(checkoutService, logg))
		r.Get("/orders/{orderId}", controllers.CheckoutOrderDetail(ordersService, logg))
	})

	return r
}
