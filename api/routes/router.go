package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/cartline-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/cartline-backend/api/controllers/cart"
	checkoutcontrollers "github.com/angelmondragon/cartline-backend/api/controllers/checkout"
	ordercontrollers "github.com/angelmondragon/cartline-backend/api/controllers/orders"
	"github.com/angelmondragon/cartline-backend/api/middleware"
	"github.com/angelmondragon/cartline-backend/internal/cart"
	"github.com/angelmondragon/cartline-backend/internal/checkout"
	"github.com/angelmondragon/cartline-backend/internal/orders"
	"github.com/angelmondragon/cartline-backend/pkg/config"
	"github.com/angelmondragon/cartline-backend/pkg/enums"
	"github.com/angelmondragon/cartline-backend/pkg/logger"
	"github.com/angelmondragon/cartline-backend/pkg/redis"
)

// Dependencies are the services and health checks the router mounts.
type Dependencies struct {
	Cart        cart.Service
	Checkout    checkout.Service
	Orders      orders.Service
	Idempotency redis.IdempotencyStore
	Readiness   map[string]controllers.Pinger
	Metrics     prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleUser))
			r.Use(middleware.Idempotency(deps.Idempotency, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Post("/add", cartcontrollers.AddItem(deps.Cart, logg))
				r.Post("/item-increase", cartcontrollers.IncreaseItem(deps.Cart, logg))
				r.Post("/item-decrease", cartcontrollers.DecreaseItem(deps.Cart, logg))
				r.Get("/viewcart", cartcontrollers.ViewCart(deps.Cart, logg))
				r.Delete("/removeitem", cartcontrollers.RemoveItem(deps.Cart, logg))
				r.Delete("/clearcart", cartcontrollers.ClearCart(deps.Cart, logg))
			})

			r.Get("/checkout", checkoutcontrollers.Preview(deps.Checkout, logg))
			r.Post("/place-order", checkoutcontrollers.PlaceOrder(deps.Checkout, logg))
			r.Get("/getorders", ordercontrollers.ListForUser(deps.Orders, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleMerchant))
			r.Get("/orders-received", ordercontrollers.ListForMerchant(deps.Orders, logg))
		})
	})

	return r
}
