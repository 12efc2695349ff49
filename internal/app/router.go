package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/bakery-erp/internal/accounting"
	"github.com/odyssey-erp/bakery-erp/internal/inventory"
	"github.com/odyssey-erp/bakery-erp/internal/masterdata/locations"
	"github.com/odyssey-erp/bakery-erp/internal/masterdata/products"
	"github.com/odyssey-erp/bakery-erp/internal/masterdata/taxes"
	"github.com/odyssey-erp/bakery-erp/internal/observability"
	"github.com/odyssey-erp/bakery-erp/internal/posting"
	"github.com/odyssey-erp/bakery-erp/internal/settings"
	"github.com/odyssey-erp/bakery-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router. Nil
// handlers are not mounted.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	PostingHandler    *posting.Handler
	InventoryHandler  *inventory.Handler
	AccountingHandler *accounting.Handler
	SettingsHandler   *settings.Handler
	ProductsHandler   *products.Handler
	LocationsHandler  *locations.Handler
	TaxesHandler      *taxes.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	// Ready reports dependency health for /healthz.
	Ready func(r *http.Request) error
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Ready != nil {
			if err := params.Ready(req); err != nil {
				logger.Warn("health check failed", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		if params.PostingHandler != nil {
			params.PostingHandler.MountRoutes(api)
		}
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(api)
		}
		if params.AccountingHandler != nil {
			params.AccountingHandler.MountRoutes(api)
		}
		if params.SettingsHandler != nil {
			params.SettingsHandler.MountRoutes(api)
		}
		if params.ProductsHandler != nil {
			params.ProductsHandler.MountRoutes(api)
		}
		if params.LocationsHandler != nil {
			params.LocationsHandler.MountRoutes(api)
		}
		if params.TaxesHandler != nil {
			params.TaxesHandler.MountRoutes(api)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})
	return r
}
