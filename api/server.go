/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions. This is
  the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind the gateway
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the plant dashboard

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions tunes the middleware.
type RouterOptions struct {
	// CORSOrigins lists allowed origins; empty allows any.
	CORSOrigins []string
}

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", h.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/materials", h.ListMaterials)
		r.Get("/products", h.ListProducts)

		r.Get("/balances", h.ListBalances)
		r.Get("/balances/{class}/{id}", h.GetBalance)
		r.Get("/movements/{class}/{id}", h.ListMovements)
		r.Get("/low-stock", h.LowStock)

		r.Route("/issues", func(r chi.Router) {
			r.Get("/", h.ListIssues)
			r.Get("/{id}", h.GetIssue)
			r.Post("/{id}/post", h.PostIssue)
			r.Post("/{id}/cancel", h.CancelIssue)
		})

		r.Get("/bom-versions/{id}/explode", h.ExplodeBOM)

		r.Route("/receipts", func(r chi.Router) {
			r.Get("/", h.ListReceipts)
			r.Post("/{id}/complete", h.CompleteReceipt)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/{id}/finish", h.FinishOrder)
			r.Post("/{id}/issues", h.CreateIssueFromOrder)
		})

		r.Route("/shipments", func(r chi.Router) {
			r.Get("/", h.ListShipments)
			r.Post("/{id}/ship", h.ShipOrder)
		})

		r.Post("/calibrations", h.Calibrate)
		r.Get("/audit", h.AuditTrail)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/diagnostics", h.Diagnostics)
			r.Post("/rebuild", h.Rebuild)
			r.Post("/recalc", h.Recalc)
			r.Post("/backup", h.Backup)
		})
	})

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service":  "inventory-engine",
			"balances": "/api/balances",
			"issues":   "/api/issues",
			"health":   "/healthz",
		})
	})

	return r
}
