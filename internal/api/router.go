package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safar/go-shop-api/internal/auth"
	"github.com/safar/go-shop-api/internal/catalog"
	"github.com/safar/go-shop-api/internal/customers"
	"github.com/safar/go-shop-api/internal/orders"
)

type Options struct {
	CORSAllowedOrigins []string
	// RateLimitRequests per RateLimitWindow and client IP. Zero disables
	// rate limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// ProtectResources requires authentication on the resource endpoints.
	ProtectResources bool
	// Health reports dependency health for /healthz. Nil always reports ok.
	Health func(ctx context.Context) error
}

type Server struct {
	catalog   *catalog.Service
	customers *customers.Directory
	orders    *orders.Service
	auth      *auth.Middleware
	validate  *validator.Validate
	opts      Options
}

func NewServer(cat *catalog.Service, dir *customers.Directory, ord *orders.Service, verifier auth.Verifier, opts Options) *Server {
	return &Server{
		catalog:   cat,
		customers: dir,
		orders:    ord,
		auth:      auth.NewMiddleware(verifier, dir, writeError),
		validate:  newValidator(),
		opts:      opts,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(instrument)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.opts.RateLimitRequests > 0 {
			r.Use(httprate.Limit(
				s.opts.RateLimitRequests,
				s.opts.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					respondError(w, http.StatusTooManyRequests, "Request was throttled.")
				}),
			))
		}

		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Authenticate)

			r.Route("/api/customer", func(r chi.Router) {
				r.Use(s.auth.RequireCustomer)
				r.Get("/profile", s.handleProfile)
				r.Put("/update", s.handleUpdateProfile)
			})

			r.Group(func(r chi.Router) {
				if s.opts.ProtectResources {
					r.Use(s.auth.RequireAuthenticated)
				}
				s.resourceRoutes(r)
			})
		})
	})

	return r
}

func (s *Server) resourceRoutes(r chi.Router) {
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", s.handleListCategories)
		r.Post("/", s.handleCreateCategory)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetCategory)
			r.Put("/", s.handleUpdateCategory)
			r.Delete("/", s.handleDeleteCategory)
			r.Get("/ancestors", s.handleAncestors)
			r.Get("/descendants", s.handleDescendants)
			r.Get("/tree", s.handleTree)
			r.Get("/average-price", s.handleAveragePrice)
		})
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.handleListProducts)
		r.Post("/", s.handleCreateProduct)
		r.Get("/{id}", s.handleGetProduct)
		r.Put("/{id}", s.handleUpdateProduct)
		r.Delete("/{id}", s.handleDeleteProduct)
	})

	r.Route("/customers", func(r chi.Router) {
		r.Get("/", s.handleListCustomers)
		r.Post("/", s.handleCreateCustomer)
		r.Get("/{id}", s.handleGetCustomer)
		r.Put("/{id}", s.handleUpdateCustomer)
		r.Delete("/{id}", s.handleDeleteCustomer)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", s.handleListOrders)
		r.Post("/", s.handleCreateOrder)
		r.Get("/{id}", s.handleGetOrder)
		r.Put("/{id}", s.handleUpdateOrder)
		r.Delete("/{id}", s.handleDeleteOrder)
	})

	r.Route("/order-item", func(r chi.Router) {
		r.Get("/", s.handleListOrderItems)
		r.Post("/", s.handleCreateOrderItem)
		r.Get("/{id}", s.handleGetOrderItem)
		r.Put("/{id}", s.handleUpdateOrderItem)
		r.Delete("/{id}", s.handleDeleteOrderItem)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Health(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
