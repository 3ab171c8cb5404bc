package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shades-uz/api/internal/platform/httpx"
)

// RouteRegistrar mounts a handler group's routes on the given router.
type RouteRegistrar func(r chi.Router)

const (
	defaultAPIPrefix = "/api/v1"
	defaultTimeout   = 60 * time.Second
)

// apiGroups fixes the mount order of the /api/v1 sub-routers.
var apiGroups = []string{"auth", "catalog", "price", "orders", "windows", "shades", "users"}

type routerConfig struct {
	basePath    string
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers
	registrars  map[string]RouteRegistrar
	groupMW     map[string][]func(http.Handler) http.Handler
}

// Option customises the router before construction.
type Option func(*routerConfig)

// NewRouter assembles the chi router: global middleware, health probes
// outside the API prefix, and one sub-router per handler group. Groups
// without a registrar answer 501 so a partial deploy fails loudly.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
		registrars: make(map[string]RouteRegistrar),
		groupMW:    make(map[string][]func(http.Handler) http.Handler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.basePath, func(api chi.Router) {
		for _, name := range apiGroups {
			name := name
			api.Route("/"+name, func(group chi.Router) {
				for _, mw := range cfg.groupMW[name] {
					if mw != nil {
						group.Use(mw)
					}
				}
				if registrar := cfg.registrars[name]; registrar != nil {
					registrar(group)
					return
				}
				registerNotImplemented(group, name)
			})
		}
	})

	return r
}

// WithMiddlewares appends global middleware after the defaults.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers overrides the /healthz and /readyz handlers.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

func withGroup(name string, reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.registrars[name] = reg
	}
}

// WithAuthRoutes mounts the session endpoints under /auth.
func WithAuthRoutes(reg RouteRegistrar) Option { return withGroup("auth", reg) }

// WithCatalogRoutes mounts the catalog endpoints under /catalog.
func WithCatalogRoutes(reg RouteRegistrar) Option { return withGroup("catalog", reg) }

// WithPricingRoutes mounts the price calculation endpoints under /price.
func WithPricingRoutes(reg RouteRegistrar) Option { return withGroup("price", reg) }

// WithOrderRoutes mounts the order endpoints under /orders.
func WithOrderRoutes(reg RouteRegistrar) Option { return withGroup("orders", reg) }

// WithOrderMiddlewares adds middleware to the /orders group only, used
// for the idempotency guard on order mutations.
func WithOrderMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.groupMW["orders"] = append(cfg.groupMW["orders"], mw...)
	}
}

// WithWindowRoutes mounts the window endpoints under /windows.
func WithWindowRoutes(reg RouteRegistrar) Option { return withGroup("windows", reg) }

// WithShadeRoutes mounts the shade endpoints under /shades.
func WithShadeRoutes(reg RouteRegistrar) Option { return withGroup("shades", reg) }

// WithUserRoutes mounts the account endpoints under /users.
func WithUserRoutes(reg RouteRegistrar) Option { return withGroup("users", reg) }

func registerNotImplemented(r chi.Router, name string) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", name+" routes not implemented", http.StatusNotImplemented))
	})
	r.NotFound(handler)
	r.MethodNotAllowed(handler)
	r.Handle("/", handler)
	r.Handle("/*", handler)
}
