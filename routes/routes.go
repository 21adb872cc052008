package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/commerce-gateway/app"
	"github.com/upb/commerce-gateway/config"
	mw "github.com/upb/commerce-gateway/middleware"
	"github.com/upb/commerce-gateway/models"
	"github.com/upb/commerce-gateway/utils"
)

// SetupRoutes builds the router for deps.Config.Service
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := newRouter(deps)

	switch deps.Config.Service {
	case config.ServiceGateway:
		gatewayRoutes(r, deps)
	case config.ServiceAuth:
		authRoutes(r, deps)
	case config.ServiceAgent:
		agentRoutes(r, deps)
	}

	return r
}

// newRouter installs the middleware and endpoints every service shares
func newRouter(deps *app.Dependencies) chi.Router {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	// the gateway is the edge; client X-Forwarded-For is never trusted there
	if deps.Config.Service != config.ServiceGateway {
		r.Use(middleware.RealIP)
	}
	r.Use(mw.RequestLogger(deps.Logger, deps.Metrics))
	r.Use(middleware.Recoverer)
	if timeout := deps.Config.Server.RequestTimeout; timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.Health.HandleHealth)
	r.Get("/readyz", deps.Health.HandleReadiness)

	if deps.Metrics != nil {
		r.With(
			deps.AuthMiddleware.RequireAuth,
			deps.AuthMiddleware.RequireRole(models.RoleAdmin),
		).Handle("/metrics", deps.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}

// gatewayRoutes sends everything that is not a local endpoint through the
// edge enforcer to the upstream proxy
func gatewayRoutes(r chi.Router, deps *app.Dependencies) {
	r.Handle("/*", deps.Edge.Handler(deps.Proxy))
}

func authRoutes(r chi.Router, deps *app.Dependencies) {
	r.Post("/login", deps.AuthHandler.HandleLogin)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", deps.AuthHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/me", deps.AccountHandler.HandleCurrentPrincipal)

			// Account administration (require admin role)
			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireRole(models.RoleAdmin))
				r.Get("/users", deps.AccountHandler.HandleListAccounts)
				r.Post("/users", deps.AccountHandler.HandleRegister)
				r.Post("/addRoleToUser", deps.AccountHandler.HandleGrantRole)
			})
		})
	})
}

func agentRoutes(r chi.Router, deps *app.Dependencies) {
	r.Get("/chat", deps.ChatHandler.HandleChat)
}
