package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-user-service/internal/config"
	"go-user-service/internal/handler"
	"go-user-service/internal/middleware"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	System *handler.SystemHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/", h.System.Root)
	r.Get("/health", h.System.Health)

	r.Route("/users", func(users chi.Router) {
		users.Use(middleware.Timeout(cfg.RequestTimeout))

		users.Post("/create", h.Auth.Register)
		users.Post("/login", h.Auth.Login)
		users.Post("/logout", h.Auth.Logout)
		users.With(authMiddleware.RequireAuth).Get("/dashboard", h.Auth.Dashboard)
		users.With(authMiddleware.RequireIdentity).Get("/me", h.Auth.Me)
		users.Get("/{user_id}", h.User.Get)
		// path used by the profiles service
		users.Get("/users/{user_id}", h.User.Get)
	})

	return r
}
