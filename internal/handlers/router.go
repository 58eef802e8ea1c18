package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prudhvinik1/notesync/internal/services"
	"go.uber.org/zap"
)

type Deps struct {
	Auth   *services.AuthService
	Sync   *services.SyncService
	Items  *services.ItemService
	Logger *zap.Logger
}

func NewRouter(deps Deps) http.Handler {
	authHandler := NewAuthHandler(deps.Auth, deps.Logger)
	itemsHandler := NewItemsHandler(deps.Sync, deps.Items, deps.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/", authHandler.Register)
		r.Post("/sign_in", authHandler.SignIn)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(deps.Auth, deps.Logger))
			r.Post("/sign_out", authHandler.SignOut)
			r.Post("/sign_out_all", authHandler.SignOutAll)
		})
	})

	r.Route("/items", func(r chi.Router) {
		r.Use(RequireAuth(deps.Auth, deps.Logger))

		r.Post("/", itemsHandler.Create)
		r.Post("/sync", itemsHandler.Sync)
		r.Post("/backup", itemsHandler.Backup)
		r.Post("/{uuid}/backup", itemsHandler.Backup)
		r.Delete("/{uuid}", itemsHandler.Destroy)
		r.Post("/{uuid}/destroy", itemsHandler.Destroy)
	})

	return r
}
