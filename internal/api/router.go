package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/query"
)

// NewRouter creates a chi router with all discovery routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(engine *query.Engine, authEnabled bool, token string) chi.Router {
	h := NewHandler(engine)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Discovery reads.
	r.Get("/discovery/resources", h.GetResources)
	r.Get("/discovery/models", h.GetModels)
	r.Get("/discovery/models/*", h.GetModelDetails)
	r.Get("/discovery/descriptions/{doc_name}", h.GetDescription)

	// Cache refresh (the only route that touches the upstream host).
	r.Post("/cache/refresh", h.RefreshCache)

	return r
}
