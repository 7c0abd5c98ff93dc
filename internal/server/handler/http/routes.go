package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Azelphur/ownCloud-share-tools/internal/metrics"
	"github.com/Azelphur/ownCloud-share-tools/internal/middleware"
	"github.com/Azelphur/ownCloud-share-tools/internal/protocol"
)

// RouterOptions toggles optional parts of the router.
type RouterOptions struct {
	// Metrics mounts /metrics and records request metrics.
	Metrics bool
}

// NewRouter constructs and returns an HTTP handler that serves
// the OCS sharing API.
//
// Routes:
//
//	GET    {SharesPath}       → shares.List
//	POST   {SharesPath}       → shares.Create
//	GET    {SharesPath}/{id}  → shares.Get
//	PUT    {SharesPath}/{id}  → shares.Update
//	DELETE {SharesPath}/{id}  → shares.Delete
//	GET    /metrics           → Prometheus (when enabled)
//
// Middleware chain (applied in order):
//  1. WithRequestLogging(logger)
//  2. metrics.Middleware (when enabled)
//  3. AllowContentType(form-urlencoded), API routes only
//  4. BasicAuth(auth), API routes only
func NewRouter(
	shares *ShareHandler,
	auth middleware.Authenticator,
	logger *zap.Logger,
	opts RouterOptions,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.WithRequestLogging(logger))
	if opts.Metrics {
		r.Use(metrics.Middleware)
		auth = metrics.InstrumentAuthenticator(auth)
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route(protocol.SharesPath, func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/x-www-form-urlencoded"))
		r.Use(middleware.BasicAuth(auth, logger))

		r.Get("/", shares.List)
		r.Post("/", shares.Create)
		r.Get("/{id}", shares.Get)
		r.Put("/{id}", shares.Update)
		r.Delete("/{id}", shares.Delete)
	})

	return r
}
