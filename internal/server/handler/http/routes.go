package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/g3chat/internal/middleware"
)

// NewRouter constructs the handler of the redirect listener.
//
// Routes:
//
//	GET /auth   -> callbackHandler.Auth
//
// Middleware chain (applied in order):
//  1. Recoverer: turns a panic into a 500
//  2. WithRequestLogging(logger): logs incoming requests
func NewRouter(callbackHandler *CallbackHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))

	r.Get("/auth", callbackHandler.Auth)

	return r
}
