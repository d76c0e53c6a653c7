// Package http serves the loopback endpoint the backend redirects the
// browser to after a Google sign-in.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/atinyakov/g3chat/internal/models"
	"github.com/atinyakov/g3chat/internal/service"
)

// LoginCompleter finishes a sign-in from the redirect location.
type LoginCompleter interface {
	// CompleteLogin establishes the session from the token in location.
	CompleteLogin(ctx context.Context, location *url.URL) (*models.User, error)
}

// LoginResult is reported once per handled redirect.
type LoginResult struct {
	User *models.User
	Err  error
}

// CallbackHandler handles the OAuth redirect.
type CallbackHandler struct {
	// Login performs the session setup.
	Login LoginCompleter
	// Results, when set, receives the outcome of each redirect. Sends never
	// block; a result nobody waits for is dropped.
	Results chan<- LoginResult
	Logger  *zap.Logger
}

// Auth handles GET /auth?token=... . It answers with a plain text page the
// user sees in the browser tab.
func (h *CallbackHandler) Auth(w http.ResponseWriter, r *http.Request) {
	user, err := h.Login.CompleteLogin(r.Context(), r.URL)
	h.report(LoginResult{User: user, Err: err})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	switch {
	case errors.Is(err, service.ErrNoToken):
		http.Error(w, "No token provided. Please try signing in again.", http.StatusBadRequest)
	case err != nil:
		h.Logger.Warn("complete login", zap.Error(err))
		http.Error(w, "Authentication failed. Please try signing in again.", http.StatusBadGateway)
	default:
		_, _ = fmt.Fprintf(w, "Signed in as %s. You can close this tab and return to the terminal.\n", user.Name)
	}
}

func (h *CallbackHandler) report(res LoginResult) {
	if h.Results == nil {
		return
	}
	select {
	case h.Results <- res:
	default:
	}
}
