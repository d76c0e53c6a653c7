// Package service wraps the backend endpoints the client uses, keeping the
// persisted session in step with them.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/atinyakov/g3chat/internal/client/api"
	"github.com/atinyakov/g3chat/internal/client/storage"
	"github.com/atinyakov/g3chat/internal/models"
)

// ErrNoToken is returned when the OAuth redirect carries no token.
var ErrNoToken = errors.New("no token provided")

// Backend defines the HTTP operations the services need.
type Backend interface {
	// Get issues a GET for path and decodes the answer into out.
	Get(ctx context.Context, path string, out any) error
	// Post issues a POST for path with a JSON body.
	Post(ctx context.Context, path string, body, out any) error
	// Delete issues a DELETE for path with an optional JSON body.
	Delete(ctx context.Context, path string, body, out any) error
}

// AuthService drives the OAuth login and keeps the session token and the
// user record in storage.
type AuthService struct {
	backend Backend
	kv      storage.KV
	prefix  string
	log     *zap.Logger
}

// NewAuthService constructs an AuthService. prefix is the versioned API path
// prefix, e.g. "/v1".
func NewAuthService(backend Backend, kv storage.KV, prefix string, log *zap.Logger) *AuthService {
	return &AuthService{backend: backend, kv: kv, prefix: prefix, log: log}
}

// GetGoogleAuthURL asks the backend for the provider authorization URL.
func (s *AuthService) GetGoogleAuthURL(ctx context.Context) (string, error) {
	var resp struct {
		AuthURL string `json:"auth_url"`
	}
	if err := s.backend.Get(ctx, s.prefix+"/auth/google/login", &resp); err != nil {
		return "", fmt.Errorf("get google auth url: %w", err)
	}
	if resp.AuthURL == "" {
		return "", errors.New("get google auth url: empty auth_url")
	}
	return resp.AuthURL, nil
}

// TokenFromLocation returns the token query parameter of location.
func TokenFromLocation(location *url.URL) (string, error) {
	if location == nil {
		return "", ErrNoToken
	}
	token := location.Query().Get("token")
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// HandleGoogleCallback establishes a session from the redirect location the
// backend sent the browser to. The token is persisted, the user record is
// fetched with it and persisted too. Nothing is written when the location
// has no token, and the token is removed again when the user record cannot
// be fetched or stored.
func (s *AuthService) HandleGoogleCallback(ctx context.Context, location *url.URL) (*models.AuthResponse, error) {
	token, err := TokenFromLocation(location)
	if err != nil {
		return nil, err
	}

	if err := s.kv.Set(storage.KeySessionToken, token); err != nil {
		return nil, fmt.Errorf("store session token: %w", err)
	}

	user, err := s.fetchUser(ctx, token)
	if err != nil {
		// A half-finished sign-in must not leave the client authenticated.
		s.Logout()
		return nil, err
	}

	s.log.Info("signed in", zap.String("user_id", user.ID))
	return &models.AuthResponse{
		SessionToken: models.SessionToken{Token: token, Expiry: models.DefaultSessionExpiry},
		User:         user,
	}, nil
}

// fetchUser loads the user record with token and persists it.
func (s *AuthService) fetchUser(ctx context.Context, token string) (models.User, error) {
	var raw json.RawMessage
	if err := s.backend.Get(api.WithToken(ctx, token), "/user", &raw); err != nil {
		return models.User{}, fmt.Errorf("fetch user: %w", err)
	}
	user, err := decodeUser(raw)
	if err != nil {
		return models.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if err := storage.SetJSON(s.kv, storage.KeyUser, user); err != nil {
		return models.User{}, fmt.Errorf("store user: %w", err)
	}
	return user, nil
}

// decodeUser accepts the bare user object or the {"user": {...}} envelope.
func decodeUser(raw json.RawMessage) (models.User, error) {
	var env struct {
		User *models.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.User{}, fmt.Errorf("decode user: %w", err)
	}
	if env.User != nil {
		return *env.User, nil
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return models.User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}

// IsAuthenticated reports whether a session token is stored. The token's
// age is not checked.
func (s *AuthService) IsAuthenticated() bool {
	token, ok := s.kv.Get(storage.KeySessionToken)
	return ok && token != ""
}

// GetCurrentUser returns the stored user record. A missing or unreadable
// record yields nil.
func (s *AuthService) GetCurrentUser() *models.User {
	var u models.User
	ok, err := storage.GetJSON(s.kv, storage.KeyUser, &u)
	if err != nil {
		s.log.Warn("ignoring corrupt user record", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return &u
}

// Logout forgets the session locally. The backend is not contacted.
func (s *AuthService) Logout() {
	if err := s.kv.Remove(storage.KeySessionToken); err != nil {
		s.log.Warn("remove session token", zap.Error(err))
	}
	if err := s.kv.Remove(storage.KeyUser); err != nil {
		s.log.Warn("remove user", zap.Error(err))
	}
}

// RevokeAccount asks the backend to revoke the Google grant and delete the
// account, then logs out locally.
func (s *AuthService) RevokeAccount(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.prefix+"/auth/google/revoke", nil, nil); err != nil {
		return fmt.Errorf("revoke account: %w", err)
	}
	s.Logout()
	return nil
}
