package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/g3chat/internal/client/api"
	"github.com/atinyakov/g3chat/internal/client/storage"
	"github.com/atinyakov/g3chat/internal/models"
)

type mockBackend struct {
	GetFunc    func(ctx context.Context, path string, out any) error
	PostFunc   func(ctx context.Context, path string, body, out any) error
	DeleteFunc func(ctx context.Context, path string, body, out any) error
}

func (m *mockBackend) Get(ctx context.Context, path string, out any) error {
	return m.GetFunc(ctx, path, out)
}

func (m *mockBackend) Post(ctx context.Context, path string, body, out any) error {
	return m.PostFunc(ctx, path, body, out)
}

func (m *mockBackend) Delete(ctx context.Context, path string, body, out any) error {
	return m.DeleteFunc(ctx, path, body, out)
}

// decodeInto fills out the way the real client would from a JSON literal.
func decodeInto(t *testing.T, body string, out any) error {
	t.Helper()
	return json.Unmarshal([]byte(body), out)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestGetGoogleAuthURL(t *testing.T) {
	backend := &mockBackend{
		GetFunc: func(ctx context.Context, path string, out any) error {
			assert.Equal(t, "/v1/auth/google/login", path)
			return decodeInto(t, `{"auth_url":"https://accounts.google.com/o/oauth2/auth?x=1"}`, out)
		},
	}
	svc := NewAuthService(backend, storage.NewMemoryKV(), "/v1", zap.NewNop())

	got, err := svc.GetGoogleAuthURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?x=1", got)
}

func TestGetGoogleAuthURL_Error(t *testing.T) {
	wantErr := &api.HTTPError{StatusCode: http.StatusBadGateway}
	backend := &mockBackend{
		GetFunc: func(ctx context.Context, path string, out any) error { return wantErr },
	}
	svc := NewAuthService(backend, storage.NewMemoryKV(), "/v1", zap.NewNop())

	_, err := svc.GetGoogleAuthURL(context.Background())
	var httpErr *api.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
}

func TestHandleGoogleCallback_NoToken(t *testing.T) {
	called := false
	backend := &mockBackend{
		GetFunc: func(ctx context.Context, path string, out any) error {
			called = true
			return nil
		},
	}
	kv := storage.NewMemoryKV()
	svc := NewAuthService(backend, kv, "/v1", zap.NewNop())

	for _, loc := range []*url.URL{nil, mustParse(t, "http://localhost:3000/auth"), mustParse(t, "http://localhost:3000/auth?token=")} {
		_, err := svc.HandleGoogleCallback(context.Background(), loc)
		assert.ErrorIs(t, err, ErrNoToken)
	}

	assert.False(t, called, "backend must not be contacted")
	_, ok := kv.Get(storage.KeySessionToken)
	assert.False(t, ok)
	_, ok = kv.Get(storage.KeyUser)
	assert.False(t, ok)
	assert.False(t, svc.IsAuthenticated())
}

func TestHandleGoogleCallback_Success(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bare user", body: `{"id":"u1","name":"Ada","email":"ada@example.com","picture":""}`},
		{name: "enveloped user", body: `{"user":{"id":"u1","name":"Ada","email":"ada@example.com","picture":""}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &mockBackend{
				GetFunc: func(ctx context.Context, path string, out any) error {
					assert.Equal(t, "/user", path)
					return decodeInto(t, tt.body, out)
				},
			}
			kv := storage.NewMemoryKV()
			svc := NewAuthService(backend, kv, "/v1", zap.NewNop())

			assert.False(t, svc.IsAuthenticated())
			resp, err := svc.HandleGoogleCallback(context.Background(), mustParse(t, "http://localhost:3000/auth?token=abc123"))
			require.NoError(t, err)

			assert.Equal(t, "abc123", resp.SessionToken.Token)
			assert.Equal(t, models.DefaultSessionExpiry, resp.SessionToken.Expiry)
			assert.Equal(t, models.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}, resp.User)

			token, _ := kv.Get(storage.KeySessionToken)
			assert.Equal(t, "abc123", token)
			assert.True(t, svc.IsAuthenticated())
			require.NotNil(t, svc.GetCurrentUser())
			assert.Equal(t, "Ada", svc.GetCurrentUser().Name)

			svc.Logout()
			assert.False(t, svc.IsAuthenticated())
			assert.Nil(t, svc.GetCurrentUser())
		})
	}
}

func TestHandleGoogleCallback_UserFetchFails(t *testing.T) {
	backend := &mockBackend{
		GetFunc: func(ctx context.Context, path string, out any) error {
			return errors.New("connection refused")
		},
	}
	kv := storage.NewMemoryKV()
	svc := NewAuthService(backend, kv, "/v1", zap.NewNop())

	_, err := svc.HandleGoogleCallback(context.Background(), mustParse(t, "http://localhost:3000/auth?token=abc123"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch user")
	_, ok := kv.Get(storage.KeyUser)
	assert.False(t, ok)
	_, ok = kv.Get(storage.KeySessionToken)
	assert.False(t, ok)
	assert.False(t, svc.IsAuthenticated())
}

func TestHandleGoogleCallback_UndecodableUser(t *testing.T) {
	backend := &mockBackend{
		GetFunc: func(ctx context.Context, path string, out any) error {
			return decodeInto(t, `"not an object"`, out)
		},
	}
	kv := storage.NewMemoryKV()
	svc := NewAuthService(backend, kv, "/v1", zap.NewNop())

	_, err := svc.HandleGoogleCallback(context.Background(), mustParse(t, "http://localhost:3000/auth?token=abc123"))
	require.Error(t, err)
	assert.False(t, svc.IsAuthenticated())
	assert.Nil(t, svc.GetCurrentUser())
}

func TestGetCurrentUser_Corrupt(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(storage.KeyUser, "{oops"))
	svc := NewAuthService(&mockBackend{}, kv, "/v1", zap.NewNop())

	assert.Nil(t, svc.GetCurrentUser())
}

func TestRevokeAccount(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(storage.KeySessionToken, "abc123"))
	backend := &mockBackend{
		DeleteFunc: func(ctx context.Context, path string, body, out any) error {
			assert.Equal(t, "/v1/auth/google/revoke", path)
			return nil
		},
	}
	svc := NewAuthService(backend, kv, "/v1", zap.NewNop())

	require.NoError(t, svc.RevokeAccount(context.Background()))
	assert.False(t, svc.IsAuthenticated())
}

func TestRevokeAccount_FailureKeepsSession(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(storage.KeySessionToken, "abc123"))
	backend := &mockBackend{
		DeleteFunc: func(ctx context.Context, path string, body, out any) error {
			return &api.HTTPError{StatusCode: http.StatusBadRequest, Body: "account deletion failed"}
		},
	}
	svc := NewAuthService(backend, kv, "/v1", zap.NewNop())

	require.Error(t, svc.RevokeAccount(context.Background()))
	assert.True(t, svc.IsAuthenticated())
}

// The callback against a real HTTP stack: the /user request must carry the
// token from the redirect as its bearer credential.
func TestHandleGoogleCallback_OverHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" || r.Header.Get("Authorization") != "Bearer abc123" {
			http.Error(w, "invalid or missing authentication token", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"u1","name":"Ada","email":"ada@example.com","picture":"https://p"}}`))
	}))
	defer ts.Close()

	kv := storage.NewMemoryKV()
	client := api.NewClient(ts.Client(), ts.URL, kv, zap.NewNop())
	svc := NewAuthService(client, kv, "/v1", zap.NewNop())

	resp, err := svc.HandleGoogleCallback(context.Background(), mustParse(t, "http://localhost:3000/auth?token=abc123"))
	require.NoError(t, err)
	assert.Equal(t, "https://p", resp.User.Picture)
}
