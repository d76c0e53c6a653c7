package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/g3chat/internal/models"
)

func TestNewRouter(t *testing.T) {
	login := &fakeLogin{user: &models.User{Name: "Ada"}}
	ts := httptest.NewServer(NewRouter(&CallbackHandler{Login: login, Logger: zap.NewNop()}, zap.NewNop()))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/auth?token=abc123")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc123", login.gotToken)

	resp, err = ts.Client().Post(ts.URL+"/auth?token=abc123", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = ts.Client().Get(ts.URL + "/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
