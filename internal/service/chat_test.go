package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/g3chat/internal/client/api"
	"github.com/atinyakov/g3chat/internal/client/storage"
	"github.com/atinyakov/g3chat/internal/models"
)

// newChatBackend serves the chat endpoints the way the backend does.
func newChatBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat", func(w http.ResponseWriter, r *http.Request) {
		var req models.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if req.ModelType != models.OpenAI || req.Model != "gpt-4o" || req.Prompt != "hi" || req.ID != models.NoChat {
			http.Error(w, "unexpected request", http.StatusUnprocessableEntity)
			return
		}
		if r.Header.Get("Api-Key") != "sk-openai" {
			http.Error(w, "missing api key", http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"text":"hello"}`)
	})
	mux.HandleFunc("GET /v1/chat", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"titles":[{"id":1,"title":"First"},{"id":2,"title":"Second"}]}`)
	})
	mux.HandleFunc("GET /v1/chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "2" {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"chatHistory":[{"role":"human","text":"q"},{"role":"ai","text":"a"}]}`)
	})
	mux.HandleFunc("DELETE /v1/chat", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"Chat Deletion Successful!"}`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newChatService(t *testing.T) *ChatService {
	ts := newChatBackend(t)
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(storage.KeyOpenAIAPIKey, "sk-openai"))
	return NewChatService(api.NewClient(ts.Client(), ts.URL, kv, zap.NewNop()), "/v1")
}

func TestSendMessage(t *testing.T) {
	svc := newChatService(t)

	resp, err := svc.SendMessage(context.Background(), models.ChatRequest{
		ID: models.NoChat, ModelType: models.OpenAI, Model: "gpt-4o", Prompt: "hi",
	})
	require.NoError(t, err)
	text, ok := resp.Text()
	assert.True(t, ok)
	assert.Equal(t, "hello", text)
}

func TestSendMessage_ErrorPropagates(t *testing.T) {
	svc := newChatService(t)

	_, err := svc.SendMessage(context.Background(), models.ChatRequest{
		ID: models.NoChat, ModelType: models.Google, Model: "gemini-2.0-flash", Prompt: "hi",
	})
	var httpErr *api.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
}

func TestGetChatTitles(t *testing.T) {
	svc := newChatService(t)

	titles, err := svc.GetChatTitles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.ChatTitle{{ID: 1, Title: "First"}, {ID: 2, Title: "Second"}}, titles)
}

func TestGetChatHistory(t *testing.T) {
	svc := newChatService(t)

	history, err := svc.GetChatHistory(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []models.ChatMessage{{Role: models.RoleHuman, Text: "q"}, {Role: models.RoleAI, Text: "a"}}, history)

	_, err = svc.GetChatHistory(context.Background(), 3)
	var httpErr *api.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestDeleteChat(t *testing.T) {
	var gotBody any
	backend := &mockBackend{
		DeleteFunc: func(ctx context.Context, path string, body, out any) error {
			assert.Equal(t, "/v1/chat", path)
			gotBody = body
			return nil
		},
	}
	svc := NewChatService(backend, "/v1")

	require.NoError(t, svc.DeleteChat(context.Background(), 5))
	b, err := json.Marshal(gotBody)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":5}`, string(b))
}

func TestDeleteChat_Error(t *testing.T) {
	backend := &mockBackend{
		DeleteFunc: func(ctx context.Context, path string, body, out any) error {
			return errors.New("boom")
		},
	}
	err := NewChatService(backend, "/v1").DeleteChat(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete chat 5")
}
