// Package api wraps the HTTP calls to the chat backend. Every request
// carries the stored session token and the resolved API key.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/g3chat/internal/client/storage"
	"github.com/atinyakov/g3chat/internal/models"
)

// maxErrorBody caps how much of a failed response is kept in HTTPError.
const maxErrorBody = 4 << 10

// HTTPError is returned for any non-2xx backend answer.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: server error %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

type (
	providerKey struct{}
	tokenKey    struct{}
)

// WithProvider marks ctx with the model provider a request is made for, so
// the provider's own API key is attached.
func WithProvider(ctx context.Context, p models.Provider) context.Context {
	return context.WithValue(ctx, providerKey{}, p)
}

func providerFrom(ctx context.Context) (models.Provider, bool) {
	p, ok := ctx.Value(providerKey{}).(models.Provider)
	return p, ok
}

// WithToken makes requests made with ctx carry token as the bearer
// credential instead of the stored one.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// ProviderKeySlot maps a provider to its storage slot.
func ProviderKeySlot(p models.Provider) string {
	switch p {
	case models.OpenAI:
		return storage.KeyOpenAIAPIKey
	case models.Google:
		return storage.KeyGoogleAPIKey
	case models.Anthropic:
		return storage.KeyAnthropicAPIKey
	}
	return ""
}

// Client issues requests to a fixed backend origin.
type Client struct {
	http    *http.Client
	baseURL string
	kv      storage.KV
	log     *zap.Logger
}

// NewClient returns a Client for baseURL reading credentials from kv.
func NewClient(hc *http.Client, baseURL string, kv storage.KV, log *zap.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		kv:      kv,
		log:     log,
	}
}

// Get issues a GET and decodes the JSON answer into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body and decodes the answer into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Delete issues a DELETE, optionally with a JSON body.
func (c *Client) Delete(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodDelete, path, body, out)
}

// Do sends one request. body is JSON-encoded when non-nil; out receives the
// decoded answer when non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)
	log := c.log.With(
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("path", path),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("request failed", zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	log.Debug("request done", zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: invalid response: %w", method, path, err)
	}
	return nil
}

// authorize attaches the bearer token and API key found in storage.
func (c *Client) authorize(req *http.Request) {
	token, ok := req.Context().Value(tokenKey{}).(string)
	if !ok {
		token, _ = c.kv.Get(storage.KeySessionToken)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key := c.resolveAPIKey(req.Context()); key != "" {
		req.Header.Set("Api-Key", key)
	}
}

// resolveAPIKey prefers the key of the provider carried by ctx and falls back
// to the single active key.
func (c *Client) resolveAPIKey(ctx context.Context) string {
	if p, ok := providerFrom(ctx); ok {
		if key, ok := c.kv.Get(ProviderKeySlot(p)); ok && key != "" {
			return key
		}
	}
	key, _ := c.kv.Get(storage.KeyAPIKey)
	return key
}
