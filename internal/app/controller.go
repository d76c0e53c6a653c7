// Package app ties the services to the in-memory stores. Each Controller
// method is one user action of the client.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/g3chat/internal/client/api"
	"github.com/atinyakov/g3chat/internal/client/storage"
	"github.com/atinyakov/g3chat/internal/models"
	"github.com/atinyakov/g3chat/internal/state"
)

// ErrorReply is appended in place of the model answer when a send fails.
const ErrorReply = "Sorry, there was an error processing your request. Please try again."

var (
	// ErrNotSignedIn is returned by actions that need a session.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrEmptyPrompt is returned for a blank prompt.
	ErrEmptyPrompt = errors.New("empty prompt")
	// ErrUnknownModel is returned when a model is not offered by the
	// selected provider.
	ErrUnknownModel = errors.New("unknown model")
	// ErrStaleResponse is returned when a newer request for the same chat
	// was issued, or another chat was selected, before the answer arrived.
	// The answer is dropped.
	ErrStaleResponse = errors.New("stale response discarded")
	// ErrEmptyReply is returned when the backend answers without any text.
	ErrEmptyReply = errors.New("response has no text")
)

// AuthService is the part of service.AuthService the controller uses.
type AuthService interface {
	GetGoogleAuthURL(ctx context.Context) (string, error)
	HandleGoogleCallback(ctx context.Context, location *url.URL) (*models.AuthResponse, error)
	IsAuthenticated() bool
	GetCurrentUser() *models.User
	Logout()
	RevokeAccount(ctx context.Context) error
}

// ChatService is the part of service.ChatService the controller uses.
type ChatService interface {
	SendMessage(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error)
	GetChatTitles(ctx context.Context) ([]models.ChatTitle, error)
	GetChatHistory(ctx context.Context, id int64) ([]models.ChatMessage, error)
	DeleteChat(ctx context.Context, id int64) error
}

// Controller owns the stores and performs user actions against them.
type Controller struct {
	auth    AuthService
	chats   ChatService
	kv      storage.KV
	log     *zap.Logger
	Session *state.Session
	Chat    *state.Chat
	APIKey  *state.APIKey

	seqMu sync.Mutex
	seq   map[int64]uint64
	// gen changes whenever the user selects another chat.
	gen uint64
}

// NewController builds a Controller with fresh stores. Call Bootstrap to
// restore a persisted session.
func NewController(auth AuthService, chats ChatService, kv storage.KV, log *zap.Logger) *Controller {
	return &Controller{
		auth:    auth,
		chats:   chats,
		kv:      kv,
		log:     log,
		Session: state.NewSession(),
		Chat:    state.NewChat(),
		APIKey:  state.NewAPIKey(kv, log),
		seq:     make(map[int64]uint64),
	}
}

// Bootstrap restores the session from storage. The session counts as
// authenticated only when both a token and a readable user record exist.
func (c *Controller) Bootstrap() {
	user := c.auth.GetCurrentUser()
	if !c.auth.IsAuthenticated() || user == nil {
		c.Session.Logout()
		return
	}
	c.Session.SetUser(user)
	c.Session.SetAuthenticated(true)
	c.log.Debug("session restored", zap.String("user_id", user.ID))
}

// RequireAuth returns ErrNotSignedIn unless a session token is stored.
func (c *Controller) RequireAuth() error {
	if !c.auth.IsAuthenticated() {
		return ErrNotSignedIn
	}
	return nil
}

// BeginLogin returns the URL the user has to open to sign in.
func (c *Controller) BeginLogin(ctx context.Context) (string, error) {
	return c.auth.GetGoogleAuthURL(ctx)
}

// CompleteLogin establishes the session from the OAuth redirect location.
func (c *Controller) CompleteLogin(ctx context.Context, location *url.URL) (*models.User, error) {
	resp, err := c.auth.HandleGoogleCallback(ctx, location)
	if err != nil {
		return nil, err
	}
	c.Session.SetUser(&resp.User)
	c.Session.SetAuthenticated(true)
	return c.Session.User(), nil
}

// Logout forgets the session and the open conversation.
func (c *Controller) Logout() {
	c.auth.Logout()
	c.Session.Logout()
	c.resetChat()
}

// RevokeAccount deletes the account on the backend and logs out.
func (c *Controller) RevokeAccount(ctx context.Context) error {
	if err := c.RequireAuth(); err != nil {
		return err
	}
	if err := c.auth.RevokeAccount(ctx); err != nil {
		return err
	}
	c.Session.Logout()
	c.resetChat()
	return nil
}

func (c *Controller) resetChat() {
	c.Chat.SetChatTitles(nil)
	c.selectChat(nil, nil)
}

// selectChat switches the open conversation. Answers to requests issued
// before the switch are dropped by Send.
func (c *Controller) selectChat(id *int64, msgs []models.ChatMessage) {
	c.seqMu.Lock()
	c.gen++
	c.seqMu.Unlock()
	c.Chat.SetCurrentChatID(id)
	c.Chat.SetMessages(msgs)
}

// RefreshTitles reloads the chat list.
func (c *Controller) RefreshTitles(ctx context.Context) ([]models.ChatTitle, error) {
	if err := c.RequireAuth(); err != nil {
		return nil, err
	}
	titles, err := c.chats.GetChatTitles(ctx)
	if err != nil {
		return nil, err
	}
	c.Chat.SetChatTitles(titles)
	return titles, nil
}

// OpenChat selects chat id and loads its history.
func (c *Controller) OpenChat(ctx context.Context, id int64) ([]models.ChatMessage, error) {
	if err := c.RequireAuth(); err != nil {
		return nil, err
	}
	history, err := c.chats.GetChatHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	c.selectChat(&id, history)
	return history, nil
}

// NewChat deselects the current chat. The backend creates a chat on the
// next send.
func (c *Controller) NewChat() {
	c.selectChat(nil, nil)
}

// DeleteChat removes chat id and, when it is the open one, closes it.
func (c *Controller) DeleteChat(ctx context.Context, id int64) error {
	if err := c.RequireAuth(); err != nil {
		return err
	}
	if err := c.chats.DeleteChat(ctx, id); err != nil {
		return err
	}
	if current, ok := c.Chat.CurrentChatID(); ok && current == id {
		c.NewChat()
	}
	titles := c.Chat.ChatTitles()
	kept := titles[:0]
	for _, t := range titles {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	c.Chat.SetChatTitles(kept)
	return nil
}

// SelectProvider switches the provider and resets the model to the
// provider's first one.
func (c *Controller) SelectProvider(p models.Provider) error {
	model := models.DefaultModel(p)
	if model == "" {
		return fmt.Errorf("unknown provider %q", p)
	}
	c.Chat.SetModelType(p)
	c.Chat.SetModel(model)
	return nil
}

// SelectModel picks a model of the current provider.
func (c *Controller) SelectModel(model string) error {
	p, _ := c.Chat.Selection()
	if !models.IsKnownModel(p, model) {
		return fmt.Errorf("%w %q for %s", ErrUnknownModel, model, p)
	}
	c.Chat.SetModel(model)
	return nil
}

// Send appends the prompt as a human message and the answer as an ai
// message. A failed request, or an answer without text, appends ErrorReply
// instead and returns the error. Answers that arrive after a newer send to
// the same chat, or after another chat was selected, touch nothing and
// yield ErrStaleResponse.
func (c *Controller) Send(ctx context.Context, prompt string) (models.ChatMessage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return models.ChatMessage{}, ErrEmptyPrompt
	}
	if err := c.RequireAuth(); err != nil {
		return models.ChatMessage{}, err
	}

	chatID, ok := c.Chat.CurrentChatID()
	if !ok {
		chatID = models.NoChat
	}
	provider, model := c.Chat.Selection()

	seq, gen := c.nextSeq(chatID)
	c.Chat.AddMessage(models.ChatMessage{Role: models.RoleHuman, Text: prompt})

	resp, err := c.chats.SendMessage(ctx, models.ChatRequest{
		ID:        chatID,
		ModelType: provider,
		Model:     model,
		Prompt:    prompt,
	})
	if !c.isLatest(chatID, seq, gen) {
		c.log.Info("dropping stale response", zap.Int64("chat_id", chatID), zap.Uint64("seq", seq))
		return models.ChatMessage{}, ErrStaleResponse
	}
	var text string
	if err == nil {
		if text, ok = resp.Text(); !ok {
			err = ErrEmptyReply
		}
	}
	if err != nil {
		c.log.Warn("send message", zap.Int64("chat_id", chatID), zap.Error(err))
		reply := models.ChatMessage{Role: models.RoleAI, Text: ErrorReply}
		c.Chat.AddMessage(reply)
		return reply, err
	}

	reply := models.ChatMessage{Role: models.RoleAI, Text: text}
	c.Chat.AddMessage(reply)

	if created, ok := resp.ChatID(); ok && chatID == models.NoChat {
		c.Chat.SetCurrentChatID(&created)
	}
	return reply, nil
}

// nextSeq numbers a request for chatID and returns it with the current
// selection generation.
func (c *Controller) nextSeq(chatID int64) (uint64, uint64) {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	c.seq[chatID]++
	return c.seq[chatID], c.gen
}

func (c *Controller) isLatest(chatID int64, seq, gen uint64) bool {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	return c.seq[chatID] == seq && c.gen == gen
}

// SaveProviderKeys stores one key per provider, removing empty ones, and
// makes the first present key (OpenAI, Google, Anthropic) the active one.
func (c *Controller) SaveProviderKeys(keys map[models.Provider]string) error {
	var active *string
	for _, p := range models.Providers {
		slot := api.ProviderKeySlot(p)
		key := strings.TrimSpace(keys[p])
		if key == "" {
			if err := c.kv.Remove(slot); err != nil {
				return fmt.Errorf("remove %s key: %w", p, err)
			}
			continue
		}
		if err := c.kv.Set(slot, key); err != nil {
			return fmt.Errorf("save %s key: %w", p, err)
		}
		if active == nil {
			active = &key
		}
	}
	c.APIKey.SetAPIKey(active)
	return nil
}

// ProviderKeys returns the stored per-provider keys.
func (c *Controller) ProviderKeys() map[models.Provider]string {
	keys := make(map[models.Provider]string, len(models.Providers))
	for _, p := range models.Providers {
		if v, ok := c.kv.Get(api.ProviderKeySlot(p)); ok && v != "" {
			keys[p] = v
		}
	}
	return keys
}
