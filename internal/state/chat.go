package state

import (
	"slices"
	"sync"

	"github.com/atinyakov/g3chat/internal/models"
)

// Chat holds the chat list, the open conversation and the model selection.
type Chat struct {
	mu            sync.RWMutex
	titles        []models.ChatTitle
	currentChatID *int64
	messages      []models.ChatMessage
	modelType     models.Provider
	model         string
}

// NewChat returns a Chat with no chat selected and OpenAI/gpt-4o picked.
func NewChat() *Chat {
	return &Chat{
		modelType: models.OpenAI,
		model:     "gpt-4o",
	}
}

func (c *Chat) SetChatTitles(titles []models.ChatTitle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = slices.Clone(titles)
}

// SetCurrentChatID selects a chat; nil means no chat is selected.
func (c *Chat) SetCurrentChatID(id *int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == nil {
		c.currentChatID = nil
		return
	}
	v := *id
	c.currentChatID = &v
}

// SetMessages replaces the whole conversation.
func (c *Chat) SetMessages(msgs []models.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = slices.Clone(msgs)
}

// AddMessage appends msg after every message already held.
func (c *Chat) AddMessage(msg models.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// SetModelType changes the provider only. Picking a matching model is the
// caller's job.
func (c *Chat) SetModelType(p models.Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modelType = p
}

func (c *Chat) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

func (c *Chat) ChatTitles() []models.ChatTitle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.titles)
}

// CurrentChatID returns the selected chat id and whether one is selected.
func (c *Chat) CurrentChatID() (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.currentChatID == nil {
		return 0, false
	}
	return *c.currentChatID, true
}

func (c *Chat) Messages() []models.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.messages)
}

// Selection returns the provider and model together.
func (c *Chat) Selection() (models.Provider, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modelType, c.model
}
