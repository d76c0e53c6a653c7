package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NoChat is sent as the chat id when no chat is selected. The backend
// creates a new titled chat for it.
const NoChat int64 = -1

// Role tags the author of a chat message.
type Role string

const (
	// RoleHuman marks a message typed by the user.
	RoleHuman Role = "human"
	// RoleAI marks a message produced by the model.
	RoleAI Role = "ai"
)

// Provider identifies the model vendor a prompt is routed to.
type Provider string

const (
	OpenAI    Provider = "OpenAI"
	Google    Provider = "Google"
	Anthropic Provider = "Anthropic"
)

// Providers lists every provider in display order.
var Providers = []Provider{OpenAI, Google, Anthropic}

// Models is the fixed table of model names offered per provider.
var Models = map[Provider][]string{
	OpenAI: {
		"gpt-4.1-nano",
		"gpt-4.1-mini",
		"gpt-4.1",
		"gpt-4o",
		"gpt-4o-mini",
		"o4-mini",
		"o3",
		"o3-mini",
		"o3-pro",
		"gpt-4.5-preview",
	},
	Google: {
		"gemini-2.5-flash-preview-05-20",
		"gemini-2.5-pro-preview-06-05",
		"gemini-2.0-flash",
		"gemini-2.0-flash-lite",
	},
	Anthropic: {
		"claude-sonnet-4-0",
		"claude-opus-4-0",
		"claude-3-7-sonnet-latest",
		"claude-3-5-sonnet-latest",
	},
}

// ParseProvider matches s against the known providers, ignoring case.
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// DefaultModel returns the first model listed for p, or "" for an unknown provider.
func DefaultModel(p Provider) string {
	if list := Models[p]; len(list) > 0 {
		return list[0]
	}
	return ""
}

// IsKnownModel reports whether model belongs to the list of p.
func IsKnownModel(p Provider, model string) bool {
	for _, m := range Models[p] {
		if m == model {
			return true
		}
	}
	return false
}

// ChatTitle summarizes a stored conversation.
type ChatTitle struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// UnmarshalJSON accepts both the flat {role, text} form and the multi-part
// {role, parts: [{text}]} form the backend uses for stored history.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role  Role    `json:"role"`
		Text  *string `json:"text"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	if raw.Text != nil {
		m.Text = *raw.Text
		return nil
	}
	texts := make([]string, 0, len(raw.Parts))
	for _, p := range raw.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	m.Text = strings.Join(texts, "\n")
	return nil
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	ID        int64    `json:"id"`
	ModelType Provider `json:"model_type"`
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt"`
}

// ChatResponse is the loosely typed body returned by POST /chat.
type ChatResponse map[string]any

// Text returns the reply text. It looks for a top-level "text" field first
// and then for the first message of an enveloped {"chat": {...}} body.
func (r ChatResponse) Text() (string, bool) {
	if s, ok := r["text"].(string); ok {
		return s, true
	}
	chat, ok := r["chat"].(map[string]any)
	if !ok {
		return "", false
	}
	msgs, ok := chat["message"].([]any)
	if !ok || len(msgs) == 0 {
		return "", false
	}
	first, ok := msgs[0].(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := first["text"].(string)
	return s, ok
}

// ChatID returns the id of the chat the backend answered in, if reported.
func (r ChatResponse) ChatID() (int64, bool) {
	chat, ok := r["chat"].(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := chat["id"].(type) {
	case float64:
		return int64(v), v > 0
	case json.Number:
		id, err := v.Int64()
		return id, err == nil && id > 0
	}
	return 0, false
}
