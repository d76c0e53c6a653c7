package service

import (
	"context"
	"fmt"

	"github.com/atinyakov/g3chat/internal/client/api"
	"github.com/atinyakov/g3chat/internal/models"
)

// ChatService passes chat requests straight through to the backend. Errors
// are returned unchanged apart from wrapping.
type ChatService struct {
	backend Backend
	prefix  string
}

// NewChatService constructs a ChatService.
func NewChatService(backend Backend, prefix string) *ChatService {
	return &ChatService{backend: backend, prefix: prefix}
}

// SendMessage posts req and returns the backend answer as is.
func (s *ChatService) SendMessage(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	var resp models.ChatResponse
	if err := s.backend.Post(api.WithProvider(ctx, req.ModelType), s.prefix+"/chat", req, &resp); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return resp, nil
}

// GetChatTitles lists the user's stored chats.
func (s *ChatService) GetChatTitles(ctx context.Context) ([]models.ChatTitle, error) {
	var resp struct {
		Titles []models.ChatTitle `json:"titles"`
	}
	if err := s.backend.Get(ctx, s.prefix+"/chat", &resp); err != nil {
		return nil, fmt.Errorf("get chat titles: %w", err)
	}
	return resp.Titles, nil
}

// GetChatHistory fetches every message of chat id.
func (s *ChatService) GetChatHistory(ctx context.Context, id int64) ([]models.ChatMessage, error) {
	var resp struct {
		ChatHistory []models.ChatMessage `json:"chatHistory"`
	}
	if err := s.backend.Get(ctx, fmt.Sprintf("%s/chat/%d", s.prefix, id), &resp); err != nil {
		return nil, fmt.Errorf("get chat history %d: %w", id, err)
	}
	return resp.ChatHistory, nil
}

// DeleteChat removes chat id.
func (s *ChatService) DeleteChat(ctx context.Context, id int64) error {
	body := struct {
		ID int64 `json:"id"`
	}{ID: id}
	if err := s.backend.Delete(ctx, s.prefix+"/chat", body, nil); err != nil {
		return fmt.Errorf("delete chat %d: %w", id, err)
	}
	return nil
}
