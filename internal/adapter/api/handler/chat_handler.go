package handler

import (
	"github.com/labstack/echo/v4"

	"servisku/internal/usecase"
	"servisku/pkg/response"
	"servisku/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type startChatRequest struct {
	ServiceID string `json:"service_id" validate:"required"`
}

type sendMessageRequest struct {
	Kind      string `json:"kind" validate:"omitempty,oneof=text media"`
	Content   string `json:"content"`
	MediaURL  string `json:"media_url" validate:"omitempty,url"`
	MediaKind string `json:"media_kind" validate:"omitempty,oneof=image file"`
}

// StartChat creates (or idempotently returns) the chat between the
// calling customer and the service's provider.
func (h *ChatHandler) StartChat(c echo.Context) error {
	var req startChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	chat, err := h.chatUseCase.StartChat(c.Request().Context(), userID, req.ServiceID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, chat)
}

// GetMyChats lists the authenticated user's active chats.
func (h *ChatHandler) GetMyChats(c echo.Context) error {
	userID := c.Get("uid").(string)
	params := utils.GetPaginationParams(c)

	chats, total, err := h.chatUseCase.ListMyChats(c.Request().Context(), userID, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, chats, total, params.Page, params.PageSize)
}

// GetChatByID returns a single chat.
func (h *ChatHandler) GetChatByID(c echo.Context) error {
	chatID := c.Param("id")
	userID := c.Get("uid").(string)

	chat, err := h.chatUseCase.GetChatByID(c.Request().Context(), userID, chatID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, chat)
}

// GetChatMessages pages a chat's messages newest-first. Clients reverse
// the page for chronological display.
func (h *ChatHandler) GetChatMessages(c echo.Context) error {
	chatID := c.Param("id")
	userID := c.Get("uid").(string)
	params := utils.GetPaginationParams(c)

	messages, total, err := h.chatUseCase.ListMessages(c.Request().Context(), userID, chatID, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, params.Page, params.PageSize)
}

// SendMessage sends a message to a chat. This is the only path that
// creates messages; the websocket relays what was persisted here.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	chatID := c.Param("id")
	userID := c.Get("uid").(string)

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		ChatID:    chatID,
		Kind:      req.Kind,
		Content:   req.Content,
		MediaURL:  req.MediaURL,
		MediaKind: req.MediaKind,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// MarkChatAsRead acknowledges every unread counterpart message.
func (h *ChatHandler) MarkChatAsRead(c echo.Context) error {
	chatID := c.Param("id")
	userID := c.Get("uid").(string)

	count, err := h.chatUseCase.MarkRead(c.Request().Context(), userID, chatID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]int64{"read_count": count})
}
