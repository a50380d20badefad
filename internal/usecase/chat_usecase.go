package usecase

import (
	"context"
	"strings"
	"time"

	"servisku/internal/domain/entity"
	"servisku/internal/domain/repository"
	"servisku/internal/infrastructure/ratelimit"
	ws "servisku/internal/infrastructure/websocket"
	"servisku/pkg/errors"
	"servisku/pkg/logger"
)

type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	userRepo    repository.UserRepository
	serviceRepo repository.ServiceRepository
	hub         *ws.Hub
	rateLimiter *ratelimit.RateLimiter
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	serviceRepo repository.ServiceRepository,
	hub *ws.Hub,
) *ChatUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &ChatUseCase{
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		serviceRepo: serviceRepo,
		hub:         hub,
		rateLimiter: rateLimiter,
	}
}

type SendMessageInput struct {
	ChatID    string
	Kind      string // "text" or "media"
	Content   string
	MediaURL  string
	MediaKind string // "image", "file"
}

type ChatResponse struct {
	*entity.Chat
	Service   *entity.Service `json:"service,omitempty"`
	OtherUser *entity.User    `json:"other_user,omitempty"`
}

type MessageResponse struct {
	*entity.Message
	Sender *entity.User `json:"sender,omitempty"`
}

// StartChat lazily creates the chat between a customer and the provider
// of a listing. Only the customer side may initiate; calling it again for
// the same (customer, service) pair returns the existing active chat.
func (uc *ChatUseCase) StartChat(ctx context.Context, customerID, serviceID string) (*ChatResponse, error) {
	allowed, waitTime := uc.rateLimiter.Allow(customerID, "start_chat")
	if !allowed {
		logger.Warn("StartChat rate limited: user %s must wait %v", customerID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before starting another chat", waitTime)
	}

	caller, err := uc.userRepo.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if caller.Role == entity.RoleProvider {
		return nil, errors.Forbidden("Providers cannot start chats", nil)
	}

	service, err := uc.serviceRepo.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !service.IsActive() {
		return nil, errors.Unavailable("Service is no longer available", nil)
	}
	if service.ProviderID == customerID {
		return nil, errors.Forbidden("You cannot start a chat about your own service", nil)
	}

	provider, err := uc.userRepo.GetByID(ctx, service.ProviderID)
	if err != nil {
		return nil, err
	}

	existing, err := uc.chatRepo.GetActiveByCustomerAndService(ctx, customerID, serviceID)
	if err == nil && existing != nil {
		return &ChatResponse{Chat: existing, Service: service, OtherUser: provider}, nil
	}
	if err != nil && !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	chat := &entity.Chat{
		Participants: []entity.Participant{
			{UserID: customerID, Role: entity.RoleCustomer},
			{UserID: service.ProviderID, Role: entity.RoleProvider},
		},
		ServiceID:     serviceID,
		LastMessageAt: time.Now(),
	}

	if err := uc.chatRepo.Create(ctx, chat); err != nil {
		logger.Error("StartChat: failed to create chat for user %s, service %s: %v", customerID, serviceID, err)
		return nil, err
	}

	return &ChatResponse{Chat: chat, Service: service, OtherUser: provider}, nil
}

// ListMyChats returns the caller's active chats, newest activity first.
func (uc *ChatUseCase) ListMyChats(ctx context.Context, userID string, limit, offset int) ([]*ChatResponse, int64, error) {
	chats, total, err := uc.chatRepo.ListActiveByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var responses []*ChatResponse
	for _, chat := range chats {
		responses = append(responses, uc.embedChat(ctx, chat, userID))
	}

	return responses, total, nil
}

// GetChatByID returns a single chat after the membership check.
func (uc *ChatUseCase) GetChatByID(ctx context.Context, userID, chatID string) (*ChatResponse, error) {
	chat, err := uc.authorizeParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	return uc.embedChat(ctx, chat, userID), nil
}

// ListMessages pages through a chat newest-first. Opening a chat
// acknowledges every unread counterpart message in one batch: the read
// marking covers the whole chat regardless of which page was asked for.
func (uc *ChatUseCase) ListMessages(ctx context.Context, userID, chatID string, limit, offset int) ([]*MessageResponse, int64, error) {
	chat, err := uc.authorizeParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, 0, err
	}

	count, err := uc.chatRepo.MarkMessagesRead(ctx, chatID, userID)
	if err != nil {
		return nil, 0, err
	}
	if count > 0 {
		uc.hub.PublishExcept(chat.ID, userID, ws.EventMessagesRead, ws.MessagesReadData{
			ChatID:   chat.ID,
			ReadByID: userID,
			Count:    count,
		})
	}

	messages, total, err := uc.chatRepo.GetMessagesByChat(ctx, chatID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	senders := make(map[string]*entity.User, 2)
	var responses []*MessageResponse
	for _, message := range messages {
		resp := &MessageResponse{Message: message}

		sender, ok := senders[message.SenderID]
		if !ok {
			sender, err = uc.userRepo.GetByID(ctx, message.SenderID)
			if err != nil {
				logger.Warn("ListMessages: sender %s not found for message %s: %v", message.SenderID, message.ID, err)
			}
			senders[message.SenderID] = sender
		}
		resp.Sender = sender

		responses = append(responses, resp)
	}

	return responses, total, nil
}

// SendMessage is the only write path for messages. The chat's
// last-message pointer is updated after the insert without a transaction;
// the pointer is a hint for inbox sorting, the messages subcollection is
// the truth.
func (uc *ChatUseCase) SendMessage(ctx context.Context, userID string, input SendMessageInput) (*MessageResponse, error) {
	allowed, waitTime := uc.rateLimiter.Allow(userID, "send_message")
	if !allowed {
		logger.Warn("SendMessage rate limited: user %s must wait %v", userID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message", waitTime)
	}

	chat, err := uc.authorizeParticipant(ctx, input.ChatID, userID)
	if err != nil {
		return nil, err
	}

	message, err := uc.buildMessage(chat.ID, userID, input)
	if err != nil {
		return nil, err
	}

	sender, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := uc.chatRepo.CreateMessage(ctx, message); err != nil {
		logger.Error("SendMessage: failed to persist message for chat %s: %v", chat.ID, err)
		return nil, err
	}

	chat.LastMessageID = message.ID
	chat.LastMessage = message.Preview()
	chat.LastMessageAt = message.CreatedAt
	if err := uc.chatRepo.Update(ctx, chat); err != nil {
		// The message is already durable; failing the send here would
		// invite a client resend and a duplicate. Readers treat the
		// pointer as a hint and can recompute it from the messages.
		logger.Warn("SendMessage: failed to update last-message pointer for chat %s: %v", chat.ID, err)
	}

	// Room broadcast includes the sender's own connections; clients
	// de-duplicate by message id against the durable-path response.
	uc.hub.Publish(chat.ID, ws.EventNewMessage, ws.NewMessageData{
		ChatID:  chat.ID,
		Message: message,
	})

	update := ws.ChatListUpdateData{
		ChatID:        chat.ID,
		LastMessage:   chat.LastMessage,
		LastMessageAt: message.CreatedAt.Format(time.RFC3339),
		SenderID:      userID,
	}
	for _, p := range chat.Participants {
		if p.UserID == userID {
			continue
		}
		if !uc.hub.Presence().IsOnline(p.UserID) {
			// Offline-notification side channel would fire here.
			logger.Debug("SendMessage: participant %s offline for chat %s", p.UserID, chat.ID)
			continue
		}
		uc.hub.PublishToUser(p.UserID, ws.EventChatListUpdate, update)
	}

	return &MessageResponse{Message: message, Sender: sender}, nil
}

func (uc *ChatUseCase) buildMessage(chatID, senderID string, input SendMessageInput) (*entity.Message, error) {
	kind := input.Kind
	if kind == "" {
		kind = entity.MessageKindText
	}

	message := &entity.Message{
		ChatID:   chatID,
		SenderID: senderID,
		Kind:     kind,
	}

	switch kind {
	case entity.MessageKindText:
		content := strings.TrimSpace(input.Content)
		if content == "" {
			return nil, errors.Validation("Message content cannot be empty", nil)
		}
		message.Content = content
	case entity.MessageKindMedia:
		if input.MediaURL == "" {
			return nil, errors.Validation("Media messages require a media URL", nil)
		}
		message.MediaURL = input.MediaURL
		message.MediaKind = input.MediaKind
		if message.MediaKind == "" {
			message.MediaKind = "image"
		}
	default:
		return nil, errors.Validation("Unknown message kind", nil)
	}

	return message, nil
}

// MarkRead acknowledges every unread counterpart message in the chat.
// Exposed for the real-time path; ListMessages applies the same batch
// implicitly.
func (uc *ChatUseCase) MarkRead(ctx context.Context, userID, chatID string) (int64, error) {
	chat, err := uc.authorizeParticipant(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}

	count, err := uc.chatRepo.MarkMessagesRead(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		uc.hub.PublishExcept(chat.ID, userID, ws.EventMessagesRead, ws.MessagesReadData{
			ChatID:   chat.ID,
			ReadByID: userID,
			Count:    count,
		})
	}

	return count, nil
}

// TypingAllowed throttles typing relays per user.
func (uc *ChatUseCase) TypingAllowed(userID string) bool {
	allowed, _ := uc.rateLimiter.Allow(userID, "typing")
	return allowed
}

func (uc *ChatUseCase) embedChat(ctx context.Context, chat *entity.Chat, userID string) *ChatResponse {
	resp := &ChatResponse{Chat: chat}

	if chat.ServiceID != "" {
		service, err := uc.serviceRepo.GetByID(ctx, chat.ServiceID)
		if err == nil {
			resp.Service = service
		} else {
			logger.Warn("Service %s not found for chat %s: %v", chat.ServiceID, chat.ID, err)
		}
	}

	if otherID := chat.Counterpart(userID); otherID != "" {
		otherUser, err := uc.userRepo.GetByID(ctx, otherID)
		if err == nil {
			resp.OtherUser = otherUser
		} else {
			logger.Warn("Other user %s not found for chat %s: %v", otherID, chat.ID, err)
		}
	}

	return resp
}
