package repository

import (
	"context"

	"servisku/internal/domain/entity"
)

type ChatRepository interface {
	Create(ctx context.Context, chat *entity.Chat) error
	GetByID(ctx context.Context, id string) (*entity.Chat, error)
	// GetActiveByCustomerAndService returns the single active chat for a
	// (customer, service) pair, or NotFound. This is the lookup half of the
	// one-active-chat-per-pair invariant; the create half is StartChat.
	GetActiveByCustomerAndService(ctx context.Context, customerID, serviceID string) (*entity.Chat, error)
	ListActiveByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error)
	Update(ctx context.Context, chat *entity.Chat) error
	Deactivate(ctx context.Context, id string) error

	// Message methods
	CreateMessage(ctx context.Context, message *entity.Message) error
	GetMessagesByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error)
	// MarkMessagesRead marks every message in the chat not sent by readerID
	// and not yet read. Returns how many messages changed state.
	MarkMessagesRead(ctx context.Context, chatID, readerID string) (int64, error)
	// LatestMessage rebuilds the last-message pointer from the messages
	// subcollection when the denormalized fields on the chat are suspect.
	LatestMessage(ctx context.Context, chatID string) (*entity.Message, error)
}
