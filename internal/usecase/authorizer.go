package usecase

import (
	"context"

	"servisku/internal/domain/entity"
	"servisku/pkg/errors"
)

// authorizeParticipant is the single membership rule in the system: a
// user who is not a recorded participant of a chat can neither fetch its
// messages, send into it, nor join its real-time room. Every entry point
// that takes a chat id goes through here.
func (uc *ChatUseCase) authorizeParticipant(ctx context.Context, chatID, userID string) (*entity.Chat, error) {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if !chat.HasParticipant(userID) {
		return nil, errors.Forbidden("User is not a participant in this chat", nil)
	}

	return chat, nil
}

// AuthorizeJoin re-validates room membership for the real-time path.
// Returns nil when the user may join the chat's room.
func (uc *ChatUseCase) AuthorizeJoin(ctx context.Context, chatID, userID string) error {
	_, err := uc.authorizeParticipant(ctx, chatID, userID)
	return err
}

// ActiveChatIDs lists the chat rooms a connecting user is auto-joined to.
func (uc *ChatUseCase) ActiveChatIDs(ctx context.Context, userID string) ([]string, error) {
	chats, _, err := uc.chatRepo.ListActiveByUserID(ctx, userID, -1, 0)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(chats))
	for _, chat := range chats {
		ids = append(ids, chat.ID)
	}
	return ids, nil
}
