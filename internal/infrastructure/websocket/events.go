package websocket

import (
	"encoding/json"
	"time"

	"servisku/internal/domain/entity"
)

// Client -> server event types
const (
	EventPing        = "ping"
	EventJoinChat    = "join_chat"
	EventLeaveChat   = "leave_chat"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
	EventMarkRead    = "mark_messages_read"
	EventSendMessage = "send_message" // ignored; the durable path is the only write path
)

// Server -> client event types
const (
	EventPong           = "pong"
	EventChatJoined     = "chat_joined"
	EventNewMessage     = "new_message"
	EventUserTyping     = "user_typing"
	EventMessagesRead   = "messages_read"
	EventChatListUpdate = "chat_list_update"
	EventError          = "error"
)

// Envelope is the wire frame for every websocket event, both directions.
type Envelope struct {
	Type      string      `json:"type"`
	ChatID    string      `json:"chat_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// ClientEnvelope is the incoming frame; data stays raw until the type
// is known.
type ClientEnvelope struct {
	Type   string          `json:"type"`
	ChatID string          `json:"chat_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(eventType, chatID string, data interface{}) Envelope {
	return Envelope{
		Type:      eventType,
		ChatID:    chatID,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// Marshal encodes the envelope for the send channel. Marshaling an
// envelope built from our own payload types does not fail; a nil return
// means the frame is dropped with a log line at the call site.
func (e Envelope) Marshal() []byte {
	b, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return b
}

type ChatJoinedData struct {
	ChatID  string `json:"chat_id"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type NewMessageData struct {
	ChatID  string          `json:"chat_id"`
	Message *entity.Message `json:"message"`
}

type TypingData struct {
	ChatID   string `json:"chat_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

type MessagesReadData struct {
	ChatID   string `json:"chat_id"`
	ReadByID string `json:"read_by_user_id"`
	Count    int64  `json:"count"`
}

type ChatListUpdateData struct {
	ChatID        string `json:"chat_id"`
	LastMessage   string `json:"last_message"`
	LastMessageAt string `json:"last_message_at"`
	SenderID      string `json:"sender_id"`
}

type ErrorData struct {
	Message string `json:"message"`
}
