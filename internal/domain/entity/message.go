package entity

import "time"

const (
	MessageKindText  = "text"
	MessageKindMedia = "media"
)

// Message is an immutable unit of chat content; only the read-state
// fields change after creation.
type Message struct {
	ID        string     `json:"id" firestore:"id"`
	ChatID    string     `json:"chat_id" firestore:"chatId"`
	SenderID  string     `json:"sender_id" firestore:"senderId"`
	Kind      string     `json:"kind" firestore:"kind"` // "text" or "media"
	Content   string     `json:"content,omitempty" firestore:"content,omitempty"`
	MediaURL  string     `json:"media_url,omitempty" firestore:"mediaUrl,omitempty"`
	MediaKind string     `json:"media_kind,omitempty" firestore:"mediaKind,omitempty"` // "image", "file"
	IsRead    bool       `json:"is_read" firestore:"isRead"`
	ReadAt    *time.Time `json:"read_at,omitempty" firestore:"readAt,omitempty"`
	CreatedAt time.Time  `json:"created_at" firestore:"createdAt"`
}

// Preview returns the text shown in the chat list for this message.
func (m *Message) Preview() string {
	if m.Kind == MessageKindMedia {
		return "[media]"
	}
	return m.Content
}
