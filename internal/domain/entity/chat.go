package entity

import "time"

const (
	RoleCustomer = "customer"
	RoleProvider = "provider"
)

// Participant binds a user to the role they hold inside one chat.
type Participant struct {
	UserID string `json:"user_id" firestore:"userId"`
	Role   string `json:"role" firestore:"role"` // "customer" or "provider"
}

// Chat is a two-party conversation scoped to one service listing.
// Participants and ServiceID are set at creation and never change.
type Chat struct {
	ID             string        `json:"id" firestore:"id"`
	Participants   []Participant `json:"participants" firestore:"participants"`
	ParticipantIDs []string      `json:"-" firestore:"participantIds"` // flat copy for array-contains queries
	ServiceID      string        `json:"service_id" firestore:"serviceId"`
	LastMessageID  string        `json:"last_message_id,omitempty" firestore:"lastMessageId,omitempty"`
	LastMessage    string        `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt  time.Time     `json:"last_message_at" firestore:"lastMessageAt"`
	IsActive       bool          `json:"is_active" firestore:"isActive"`
	CreatedAt      time.Time     `json:"created_at" firestore:"createdAt"`
	UpdatedAt      time.Time     `json:"updated_at" firestore:"updatedAt"`
}

// HasParticipant reports whether userID is one of the chat's recorded
// participants. This is the only membership rule in the system.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// CustomerID returns the user id of the customer-side participant.
func (c *Chat) CustomerID() string {
	for _, p := range c.Participants {
		if p.Role == RoleCustomer {
			return p.UserID
		}
	}
	return ""
}

// Counterpart returns the other participant's user id.
func (c *Chat) Counterpart(userID string) string {
	for _, p := range c.Participants {
		if p.UserID != userID {
			return p.UserID
		}
	}
	return ""
}
