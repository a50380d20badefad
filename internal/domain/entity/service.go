package entity

import "time"

const (
	ServiceStatusActive      = "active"
	ServiceStatusDeactivated = "deactivated"
)

// Service is a provider's listing. The chat core only ever consults it
// through StartChat; everything else about listings lives elsewhere.
type Service struct {
	ID          string    `json:"id" firestore:"id"`
	ProviderID  string    `json:"provider_id" firestore:"providerId"`
	Title       string    `json:"title" firestore:"title"`
	Description string    `json:"description,omitempty" firestore:"description,omitempty"`
	Category    string    `json:"category,omitempty" firestore:"category,omitempty"`
	Price       float64   `json:"price" firestore:"price"`
	ImageURL    string    `json:"image_url,omitempty" firestore:"imageUrl,omitempty"`
	Status      string    `json:"status" firestore:"status"`
	CreatedAt   time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updated_at" firestore:"updatedAt"`
}

func (s *Service) IsActive() bool {
	return s.Status == ServiceStatusActive
}
