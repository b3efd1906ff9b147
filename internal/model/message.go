package model

import "time"

// Message is one exchange in a user's conversation with a god: the user's
// message and the god's generated response, stored together as a pair.
// Scheduled broadcasts reuse the same shape with Scheduled set.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	GodID     string    `json:"godId"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Scheduled bool      `json:"scheduled,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
