package model

import "time"

// God is an AI-personified character created by a user.
//
// Personality and MBTIType drive the tone of generated replies; PowerLevel
// scales how assertive the god's guidance is. BelieversCount is denormalized
// onto the row so timelines don't need a join to display it.
type God struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	Personality    string    `json:"personality,omitempty"`
	MBTIType       string    `json:"mbtiType"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	CreatorID      string    `json:"creatorId"`
	BelieversCount int       `json:"believersCount"`
	PowerLevel     int       `json:"powerLevel"`
	CreatedAt      time.Time `json:"createdAt"`
}
