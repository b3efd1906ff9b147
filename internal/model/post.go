package model

import "time"

// Post is a timeline entry. Author is populated on reads so the frontend can
// render a post without a second lookup; it is not stored on the posts table.
type Post struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Content    string    `json:"content"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	LikesCount int       `json:"likesCount"`
	CreatedAt  time.Time `json:"createdAt"`

	Author *PostAuthor `json:"user,omitempty"`
}

// PostAuthor is the slice of a User that gets embedded in posts and comments.
type PostAuthor struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// Comment is a reply attached to a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`

	Author *PostAuthor `json:"user,omitempty"`
}
