package types

import "time"

// Comment represents a comment under a post as stored.
type Comment struct {
	// ID is the unique identifier of the comment.
	ID int `json:"id" db:"id"`

	// PostID references the post the comment belongs to.
	PostID int `json:"post_id" db:"post_id"`

	// AuthorID references the user who wrote the comment.
	AuthorID int `json:"author_id" db:"author_id"`

	// Content is the comment body.
	Content string `json:"content" db:"content"`

	// CreatedAt is the timestamp at which the comment was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the comment.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CommentView is the denormalized read model of a comment with the
// author expanded.
type CommentView struct {
	ID        int       `json:"id" db:"id"`
	PostID    int       `json:"post_id" db:"post_id"`
	Content   string    `json:"content" db:"content"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
