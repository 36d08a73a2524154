package types

import "time"

// Post represents a blog post as stored.
// The author reference is set once at creation and never reassigned;
// all mutation and deletion requires the caller to be the author.
type Post struct {
	// ID is the unique identifier of the post.
	ID int `json:"id" db:"id"`

	// AuthorID references the user who created the post.
	AuthorID int `json:"author_id" db:"author_id"`

	// Title is the post headline.
	Title string `json:"title" db:"title"`

	// Content is the post body.
	Content string `json:"content" db:"content"`

	// CreatedAt is the timestamp at which the post was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the post.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PostView is the denormalized read model of a post: the author id is
// expanded to the author's public fields via a join at fetch time.
type PostView struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
