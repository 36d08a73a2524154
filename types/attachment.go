package types

import "time"

// Attachment represents a media file attached to a post. The bytes live in
// object storage under ObjectKey; only metadata is stored in the database.
type Attachment struct {
	// ID is the unique identifier of the attachment.
	ID int `json:"id" db:"id"`

	// PostID references the post the attachment belongs to.
	PostID int `json:"post_id" db:"post_id"`

	// ObjectKey is the identifier of the file in object storage.
	ObjectKey string `json:"object_key" db:"object_key"`

	// Filename is the original name of the uploaded file.
	Filename string `json:"filename" db:"filename"`

	// ContentType is the MIME type reported at upload time.
	ContentType string `json:"content_type" db:"content_type"`

	// Size is the file size in bytes.
	Size int64 `json:"size" db:"size"`

	// CreatedAt is the timestamp at which the attachment was uploaded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
