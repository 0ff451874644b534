package model

import "time"

// Upload records one PDF written to blob storage.
// Re-uploading a name overwrites the blob but adds a new record.
type Upload struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Container   string    `json:"container"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	ETag        string    `json:"etag,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
