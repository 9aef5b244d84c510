package domain

import (
	"io"
	"time"
)

// Object is an upload in flight, handed to the storage backend.
type Object struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
	UploadedBy  string
}

// StoredObject describes a file held by the storage backend.
type StoredObject struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Name        string    `json:"name,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}
