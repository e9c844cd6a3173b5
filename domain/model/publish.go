package model

import "time"

// Publish record statuses. published and failed are terminal; a terminal
// record is never retried automatically.
const (
	PublishStatusPending    = "pending"
	PublishStatusUploading  = "uploading"
	PublishStatusProcessing = "processing"
	PublishStatusPublished  = "published"
	PublishStatusFailed     = "failed"
)

// VideoRecord represents one uploaded video and its backing object-store URL.
type VideoRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	FileURL     string    `json:"file_url"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PublishRecord represents the latest state of a publish attempt per (video, platform).
type PublishRecord struct {
	ID              int64     `json:"id"`
	VideoID         string    `json:"video_id"`
	UserID          string    `json:"user_id"`
	Platform        string    `json:"platform"`
	Status          string    `json:"status"`
	PlatformMediaID *string   `json:"platform_media_id,omitempty"`
	ErrorMessage    *string   `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// MediaRef bundles the uploaded binary, its publicly reachable URL and the
// caption metadata handed to each provider pipeline.
type MediaRef struct {
	PublicURL   string   `json:"public_url"`
	Data        []byte   `json:"-"`
	FileName    string   `json:"file_name"`
	ContentType string   `json:"content_type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Shorts      bool     `json:"shorts,omitempty"`
}

// PublishResult is the terminal per-platform outcome of one publish request.
type PublishResult struct {
	Platform        string `json:"platform"`
	Status          string `json:"status"`
	PlatformMediaID string `json:"platform_media_id,omitempty"`
	Error           string `json:"error,omitempty"`
}
