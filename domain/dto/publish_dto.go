package dto

import "crosspost/domain/model"

// PublishResponse is the body of POST /api/publish. The overall request is
// accepted (200) as long as the input parsed; per-platform outcomes live in
// Results.
type PublishResponse struct {
	VideoID string                         `json:"video_id"`
	FileURL string                         `json:"file_url"`
	Results map[string]model.PublishResult `json:"results"`
}

// ConnectionInfo is the per-platform entry of GET /api/connections.
type ConnectionInfo struct {
	Platform    string `json:"platform"`
	Connected   bool   `json:"connected"`
	AccountID   string `json:"account_id,omitempty"`
	AccountName string `json:"account_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// FacebookPage is one manageable page returned by the page-selection sub-flow.
type FacebookPage struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}
