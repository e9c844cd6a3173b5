package model

import "time"

// Platform identifiers for the supported publishing targets.
const (
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformYouTube   = "youtube"
)

// Platforms lists every supported platform in a stable order.
var Platforms = []string{PlatformFacebook, PlatformInstagram, PlatformTikTok, PlatformYouTube}

func KnownPlatform(p string) bool {
	for _, k := range Platforms {
		if k == p {
			return true
		}
	}
	return false
}

// Credential stores platform access material per (user, platform).
// Rows are replaced wholesale via upsert; the token refresher rewrites
// access_token/refresh_token/expires_at together, never one field alone.
type Credential struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"user_id"`
	Platform     string     `json:"platform"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"` // nil: does not expire
	AccountID    string     `json:"account_id"`
	AccountName  string     `json:"account_name"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
