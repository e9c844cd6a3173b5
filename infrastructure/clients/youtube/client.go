package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
)

const defaultUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos"

// maxTitleLen is YouTube's hard limit on video titles.
const maxTitleLen = 100

// Config holds the Google OAuth client. Endpoint, APIEndpoint and UploadURL
// are overridable for tests.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Endpoint     oauth2.Endpoint
	APIEndpoint  string
	UploadURL    string
	HTTPClient   *http.Client
}

// Client talks to the YouTube Data API. Uploads use the resumable protocol:
// a metadata POST opens an upload session, the bytes go to the session URL.
type Client struct {
	cfg        Config
	oauth      *oauth2.Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint = google.Endpoint
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = defaultUploadURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes: []string{
				youtube.YoutubeUploadScope,
				youtube.YoutubeReadonlyScope,
			},
			Endpoint: cfg.Endpoint,
		},
		httpClient: httpClient,
	}
}

// AuthorizeURL builds the consent URL. Offline access plus forced consent
// guarantees Google returns a refresh token on every connect.
func (c *Client) AuthorizeURL(state string) string {
	return c.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// Connect trades the callback code for tokens and resolves the channel the
// tokens belong to.
func (c *Client) Connect(ctx context.Context, userID, code string) (*model.Credential, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("youtube code exchange: %w", err)
	}

	opts := []option.ClientOption{option.WithHTTPClient(c.oauth.Client(ctx, tok))}
	if c.cfg.APIEndpoint != "" {
		opts = append(opts, option.WithEndpoint(c.cfg.APIEndpoint))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}

	res, err := svc.Channels.List([]string{"snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("youtube channel lookup: %w", err)
	}
	if len(res.Items) == 0 {
		return nil, fmt.Errorf("youtube channel lookup: no channel for this account")
	}
	ch := res.Items[0]

	cred := &model.Credential{
		UserID:       userID,
		Platform:     model.PlatformYouTube,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		AccountID:    ch.Id,
		AccountName:  ch.Snippet.Title,
	}
	if ch.Snippet.Thumbnails != nil && ch.Snippet.Thumbnails.Default != nil {
		cred.AvatarURL = ch.Snippet.Thumbnails.Default.Url
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		cred.ExpiresAt = &expiry
	}
	return cred, nil
}

// Refresh rotates the access token with the stored refresh token. Google
// keeps the refresh token stable, so only the access material changes.
func (c *Client) Refresh(ctx context.Context, cred *model.Credential) (*model.Credential, error) {
	if cred.RefreshToken == "" {
		return nil, model.ErrRefreshFailed
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		logger.GetLogger().WithField("platform", cred.Platform).WithField("error", err).Warn("YouTube token refresh failed")
		return nil, model.ErrRefreshFailed
	}

	next := *cred
	next.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		next.ExpiresAt = &expiry
	}
	return &next, nil
}

type uploadMetadata struct {
	Snippet struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags,omitempty"`
		CategoryID  string   `json:"categoryId"`
	} `json:"snippet"`
	Status struct {
		PrivacyStatus           string `json:"privacyStatus"`
		SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
	} `json:"status"`
}

// Publish uploads the video with the resumable protocol and returns the new
// video id. Shorts get the #shorts marker appended so YouTube classifies
// them correctly.
func (c *Client) Publish(ctx context.Context, cred *model.Credential, media *model.MediaRef) (string, error) {
	if len(media.Data) == 0 {
		return "", fmt.Errorf("youtube upload: no video bytes; resumable upload needs the raw file")
	}

	title := media.Title
	description := media.Description
	if media.Shorts {
		title = title + " #shorts"
		description = description + "\n#shorts"
	}

	var meta uploadMetadata
	meta.Snippet.Title = truncateTitle(title)
	meta.Snippet.Description = description
	meta.Snippet.Tags = media.Tags
	meta.Snippet.CategoryID = "22"
	meta.Status.PrivacyStatus = "public"
	meta.Status.SelfDeclaredMadeForKids = false

	payload, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	initURL := c.cfg.UploadURL + "?uploadType=resumable&part=snippet,status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, initURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	contentType := media.ContentType
	if contentType == "" {
		contentType = "video/mp4"
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Length", strconv.Itoa(len(media.Data)))
	req.Header.Set("X-Upload-Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("youtube upload session: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("youtube upload session: status %d", resp.StatusCode)
	}
	sessionURL := resp.Header.Get("Location")
	if sessionURL == "" {
		return "", fmt.Errorf("youtube upload session: missing session location")
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, bytes.NewReader(media.Data))
	if err != nil {
		return "", err
	}
	put.Header.Set("Content-Type", contentType)
	put.ContentLength = int64(len(media.Data))

	upResp, err := c.httpClient.Do(put)
	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}
	defer upResp.Body.Close()
	raw, _ := io.ReadAll(upResp.Body)
	if upResp.StatusCode != http.StatusOK && upResp.StatusCode != http.StatusCreated {
		logger.GetLogger().WithField("status", upResp.StatusCode).WithField("body", string(raw)).Error("YouTube upload failed")
		return "", fmt.Errorf("youtube upload: status %d", upResp.StatusCode)
	}
	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &uploaded); err != nil {
		return "", fmt.Errorf("youtube upload: decode response: %w", err)
	}
	if uploaded.ID == "" {
		return "", fmt.Errorf("youtube upload: response missing video id")
	}
	return uploaded.ID, nil
}

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= maxTitleLen {
		return title
	}
	return string(runes[:maxTitleLen-3]) + "..."
}
