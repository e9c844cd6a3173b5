package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
)

const (
	defaultAPIURL     = "https://open.tiktokapis.com"
	defaultAuthURL    = "https://www.tiktok.com/v2/auth/authorize/"
	defaultCommitPath = "/v2/post/publish/commit/"
)

// Config holds the TikTok app credentials. TikTok calls the client id a
// "client key". URL fields are overridable for tests.
type Config struct {
	ClientKey    string
	ClientSecret string
	RedirectURI  string
	APIURL       string
	AuthURL      string
	CommitPath   string
	HTTPClient   *http.Client
}

// Client talks to the TikTok Open API. Direct uploads run init, chunk
// upload, commit; remote uploads hand TikTok the public URL and let its
// servers pull the file.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.CommitPath == "" {
		cfg.CommitPath = defaultCommitPath
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

type authorizeParams struct {
	ClientKey    string `url:"client_key"`
	Scope        string `url:"scope"`
	ResponseType string `url:"response_type"`
	RedirectURI  string `url:"redirect_uri"`
	State        string `url:"state"`
}

// AuthorizeURL builds the consent URL the browser is redirected to.
func (c *Client) AuthorizeURL(state string) string {
	v, _ := query.Values(authorizeParams{
		ClientKey:    c.cfg.ClientKey,
		Scope:        "user.info.basic,video.publish",
		ResponseType: "code",
		RedirectURI:  c.cfg.RedirectURI,
		State:        state,
	})
	return c.cfg.AuthURL + "?" + v.Encode()
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	OpenID           string `json:"open_id"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) token(ctx context.Context, form url.Values) (*tokenResponse, error) {
	form.Set("client_key", c.cfg.ClientKey)
	form.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/v2/oauth/token/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var res tokenResponse
	if err := c.doJSON(req, &res); err != nil {
		return nil, err
	}
	// TikTok reports grant failures inside a 200 body.
	if res.Error != "" {
		return nil, fmt.Errorf("tiktok token grant: %s: %s", res.Error, res.ErrorDescription)
	}
	if res.AccessToken == "" {
		return nil, fmt.Errorf("tiktok token grant: empty access token")
	}
	return &res, nil
}

// Connect trades the callback code for tokens and fetches the profile.
func (c *Client) Connect(ctx context.Context, userID, code string) (*model.Credential, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)

	tok, err := c.token(ctx, form)
	if err != nil {
		return nil, err
	}

	name, avatar, err := c.userInfo(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return &model.Credential{
		UserID:       userID,
		Platform:     model.PlatformTikTok,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    &expiresAt,
		AccountID:    tok.OpenID,
		AccountName:  name,
		AvatarURL:    avatar,
	}, nil
}

// Refresh rotates the access token with the stored refresh token. TikTok
// rotates the refresh token as well, so both are replaced.
func (c *Client) Refresh(ctx context.Context, cred *model.Credential) (*model.Credential, error) {
	if cred.RefreshToken == "" {
		return nil, model.ErrRefreshFailed
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)

	tok, err := c.token(ctx, form)
	if err != nil {
		logger.GetLogger().WithField("platform", cred.Platform).WithField("error", err).Warn("TikTok token refresh failed")
		return nil, model.ErrRefreshFailed
	}

	next := *cred
	next.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	expiresAt := time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	next.ExpiresAt = &expiresAt
	return &next, nil
}

func (c *Client) userInfo(ctx context.Context, accessToken string) (name, avatar string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"/v2/user/info/?fields=open_id,username,avatar_url", nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var res struct {
		Data struct {
			User struct {
				OpenID    string `json:"open_id"`
				Username  string `json:"username"`
				AvatarURL string `json:"avatar_url"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := c.doJSON(req, &res); err != nil {
		return "", "", fmt.Errorf("tiktok user info: %w", err)
	}
	return res.Data.User.Username, res.Data.User.AvatarURL, nil
}

type initRequest struct {
	PostInfo struct {
		Title        string `json:"title"`
		PrivacyLevel string `json:"privacy_level"`
	} `json:"post_info"`
	SourceInfo struct {
		Source          string `json:"source"`
		VideoSize       int64  `json:"video_size,omitempty"`
		ChunkSize       int64  `json:"chunk_size,omitempty"`
		TotalChunkCount int    `json:"total_chunk_count,omitempty"`
		VideoURL        string `json:"video_url,omitempty"`
	} `json:"source_info"`
}

type initResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
		UploadURL string `json:"upload_url"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Publish posts the video to the user's TikTok inbox. With raw bytes on hand
// it runs the direct upload protocol (init, single-chunk PUT, commit);
// otherwise it asks TikTok to pull from the public URL.
func (c *Client) Publish(ctx context.Context, cred *model.Credential, media *model.MediaRef) (string, error) {
	return c.PublishWithPhases(ctx, cred, media, nil)
}

// PublishWithPhases reports the post-upload commit as a processing phase.
func (c *Client) PublishWithPhases(ctx context.Context, cred *model.Credential, media *model.MediaRef, onPhase func(status string)) (string, error) {
	var reqBody initRequest
	reqBody.PostInfo.Title = media.Title
	reqBody.PostInfo.PrivacyLevel = "SELF_ONLY"
	direct := len(media.Data) > 0
	if direct {
		size := int64(len(media.Data))
		reqBody.SourceInfo.Source = "FILE_UPLOAD"
		reqBody.SourceInfo.VideoSize = size
		reqBody.SourceInfo.ChunkSize = size
		reqBody.SourceInfo.TotalChunkCount = 1
	} else {
		reqBody.SourceInfo.Source = "PULL_FROM_URL"
		reqBody.SourceInfo.VideoURL = media.PublicURL
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/v2/post/publish/video/init/", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	var res initResponse
	if err := c.doJSON(req, &res); err != nil {
		return "", fmt.Errorf("tiktok publish init: %w", err)
	}
	if res.Error.Code != "" && res.Error.Code != "ok" {
		return "", fmt.Errorf("tiktok publish init: %s: %s", res.Error.Code, res.Error.Message)
	}
	if res.Data.PublishID == "" {
		return "", fmt.Errorf("tiktok publish init: response missing publish id")
	}

	if direct {
		if err := c.upload(ctx, res.Data.UploadURL, media.Data); err != nil {
			return "", err
		}
		if onPhase != nil {
			onPhase(model.PublishStatusProcessing)
		}
		if err := c.commit(ctx, cred.AccessToken, res.Data.PublishID); err != nil {
			return "", err
		}
	}
	return res.Data.PublishID, nil
}

func (c *Client) upload(ctx context.Context, uploadURL string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	n := int64(len(data))
	req.Header.Set("Content-Type", "video/mp4")
	req.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", n-1, n))
	req.ContentLength = n

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tiktok chunk upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusPartialContent {
		raw, _ := io.ReadAll(resp.Body)
		logger.GetLogger().WithField("status", resp.StatusCode).WithField("body", string(raw)).Error("TikTok chunk upload failed")
		return fmt.Errorf("tiktok chunk upload: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) commit(ctx context.Context, accessToken, publishID string) error {
	payload, _ := json.Marshal(map[string]string{"publish_id": publishID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+c.cfg.CommitPath, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	var res struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := c.doJSON(req, &res); err != nil {
		return fmt.Errorf("tiktok publish commit: %w", err)
	}
	if res.Error.Code != "" && res.Error.Code != "ok" {
		return fmt.Errorf("tiktok publish commit: %s: %s", res.Error.Code, res.Error.Message)
	}
	return nil
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		logger.GetLogger().WithField("status", resp.StatusCode).WithField("body", string(raw)).Error("TikTok API error")
		return fmt.Errorf("tiktok api status %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}
