package instagram

import (
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
	defaultAPIURL   = "https://api.instagram.com"
	defaultGraphURL = "https://graph.instagram.com"
	defaultAuthURL  = "https://www.instagram.com/oauth/authorize"
)

// Config holds the Instagram app credentials. The URL fields and poll knobs
// are overridable for tests.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIURL       string
	GraphURL     string
	AuthURL      string
	// PollInterval and PollMaxAttempts bound the media container status loop.
	PollInterval    time.Duration
	PollMaxAttempts int
	HTTPClient      *http.Client
}

// Client talks to the Instagram Basic Display / Graph APIs. Reels publishing
// is a two-phase protocol: create a media container, wait for processing,
// then publish the container.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.GraphURL == "" {
		cfg.GraphURL = defaultGraphURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.PollMaxAttempts == 0 {
		cfg.PollMaxAttempts = 20
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

type authorizeParams struct {
	ClientID     string `url:"client_id"`
	RedirectURI  string `url:"redirect_uri"`
	Scope        string `url:"scope"`
	ResponseType string `url:"response_type"`
	State        string `url:"state"`
}

// AuthorizeURL builds the consent URL the browser is redirected to.
func (c *Client) AuthorizeURL(state string) string {
	v, _ := query.Values(authorizeParams{
		ClientID:     c.cfg.ClientID,
		RedirectURI:  c.cfg.RedirectURI,
		Scope:        "instagram_business_basic,instagram_business_content_publish",
		ResponseType: "code",
		State:        state,
	})
	return c.cfg.AuthURL + "?" + v.Encode()
}

// Connect runs the full handshake: code to short-lived token, upgrade to a
// long-lived token, then the profile fetch. Instagram issues no refresh
// token; the long-lived token simply expires after about 60 days.
func (c *Client) Connect(ctx context.Context, userID, code string) (*model.Credential, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", c.cfg.RedirectURI)
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var short struct {
		AccessToken string      `json:"access_token"`
		UserID      json.Number `json:"user_id"`
	}
	if err := c.doJSON(req, &short); err != nil {
		return nil, fmt.Errorf("instagram code exchange: %w", err)
	}
	if short.AccessToken == "" {
		return nil, fmt.Errorf("instagram code exchange: empty access token")
	}

	v := url.Values{}
	v.Set("grant_type", "ig_exchange_token")
	v.Set("client_secret", c.cfg.ClientSecret)
	v.Set("access_token", short.AccessToken)

	var long struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := c.getJSON(ctx, c.cfg.GraphURL+"/access_token?"+v.Encode(), &long); err != nil {
		return nil, fmt.Errorf("instagram token upgrade: %w", err)
	}

	pv := url.Values{}
	pv.Set("fields", "id,username,profile_picture_url")
	pv.Set("access_token", long.AccessToken)

	var profile struct {
		ID                string `json:"id"`
		Username          string `json:"username"`
		ProfilePictureURL string `json:"profile_picture_url"`
	}
	if err := c.getJSON(ctx, c.cfg.GraphURL+"/me?"+pv.Encode(), &profile); err != nil {
		return nil, fmt.Errorf("instagram profile: %w", err)
	}

	expiresAt := time.Now().Add(time.Duration(long.ExpiresIn) * time.Second)
	return &model.Credential{
		UserID:      userID,
		Platform:    model.PlatformInstagram,
		AccessToken: long.AccessToken,
		ExpiresAt:   &expiresAt,
		AccountID:   profile.ID,
		AccountName: profile.Username,
		AvatarURL:   profile.ProfilePictureURL,
	}, nil
}

// Publish creates a REELS media container pointing at the public video URL,
// waits for Instagram to finish processing it, then publishes the container.
// Polling errors are tolerated; a container that never reports FINISHED is
// still published once, since processing often completes server-side after
// the status endpoint goes quiet.
func (c *Client) Publish(ctx context.Context, cred *model.Credential, media *model.MediaRef) (string, error) {
	return c.PublishWithPhases(ctx, cred, media, nil)
}

// PublishWithPhases reports the container-poll wait as a processing phase.
func (c *Client) PublishWithPhases(ctx context.Context, cred *model.Credential, media *model.MediaRef, onPhase func(status string)) (string, error) {
	v := url.Values{}
	v.Set("media_type", "REELS")
	v.Set("video_url", media.PublicURL)
	v.Set("caption", caption(media))
	v.Set("access_token", cred.AccessToken)

	var container struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, fmt.Sprintf("%s/%s/media?%s", c.cfg.GraphURL, cred.AccountID, v.Encode()), &container); err != nil {
		return "", fmt.Errorf("instagram container create: %w", err)
	}
	if container.ID == "" {
		return "", fmt.Errorf("instagram container create: response missing container id")
	}

	if onPhase != nil {
		onPhase(model.PublishStatusProcessing)
	}
	if err := c.waitForContainer(ctx, cred.AccessToken, container.ID); err != nil {
		return "", err
	}

	pv := url.Values{}
	pv.Set("creation_id", container.ID)
	pv.Set("access_token", cred.AccessToken)

	var published struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, fmt.Sprintf("%s/%s/media_publish?%s", c.cfg.GraphURL, cred.AccountID, pv.Encode()), &published); err != nil {
		return "", fmt.Errorf("instagram media publish: %w", err)
	}
	if published.ID == "" {
		return "", fmt.Errorf("instagram media publish: response missing media id")
	}
	return published.ID, nil
}

func (c *Client) waitForContainer(ctx context.Context, accessToken, containerID string) error {
	v := url.Values{}
	v.Set("fields", "status_code,error_message")
	v.Set("access_token", accessToken)
	statusURL := fmt.Sprintf("%s/%s?%s", c.cfg.GraphURL, containerID, v.Encode())

	for attempt := 1; attempt <= c.cfg.PollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}

		var status struct {
			StatusCode   string `json:"status_code"`
			ErrorMessage string `json:"error_message"`
		}
		if err := c.getJSON(ctx, statusURL, &status); err != nil {
			// Transient status-check failures burn an attempt but never
			// abort the wait.
			logger.GetLogger().WithField("attempt", attempt).WithField("error", err).Warn("Instagram container status check failed")
			continue
		}
		switch status.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR":
			// ERROR from the status endpoint does not always mean the
			// container is unpublishable; stop polling and let the publish
			// attempt decide.
			logger.GetLogger().WithField("container_id", containerID).WithField("error_message", status.ErrorMessage).Warn("Instagram container reported ERROR; attempting publish anyway")
			return nil
		}
	}
	logger.GetLogger().WithField("container_id", containerID).Warn("Instagram container never reported FINISHED; attempting publish anyway")
	return nil
}

func caption(media *model.MediaRef) string {
	if media.Description != "" {
		return media.Description
	}
	return media.Title
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		logger.GetLogger().WithField("status", resp.StatusCode).WithField("body", string(raw)).Error("Instagram API error")
		return fmt.Errorf("instagram api status %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}
