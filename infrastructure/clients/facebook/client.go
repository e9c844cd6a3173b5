package facebook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
)

const (
	defaultGraphURL = "https://graph.facebook.com/v19.0"
	defaultAuthURL  = "https://www.facebook.com/v19.0/dialog/oauth"
)

// Config holds the Facebook app credentials. GraphURL and AuthURL are
// overridable for tests.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	GraphURL     string
	AuthURL      string
	HTTPClient   *http.Client
}

// Client talks to the Facebook Graph API. Publishing targets a Page, so the
// stored credential carries a Page access token rather than a user token.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.GraphURL == "" {
		cfg.GraphURL = defaultGraphURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
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
	State        string `url:"state"`
	Scope        string `url:"scope"`
	ResponseType string `url:"response_type"`
}

// AuthorizeURL builds the consent URL the browser is redirected to.
func (c *Client) AuthorizeURL(state string) string {
	v, _ := query.Values(authorizeParams{
		ClientID:     c.cfg.ClientID,
		RedirectURI:  c.cfg.RedirectURI,
		State:        state,
		Scope:        "pages_show_list,pages_read_engagement,pages_manage_posts,publish_video",
		ResponseType: "code",
	})
	return c.cfg.AuthURL + "?" + v.Encode()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeCode trades the callback code for a short-lived user token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	v := url.Values{}
	v.Set("client_id", c.cfg.ClientID)
	v.Set("client_secret", c.cfg.ClientSecret)
	v.Set("redirect_uri", c.cfg.RedirectURI)
	v.Set("code", code)

	var res tokenResponse
	if err := c.getJSON(ctx, c.cfg.GraphURL+"/oauth/access_token?"+v.Encode(), &res); err != nil {
		return "", fmt.Errorf("facebook code exchange: %w", err)
	}
	if res.AccessToken == "" {
		return "", fmt.Errorf("facebook code exchange: empty access token")
	}
	return res.AccessToken, nil
}

// LongLivedToken upgrades a short-lived user token to a ~60 day one.
func (c *Client) LongLivedToken(ctx context.Context, shortToken string) (string, error) {
	v := url.Values{}
	v.Set("grant_type", "fb_exchange_token")
	v.Set("client_id", c.cfg.ClientID)
	v.Set("client_secret", c.cfg.ClientSecret)
	v.Set("fb_exchange_token", shortToken)

	var res tokenResponse
	if err := c.getJSON(ctx, c.cfg.GraphURL+"/oauth/access_token?"+v.Encode(), &res); err != nil {
		return "", fmt.Errorf("facebook token upgrade: %w", err)
	}
	if res.AccessToken == "" {
		return "", fmt.Errorf("facebook token upgrade: empty access token")
	}
	return res.AccessToken, nil
}

// Page is one managed Facebook Page with its own access token.
type Page struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
	Picture     struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// Pages lists the Pages the user manages, each with its own Page token.
func (c *Client) Pages(ctx context.Context, userToken string) ([]Page, error) {
	v := url.Values{}
	v.Set("fields", "id,name,picture,access_token")
	v.Set("access_token", userToken)

	var res struct {
		Data []Page `json:"data"`
	}
	if err := c.getJSON(ctx, c.cfg.GraphURL+"/me/accounts?"+v.Encode(), &res); err != nil {
		return nil, fmt.Errorf("facebook pages: %w", err)
	}
	return res.Data, nil
}

// Connect runs the full handshake: code to user token, token upgrade, page
// listing. The first managed Page becomes the stored credential. Page tokens
// derived from long-lived user tokens do not expire, so ExpiresAt stays nil.
func (c *Client) Connect(ctx context.Context, userID, code string) (*model.Credential, error) {
	shortToken, err := c.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	longToken, err := c.LongLivedToken(ctx, shortToken)
	if err != nil {
		return nil, err
	}
	pages, err := c.Pages(ctx, longToken)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("facebook connect: no managed pages for this account")
	}
	page := pages[0]
	return &model.Credential{
		UserID:      userID,
		Platform:    model.PlatformFacebook,
		AccessToken: page.AccessToken,
		AccountID:   page.ID,
		AccountName: page.Name,
		AvatarURL:   page.Picture.Data.URL,
	}, nil
}

// Publish uploads the video to the Page feed in a single request. Facebook
// accepts either a publicly reachable URL or the raw bytes; the URL path is
// preferred since the media store already hosts the file.
func (c *Client) Publish(ctx context.Context, cred *model.Credential, media *model.MediaRef) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/videos", c.cfg.GraphURL, cred.AccountID)

	var req *http.Request
	var err error
	if media.PublicURL != "" {
		form := url.Values{}
		form.Set("file_url", media.PublicURL)
		form.Set("title", media.Title)
		form.Set("description", media.Description)
		form.Set("access_token", cred.AccessToken)
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		part, perr := w.CreateFormFile("source", media.FileName)
		if perr != nil {
			return "", perr
		}
		if _, perr = part.Write(media.Data); perr != nil {
			return "", perr
		}
		_ = w.WriteField("title", media.Title)
		_ = w.WriteField("description", media.Description)
		_ = w.WriteField("access_token", cred.AccessToken)
		if err = w.Close(); err != nil {
			return "", err
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("facebook video upload: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		logger.GetLogger().WithField("status", resp.StatusCode).WithField("body", string(raw)).Error("Facebook video upload failed")
		return "", fmt.Errorf("facebook video upload: status %d", resp.StatusCode)
	}
	var res struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("facebook video upload: decode response: %w", err)
	}
	if res.ID == "" {
		return "", fmt.Errorf("facebook video upload: response missing video id")
	}
	return res.ID, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		logger.GetLogger().WithField("status", resp.StatusCode).WithField("body", string(raw)).Error("Facebook Graph API error")
		return fmt.Errorf("graph api status %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}
