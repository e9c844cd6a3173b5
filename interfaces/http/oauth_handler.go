package http

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/clients/facebook"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/statetoken"
)

const (
	stateCookieMaxAge   = 600
	fbPagesCookieName   = "fb_pages_token"
	fbPagesCookieMaxAge = 600
)

// IProviderConnector is the slice of a provider client the handshake needs:
// building the consent URL and turning a callback code into a credential.
type IProviderConnector interface {
	AuthorizeURL(state string) string
	Connect(ctx context.Context, userID, code string) (*model.Credential, error)
}

// Provider bundles one platform's connector with its state codec. Secure
// marks whether the registered redirect URI is https, which decides the
// cookie's Secure flag.
type Provider struct {
	Connector IProviderConnector
	Codec     *statetoken.Codec
	Secure    bool
}

type IOAuthHandler interface {
	Start(c *gin.Context)
	Callback(c *gin.Context)
}

type oauthHandler struct {
	providers map[string]Provider
	credRepo  repository.ICredential
	baseURL   string
	// fb enables the page-selection sub-flow on the facebook callback.
	fb *facebook.Client
}

func NewOAuthHandler(providers map[string]Provider, credRepo repository.ICredential, baseURL string, fb *facebook.Client) IOAuthHandler {
	return &oauthHandler{
		providers: providers,
		credRepo:  credRepo,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		fb:        fb,
	}
}

// Start issues the signed handshake state, pins it in a cookie and sends the
// browser to the provider's consent screen.
func (h *oauthHandler) Start(c *gin.Context) {
	platform := c.Param("platform")
	provider, ok := h.providers[platform]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown platform"})
		return
	}
	userID := c.GetString("user_id")
	if userID == "" {
		c.Redirect(http.StatusFound, h.baseURL+"/auth/login")
		return
	}

	state, err := provider.Codec.Issue(statetoken.Payload{
		UserID:  userID,
		Nonce:   statetoken.NewNonce(),
		Context: c.Query("context"),
		FlowID:  c.Query("flowId"),
	})
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Failed to issue handshake state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "state issue failed"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(platform+"_state", state, stateCookieMaxAge, "/", "", provider.Secure, true)
	c.Redirect(http.StatusFound, provider.Connector.AuthorizeURL(state))
}

// Callback finishes the handshake. The user identity comes out of the
// verified state payload; browser redirects carry no bearer token.
func (h *oauthHandler) Callback(c *gin.Context) {
	platform := c.Param("platform")
	provider, ok := h.providers[platform]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown platform"})
		return
	}
	lg := logger.GetLogger().WithField("platform", platform)

	cookieState, _ := c.Cookie(platform + "_state")
	// The state cookie is single-use whatever happens next.
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(platform+"_state", "", -1, "/", "", provider.Secure, true)

	if c.Query("error") != "" || c.Query("code") == "" {
		lg.WithField("provider_error", c.Query("error")).Info("Provider denied or aborted the handshake")
		h.redirectError(c, platform+"_auth_failed")
		return
	}

	state := c.Query("state")
	payload, valid := provider.Codec.Verify(state)
	if !valid || cookieState == "" ||
		subtle.ConstantTimeCompare([]byte(state), []byte(cookieState)) != 1 {
		lg.Warn("Handshake state rejected")
		h.redirectError(c, "invalid_csrf_state")
		return
	}

	if platform == model.PlatformFacebook && h.fb != nil {
		h.facebookCallback(c, payload.UserID, c.Query("code"))
		return
	}

	cred, err := provider.Connector.Connect(c.Request.Context(), payload.UserID, c.Query("code"))
	if err != nil {
		lg.WithField("error", err).Error("Provider connect failed")
		h.redirectError(c, platform+"_connection_failed")
		return
	}
	if err := h.credRepo.Upsert(c.Request.Context(), cred); err != nil {
		lg.WithField("error", err).Error("Failed to store credential")
		h.redirectError(c, platform+"_connection_failed")
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("%s/protected?success=%s_connected", h.baseURL, platform))
}

// facebookCallback stores the first managed page immediately and, when the
// account manages several, parks the user token in a short-lived cookie so
// the page-selection endpoints can offer the full list.
func (h *oauthHandler) facebookCallback(c *gin.Context, userID, code string) {
	ctx := c.Request.Context()
	lg := logger.GetLogger().WithField("platform", model.PlatformFacebook)
	provider := h.providers[model.PlatformFacebook]

	shortToken, err := h.fb.ExchangeCode(ctx, code)
	if err != nil {
		lg.WithField("error", err).Error("Facebook code exchange failed")
		h.redirectError(c, "facebook_connection_failed")
		return
	}
	userToken, err := h.fb.LongLivedToken(ctx, shortToken)
	if err != nil {
		lg.WithField("error", err).Error("Facebook token upgrade failed")
		h.redirectError(c, "facebook_connection_failed")
		return
	}
	pages, err := h.fb.Pages(ctx, userToken)
	if err != nil || len(pages) == 0 {
		lg.WithField("error", err).Error("Facebook page listing failed")
		h.redirectError(c, "facebook_connection_failed")
		return
	}

	page := pages[0]
	cred := &model.Credential{
		UserID:      userID,
		Platform:    model.PlatformFacebook,
		AccessToken: page.AccessToken,
		AccountID:   page.ID,
		AccountName: page.Name,
		AvatarURL:   page.Picture.Data.URL,
	}
	if err := h.credRepo.Upsert(ctx, cred); err != nil {
		lg.WithField("error", err).Error("Failed to store credential")
		h.redirectError(c, "facebook_connection_failed")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(fbPagesCookieName, userToken, fbPagesCookieMaxAge, "/", "", provider.Secure, true)
	target := fmt.Sprintf("%s/protected?success=facebook_connected", h.baseURL)
	if len(pages) > 1 {
		target += "&facebookPages=true"
	}
	c.Redirect(http.StatusFound, target)
}

func (h *oauthHandler) redirectError(c *gin.Context, code string) {
	c.Redirect(http.StatusFound, fmt.Sprintf("%s/protected?error=%s", h.baseURL, code))
}
