package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/clients/facebook"
	"crosspost/infrastructure/logger"
)

type IFacebookPagesHandler interface {
	List(c *gin.Context)
	Select(c *gin.Context)
}

// facebookPagesHandler serves the page-selection sub-flow that follows a
// Facebook connect when the account manages more than one page. It works off
// the short-lived fb_pages_token cookie set by the callback.
type facebookPagesHandler struct {
	fb       *facebook.Client
	credRepo repository.ICredential
	secure   bool
}

func NewFacebookPagesHandler(fb *facebook.Client, credRepo repository.ICredential, secure bool) IFacebookPagesHandler {
	return &facebookPagesHandler{fb: fb, credRepo: credRepo, secure: secure}
}

func (h *facebookPagesHandler) List(c *gin.Context) {
	userToken, err := c.Cookie(fbPagesCookieName)
	if err != nil || userToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page selection window expired; reconnect facebook"})
		return
	}
	pages, err := h.fb.Pages(c.Request.Context(), userToken)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Facebook page listing failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "page listing failed"})
		return
	}
	out := make([]dto.FacebookPage, 0, len(pages))
	for _, p := range pages {
		out = append(out, dto.FacebookPage{ID: p.ID, Name: p.Name, Picture: p.Picture.Data.URL})
	}
	c.JSON(http.StatusOK, gin.H{"pages": out})
}

type selectPageRequest struct {
	PageID string `json:"page_id" binding:"required"`
}

func (h *facebookPagesHandler) Select(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userToken, err := c.Cookie(fbPagesCookieName)
	if err != nil || userToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page selection window expired; reconnect facebook"})
		return
	}
	var req selectPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_id required"})
		return
	}

	pages, err := h.fb.Pages(c.Request.Context(), userToken)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Facebook page listing failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "page listing failed"})
		return
	}
	var chosen *facebook.Page
	for i := range pages {
		if pages[i].ID == req.PageID {
			chosen = &pages[i]
			break
		}
	}
	if chosen == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page not manageable by this account"})
		return
	}

	cred := &model.Credential{
		UserID:      userID,
		Platform:    model.PlatformFacebook,
		AccessToken: chosen.AccessToken,
		AccountID:   chosen.ID,
		AccountName: chosen.Name,
		AvatarURL:   chosen.Picture.Data.URL,
	}
	if err := h.credRepo.Upsert(c.Request.Context(), cred); err != nil {
		logger.GetLogger().WithField("error", err).Error("Failed to store credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store selection"})
		return
	}

	// Selection done; the parked user token is no longer needed.
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(fbPagesCookieName, "", -1, "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"page": dto.FacebookPage{ID: chosen.ID, Name: chosen.Name, Picture: chosen.Picture.Data.URL}})
}
