package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
)

type IConnectionHandler interface {
	List(c *gin.Context)
	Disconnect(c *gin.Context)
}

type connectionHandler struct {
	credRepo repository.ICredential
}

func NewConnectionHandler(credRepo repository.ICredential) IConnectionHandler {
	return &connectionHandler{credRepo: credRepo}
}

// List reports every platform with its connection state; tokens stay server-side.
func (h *connectionHandler) List(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	creds, err := h.credRepo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Connection listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "connection listing failed"})
		return
	}
	byPlatform := make(map[string]*model.Credential, len(creds))
	for _, cred := range creds {
		byPlatform[cred.Platform] = cred
	}
	out := make([]dto.ConnectionInfo, 0, len(model.Platforms))
	for _, p := range model.Platforms {
		info := dto.ConnectionInfo{Platform: p}
		if cred, ok := byPlatform[p]; ok {
			info.Connected = true
			info.AccountID = cred.AccountID
			info.AccountName = cred.AccountName
			info.AvatarURL = cred.AvatarURL
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"connections": out})
}

// Disconnect drops the stored credential. Deleting an absent credential is
// still a 200; the end state is the same.
func (h *connectionHandler) Disconnect(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	platform := c.Param("platform")
	if !model.KnownPlatform(platform) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform"})
		return
	}
	if err := h.credRepo.Delete(c.Request.Context(), userID, platform); err != nil {
		logger.GetLogger().WithField("error", err).Error("Disconnect failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "disconnect failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"platform": platform, "connected": false})
}
