package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
	"crosspost/usecase"
)

// maxUploadBytes caps the multipart body; provider limits are far below this.
const maxUploadBytes = 512 << 20

// IMediaStore hosts uploaded videos somewhere providers can pull them from.
type IMediaStore interface {
	Put(ctx context.Context, fileName, contentType string, data []byte) (string, error)
}

type IPublishHandler interface {
	Publish(c *gin.Context)
	Status(c *gin.Context)
}

type publishHandler struct {
	publishUsecase usecase.IPublishUsecase
	mediaStore     IMediaStore
}

func NewPublishHandler(publishUsecase usecase.IPublishUsecase, mediaStore IMediaStore) IPublishHandler {
	return &publishHandler{publishUsecase: publishUsecase, mediaStore: mediaStore}
}

// Publish accepts the multipart upload, stages the file in the media store
// and fans it out to the requested platforms. The response is 200 whenever
// the request itself parsed; per-platform failures live in results.
func (h *publishHandler) Publish(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video file required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read video file"})
		return
	}

	platforms := splitList(c.PostForm("platforms"))
	if len(platforms) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one platform required"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	publicURL, err := h.mediaStore.Put(c.Request.Context(), header.Filename, contentType, data)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Media store upload failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "media upload failed"})
		return
	}

	media := &model.MediaRef{
		PublicURL:   publicURL,
		Data:        data,
		FileName:    header.Filename,
		ContentType: contentType,
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Tags:        splitList(c.PostForm("tags")),
		Shorts:      c.PostForm("shorts") == "true" || c.PostForm("is_shorts") == "true",
	}

	res, err := h.publishUsecase.Publish(c.Request.Context(), userID, media, platforms)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *publishHandler) Status(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	videoID := c.Param("videoId")
	records, err := h.publishUsecase.GetStatus(c.Request.Context(), videoID, userID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Status lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"video_id": videoID, "records": records})
}

// splitList accepts either a JSON string array or a comma-separated list.
func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var arr []string
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			out := make([]string, 0, len(arr))
			for _, p := range arr {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			return out
		}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
