package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	handlers "crosspost/interfaces/http"
)

type fakePublishUsecase struct {
	lastUserID    string
	lastMedia     *model.MediaRef
	lastPlatforms []string
	res           *dto.PublishResponse
	err           error
	records       []*model.PublishRecord
}

func (f *fakePublishUsecase) Publish(_ context.Context, userID string, media *model.MediaRef, platforms []string) (*dto.PublishResponse, error) {
	f.lastUserID = userID
	f.lastMedia = media
	f.lastPlatforms = platforms
	return f.res, f.err
}

func (f *fakePublishUsecase) GetStatus(_ context.Context, videoID, userID string) ([]*model.PublishRecord, error) {
	return f.records, nil
}

type fakeMediaStore struct {
	url   string
	err   error
	calls int
}

func (f *fakeMediaStore) Put(_ context.Context, fileName, contentType string, data []byte) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func newPublishRouter(uc *fakePublishUsecase, store *fakeMediaStore, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewPublishHandler(uc, store)
	router := gin.New()
	router.POST("/api/publish", func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		h.Publish(c)
	})
	router.GET("/api/publish/:videoId/status", func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		h.Status(c)
	})
	return router
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, fileBytes []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		assert.Nil(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		assert.Nil(t, err)
		_, err = part.Write(fileBytes)
		assert.Nil(t, err)
	}
	assert.Nil(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestPublishEndpoint(t *testing.T) {
	uc := &fakePublishUsecase{res: &dto.PublishResponse{
		VideoID: "vid-1",
		FileURL: "https://media.example.com/videos/x.mp4",
		Results: map[string]model.PublishResult{
			"youtube": {Platform: "youtube", Status: model.PublishStatusPublished, PlatformMediaID: "yt-1"},
			"tiktok":  {Platform: "tiktok", Status: model.PublishStatusFailed, Error: "tiktok api status 500"},
		},
	}}
	store := &fakeMediaStore{url: "https://media.example.com/videos/x.mp4"}
	router := newPublishRouter(uc, store, "user-1")

	body, contentType := multipartBody(t, map[string]string{
		"title":       "Launch day",
		"description": "desc",
		"platforms":   "youtube, tiktok",
		"tags":        "go,release",
		"shorts":      "true",
	}, "file", "clip.mp4", []byte("fake video"))

	req := httptest.NewRequest(http.MethodPost, "/api/publish", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var res dto.PublishResponse
	assert.Nil(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "vid-1", res.VideoID)
	assert.Len(t, res.Results, 2)
	assert.Equal(t, model.PublishStatusPublished, res.Results["youtube"].Status)

	assert.Equal(t, 1, store.calls)
	assert.Equal(t, "user-1", uc.lastUserID)
	assert.Equal(t, []string{"youtube", "tiktok"}, uc.lastPlatforms)
	assert.Equal(t, "https://media.example.com/videos/x.mp4", uc.lastMedia.PublicURL)
	assert.Equal(t, []string{"go", "release"}, uc.lastMedia.Tags)
	assert.True(t, uc.lastMedia.Shorts)
	assert.Equal(t, []byte("fake video"), uc.lastMedia.Data)
}

func TestPublishAcceptsJSONPlatformList(t *testing.T) {
	uc := &fakePublishUsecase{res: &dto.PublishResponse{VideoID: "vid-2"}}
	store := &fakeMediaStore{url: "https://media.example.com/videos/y.mp4"}
	router := newPublishRouter(uc, store, "user-1")

	body, contentType := multipartBody(t, map[string]string{
		"title":     "Launch day",
		"platforms": `["facebook","instagram"]`,
		"is_shorts": "true",
	}, "file", "clip.mp4", []byte("fake video"))

	req := httptest.NewRequest(http.MethodPost, "/api/publish", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"facebook", "instagram"}, uc.lastPlatforms)
	assert.True(t, uc.lastMedia.Shorts)
}

func TestPublishRequiresAuth(t *testing.T) {
	router := newPublishRouter(&fakePublishUsecase{}, &fakeMediaStore{}, "")
	body, contentType := multipartBody(t, map[string]string{"platforms": "youtube"}, "file", "clip.mp4", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/publish", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPublishRequiresFile(t *testing.T) {
	store := &fakeMediaStore{}
	router := newPublishRouter(&fakePublishUsecase{}, store, "user-1")
	body, contentType := multipartBody(t, map[string]string{"platforms": "youtube"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/publish", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, store.calls)
}

func TestPublishRequiresPlatforms(t *testing.T) {
	store := &fakeMediaStore{}
	router := newPublishRouter(&fakePublishUsecase{}, store, "user-1")
	body, contentType := multipartBody(t, map[string]string{"title": "t"}, "file", "clip.mp4", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/publish", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, store.calls)
}

func TestPublishStatusEndpoint(t *testing.T) {
	mediaID := "yt-1"
	uc := &fakePublishUsecase{records: []*model.PublishRecord{
		{VideoID: "vid-1", UserID: "user-1", Platform: "youtube", Status: model.PublishStatusPublished, PlatformMediaID: &mediaID},
	}}
	router := newPublishRouter(uc, &fakeMediaStore{}, "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/publish/vid-1/status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var res struct {
		VideoID string                 `json:"video_id"`
		Records []*model.PublishRecord `json:"records"`
	}
	assert.Nil(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "vid-1", res.VideoID)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, "yt-1", *res.Records[0].PlatformMediaID)
}
