package youtube_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"

	"crosspost/domain/model"
	"crosspost/infrastructure/clients/youtube"
)

func newTestClient(srvURL string) *youtube.Client {
	return youtube.NewClient(youtube.Config{
		ClientID:     "google-client-id",
		ClientSecret: "google-client-secret",
		RedirectURI:  "https://app.example.com/auth/youtube/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  srvURL + "/o/oauth2/auth",
			TokenURL: srvURL + "/token",
		},
		APIEndpoint: srvURL + "/",
		UploadURL:   srvURL + "/upload/youtube/v3/videos",
	})
}

func TestAuthorizeURL(t *testing.T) {
	client := youtube.NewClient(youtube.Config{
		ClientID:    "google-client-id",
		RedirectURI: "https://app.example.com/auth/youtube/callback",
	})
	u, err := url.Parse(client.AuthorizeURL("signed-state"))
	assert.Nil(t, err)
	q := u.Query()
	assert.Equal(t, "signed-state", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Contains(t, q.Get("scope"), "youtube.upload")
}

func TestConnect(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, r.ParseForm())
		assert.Equal(t, "auth-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/youtube/v3/channels", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("mine"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"UCxyz","snippet":{"title":"My Channel","thumbnails":{"default":{"url":"https://yt.example.com/t.jpg"}}}}]}`))
	})

	cred, err := newTestClient(srv.URL).Connect(context.Background(), "user-1", "auth-code")
	assert.Nil(t, err)
	assert.Equal(t, model.PlatformYouTube, cred.Platform)
	assert.Equal(t, "at-1", cred.AccessToken)
	assert.Equal(t, "rt-1", cred.RefreshToken)
	assert.Equal(t, "UCxyz", cred.AccountID)
	assert.Equal(t, "My Channel", cred.AccountName)
	assert.Equal(t, "https://yt.example.com/t.jpg", cred.AvatarURL)
	assert.NotNil(t, cred.ExpiresAt)
}

func TestRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-new","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	stale := time.Now().Add(-time.Hour)
	cred := &model.Credential{
		Platform:     model.PlatformYouTube,
		AccessToken:  "at-old",
		RefreshToken: "rt-1",
		ExpiresAt:    &stale,
	}
	next, err := newTestClient(srv.URL).Refresh(context.Background(), cred)
	assert.Nil(t, err)
	assert.Equal(t, "at-new", next.AccessToken)
	// Google keeps the refresh token stable across refreshes.
	assert.Equal(t, "rt-1", next.RefreshToken)
	assert.True(t, next.ExpiresAt.After(time.Now()))
}

func TestRefreshFailureMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	cred := &model.Credential{Platform: model.PlatformYouTube, RefreshToken: "rt-revoked"}
	_, err := newTestClient(srv.URL).Refresh(context.Background(), cred)
	assert.ErrorIs(t, err, model.ErrRefreshFailed)
}

func TestPublishResumableUpload(t *testing.T) {
	videoBytes := []byte("fake video payload")
	var sequence []string
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/upload/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		sequence = append(sequence, "init")
		assert.Equal(t, "resumable", r.URL.Query().Get("uploadType"))
		assert.Equal(t, "snippet,status", r.URL.Query().Get("part"))
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		assert.Equal(t, "18", r.Header.Get("X-Upload-Content-Length"))
		var meta struct {
			Snippet struct {
				Title      string `json:"title"`
				CategoryID string `json:"categoryId"`
			} `json:"snippet"`
			Status struct {
				PrivacyStatus string `json:"privacyStatus"`
			} `json:"status"`
		}
		assert.Nil(t, json.NewDecoder(r.Body).Decode(&meta))
		assert.Equal(t, "My upload #shorts", meta.Snippet.Title)
		assert.Equal(t, "22", meta.Snippet.CategoryID)
		assert.Equal(t, "public", meta.Status.PrivacyStatus)
		w.Header().Set("Location", srv.URL+"/upload-session")
	})
	mux.HandleFunc("/upload-session", func(w http.ResponseWriter, r *http.Request) {
		sequence = append(sequence, "put")
		assert.Equal(t, http.MethodPut, r.Method)
		got, _ := io.ReadAll(r.Body)
		assert.Equal(t, videoBytes, got)
		w.Write([]byte(`{"id":"vid-123"}`))
	})

	cred := &model.Credential{Platform: model.PlatformYouTube, AccessToken: "at-1"}
	media := &model.MediaRef{Data: videoBytes, Title: "My upload", Description: "desc", Shorts: true}
	id, err := newTestClient(srv.URL).Publish(context.Background(), cred, media)
	assert.Nil(t, err)
	assert.Equal(t, "vid-123", id)
	assert.Equal(t, []string{"init", "put"}, sequence)
}

func TestPublishTruncatesLongTitle(t *testing.T) {
	long := strings.Repeat("a", 150)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var meta struct {
				Snippet struct {
					Title string `json:"title"`
				} `json:"snippet"`
			}
			assert.Nil(t, json.NewDecoder(r.Body).Decode(&meta))
			assert.Len(t, meta.Snippet.Title, 100)
			assert.True(t, strings.HasSuffix(meta.Snippet.Title, "..."))
			w.Header().Set("Location", "http://"+r.Host+"/session")
			return
		}
		w.Write([]byte(`{"id":"vid-1"}`))
	}))
	defer srv.Close()

	cred := &model.Credential{AccessToken: "at-1"}
	media := &model.MediaRef{Data: []byte("x"), Title: long}
	_, err := newTestClient(srv.URL).Publish(context.Background(), cred, media)
	assert.Nil(t, err)
}
