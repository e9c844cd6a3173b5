package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/usecase"
)

type fakeCredRepo struct {
	creds   map[string]*model.Credential
	upserts []*model.Credential
}

func newFakeCredRepo(creds ...*model.Credential) *fakeCredRepo {
	m := make(map[string]*model.Credential)
	for _, c := range creds {
		m[c.UserID+"/"+c.Platform] = c
	}
	return &fakeCredRepo{creds: m}
}

func (f *fakeCredRepo) Upsert(_ context.Context, c *model.Credential) error {
	f.upserts = append(f.upserts, c)
	f.creds[c.UserID+"/"+c.Platform] = c
	return nil
}

func (f *fakeCredRepo) Get(_ context.Context, userID, platform string) (*model.Credential, error) {
	c, ok := f.creds[userID+"/"+platform]
	if !ok {
		return nil, model.ErrNotConnected
	}
	return c, nil
}

func (f *fakeCredRepo) Delete(_ context.Context, userID, platform string) error {
	delete(f.creds, userID+"/"+platform)
	return nil
}

func (f *fakeCredRepo) ListByUser(_ context.Context, userID string) ([]*model.Credential, error) {
	var out []*model.Credential
	for _, c := range f.creds {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeRefresher struct {
	calls int
	next  *model.Credential
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, _ *model.Credential) (*model.Credential, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.next, nil
}

func TestEnsureFreshNonExpiringToken(t *testing.T) {
	cred := &model.Credential{UserID: "u1", Platform: model.PlatformFacebook, AccessToken: "page-token"}
	refresher := &fakeRefresher{}
	u := usecase.NewTokenUsecase(newFakeCredRepo(cred), map[string]repository.IRefresher{
		model.PlatformFacebook: refresher,
	})

	got, err := u.EnsureFresh(context.Background(), "u1", model.PlatformFacebook)
	assert.Nil(t, err)
	assert.Equal(t, "page-token", got.AccessToken)
	assert.Equal(t, 0, refresher.calls)
}

func TestEnsureFreshTokenWellBeforeExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	cred := &model.Credential{UserID: "u1", Platform: model.PlatformTikTok, AccessToken: "at-1", ExpiresAt: &exp}
	refresher := &fakeRefresher{}
	u := usecase.NewTokenUsecase(newFakeCredRepo(cred), map[string]repository.IRefresher{
		model.PlatformTikTok: refresher,
	})

	got, err := u.EnsureFresh(context.Background(), "u1", model.PlatformTikTok)
	assert.Nil(t, err)
	assert.Equal(t, "at-1", got.AccessToken)
	assert.Equal(t, 0, refresher.calls)
}

func TestEnsureFreshRefreshesInsideMargin(t *testing.T) {
	exp := time.Now().Add(2 * time.Minute)
	cred := &model.Credential{UserID: "u1", Platform: model.PlatformTikTok, AccessToken: "at-old", RefreshToken: "rt-old", ExpiresAt: &exp}
	newExp := time.Now().Add(24 * time.Hour)
	refresher := &fakeRefresher{next: &model.Credential{
		UserID: "u1", Platform: model.PlatformTikTok, AccessToken: "at-new", RefreshToken: "rt-new", ExpiresAt: &newExp,
	}}
	repo := newFakeCredRepo(cred)
	u := usecase.NewTokenUsecase(repo, map[string]repository.IRefresher{
		model.PlatformTikTok: refresher,
	})

	got, err := u.EnsureFresh(context.Background(), "u1", model.PlatformTikTok)
	assert.Nil(t, err)
	assert.Equal(t, "at-new", got.AccessToken)
	assert.Equal(t, 1, refresher.calls)
	// Rotated tokens must be persisted together.
	assert.Len(t, repo.upserts, 1)
	assert.Equal(t, "rt-new", repo.upserts[0].RefreshToken)
}

func TestEnsureFreshStaleWithoutRefresher(t *testing.T) {
	exp := time.Now().Add(-time.Hour)
	cred := &model.Credential{UserID: "u1", Platform: model.PlatformInstagram, AccessToken: "at-old", ExpiresAt: &exp}
	u := usecase.NewTokenUsecase(newFakeCredRepo(cred), map[string]repository.IRefresher{})

	_, err := u.EnsureFresh(context.Background(), "u1", model.PlatformInstagram)
	assert.ErrorIs(t, err, model.ErrRefreshNotSupported)
}

func TestEnsureFreshRefresherFailure(t *testing.T) {
	exp := time.Now().Add(-time.Minute)
	cred := &model.Credential{UserID: "u1", Platform: model.PlatformYouTube, RefreshToken: "rt-revoked", ExpiresAt: &exp}
	refresher := &fakeRefresher{err: errors.New("invalid_grant")}
	u := usecase.NewTokenUsecase(newFakeCredRepo(cred), map[string]repository.IRefresher{
		model.PlatformYouTube: refresher,
	})

	_, err := u.EnsureFresh(context.Background(), "u1", model.PlatformYouTube)
	assert.ErrorIs(t, err, model.ErrRefreshFailed)
}

func TestEnsureFreshNotConnected(t *testing.T) {
	u := usecase.NewTokenUsecase(newFakeCredRepo(), nil)
	_, err := u.EnsureFresh(context.Background(), "u1", model.PlatformYouTube)
	assert.ErrorIs(t, err, model.ErrNotConnected)
}
