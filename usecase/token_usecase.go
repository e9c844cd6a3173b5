package usecase

import (
	"context"
	"errors"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
)

// refreshMargin is how close to expiry a token may get before it is treated
// as stale and refreshed pre-emptively.
const refreshMargin = 5 * time.Minute

// ITokenUsecase hands out credentials that are guaranteed usable for at
// least the refresh margin.
type ITokenUsecase interface {
	EnsureFresh(ctx context.Context, userID, platform string) (*model.Credential, error)
}

type tokenUsecase struct {
	credRepo   repository.ICredential
	refreshers map[string]repository.IRefresher
}

// NewTokenUsecase wires the credential store to the per-platform refreshers.
// Platforms without a refresher (Facebook page tokens, Instagram long-lived
// tokens) can only be renewed by reconnecting.
func NewTokenUsecase(credRepo repository.ICredential, refreshers map[string]repository.IRefresher) ITokenUsecase {
	return &tokenUsecase{credRepo: credRepo, refreshers: refreshers}
}

func (u *tokenUsecase) EnsureFresh(ctx context.Context, userID, platform string) (*model.Credential, error) {
	cred, err := u.credRepo.Get(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, model.ErrNotConnected) {
			return nil, model.ErrNotConnected
		}
		return nil, err
	}

	// nil ExpiresAt marks a non-expiring token.
	if cred.ExpiresAt == nil || time.Until(*cred.ExpiresAt) > refreshMargin {
		return cred, nil
	}

	refresher, ok := u.refreshers[platform]
	if !ok {
		logger.GetLogger().
			WithField("platform", platform).
			WithField("user_id", userID).
			Warn("Stored token is stale and platform has no refresh grant; reconnect required")
		return nil, model.ErrRefreshNotSupported
	}

	next, err := refresher.Refresh(ctx, cred)
	if err != nil {
		return nil, model.ErrRefreshFailed
	}
	if err := u.credRepo.Upsert(ctx, next); err != nil {
		// The rotated token is still valid; failing to persist it only
		// costs an extra refresh next time.
		logger.GetLogger().WithField("error", err).Error("Failed to persist refreshed credential")
	}
	return next, nil
}
