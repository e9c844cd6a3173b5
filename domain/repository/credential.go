package repository

import (
	"context"

	"crosspost/domain/model"
)

// ICredential is the store for per-(user, platform) access material.
// Upsert replaces the row wholesale; Delete is idempotent.
type ICredential interface {
	Upsert(ctx context.Context, cred *model.Credential) error
	Get(ctx context.Context, userID, platform string) (*model.Credential, error)
	Delete(ctx context.Context, userID, platform string) error
	ListByUser(ctx context.Context, userID string) ([]*model.Credential, error)
}
