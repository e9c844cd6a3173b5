package repository

import (
	"context"

	"crosspost/domain/model"
)

type IUser interface {
	GetByUserName(ctx context.Context, userName string) (model.User, error)
}
