package repository

import (
	"context"

	"crosspost/domain/model"
)

// IPublishStore persists uploaded videos and their per-platform publish records.
type IPublishStore interface {
	CreateVideo(ctx context.Context, video *model.VideoRecord) error
	CreateRecords(ctx context.Context, videoID, userID string, platforms []string) ([]*model.PublishRecord, error)
	UpdateRecordStatus(ctx context.Context, id int64, status string, mediaID, errMsg *string) error
	GetRecords(ctx context.Context, videoID, userID string) ([]*model.PublishRecord, error)
}
