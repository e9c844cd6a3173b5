package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"crosspost/domain/model"
)

func TestPublishRepository_CreateVideo(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPublishRepository(db)

	v := &model.VideoRecord{
		ID:          "vid-1",
		UserID:      "user-1",
		Title:       "demo",
		Description: "first upload",
		FileURL:     "https://bucket.s3.amazonaws.com/videos/vid-1.mp4",
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO videos`)).
		WithArgs(v.ID, v.UserID, v.Title, v.Description, v.FileURL, model.PublishStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.CreateVideo(context.Background(), v))
	require.Equal(t, model.PublishStatusPending, v.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishRepository_CreateRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPublishRepository(db)

	now := time.Now().UTC()
	cols := []string{"id", "video_id", "user_id", "platform", "status", "platform_media_id", "error_message", "created_at", "updated_at"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO publish_records`)).
		WithArgs("vid-1", "user-1", "tiktok", model.PublishStatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM publish_records WHERE video_id=$1 AND platform=$2`)).
		WithArgs("vid-1", "tiktok").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(1), "vid-1", "user-1", "tiktok", "pending", nil, nil, now, now))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO publish_records`)).
		WithArgs("vid-1", "user-1", "youtube", model.PublishStatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM publish_records WHERE video_id=$1 AND platform=$2`)).
		WithArgs("vid-1", "youtube").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(2), "vid-1", "user-1", "youtube", "pending", nil, nil, now, now))
	mock.ExpectCommit()

	recs, err := repo.CreateRecords(context.Background(), "vid-1", "user-1", []string{"TikTok", "youtube"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "tiktok", recs[0].Platform)
	require.Equal(t, model.PublishStatusPending, recs[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishRepository_UpdateRecordStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPublishRepository(db)

	mediaID := "79900001"
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE publish_records SET status=$2, platform_media_id=$3, error_message=$4, updated_at=$5 WHERE id=$1`)).
		WithArgs(int64(1), model.PublishStatusPublished, &mediaID, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateRecordStatus(context.Background(), 1, model.PublishStatusPublished, &mediaID, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishRepository_GetRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPublishRepository(db)

	now := time.Now().UTC()
	errMsg := "tiktok upload failed"
	rows := sqlmock.NewRows([]string{"id", "video_id", "user_id", "platform", "status", "platform_media_id", "error_message", "created_at", "updated_at"}).
		AddRow(int64(1), "vid-1", "user-1", "tiktok", "failed", nil, errMsg, now, now).
		AddRow(int64(2), "vid-1", "user-1", "youtube", "published", "yt-123", nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM publish_records WHERE video_id=$1 AND user_id=$2`)).
		WithArgs("vid-1", "user-1").
		WillReturnRows(rows)

	recs, err := repo.GetRecords(context.Background(), "vid-1", "user-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.NotNil(t, recs[0].ErrorMessage)
	require.Equal(t, errMsg, *recs[0].ErrorMessage)
	require.Nil(t, recs[0].PlatformMediaID)
	require.NotNil(t, recs[1].PlatformMediaID)
	require.Equal(t, "yt-123", *recs[1].PlatformMediaID)
	require.NoError(t, mock.ExpectationsWereMet())
}
