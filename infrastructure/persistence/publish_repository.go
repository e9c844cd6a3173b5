package persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"crosspost/domain/model"
)

// PublishRepository persists uploaded videos and per-platform publish records.
type PublishRepository struct{ db *sql.DB }

func NewPublishRepository(db *sql.DB) *PublishRepository { return &PublishRepository{db: db} }

func (r *PublishRepository) CreateVideo(ctx context.Context, v *model.VideoRecord) error {
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	if v.Status == "" {
		v.Status = model.PublishStatusPending
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO videos (id, user_id, title, description, file_url, status, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		v.ID, v.UserID, v.Title, v.Description, v.FileURL, v.Status, v.CreatedAt, v.UpdatedAt)
	return err
}

// CreateRecords inserts one pending record per platform. An existing
// (video, platform) row is reset to pending; a new publish request starts a
// fresh attempt.
func (r *PublishRepository) CreateRecords(ctx context.Context, videoID, userID string, platforms []string) ([]*model.PublishRecord, error) {
	out := make([]*model.PublishRecord, 0, len(platforms))
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	now := time.Now().UTC()
	for _, p := range platforms {
		p = strings.ToLower(p)
		q := `INSERT INTO publish_records (video_id, user_id, platform, status, created_at, updated_at)
			  VALUES ($1,$2,$3,$4,$5,$5)
			  ON CONFLICT (video_id, platform) DO UPDATE SET
				status = EXCLUDED.status,
				platform_media_id = NULL,
				error_message = NULL,
				updated_at = EXCLUDED.updated_at`
		if _, err = tx.ExecContext(ctx, q, videoID, userID, p, model.PublishStatusPending, now); err != nil {
			return nil, err
		}
		row := tx.QueryRowContext(ctx, `SELECT id, video_id, user_id, platform, status, platform_media_id, error_message, created_at, updated_at FROM publish_records WHERE video_id=$1 AND platform=$2`, videoID, p)
		var rec *model.PublishRecord
		if rec, err = scanPublishRecord(row); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PublishRepository) UpdateRecordStatus(ctx context.Context, id int64, status string, mediaID, errMsg *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE publish_records SET status=$2, platform_media_id=$3, error_message=$4, updated_at=$5 WHERE id=$1`,
		id, status, mediaID, errMsg, time.Now().UTC())
	return err
}

func (r *PublishRepository) GetRecords(ctx context.Context, videoID, userID string) ([]*model.PublishRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, video_id, user_id, platform, status, platform_media_id, error_message, created_at, updated_at FROM publish_records WHERE video_id=$1 AND user_id=$2 ORDER BY platform`, videoID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.PublishRecord
	for rows.Next() {
		rec, err := scanPublishRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func scanPublishRecord(row rowScanner) (*model.PublishRecord, error) {
	rec := &model.PublishRecord{}
	var mediaID, errMsg sql.NullString
	if err := row.Scan(&rec.ID, &rec.VideoID, &rec.UserID, &rec.Platform, &rec.Status, &mediaID, &errMsg, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if mediaID.Valid {
		rec.PlatformMediaID = &mediaID.String
	}
	if errMsg.Valid {
		rec.ErrorMessage = &errMsg.String
	}
	return rec, nil
}
