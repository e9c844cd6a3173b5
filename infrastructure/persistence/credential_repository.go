package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"crosspost/domain/model"
)

// CredentialRepository persists platform credentials keyed by (user_id, platform).
type CredentialRepository struct{ db *sql.DB }

func NewCredentialRepository(db *sql.DB) *CredentialRepository { return &CredentialRepository{db: db} }

const credentialColumns = `id, user_id, platform, access_token, refresh_token, expires_at, account_id, account_name, avatar_url, created_at, updated_at`

// Upsert replaces the credential row wholesale; last writer wins.
func (r *CredentialRepository) Upsert(ctx context.Context, c *model.Credential) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	q := `INSERT INTO platform_credentials (user_id, platform, access_token, refresh_token, expires_at, account_id, account_name, avatar_url, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		  ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			expires_at=EXCLUDED.expires_at,
			account_id=EXCLUDED.account_id,
			account_name=EXCLUDED.account_name,
			avatar_url=EXCLUDED.avatar_url,
			updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q, c.UserID, c.Platform, c.AccessToken, c.RefreshToken, c.ExpiresAt, c.AccountID, c.AccountName, c.AvatarURL, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *CredentialRepository) Get(ctx context.Context, userID, platform string) (*model.Credential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+credentialColumns+` FROM platform_credentials WHERE user_id=$1 AND platform=$2`, userID, platform)
	c, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotConnected
	}
	return c, err
}

func (r *CredentialRepository) Delete(ctx context.Context, userID, platform string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM platform_credentials WHERE user_id=$1 AND platform=$2`, userID, platform)
	return err
}

func (r *CredentialRepository) ListByUser(ctx context.Context, userID string) ([]*model.Credential, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+credentialColumns+` FROM platform_credentials WHERE user_id=$1 ORDER BY platform`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCredential(row rowScanner) (*model.Credential, error) {
	c := &model.Credential{}
	var exp sql.NullTime
	var refresh, avatar sql.NullString
	if err := row.Scan(&c.ID, &c.UserID, &c.Platform, &c.AccessToken, &refresh, &exp, &c.AccountID, &c.AccountName, &avatar, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if exp.Valid {
		t := exp.Time
		c.ExpiresAt = &t
	}
	if refresh.Valid {
		c.RefreshToken = refresh.String
	}
	if avatar.Valid {
		c.AvatarURL = avatar.String
	}
	return c, nil
}
