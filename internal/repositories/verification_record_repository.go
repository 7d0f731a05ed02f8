package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"rolegate/internal/models"
)

type VerificationRecordRepository interface {
	Upsert(ctx context.Context, rec *models.VerificationRecord) error
	GetByUserID(ctx context.Context, userID string) (*models.VerificationRecord, error)
}

const createVerifiedUsersTable = `
	CREATE TABLE IF NOT EXISTS verified_users (
		user_id      TEXT PRIMARY KEY,
		ip           TEXT NOT NULL,
		username     TEXT NOT NULL,
		display_name TEXT NOT NULL,
		email        TEXT,
		icon         TEXT NOT NULL,
		verified_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

type verificationRecordRepository struct{ db *sql.DB }

func NewVerificationRecordRepository(db *sql.DB) VerificationRecordRepository {
	return &verificationRecordRepository{db: db}
}

// EnsureSchema создаёт таблицу verified_users, если её ещё нет.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createVerifiedUsersTable); err != nil {
		return fmt.Errorf("ensure verified_users: %w", err)
	}
	return nil
}

// Upsert атомарно пишет по ключу user_id, повторная верификация перезаписывает строку.
func (r *verificationRecordRepository) Upsert(ctx context.Context, rec *models.VerificationRecord) error {
	const q = `
		INSERT INTO verified_users (user_id, ip, username, display_name, email, icon, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			ip = EXCLUDED.ip,
			username = EXCLUDED.username,
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			icon = EXCLUDED.icon,
			verified_at = EXCLUDED.verified_at
	`
	var email sql.NullString
	if rec.Email != nil {
		email = sql.NullString{String: *rec.Email, Valid: true}
	}
	if _, err := r.db.ExecContext(ctx, q,
		rec.UserID, rec.SourceAddress, rec.Username, rec.DisplayName, email, rec.AvatarURL, rec.VerifiedAt,
	); err != nil {
		return fmt.Errorf("upsert verified user: %w", err)
	}
	return nil
}

func (r *verificationRecordRepository) GetByUserID(ctx context.Context, userID string) (*models.VerificationRecord, error) {
	const q = `
		SELECT user_id, ip, username, display_name, email, icon, verified_at
		FROM verified_users
		WHERE user_id = $1
	`
	var (
		rec   models.VerificationRecord
		email sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&rec.UserID, &rec.SourceAddress, &rec.Username, &rec.DisplayName, &email, &rec.AvatarURL, &rec.VerifiedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get verified user: %w", err)
	}
	if email.Valid {
		e := email.String
		rec.Email = &e
	}
	return &rec, nil
}
