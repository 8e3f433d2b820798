package challenges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/dbx"
	"github.com/dmitrijs2005/secureshare/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.OtpChallenge) error {
	query := `
		INSERT INTO otp_challenges (id, file_id, recipient_phone, recipient_id, passcode_hash,
			attempts, max_attempts, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.FileID, c.RecipientPhone, c.RecipientID, c.PasscodeHash,
		c.Attempts, c.MaxAttempts, c.CreatedAt, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Latest(ctx context.Context, fileID, phone string) (*models.OtpChallenge, error) {
	query := `
		SELECT id, file_id, recipient_phone, recipient_id, passcode_hash, attempts, max_attempts,
			created_at, expires_at, verified_at
		FROM otp_challenges
		WHERE file_id = $1 AND recipient_phone = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var (
		c           models.OtpChallenge
		recipientID sql.NullString
		verifiedAt  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, fileID, phone).Scan(&c.ID, &c.FileID, &c.RecipientPhone,
		&recipientID, &c.PasscodeHash, &c.Attempts, &c.MaxAttempts, &c.CreatedAt, &c.ExpiresAt, &verifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select challenge: %w", err)
	}
	if recipientID.Valid {
		c.RecipientID = &recipientID.String
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		c.VerifiedAt = &t
	}
	return &c, nil
}

func (r *PostgresRepository) RegisterFailedAttempt(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE otp_challenges SET attempts = attempts + 1
		WHERE id = $1 AND attempts < max_attempts AND verified_at IS NULL
		RETURNING attempts
	`
	var attempts int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrConflict
		}
		return 0, fmt.Errorf("failed to register attempt: %w", err)
	}
	return attempts, nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE otp_challenges SET verified_at = $2
		WHERE id = $1 AND verified_at IS NULL AND attempts < max_attempts
	`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark verified: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return common.ErrConflict
	}
	return nil
}

func (r *PostgresRepository) LockPhone(ctx context.Context, phone string) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, phone); err != nil {
		return fmt.Errorf("failed to lock phone: %w", err)
	}
	return nil
}

func (r *PostgresRepository) WindowStats(ctx context.Context, phone string, since time.Time) (models.WindowStats, error) {
	query := `
		SELECT COUNT(*), MIN(created_at)
		FROM otp_challenges
		WHERE recipient_phone = $1 AND created_at > $2
	`
	var (
		stats  models.WindowStats
		oldest sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, query, phone, since).Scan(&stats.Count, &oldest); err != nil {
		return models.WindowStats{}, fmt.Errorf("failed to count sends: %w", err)
	}
	if oldest.Valid {
		stats.Oldest = oldest.Time
	}
	return stats, nil
}
