package invitations

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

func (r *PostgresRepository) Create(ctx context.Context, inv *models.Invitation) error {
	query := `
		INSERT INTO invitations (id, file_id, sender_id, recipient_email, token_hash, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		inv.ID, inv.FileID, inv.SenderID, inv.RecipientEmail, inv.TokenHash, string(inv.Status), inv.CreatedAt, inv.ExpiresAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByTokenHash(ctx context.Context, tokenHash []byte) (*models.Invitation, error) {
	query := `
		SELECT id, file_id, sender_id, recipient_email, token_hash, status, created_at, expires_at,
			accepted_by_user_id, accepted_at
		FROM invitations
		WHERE token_hash = $1
	`
	var (
		inv        models.Invitation
		status     string
		acceptedBy sql.NullString
		acceptedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(&inv.ID, &inv.FileID, &inv.SenderID, &inv.RecipientEmail,
		&inv.TokenHash, &status, &inv.CreatedAt, &inv.ExpiresAt, &acceptedBy, &acceptedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select invitation: %w", err)
	}
	inv.Status = models.InvitationStatus(status)
	if acceptedBy.Valid {
		inv.AcceptedByUserID = &acceptedBy.String
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		inv.AcceptedAt = &t
	}
	return &inv, nil
}

func (r *PostgresRepository) Accept(ctx context.Context, id, userID string, at time.Time) error {
	query := `
		UPDATE invitations SET status = 'accepted', accepted_by_user_id = $2, accepted_at = $3
		WHERE id = $1 AND status = 'pending' AND expires_at >= $3
	`
	result, err := r.db.ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return fmt.Errorf("failed to accept invitation: %w", err)
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

func (r *PostgresRepository) MarkExpired(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE invitations SET status = 'expired'
		WHERE id = $1 AND status = 'pending' AND expires_at < $2
	`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to expire invitation: %w", err)
	}
	return nil
}
