package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/dbx"
	"github.com/dmitrijs2005/secureshare/internal/server/models"
)

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fileColumns = `id, owner_id, blob_key, encrypted_file_name, file_size, file_salt, file_iv,
		master_key_hash, metadata_iv, expires_at, burn_after_read, download_count, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.SharedFile, error) {
	var (
		f         models.SharedFile
		expiresAt sql.NullTime
	)
	err := s.Scan(&f.ID, &f.OwnerID, &f.BlobKey, &f.EncryptedFileName, &f.FileSize, &f.FileSalt, &f.FileIV,
		&f.MasterKeyHash, &f.MetadataIV, &expiresAt, &f.BurnAfterRead, &f.DownloadCount, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		f.ExpiresAt = &t
	}
	return &f, nil
}

func (r *PostgresRepository) Create(ctx context.Context, f *models.SharedFile) error {
	query := `
		INSERT INTO shared_files (id, owner_id, blob_key, encrypted_file_name, file_size, file_salt, file_iv,
			master_key_hash, metadata_iv, expires_at, burn_after_read, download_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.OwnerID, f.BlobKey, f.EncryptedFileName, f.FileSize, f.FileSalt, f.FileIV,
		f.MasterKeyHash, f.MetadataIV, f.ExpiresAt, f.BurnAfterRead, f.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.SharedFile, error) {
	query := `SELECT ` + fileColumns + ` FROM shared_files WHERE id = $1`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// ListByOwner returns the owner's files, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.SharedFile, error) {
	query := `SELECT ` + fileColumns + ` FROM shared_files WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.SharedFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) IncrementDownloadCount(ctx context.Context, id string) (*models.SharedFile, error) {
	query := `
		UPDATE shared_files SET download_count = download_count + 1
		WHERE id = $1
		RETURNING ` + fileColumns

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to increment download count: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM shared_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
