// Package files persists SharedFile records.
package files

import (
	"context"

	"github.com/dmitrijs2005/secureshare/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.SharedFile) error
	GetByID(ctx context.Context, id string) (*models.SharedFile, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.SharedFile, error)

	// IncrementDownloadCount atomically adds one download and returns the row
	// as it is after the increment.
	IncrementDownloadCount(ctx context.Context, id string) (*models.SharedFile, error)

	// Delete removes the record and returns common.ErrNotFound when nothing
	// was deleted.
	Delete(ctx context.Context, id string) error
}
