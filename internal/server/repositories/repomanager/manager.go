// Package repomanager vends repositories bound to a record-store handle and
// owns the store-level concerns around them: transactions, migrations and
// readiness.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/secureshare/internal/dbx"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/files"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/invitations"
)

type RepositoryManager interface {
	dbx.Transactor

	// Conn is the handle for work outside a transaction.
	Conn() dbx.DBTX

	Files(db dbx.DBTX) files.Repository
	Challenges(db dbx.DBTX) challenges.Repository
	Invitations(db dbx.DBTX) invitations.Repository

	RunMigrations(ctx context.Context) error

	// IsReady and Name make the manager usable as a readiness check.
	IsReady(ctx context.Context) error
	Name() string

	Close() error
}
