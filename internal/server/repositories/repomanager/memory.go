package repomanager

import (
	"context"

	"github.com/dmitrijs2005/secureshare/internal/dbx"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/files"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/invitations"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/memory"
)

// MemoryRepositoryManager serves every repository from one in-process store.
// The DBTX arguments are ignored.
type MemoryRepositoryManager struct {
	store *memory.Store
	tx    dbx.SerialTransactor
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{store: memory.NewStore()}
}

func (m *MemoryRepositoryManager) Conn() dbx.DBTX { return nil }

func (m *MemoryRepositoryManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return m.tx.WithinTx(ctx, fn)
}

func (m *MemoryRepositoryManager) Files(dbx.DBTX) files.Repository { return m.store.Files() }

func (m *MemoryRepositoryManager) Challenges(dbx.DBTX) challenges.Repository {
	return m.store.Challenges()
}

func (m *MemoryRepositoryManager) Invitations(dbx.DBTX) invitations.Repository {
	return m.store.Invitations()
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) IsReady(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Name() string { return "memory" }

func (m *MemoryRepositoryManager) Close() error { return nil }
