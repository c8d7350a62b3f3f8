package repomanager

import (
	"context"
	"database/sql"

	"github.com/spacetask/spacetask/internal/dbx"
	"github.com/spacetask/spacetask/internal/server/repositories/ledger"
	"github.com/spacetask/spacetask/internal/server/repositories/submissions"
	"github.com/spacetask/spacetask/internal/server/repositories/tasks"
	"github.com/spacetask/spacetask/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same service
// code can run against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Tasks(db dbx.DBTX) tasks.Repository
	Submissions(db dbx.DBTX) submissions.Repository
	Ledger(db dbx.DBTX) ledger.Repository
}
