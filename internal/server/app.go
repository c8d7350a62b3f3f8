// Package server initializes and runs the SpaceTask server: it opens the
// database, applies migrations, wires the services and serves gRPC until a
// shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spacetask/spacetask/internal/logging"
	"github.com/spacetask/spacetask/internal/server/config"
	"github.com/spacetask/spacetask/internal/server/repositories/repomanager"
	"github.com/spacetask/spacetask/internal/server/services"

	gs "github.com/spacetask/spacetask/internal/server/grpc"
)

type runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	server  runner
	auditor *services.Auditor
}

var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	ledger := services.NewLedgerService(db, m)
	svc := gs.Services{
		Users:       services.NewUserService(db, m, c, logger),
		Tasks:       services.NewTaskService(db, m, logger),
		Submissions: services.NewSubmissionService(db, m, c, logger),
		Leaderboard: services.NewLeaderboardService(db, m),
		Ledger:      ledger,
		Uploads:     services.NewUploadService(c),
	}

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		server:  gs.NewGRPCServer(c.EndpointAddrGRPC, logger, svc, c.SecretKey),
		auditor: services.NewAuditor(ledger, c.AuditInterval, logger),
	}, nil
}

// Run serves until ctx is done, SIGINT/SIGTERM/SIGQUIT arrives or the gRPC
// server fails, then stops the audit job and closes the database.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	if err := app.auditor.Start(ctx); err != nil {
		app.logger.Error(ctx, "audit job not started", "error", err)
	}

	var (
		wg     sync.WaitGroup
		runErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			runErr = err
			stop()
		}
	}()
	wg.Wait()

	if err := app.auditor.Stop(); err != nil {
		app.logger.Error(ctx, "audit job shutdown", "error", err)
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close", "error", err)
		}
	}

	app.logger.Info(ctx, "App stopped")
	return runErr
}
