// Package session persists the CLI login between runs in a small SQLite
// database next to the working directory.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/pressly/goose/v3"
	"github.com/spacetask/spacetask/internal/client/session/migrations"
	"github.com/spacetask/spacetask/internal/dbx"
	"github.com/spacetask/spacetask/internal/filex"

	_ "modernc.org/sqlite"
)

const (
	keyAccessToken = "access_token"
	keyUserName    = "username"
	keyUserID      = "user_id"

	fileName = "session.db"
)

// Session is the identity remembered between runs.
type Session struct {
	UserID      string
	UserName    string
	AccessToken string
}

// Store reads and writes the remembered Session.
type Store struct {
	db   *sql.DB
	repo *SQLiteRepository
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Open creates dir (relative to the working directory) if needed and opens the
// session database inside it.
func Open(ctx context.Context, dir string) (*Store, error) {
	path, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return OpenDSN(ctx, "file:"+filepath.Join(path, fileName))
}

// OpenDSN opens the session database at dsn and migrates it.
func OpenDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session migrations: %w", err)
	}
	return &Store{db: db, repo: NewSQLiteRepository(db)}, nil
}

// Load returns the remembered session, or nil when nobody is logged in.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	token, err := s.repo.Get(ctx, keyAccessToken)
	if err != nil || token == nil {
		return nil, err
	}
	name, err := s.repo.Get(ctx, keyUserName)
	if err != nil {
		return nil, err
	}
	id, err := s.repo.Get(ctx, keyUserID)
	if err != nil {
		return nil, err
	}
	return &Session{UserID: string(id), UserName: string(name), AccessToken: string(token)}, nil
}

// Save replaces the remembered session atomically.
func (s *Store) Save(ctx context.Context, sess Session) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := NewSQLiteRepository(tx)
		if err := r.Set(ctx, keyUserID, []byte(sess.UserID)); err != nil {
			return err
		}
		if err := r.Set(ctx, keyUserName, []byte(sess.UserName)); err != nil {
			return err
		}
		return r.Set(ctx, keyAccessToken, []byte(sess.AccessToken))
	})
}

// Clear forgets the session.
func (s *Store) Clear(ctx context.Context) error {
	return s.repo.Clear(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
