package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spacetask/spacetask/internal/server/models"
	"github.com/spacetask/spacetask/internal/server/repositories/repomanager"
)

type LedgerService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewLedgerService(db *sql.DB, m repomanager.RepositoryManager) *LedgerService {
	return &LedgerService{db: db, repomanager: m}
}

// History returns the entries where the user paid or was paid, newest first.
func (s *LedgerService) History(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error) {
	limit, err := clampLimit(limit, defaultListLimit, maxListLimit)
	if err != nil {
		return nil, err
	}

	entries, err := s.repomanager.Ledger(s.db).ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error loading ledger: %w", err)
	}
	return entries, nil
}

// Audit returns every user whose stored balance differs from the sum of
// their ledger entries. An empty result means the books balance.
func (s *LedgerService) Audit(ctx context.Context) ([]*models.BalanceDrift, error) {
	drifts, err := s.repomanager.Ledger(s.db).Drift(ctx)
	if err != nil {
		return nil, fmt.Errorf("error auditing ledger: %w", err)
	}
	return drifts, nil
}
