package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spacetask/spacetask/internal/server/models"
	"github.com/spacetask/spacetask/internal/server/repositories/repomanager"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

type LeaderboardService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewLeaderboardService(db *sql.DB, m repomanager.RepositoryManager) *LeaderboardService {
	return &LeaderboardService{db: db, repomanager: m}
}

// Top ranks users by balance, then accepted submissions, then username.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	limit, err := clampLimit(limit, defaultLeaderboardLimit, maxLeaderboardLimit)
	if err != nil {
		return nil, err
	}

	entries, err := s.repomanager.Users(s.db).Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("error loading leaderboard: %w", err)
	}
	return entries, nil
}
