package models

import "time"

// User is an account holder. CoinBalance is derived state that always equals
// the signed sum of the user's ledger entries.
type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash []byte
	CoinBalance  int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	UserID         string
	UserName       string
	CoinBalance    int64
	CompletedTasks int64
}
