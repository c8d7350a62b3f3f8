package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/spacetask/spacetask/internal/common"
	"github.com/spacetask/spacetask/internal/dbx"
	"github.com/spacetask/spacetask/internal/logging"
	"github.com/spacetask/spacetask/internal/server/auth"
	"github.com/spacetask/spacetask/internal/server/config"
	"github.com/spacetask/spacetask/internal/server/models"
	"github.com/spacetask/spacetask/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	maxUserNameLength = 80
)

// Session is what a successful signup or login hands back to the caller.
type Session struct {
	User        *models.User
	AccessToken string
}

type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	logger                      logging.Logger
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	bcryptCost                  int
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		logger:                      logger.With("module", "users"),
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		bcryptCost:                  bcrypt.DefaultCost,
	}
}

// Signup creates an account holding the signup bonus and records the grant in
// the ledger within the same transaction.
func (s *UserService) Signup(ctx context.Context, userName, email, password string) (*Session, error) {
	userName = strings.TrimSpace(userName)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := requireText("username", userName); err != nil {
		return nil, err
	}
	if len(userName) > maxUserNameLength {
		return nil, invalid("username longer than %d characters", maxUserNameLength)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("malformed email")
	}
	if len(password) < minPasswordLength {
		return nil, invalid("password shorter than %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	var user *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Users(tx).Create(ctx, &models.User{
			UserName:     userName,
			Email:        email,
			PasswordHash: hash,
			CoinBalance:  common.SignupBonus,
		})
		if err != nil {
			return fmt.Errorf("error creating user: %w", err)
		}

		err = s.repomanager.Ledger(tx).Append(ctx, &models.LedgerEntry{
			ToUserID:    created.ID,
			Amount:      common.SignupBonus,
			Type:        models.TransactionSignupBonus,
			Description: "Initial signup bonus",
		})
		if err != nil {
			return fmt.Errorf("error recording signup bonus: %w", err)
		}

		user = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user signed up", "user_id", user.ID)

	return s.newSession(user)
}

// Login checks the password and issues a fresh access token. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, common.ErrorUnauthorized
	}

	return s.newSession(user)
}

// Get returns the account with its current balance.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return user, nil
}

func (s *UserService) newSession(user *models.User) (*Session, error) {
	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return &Session{User: user, AccessToken: token}, nil
}
