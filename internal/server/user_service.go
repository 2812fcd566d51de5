package server

import (
	"context"
	"fmt"
	"log"

	"github.com/jonathan/cv-sync/internal/config"
	"github.com/jonathan/cv-sync/internal/db"
	"github.com/jonathan/cv-sync/internal/types"
)

// UserService provides business logic for user authentication operations
type UserService struct {
	db             DBClient
	passwordConfig *config.PasswordConfig
}

// NewUserService creates a new UserService with the given dependencies
func NewUserService(db DBClient, passwordConfig *config.PasswordConfig) *UserService {
	return &UserService{
		db:             db,
		passwordConfig: passwordConfig,
	}
}

// Login authenticates a user and returns the stored record
func (s *UserService) Login(ctx context.Context, req *types.LoginRequest) (*db.User, error) {
	dbUser, err := s.db.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	// Security: Always return generic error if user not found or password wrong
	if dbUser == nil || dbUser.PasswordHash == "" {
		return nil, &ErrInvalidCredentials{}
	}
	if !s.passwordConfig.VerifyPassword(req.Password, dbUser.PasswordHash) {
		return nil, &ErrInvalidCredentials{}
	}

	if s.passwordConfig.NeedsRehash(dbUser.PasswordHash) {
		if hash, err := s.passwordConfig.HashPassword(req.Password); err == nil {
			if _, err := s.db.UpsertUser(ctx, dbUser.Email, hash); err != nil {
				log.Printf("[auth] warning: failed to rehash password for %s: %v", dbUser.Email, err)
			}
		}
	}

	return dbUser, nil
}

// EnsureUser creates or updates the account for email with an existing bcrypt hash.
// `cvsync serve` uses it to provision the DEV_USER_* account at startup.
func (s *UserService) EnsureUser(ctx context.Context, email, passwordHash string) (*db.User, error) {
	if email == "" || passwordHash == "" {
		return nil, &ErrValidation{Field: "email", Message: "email and password hash are required"}
	}
	u, err := s.db.UpsertUser(ctx, email, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}
	return u, nil
}

// Register hashes password and provisions the account.
func (s *UserService) Register(ctx context.Context, email, password string) (*db.User, error) {
	hash, err := s.passwordConfig.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.EnsureUser(ctx, email, hash)
}
