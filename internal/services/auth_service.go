package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/ArowuTest/jraffle-backend/internal/repositories"
	"github.com/ArowuTest/jraffle-backend/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

// AuthService defines the interface for admin authentication operations
type AuthService interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	EnsureAdmin(ctx context.Context, username, password string) (bool, error)
	ChangePassword(ctx context.Context, adminID string, req *models.ChangePasswordRequest) error
}

// MinPasswordLength is the shortest admin password accepted on change
const MinPasswordLength = 8

type authService struct {
	adminRepo repositories.AdminUserRepository
	tokens    *jwt.TokenService
}

// NewAuthService creates a new AuthService implementation
func NewAuthService(adminRepo repositories.AdminUserRepository, tokens *jwt.TokenService) AuthService {
	return &authService{
		adminRepo: adminRepo,
		tokens:    tokens,
	}
}

// Login checks the credentials and issues a session token
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	admin, err := s.adminRepo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, &RemoteStoreError{Op: "find admin", Err: err}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(req.Password)); err != nil {
		slog.Warn("Admin login rejected", "username", admin.Username)
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(admin.ID, admin.Username, admin.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	slog.Info("Admin logged in", "username", admin.Username)
	return &models.LoginResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// EnsureAdmin creates the bootstrap admin if it does not exist yet and
// reports whether it did. An existing account keeps its password.
func (s *authService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, errors.New("bootstrap admin username and password are required")
	}
	_, err := s.adminRepo.FindByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return false, &RemoteStoreError{Op: "find admin", Err: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &models.AdminUser{
		Username: username,
		Password: string(hash),
		Role:     models.RoleAdmin,
	}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return false, nil
		}
		return false, &RemoteStoreError{Op: "create admin", Err: err}
	}
	slog.Info("Bootstrap admin created", "username", username)
	return true, nil
}

// ChangePassword replaces the password of the signed-in admin after checking
// the current one
func (s *authService) ChangePassword(ctx context.Context, adminID string, req *models.ChangePasswordRequest) error {
	if len(req.NewPassword) < MinPasswordLength {
		return NewValidationError("newPassword", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if req.NewPassword == req.CurrentPassword {
		return NewValidationError("newPassword", "must differ from the current password")
	}

	admin, err := s.adminRepo.FindByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return &RemoteStoreError{Op: "find admin", Err: err}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(req.CurrentPassword)); err != nil {
		slog.Warn("Admin password change rejected", "username", admin.Username)
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.adminRepo.UpdatePassword(ctx, admin.ID, string(hash)); err != nil {
		return storeError("update admin password", err, ErrInvalidCredentials)
	}
	slog.Info("Admin password changed", "username", admin.Username)
	return nil
}
