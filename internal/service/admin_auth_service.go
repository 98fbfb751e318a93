package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/GTDGit/gtd_backoffice/internal/database"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// AdminUserStore is the admin account storage used for login.
type AdminUserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	Create(ctx context.Context, user *models.AdminUser) error
	TouchLastLogin(ctx context.Context, id int) error
}

type AdminAuthService struct {
	adminRepo AdminUserStore
}

func NewAdminAuthService(adminRepo AdminUserStore) *AdminAuthService {
	return &AdminAuthService{adminRepo: adminRepo}
}

func (s *AdminAuthService) Login(ctx context.Context, email, password string) (string, *models.AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	log.Debug().Str("email", email).Msg("Login attempt")

	user, err := s.adminRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().Str("email", email).Msg("Unknown admin email")
			return "", nil, utils.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("get admin user: %w", err)
	}

	if !user.IsActive {
		log.Warn().Str("email", email).Msg("Account is inactive")
		return "", nil, utils.ErrAccountInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Warn().Str("email", email).Msg("Password verification failed")
		return "", nil, utils.ErrInvalidCredentials
	}

	token, err := utils.GenerateJWT(user.ID, user.Email)
	if err != nil {
		return "", nil, err
	}

	if err := s.adminRepo.TouchLastLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Int("user_id", user.ID).Msg("Failed to record last login")
	}

	log.Info().Int("user_id", user.ID).Msg("Login successful")
	return token, user, nil
}

func (s *AdminAuthService) CreateAdmin(ctx context.Context, email, password, name string) (*models.AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", utils.ErrValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", utils.ErrValidation)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.AdminUser{
		Email:        email,
		PasswordHash: string(hashedPassword),
		Name:         name,
		Role:         "admin",
		IsActive:     true,
	}
	if err := s.adminRepo.Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, utils.ErrEmailAlreadyRegistered
		}
		return nil, err
	}
	log.Info().Int("user_id", user.ID).Str("email", email).Msg("Admin user created")
	return user, nil
}
