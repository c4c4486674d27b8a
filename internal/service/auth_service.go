package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"freelancehub/internal/model"
	"freelancehub/internal/repository"
	"freelancehub/internal/util"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService struct {
	userRepo  *repository.UserRepository
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthService(userRepo *repository.UserRepository, jwtSecret string, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// Register creates an account with one of the marketplace roles. Admin
// accounts are provisioned out of band, never through this endpoint.
func (s *AuthService) Register(ctx context.Context, email, password, role string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalidStatef("invalid email")
	}
	if len(password) < 8 {
		return nil, invalidStatef("password must be at least 8 characters")
	}
	if role != model.RoleClient && role != model.RoleFreelancer {
		return nil, invalidStatef("role must be client or freelancer")
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, mapStoreErr(err)
	}

	s.logger.Info("User registered",
		zap.Int("user_id", user.ID),
		zap.String("role", user.Role),
	)
	return user, nil
}

// Login verifies credentials and issues a token carrying the role.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		// Do not reveal whether the account exists.
		return "", nil, ErrInvalidCredentials
	}

	if !util.CheckPassword(user.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user.ID, user.Role, s.jwtSecret)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	if err := s.userRepo.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("Failed to record last login", zap.Int("user_id", user.ID), zap.Error(err))
	}

	return token, user, nil
}
