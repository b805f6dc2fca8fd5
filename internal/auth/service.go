package auth

import (
	"Shortly-Backend/internal/domain"
	"Shortly-Backend/internal/repository"
	"Shortly-Backend/internal/validation"
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// RegisterInput данные регистрации
type RegisterInput struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72,bcryptlen"`
}

// LoginInput данные входа
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Service регистрирует и аутентифицирует пользователей.
type Service struct {
	users           repository.UserStorage
	jwtService      *JWTService
	passwordService *PasswordService
	log             *zap.Logger
}

// NewService создает сервис аутентификации
func NewService(users repository.UserStorage, jwtService *JWTService, passwordService *PasswordService, log *zap.Logger) *Service {
	return &Service{
		users:           users,
		jwtService:      jwtService,
		passwordService: passwordService,
		log:             log,
	}
}

// Register создает пользователя и выдает ему токен
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, string, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, "", err
	}

	hashedPassword, err := s.passwordService.HashPassword(in.Password)
	if err != nil {
		s.log.Error("failed to hash password", zap.Error(err))
		return nil, "", domain.StoreError("failed to hash password", err)
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hashedPassword,
	}

	// Уникальность email обеспечивает хранилище, отдельной проверки нет
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, "", domain.ConflictError("Email already exists")
		}
		return nil, "", domain.StoreError("failed to create user", err)
	}

	token, err := s.jwtService.GenerateAccessToken(user.ID)
	if err != nil {
		s.log.Error("failed to generate access token", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, "", domain.StoreError("failed to generate token", err)
	}

	s.log.Info("user registered successfully", zap.Int64("user_id", user.ID))
	return user, token, nil
}

// Login проверяет учетные данные и выдает токен
func (s *Service) Login(ctx context.Context, in LoginInput) (string, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return "", err
	}

	user, err := s.users.GetUserByEmail(ctx, in.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		// сравнение с заглушкой выравнивает время ответа
		_ = s.passwordService.VerifyDummy(in.Password)
		s.log.Debug("user not found for login")
		return "", domain.AuthenticationError("Invalid credentials", nil)
	}
	if err != nil {
		return "", domain.StoreError("failed to find user", err)
	}

	if err := s.passwordService.VerifyPassword(user.PasswordHash, in.Password); err != nil {
		s.log.Debug("invalid password for user", zap.Int64("user_id", user.ID))
		return "", domain.AuthenticationError("Invalid credentials", err)
	}

	token, err := s.jwtService.GenerateAccessToken(user.ID)
	if err != nil {
		s.log.Error("failed to generate access token", zap.Int64("user_id", user.ID), zap.Error(err))
		return "", domain.StoreError("failed to generate token", err)
	}

	s.log.Info("user logged in successfully", zap.Int64("user_id", user.ID))
	return token, nil
}

// Authenticate проверяет токен и возвращает ID пользователя
func (s *Service) Authenticate(token string) (int64, error) {
	if token == "" {
		return 0, domain.AuthenticationError("Authorization required", nil)
	}

	claims, err := s.jwtService.ValidateToken(token)
	if errors.Is(err, ErrExpiredToken) {
		return 0, domain.AuthenticationError("Token expired", err)
	}
	if err != nil {
		return 0, domain.AuthenticationError("Invalid token", err)
	}

	return claims.UserID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
