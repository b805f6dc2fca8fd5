package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost стандартная сложность bcrypt
	DefaultBcryptCost = 12
)

var (
	ErrInvalidPassword = errors.New("invalid password")
)

// PasswordService сервис для работы с паролями
type PasswordService struct {
	cost      int
	dummyHash []byte
}

// NewPasswordService создает новый сервис для работы с паролями
func NewPasswordService() *PasswordService {
	return NewPasswordServiceWithCost(DefaultBcryptCost)
}

// NewPasswordServiceWithCost создает новый сервис с заданной сложностью
func NewPasswordServiceWithCost(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}

	// Хеш-заглушка той же сложности: вход с неизвестным email тратит столько же
	// времени, сколько вход с неверным паролем.
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("shortly-dummy-password"), cost)
	if err != nil {
		panic("failed to generate dummy bcrypt hash: " + err.Error())
	}

	return &PasswordService{
		cost:      cost,
		dummyHash: dummyHash,
	}
}

// HashPassword хеширует пароль с использованием bcrypt (соль генерируется внутри)
func (s *PasswordService) HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", ErrInvalidPassword
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}

	return string(hashedBytes), nil
}

// VerifyPassword проверяет соответствие пароля и хеша за постоянное время
func (s *PasswordService) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

// VerifyDummy выполняет сравнение с хешем-заглушкой и всегда возвращает ошибку
func (s *PasswordService) VerifyDummy(password string) error {
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
	return ErrInvalidPassword
}
