package auth

import (
	"Shortly-Backend/internal/domain"
	"Shortly-Backend/internal/handler/response"
	"context"
	"net/http"

	"go.uber.org/zap"
)

// ContextKey тип для ключей контекста
type ContextKey string

const (
	// UserIDKey ключ для получения ID пользователя из контекста
	UserIDKey ContextKey = "user_id"
)

// Authenticator проверяет токен и возвращает ID пользователя
type Authenticator interface {
	Authenticate(token string) (int64, error)
}

// Middleware JWT middleware для HTTP обработчиков
type Middleware struct {
	authenticator Authenticator
	log           *zap.Logger
}

// NewMiddleware создает новый JWT middleware
func NewMiddleware(authenticator Authenticator, log *zap.Logger) *Middleware {
	return &Middleware{
		authenticator: authenticator,
		log:           log,
	}
}

// RequireAuth пропускает только запросы с действующим Bearer токеном
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.log.Debug("missing authorization header")
			response.FromError(w, m.log, domain.AuthenticationError("Authorization required", nil))
			return
		}

		userID, err := m.authenticate(authHeader)
		if err != nil {
			response.FromError(w, m.log, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	}
}

// OptionalAuth пропускает анонимные запросы, но отклоняет присланный
// недействительный токен: иначе ссылка молча создалась бы без владельца.
func (m *Middleware) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := m.authenticate(authHeader)
		if err != nil {
			response.FromError(w, m.log, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	}
}

func (m *Middleware) authenticate(authHeader string) (int64, error) {
	tokenString := ExtractTokenFromBearer(authHeader)
	if tokenString == "" {
		m.log.Debug("invalid authorization header format")
		return 0, domain.AuthenticationError("Invalid authorization header", nil)
	}

	userID, err := m.authenticator.Authenticate(tokenString)
	if err != nil {
		m.log.Debug("invalid token", zap.Error(err))
		return 0, err
	}

	m.log.Debug("authenticated user", zap.Int64("user_id", userID))
	return userID, nil
}

// WithUserID кладет ID пользователя в контекст
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserIDFromContext извлекает ID пользователя из контекста
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}
