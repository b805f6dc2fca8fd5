package http

import (
	"Shortly-Backend/internal/auth"
	"Shortly-Backend/internal/domain"
	"Shortly-Backend/internal/handler/response"
	"Shortly-Backend/internal/service"
	"net/http"

	"go.uber.org/zap"
)

// Server HTTP сервер с обработчиками
type Server struct {
	authHandlers    *auth.AuthHandlers
	linksHandler    *LinksHandler
	redirectHandler *RedirectHandler
	healthHandler   *HealthHandler
	authMiddleware  *auth.Middleware
	allowedOrigins  []string
	log             *zap.Logger
}

// NewServer собирает обработчики и middleware
func NewServer(
	authService *auth.Service,
	shortener *service.URLShortenerService,
	clicks ClickSubmitter,
	healthHandler *HealthHandler,
	allowedOrigins []string,
	log *zap.Logger,
) *Server {
	return &Server{
		authHandlers:    auth.NewAuthHandlers(authService, log),
		linksHandler:    NewLinksHandler(shortener, log),
		redirectHandler: NewRedirectHandler(shortener, clicks, log),
		healthHandler:   healthHandler,
		authMiddleware:  auth.NewMiddleware(authService, log),
		allowedOrigins:  allowedOrigins,
		log:             log,
	}
}

// SetupRoutes настраивает маршруты
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Health checks (без аутентификации)
	mux.HandleFunc("GET /health", s.healthHandler.Health)
	mux.HandleFunc("GET /ready", s.healthHandler.Ready)
	mux.HandleFunc("GET /metrics", s.healthHandler.Metrics)

	// Auth endpoints (без аутентификации)
	mux.HandleFunc("POST /auth/register", s.authHandlers.Register)
	mux.HandleFunc("POST /auth/login", s.authHandlers.Login)

	// Создание ссылки: анонимно или от имени пользователя
	mux.HandleFunc("POST /short", s.authMiddleware.OptionalAuth(s.linksHandler.Shorten))

	// Управление ссылками (с аутентификацией)
	mux.HandleFunc("GET /urls", s.authMiddleware.RequireAuth(s.linksHandler.ListLinks))
	mux.HandleFunc("PUT /urls/{id}", s.authMiddleware.RequireAuth(s.linksHandler.UpdateLink))
	mux.HandleFunc("DELETE /urls/{id}", s.authMiddleware.RequireAuth(s.linksHandler.DeleteLink))
	mux.HandleFunc("GET /urls/{id}/stats", s.authMiddleware.RequireAuth(s.linksHandler.GetStats))

	// Redirect endpoint (без аутентификации). Первые сегменты маршрутов выше
	// должны быть в service.IsReservedCode.
	mux.HandleFunc("GET /{short_code}", s.redirectHandler.HandleRedirect)

	mux.HandleFunc("/", s.notFound)

	return chain(mux,
		recoverer(s.log),
		requestLogger(s.log),
		securityHeaders,
		cors(s.allowedOrigins),
	)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	response.FromError(w, s.log, domain.NotFoundError("Not found"))
}
