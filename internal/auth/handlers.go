package auth

import (
	"Shortly-Backend/internal/handler/response"
	"net/http"

	"go.uber.org/zap"
)

// AuthHandlers обработчики аутентификации
type AuthHandlers struct {
	service *Service
	log     *zap.Logger
}

// NewAuthHandlers создает новые обработчики аутентификации
func NewAuthHandlers(service *Service, log *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		service: service,
		log:     log,
	}
}

// TokenResponse структура ответа аутентификации
type TokenResponse struct {
	Token string `json:"token"`
}

// Register обработчик регистрации
//
//	POST /auth/register {username, email, password} -> 201 {token}
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := response.DecodeJSON(r, &req); err != nil {
		h.log.Debug("invalid registration request", zap.Error(err))
		response.FromError(w, h.log, err)
		return
	}

	_, token, err := h.service.Register(r.Context(), req)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}

	response.JSON(w, h.log, TokenResponse{Token: token}, http.StatusCreated)
}

// Login обработчик входа
//
//	POST /auth/login {email, password} -> 200 {token}
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginInput
	if err := response.DecodeJSON(r, &req); err != nil {
		h.log.Debug("invalid login request", zap.Error(err))
		response.FromError(w, h.log, err)
		return
	}

	token, err := h.service.Login(r.Context(), req)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}

	response.JSON(w, h.log, TokenResponse{Token: token}, http.StatusOK)
}
