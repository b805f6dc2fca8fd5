// Package response пишет JSON-ответы и переводит доменные ошибки в HTTP статусы.
package response

import (
	"Shortly-Backend/internal/domain"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Message string `json:"message"`
}

// MessageResponse тело ответа с сообщением
type MessageResponse struct {
	Message string `json:"message"`
}

// JSON сериализует data с заданным статусом
func JSON(w http.ResponseWriter, log *zap.Logger, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("failed to encode response", zap.Error(err))
	}
}

// Message пишет {"message": ...} с заданным статусом
func Message(w http.ResponseWriter, log *zap.Logger, message string, statusCode int) {
	JSON(w, log, MessageResponse{Message: message}, statusCode)
}

// Error пишет ошибку с заданным статусом
func Error(w http.ResponseWriter, log *zap.Logger, message string, statusCode int) {
	JSON(w, log, ErrorResponse{Message: message}, statusCode)
}

// FromError переводит ошибку сервиса в HTTP ответ. Причина ошибок хранилища
// только логируется и клиенту не отдается.
func FromError(w http.ResponseWriter, log *zap.Logger, err error) {
	statusCode := StatusCode(err)

	message := "Internal server error"
	var domainErr *domain.Error
	if errors.As(err, &domainErr) && domainErr.Kind != domain.KindStore && domainErr.Message != "" {
		message = domainErr.Message
	}

	if statusCode >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Debug("request rejected", zap.Int("status", statusCode), zap.Error(err))
	}

	Error(w, log, message, statusCode)
}

// StatusCode возвращает HTTP статус для ошибки
func StatusCode(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindConflict:
		return http.StatusBadRequest
	case domain.KindAuthentication:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON читает тело запроса в dst; ошибка разбора становится ValidationError
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ValidationError("Invalid request format")
	}
	return nil
}
