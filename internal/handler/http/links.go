package http

import (
	"Shortly-Backend/internal/auth"
	"Shortly-Backend/internal/domain"
	"Shortly-Backend/internal/handler/response"
	"Shortly-Backend/internal/service"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// LinksHandler обработчик для работы со ссылками
type LinksHandler struct {
	shortener *service.URLShortenerService
	log       *zap.Logger
}

// NewLinksHandler создает новый обработчик ссылок
func NewLinksHandler(shortener *service.URLShortenerService, log *zap.Logger) *LinksHandler {
	return &LinksHandler{
		shortener: shortener,
		log:       log,
	}
}

// ShortenResponse структура ответа создания ссылки
type ShortenResponse struct {
	ShortURL string `json:"short_url"`
}

// LinkInfo информация о ссылке
type LinkInfo struct {
	ID          int64     `json:"id"`
	OriginalURL string    `json:"original_url"`
	ShortCode   string    `json:"short_code"`
	ShortURL    string    `json:"short_url"`
	ClickCount  int64     `json:"click_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Shorten создает короткую ссылку; владелец задается, если запрос аутентифицирован
//
//	POST /short {original_url} -> 200 {short_url}
func (h *LinksHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req service.ShortenInput
	if err := response.DecodeJSON(r, &req); err != nil {
		response.FromError(w, h.log, err)
		return
	}

	var ownerID *int64
	if userID, ok := auth.GetUserIDFromContext(r.Context()); ok {
		ownerID = &userID
	}

	shortURL, err := h.shortener.Shorten(r.Context(), req, ownerID)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}

	response.JSON(w, h.log, ShortenResponse{ShortURL: shortURL}, http.StatusOK)
}

// ListLinks возвращает список ссылок пользователя
//
//	GET /urls -> 200 [link...]
func (h *LinksHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		response.FromError(w, h.log, domain.AuthenticationError("Authorization required", nil))
		return
	}

	links, err := h.shortener.List(r.Context(), userID)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}

	linkInfos := make([]LinkInfo, len(links))
	for i, link := range links {
		linkInfos[i] = LinkInfo{
			ID:          link.ID,
			OriginalURL: link.OriginalURL,
			ShortCode:   link.ShortCode,
			ShortURL:    h.shortener.ShortURL(link.ShortCode),
			ClickCount:  link.ClickCount,
			CreatedAt:   link.CreatedAt,
			UpdatedAt:   link.UpdatedAt,
		}
	}

	response.JSON(w, h.log, linkInfos, http.StatusOK)
}

// UpdateLink меняет адрес назначения ссылки
//
//	PUT /urls/{id} {original_url} -> 200 {message}
func (h *LinksHandler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	userID, linkID, ok := h.ownedLinkParams(w, r)
	if !ok {
		return
	}

	var req service.UpdateInput
	if err := response.DecodeJSON(r, &req); err != nil {
		response.FromError(w, h.log, err)
		return
	}

	if err := h.shortener.Update(r.Context(), userID, linkID, req); err != nil {
		response.FromError(w, h.log, err)
		return
	}

	h.log.Info("updated link", zap.Int64("link_id", linkID), zap.Int64("user_id", userID))
	response.Message(w, h.log, "URL updated", http.StatusOK)
}

// DeleteLink удаляет ссылку
//
//	DELETE /urls/{id} -> 200 {message}
func (h *LinksHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	userID, linkID, ok := h.ownedLinkParams(w, r)
	if !ok {
		return
	}

	if err := h.shortener.Delete(r.Context(), userID, linkID); err != nil {
		response.FromError(w, h.log, err)
		return
	}

	h.log.Info("deleted link", zap.Int64("link_id", linkID), zap.Int64("user_id", userID))
	response.Message(w, h.log, "URL deleted", http.StatusOK)
}

// GetStats возвращает статистику по ссылке
//
//	GET /urls/{id}/stats -> 200 stats
func (h *LinksHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, linkID, ok := h.ownedLinkParams(w, r)
	if !ok {
		return
	}

	stats, err := h.shortener.Stats(r.Context(), userID, linkID)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}

	response.JSON(w, h.log, stats, http.StatusOK)
}

// ownedLinkParams достает пользователя из контекста и id ссылки из пути.
// Нечисловой id отвечает 404, как и любая недоступная ссылка.
func (h *LinksHandler) ownedLinkParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		response.FromError(w, h.log, domain.AuthenticationError("Authorization required", nil))
		return 0, 0, false
	}

	linkID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || linkID <= 0 {
		response.FromError(w, h.log, domain.NotFoundError("URL not found"))
		return 0, 0, false
	}

	return userID, linkID, true
}
