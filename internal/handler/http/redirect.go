package http

import (
	"Shortly-Backend/internal/analytics"
	"Shortly-Backend/internal/handler/response"
	"Shortly-Backend/internal/service"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ClickSubmitter принимает клики для асинхронной аналитики
type ClickSubmitter interface {
	SubmitClick(clickData *analytics.ClickData) error
}

// RedirectHandler обработчик редиректов
type RedirectHandler struct {
	shortener *service.URLShortenerService
	clicks    ClickSubmitter
	log       *zap.Logger
}

// NewRedirectHandler создает новый обработчик редиректов. clicks может быть nil.
func NewRedirectHandler(shortener *service.URLShortenerService, clicks ClickSubmitter, log *zap.Logger) *RedirectHandler {
	return &RedirectHandler{
		shortener: shortener,
		clicks:    clicks,
		log:       log,
	}
}

// HandleRedirect засчитывает переход и перенаправляет на исходный адрес
//
//	GET /{short_code} -> 302 Location: original_url
func (h *RedirectHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	shortCode := r.PathValue("short_code")

	link, err := h.shortener.Resolve(r.Context(), shortCode)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}

	if h.clicks != nil {
		clickData := &analytics.ClickData{
			LinkID:    link.ID,
			ShortCode: link.ShortCode,
			IPAddress: extractIPAddress(r),
			UserAgent: r.UserAgent(),
			Referer:   r.Referer(),
			ClickedAt: time.Now(),
		}
		// аналитика не должна мешать редиректу
		if err := h.clicks.SubmitClick(clickData); err != nil {
			h.log.Debug("click analytics skipped", zap.String("short_code", shortCode), zap.Error(err))
		}
	}

	h.log.Debug("redirect", zap.String("short_code", shortCode), zap.Int64("link_id", link.ID))
	http.Redirect(w, r, link.OriginalURL, http.StatusFound)
}

// extractIPAddress извлекает IP адрес из запроса с учетом прокси
func extractIPAddress(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		// X-Forwarded-For может содержать список IP через запятую
		first, _, _ := strings.Cut(ip, ",")
		return strings.TrimSpace(first)
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
