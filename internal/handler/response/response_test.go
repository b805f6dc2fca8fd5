package response

import (
	"Shortly-Backend/internal/domain"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.ValidationError("bad"), http.StatusBadRequest},
		{"conflict", domain.ConflictError("Email already exists"), http.StatusBadRequest},
		{"authentication", domain.AuthenticationError("Invalid credentials", nil), http.StatusUnauthorized},
		{"not found", domain.NotFoundError("URL not found"), http.StatusNotFound},
		{"store", domain.StoreError("boom", errors.New("db down")), http.StatusInternalServerError},
		{"untyped", errors.New("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestFromError_HidesStoreCause(t *testing.T) {
	rec := httptest.NewRecorder()
	FromError(rec, zap.NewNop(), domain.StoreError("failed to save link", errors.New("pq: connection refused")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body.Message)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestFromError_UsesDomainMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	FromError(rec, zap.NewNop(), domain.NotFoundError("URL not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"URL not found"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		URL string `json:"url"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":"https://example.com"}`))
	require.NoError(t, DecodeJSON(r, &dst))
	assert.Equal(t, "https://example.com", dst.URL)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	err := DecodeJSON(r, &dst)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
