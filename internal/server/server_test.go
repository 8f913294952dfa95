package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketai/receipt-service/internal/categorizer"
	"github.com/pocketai/receipt-service/internal/config"
	"github.com/pocketai/receipt-service/internal/domain"
	"github.com/pocketai/receipt-service/internal/handler"
	"github.com/pocketai/receipt-service/internal/ocr"
	"github.com/pocketai/receipt-service/internal/repository"
	"github.com/pocketai/receipt-service/internal/service"
)

// newTestServer assembles the full stack the way main does, backed by the
// in-memory repository and unconfigured pipeline clients.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	categories := domain.NewCategorySet(nil, "")
	repo := repository.NewMemoryReceiptRepository(categories)
	extractor := ocr.NewClient(&ocr.Config{})
	cat := categorizer.NewClient(&categorizer.Config{Categories: categories})
	svc := service.NewReceiptService(repo, extractor, cat, nil, categories, 1)
	receiptHandler := handler.NewReceiptHandler(svc)

	cfg := &config.Config{
		Port:         8080,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		LogFormat:    "json",
	}
	return NewServer(cfg, receiptHandler)
}

func TestServerRouting(t *testing.T) {
	s := newTestServer(t)
	router := s.GetRouter()
	require.NotNil(t, router)

	t.Run("HealthCheck", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		router.ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
	})

	t.Run("DocsRedirect", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api-docs", nil)
		router.ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusFound, recorder.Code)
		assert.Equal(t, "/api-docs/index.html", recorder.Header().Get("Location"))
	})

	t.Run("ReceiptRoutesRegistered", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/insights/spending-by-category", nil)
		router.ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "categories")
	})
}
