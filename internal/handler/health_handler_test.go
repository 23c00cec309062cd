package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"docextract/internal/handler"
)

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func serveReadiness(h *handler.HealthHandler) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/readyz", h.Readiness)
	r.GET("/healthz", h.Liveness)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	return w
}

func TestHealthHandler_Readiness(t *testing.T) {
	w := serveReadiness(handler.NewHealthHandler(nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "disabled")

	w = serveReadiness(handler.NewHealthHandler(fakePinger{}))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serveReadiness(handler.NewHealthHandler(fakePinger{err: errors.New("refused")}))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database not reachable")
}
