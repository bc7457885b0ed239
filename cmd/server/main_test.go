package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/wuwenbin0122/useradmin/internal/api"
	"github.com/wuwenbin0122/useradmin/internal/auth"
	"github.com/wuwenbin0122/useradmin/internal/users"
	"github.com/wuwenbin0122/useradmin/internal/users/userstest"
)

func newTestRouter(t *testing.T, checks map[string]pinger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := userstest.NewStore()
	hasher := auth.NewHasher(bcrypt.MinCost, 1)
	authService, err := auth.NewService("test-secret", time.Hour, store, hasher)
	require.NoError(t, err)

	handler := api.NewHandler(authService, users.NewService(store, hasher, nil), nil, nil, zap.NewNop(), api.Options{})
	return setupRouter(handler, zap.NewNop(), checks)
}

func TestHealthReportsDependencies(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	router := newTestRouter(t, map[string]pinger{"mongo": ok})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	router = newTestRouter(t, map[string]pinger{"mongo": ok, "redis": down})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Dependencies["mongo"])
	assert.Equal(t, "unavailable", body.Dependencies["redis"])
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRouterMountsUserRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
