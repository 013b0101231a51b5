package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/username/qualitax/backend/src/logger"
	"github.com/username/qualitax/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	m.Run()
}

func requestWithRole(userID int64, role string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/qualifications", nil)
	ctx := context.WithValue(r.Context(), userIDContextKey, userID)
	ctx = context.WithValue(ctx, roleContextKey, role)
	return r.WithContext(ctx)
}

func TestRequireRoleAllowsMatchingRole(t *testing.T) {
	called := false
	handler := RequireRole(models.RoleCorredor, func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, requestWithRole(7, models.RoleCorredor))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleDeniesOtherRole(t *testing.T) {
	// An administrador token must never reach a corredor route; the deny is
	// total, not a filtered view.
	called := false
	handler := RequireRole(models.RoleCorredor, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	rec := httptest.NewRecorder()
	handler(rec, requestWithRole(1, models.RoleAdministrador))

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoleDeniesMissingRole(t *testing.T) {
	handler := RequireRole(models.RoleAdministrador, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a role in context")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetUserIDFromContext(t *testing.T) {
	r := requestWithRole(42, models.RoleCorredor)

	userID, ok := GetUserIDFromContext(r.Context())
	assert.True(t, ok)
	assert.Equal(t, int64(42), userID)

	role, ok := GetRoleFromContext(r.Context())
	assert.True(t, ok)
	assert.Equal(t, models.RoleCorredor, role)

	_, ok = GetUserIDFromContext(context.Background())
	assert.False(t, ok)
}

func TestCSRFMiddleware(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	protected := CSRFMiddleware(key)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("GET passes without token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/qualifications", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("POST without token is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/upload", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("POST with matching header and cookie passes", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
		r.Header.Set("X-CSRF-Token", "token-value")
		r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token-value"})

		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("POST with mismatched tokens is rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
		r.Header.Set("X-CSRF-Token", "token-a")
		r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token-b"})

		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
