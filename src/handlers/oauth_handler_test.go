package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/qualitax/backend/src/config"
)

func setupGoogleOAuth(t *testing.T) {
	t.Helper()
	prior := config.Cfg
	config.Cfg = &config.AppConfig{
		GoogleClientID:     "test-client-id",
		GoogleClientSecret: "test-client-secret",
		GoogleRedirectURL:  "http://localhost:8080/api/auth/google/callback",
		FrontendBaseURL:    "http://localhost:3000",
	}
	InitializeGoogleOAuthConfig()
	t.Cleanup(func() { config.Cfg = prior })
}

func stateCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == oauthStateCookie {
			return c
		}
	}
	return nil
}

func TestGoogleLoginIssuesRandomStateCookie(t *testing.T) {
	setupGoogleOAuth(t)
	h := &UserHandler{}

	rec := httptest.NewRecorder()
	h.HandleGoogleLogin(rec, httptest.NewRequest(http.MethodGet, "/api/auth/google/login", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	cookie := stateCookie(rec)
	require.NotNil(t, cookie, "login must set the state cookie")
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, cookie.Value, location.Query().Get("state"),
		"the state sent to Google must match the cookie")

	rec2 := httptest.NewRecorder()
	h.HandleGoogleLogin(rec2, httptest.NewRequest(http.MethodGet, "/api/auth/google/login", nil))
	cookie2 := stateCookie(rec2)
	require.NotNil(t, cookie2)
	assert.NotEqual(t, cookie.Value, cookie2.Value, "each login gets a fresh state")
}

func TestGoogleCallbackRejectsBadState(t *testing.T) {
	setupGoogleOAuth(t)
	h := &UserHandler{}

	cases := []struct {
		name   string
		cookie string
		param  string
	}{
		{"no cookie", "", "some-state"},
		{"mismatched state", "cookie-state", "forged-state"},
		{"empty state param", "cookie-state", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state="+url.QueryEscape(tc.param), nil)
			if tc.cookie != "" {
				r.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: tc.cookie})
			}

			rec := httptest.NewRecorder()
			h.HandleGoogleCallback(rec, r)

			assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
			assert.Contains(t, rec.Header().Get("Location"), "error=invalid_state")
		})
	}
}
