package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"

	"github.com/username/qualitax/backend/src/logger"
	"github.com/username/qualitax/backend/src/utils"
)

const csrfCookieName = "_gorilla_csrf"

// GetCSRFToken issues a fresh double-submit token. The frontend mirrors the
// cookie value back in the X-CSRF-Token header on every mutating request.
func GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := generateRandomToken()
	if err != nil {
		logger.L.Error("Failed to generate CSRF token", "error", err)
		utils.SendJSONError(w, "Failed to generate CSRF token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   false, // set true behind HTTPS
		MaxAge:   3600,
	})

	w.Header().Set("X-CSRF-Token", token)
	utils.SendJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// CSRFMiddleware enforces the double-submit cookie scheme: the X-CSRF-Token
// header must match the CSRF cookie on every non-safe method.
func CSRFMiddleware(authKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get("X-CSRF-Token")
			cookie, err := r.Cookie(csrfCookieName)
			if headerToken != "" && err == nil && tokensEqual(authKey, headerToken, cookie.Value) {
				next.ServeHTTP(w, r)
				return
			}

			logger.L.Warn("CSRF token validation failed",
				"method", r.Method, "path", r.URL.Path, "hasHeader", headerToken != "", "cookieErr", err)
			utils.SendJSONError(w, "CSRF token validation failed", http.StatusForbidden)
		})
	}
}

// tokensEqual compares the tokens through keyed HMACs so the comparison is
// constant time with respect to the token contents.
func tokensEqual(authKey []byte, a, b string) bool {
	ma := hmac.New(sha256.New, authKey)
	ma.Write([]byte(a))
	mb := hmac.New(sha256.New, authKey)
	mb.Write([]byte(b))
	return hmac.Equal(ma.Sum(nil), mb.Sum(nil))
}
