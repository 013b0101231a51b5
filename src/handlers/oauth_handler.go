package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/username/qualitax/backend/src/config"
	"github.com/username/qualitax/backend/src/database"
	"github.com/username/qualitax/backend/src/logger"
	"github.com/username/qualitax/backend/src/models"
)

var googleOauthConfig *oauth2.Config

// The state round-trips through Google and must come back from the same
// browser, so it lives in a short-lived cookie rather than a constant.
const oauthStateCookie = "qualitax_oauth_state"

func InitializeGoogleOAuthConfig() {
	googleOauthConfig = &oauth2.Config{
		RedirectURL:  config.Cfg.GoogleRedirectURL,
		ClientID:     config.Cfg.GoogleClientID,
		ClientSecret: config.Cfg.GoogleClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}
}

func (h *UserHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateRandomToken()
	if err != nil {
		logger.L.Error("Failed to generate OAuth state", "error", err)
		http.Redirect(w, r, "/signin?error=state_generation_failed", http.StatusTemporaryRedirect)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   false, // set true behind HTTPS
		MaxAge:   600,
	})

	http.Redirect(w, r, googleOauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *UserHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.FormValue("state") != stateCookie.Value {
		logger.L.Warn("Invalid OAuth state from Google callback")
		http.Redirect(w, r, "/signin?error=invalid_state", http.StatusTemporaryRedirect)
		return
	}

	// The state is single use.
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	code := r.FormValue("code")
	token, err := googleOauthConfig.Exchange(context.Background(), code)
	if err != nil {
		logger.L.Error("Failed to exchange code for token", "error", err)
		http.Redirect(w, r, "/signin?error=token_exchange_failed", http.StatusTemporaryRedirect)
		return
	}

	response, err := http.Get("https://www.googleapis.com/oauth2/v2/userinfo?access_token=" + token.AccessToken)
	if err != nil {
		logger.L.Error("Failed to get user info from Google", "error", err)
		http.Redirect(w, r, "/signin?error=userinfo_failed", http.StatusTemporaryRedirect)
		return
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		logger.L.Error("Failed to read user info response body", "error", err)
		http.Redirect(w, r, "/signin?error=userinfo_read_failed", http.StatusTemporaryRedirect)
		return
	}

	var googleUser struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Verified bool   `json:"verified_email"`
		ID       string `json:"id"`
	}
	if err := json.Unmarshal(contents, &googleUser); err != nil {
		logger.L.Error("Failed to unmarshal Google user info", "error", err)
		http.Redirect(w, r, "/signin?error=userinfo_parse_failed", http.StatusTemporaryRedirect)
		return
	}

	if !googleUser.Verified {
		http.Redirect(w, r, "/signin?error=email_not_verified_by_google", http.StatusTemporaryRedirect)
		return
	}

	user, err := models.GetUserByEmail(database.DB, googleUser.Email)
	if err != nil {
		// First Google sign-in creates a corredor account. The email doubles
		// as username to guarantee uniqueness.
		newUser := &models.User{
			Username:        googleUser.Email,
			Email:           googleUser.Email,
			Nombre:          googleUser.Name,
			Role:            models.RoleCorredor,
			Activo:          true,
			Password:        "",
			AuthProvider:    "google",
			IsEmailVerified: true,
		}
		if err := newUser.CreateUser(database.DB); err != nil {
			logger.L.Error("Failed to create Google user", "error", err)
			http.Redirect(w, r, "/signin?error=user_creation_failed", http.StatusTemporaryRedirect)
			return
		}
		h.auditService.Record(models.AuditLog{
			ActorUID:   fmt.Sprintf("%d", newUser.ID),
			ActorEmail: newUser.Email,
			Action:     models.AuditActionUserCreate,
			Resource:   models.ResourceUser,
			ResourceID: fmt.Sprintf("%d", newUser.ID),
			Details:    "google-oauth",
		})
		user = newUser
	} else {
		if user.AuthProvider == "local" || user.Password != "" {
			logger.L.Warn("Google login attempt for existing local account", "email", user.Email)
			http.Redirect(w, r, "/signin?error=email_already_exists_local", http.StatusTemporaryRedirect)
			return
		}
		if !user.Activo {
			http.Redirect(w, r, "/signin?error=account_deactivated", http.StatusTemporaryRedirect)
			return
		}
	}

	appToken, err := h.authService.GenerateToken(fmt.Sprintf("%d", user.ID), user.Role)
	if err != nil {
		logger.L.Error("Failed to generate app token for Google user", "error", err)
		http.Redirect(w, r, "/signin?error=token_generation_failed", http.StatusTemporaryRedirect)
		return
	}

	h.auditService.Record(models.AuditLog{
		ActorUID:   fmt.Sprintf("%d", user.ID),
		ActorEmail: user.Email,
		Action:     models.AuditActionLogin,
		Resource:   models.ResourceSession,
		Details:    "google-oauth",
	})

	redirectURL := fmt.Sprintf("%s/auth/google/callback?token=%s&user=%s",
		config.Cfg.FrontendBaseURL,
		appToken,
		url.QueryEscape(string(contents)))
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}
