package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/username/qualitax/backend/src/config"
	"github.com/username/qualitax/backend/src/database"
	"github.com/username/qualitax/backend/src/logger"
	"github.com/username/qualitax/backend/src/models"
	"github.com/username/qualitax/backend/src/security"
	"github.com/username/qualitax/backend/src/services"
	"github.com/username/qualitax/backend/src/utils"
)

type UserHandler struct {
	authService  *security.AuthService
	emailService services.EmailService
	auditService services.AuditService
}

func NewUserHandler(authService *security.AuthService, emailService services.EmailService, auditService services.AuditService) *UserHandler {
	return &UserHandler{
		authService:  authService,
		emailService: emailService,
		auditService: auditService,
	}
}

func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := models.GetUserByUsername(database.DB, credentials.Username)
	if err != nil {
		logger.L.Warn("Login: user lookup failed", "username", credentials.Username, "error", err)
		utils.SendJSONError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	if err := h.authService.CompareHashAndPassword(user.Password, credentials.Password); err != nil {
		logger.L.Warn("Login: password check failed", "username", credentials.Username)
		utils.SendJSONError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	if !user.Activo {
		logger.L.Warn("Login attempt for deactivated account", "username", credentials.Username)
		utils.SendJSONError(w, "La cuenta se encuentra desactivada", http.StatusForbidden)
		return
	}

	if !user.IsEmailVerified && user.AuthProvider == "local" {
		utils.SendJSONError(w, "El correo no ha sido verificado", http.StatusForbidden)
		return
	}

	userIDStr := fmt.Sprintf("%d", user.ID)
	accessToken, err := h.authService.GenerateToken(userIDStr, user.Role)
	if err != nil {
		utils.SendJSONError(w, "Failed to generate access token", http.StatusInternalServerError)
		return
	}

	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		utils.SendJSONError(w, "Failed to generate refresh token", http.StatusInternalServerError)
		return
	}

	session := &models.Session{
		UserID:       user.ID,
		Token:        accessToken,
		RefreshToken: refreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     r.RemoteAddr,
		IsBlocked:    false,
		ExpiresAt:    time.Now().Add(config.Cfg.RefreshTokenExpiry),
	}
	if err := models.CreateSession(database.DB, session); err != nil {
		utils.SendJSONError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	h.auditService.Record(models.AuditLog{
		ActorUID:   userIDStr,
		ActorEmail: user.Email,
		Action:     models.AuditActionLogin,
		Resource:   models.ResourceSession,
	})

	utils.SendJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"nombre":   user.Nombre,
			"apellido": user.Apellido,
			"role":     user.Role,
		},
	})
}

func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Nombre   string `json:"nombre"`
		Apellido string `json:"apellido"`
		RUT      string `json:"rut"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if payload.Username == "" || payload.Email == "" || len(payload.Password) < 8 {
		utils.SendJSONError(w, "Username, email and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := h.authService.HashPassword(payload.Password)
	if err != nil {
		utils.SendJSONError(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	// Self-registered accounts are always corredores. Administrador accounts
	// are only provisioned through the admin user endpoints.
	user := &models.User{
		Username:     payload.Username,
		Email:        payload.Email,
		Nombre:       payload.Nombre,
		Apellido:     payload.Apellido,
		RUT:          payload.RUT,
		Role:         models.RoleCorredor,
		Activo:       true,
		Password:     hashedPassword,
		AuthProvider: "local",
	}

	if err := user.CreateUser(database.DB); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.username") {
			utils.SendJSONError(w, "Username already exists", http.StatusConflict)
			return
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			utils.SendJSONError(w, "Email already registered", http.StatusConflict)
			return
		}
		logger.L.Error("Register: failed to create user", "error", err)
		utils.SendJSONError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	verificationToken, err := h.authService.GenerateRefreshToken()
	if err == nil {
		expiresAt := time.Now().Add(config.Cfg.VerificationTokenExpiry)
		if err := models.SetVerificationToken(database.DB, user.ID, verificationToken, expiresAt); err != nil {
			logger.L.Error("Register: failed to store verification token", "userID", user.ID, "error", err)
		} else if err := h.emailService.SendVerificationEmail(user.Email, user.Username, verificationToken); err != nil {
			logger.L.Error("Register: failed to send verification email", "userID", user.ID, "error", err)
		}
	}

	h.auditService.Record(models.AuditLog{
		ActorUID:   fmt.Sprintf("%d", user.ID),
		ActorEmail: user.Email,
		Action:     models.AuditActionUserCreate,
		Resource:   models.ResourceUser,
		ResourceID: fmt.Sprintf("%d", user.ID),
		Details:    "self-registration",
	})

	utils.SendJSON(w, http.StatusCreated, map[string]string{
		"message": "User registered successfully. Please verify your email.",
	})
}

func (h *UserHandler) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		utils.SendJSONError(w, "Verification token is required", http.StatusBadRequest)
		return
	}

	user, err := models.MarkEmailVerified(database.DB, token)
	if err != nil {
		logger.L.Warn("Email verification failed", "error", err)
		utils.SendJSONError(w, "Invalid or expired verification token", http.StatusBadRequest)
		return
	}

	logger.L.Info("Email verified", "userID", user.ID)
	utils.SendJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully"})
}

func (h *UserHandler) RequestPasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Email == "" {
		utils.SendJSONError(w, "Email is required", http.StatusBadRequest)
		return
	}

	// The response is the same whether or not the account exists, so the
	// endpoint cannot be used to probe registered emails.
	user, err := models.GetUserByEmail(database.DB, payload.Email)
	if err == nil {
		token, tokenErr := h.authService.GenerateRefreshToken()
		if tokenErr == nil {
			expiresAt := time.Now().Add(config.Cfg.PasswordResetTokenExpiry)
			if err := models.SetPasswordResetToken(database.DB, user.ID, token, expiresAt); err != nil {
				logger.L.Error("Failed to store password reset token", "userID", user.ID, "error", err)
			} else if err := h.emailService.SendPasswordResetEmail(user.Email, user.Username, token); err != nil {
				logger.L.Error("Failed to send password reset email", "userID", user.ID, "error", err)
			}
		}
	}

	utils.SendJSON(w, http.StatusOK, map[string]string{
		"message": "If an account with that email exists, a password reset link has been sent.",
	})
}

func (h *UserHandler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Token == "" || len(payload.NewPassword) < 8 {
		utils.SendJSONError(w, "Token and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	newHash, err := h.authService.HashPassword(payload.NewPassword)
	if err != nil {
		utils.SendJSONError(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	user, err := models.ResetPassword(database.DB, payload.Token, newHash)
	if err != nil {
		logger.L.Warn("Password reset failed", "error", err)
		utils.SendJSONError(w, "Invalid or expired reset token", http.StatusBadRequest)
		return
	}

	logger.L.Info("Password reset completed", "userID", user.ID)
	utils.SendJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

func (h *UserHandler) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if requestBody.RefreshToken == "" {
		utils.SendJSONError(w, "Refresh token is required", http.StatusBadRequest)
		return
	}

	session, err := models.GetSessionByRefreshToken(database.DB, requestBody.RefreshToken)
	if err != nil || session.IsBlocked || time.Now().After(session.ExpiresAt) {
		logger.L.Warn("Refresh token validation failed", "error", err)
		utils.SendJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	user, err := models.GetUserByID(database.DB, session.UserID)
	if err != nil || !user.Activo {
		utils.SendJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	newAccessToken, err := h.authService.GenerateToken(fmt.Sprintf("%d", user.ID), user.Role)
	if err != nil {
		utils.SendJSONError(w, "Failed to generate new access token", http.StatusInternalServerError)
		return
	}
	newRefreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		utils.SendJSONError(w, "Failed to generate new refresh token", http.StatusInternalServerError)
		return
	}

	newSession := &models.Session{
		UserID:       user.ID,
		Token:        newAccessToken,
		RefreshToken: newRefreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     r.RemoteAddr,
		IsBlocked:    false,
		ExpiresAt:    time.Now().Add(config.Cfg.RefreshTokenExpiry),
	}
	if err := models.CreateSession(database.DB, newSession); err != nil {
		utils.SendJSONError(w, "Failed to create new session on refresh", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, http.StatusOK, map[string]string{
		"access_token":  newAccessToken,
		"refresh_token": newRefreshToken,
	})
}

func (h *UserHandler) LogoutUserHandler(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" {
		utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
		return
	}

	if err := models.DeleteSessionByToken(database.DB, tokenString); err != nil {
		logger.L.Warn("Logout: failed to delete session", "error", err)
	}

	if userIDStr, _, err := h.authService.ValidateToken(tokenString); err == nil {
		h.auditService.Record(models.AuditLog{
			ActorUID: userIDStr,
			Action:   models.AuditActionLogout,
			Resource: models.ResourceSession,
		})
	}

	w.WriteHeader(http.StatusNoContent)
}
