package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/username/qualitax/backend/src/database"
	"github.com/username/qualitax/backend/src/logger"
	"github.com/username/qualitax/backend/src/models"
	"github.com/username/qualitax/backend/src/security"
	"github.com/username/qualitax/backend/src/services"
	"github.com/username/qualitax/backend/src/utils"
)

// AdminHandler serves the administrador-only account, audit and backup
// endpoints. None of these touch qualification data.
type AdminHandler struct {
	authService   *security.AuthService
	auditService  services.AuditService
	exportService *services.ExportService
}

func NewAdminHandler(authService *security.AuthService, auditService services.AuditService, exportService *services.ExportService) *AdminHandler {
	return &AdminHandler{
		authService:   authService,
		auditService:  auditService,
		exportService: exportService,
	}
}

func (h *AdminHandler) actorUID(r *http.Request) string {
	userID, _ := GetUserIDFromContext(r.Context())
	return strconv.FormatInt(userID, 10)
}

func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := models.ListUsers(database.DB)
	if err != nil {
		logger.L.Error("Failed to list users", "error", err)
		utils.SendJSONError(w, "Failed to retrieve users", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	utils.SendJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Nombre   string `json:"nombre"`
		Apellido string `json:"apellido"`
		RUT      string `json:"rut"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if payload.Role != models.RoleCorredor && payload.Role != models.RoleAdministrador {
		utils.SendJSONError(w, "Role must be 'corredor' or 'administrador'", http.StatusBadRequest)
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

	user := &models.User{
		Username:        payload.Username,
		Email:           payload.Email,
		Nombre:          payload.Nombre,
		Apellido:        payload.Apellido,
		RUT:             payload.RUT,
		Role:            payload.Role,
		Activo:          true,
		Password:        hashedPassword,
		AuthProvider:    "local",
		IsEmailVerified: true, // admin-provisioned accounts skip email verification
	}
	if err := user.CreateUser(database.DB); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			utils.SendJSONError(w, "Username or email already exists", http.StatusConflict)
			return
		}
		logger.L.Error("Admin: failed to create user", "error", err)
		utils.SendJSONError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	h.auditService.Record(models.AuditLog{
		ActorUID:   h.actorUID(r),
		Action:     models.AuditActionUserCreate,
		Resource:   models.ResourceUser,
		ResourceID: fmt.Sprintf("%d", user.ID),
		Details:    fmt.Sprintf("role=%s", user.Role),
	})

	utils.SendJSON(w, http.StatusCreated, user)
}

func (h *AdminHandler) HandleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	targetID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	var payload struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Role != models.RoleCorredor && payload.Role != models.RoleAdministrador {
		utils.SendJSONError(w, "Role must be 'corredor' or 'administrador'", http.StatusBadRequest)
		return
	}

	before, err := models.GetUserByID(database.DB, targetID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			utils.SendJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		utils.SendJSONError(w, "Failed to look up user", http.StatusInternalServerError)
		return
	}

	if err := models.UpdateUserRole(database.DB, targetID, payload.Role); err != nil {
		logger.L.Error("Failed to update user role", "userID", targetID, "error", err)
		utils.SendJSONError(w, "Failed to update role", http.StatusInternalServerError)
		return
	}

	// Role changes invalidate outstanding sessions so stale role claims
	// cannot be replayed.
	if _, err := database.DB.Exec(`DELETE FROM sessions WHERE user_id = ?`, targetID); err != nil {
		logger.L.Warn("Failed to clear sessions after role change", "userID", targetID, "error", err)
	}

	h.auditService.Record(models.AuditLog{
		ActorUID:   h.actorUID(r),
		Action:     models.AuditActionUserRoleChange,
		Resource:   models.ResourceUser,
		ResourceID: fmt.Sprintf("%d", targetID),
		Before:     before.Role,
		After:      payload.Role,
	})

	utils.SendJSON(w, http.StatusOK, map[string]string{"message": "Role updated"})
}

func (h *AdminHandler) HandleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	actorID, _ := GetUserIDFromContext(r.Context())
	if actorID == targetID {
		utils.SendJSONError(w, "An administrator cannot deactivate their own account", http.StatusBadRequest)
		return
	}

	if err := models.DeactivateUser(database.DB, targetID); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			utils.SendJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to deactivate user", "userID", targetID, "error", err)
		utils.SendJSONError(w, "Failed to deactivate user", http.StatusInternalServerError)
		return
	}

	if _, err := database.DB.Exec(`DELETE FROM sessions WHERE user_id = ?`, targetID); err != nil {
		logger.L.Warn("Failed to clear sessions after deactivation", "userID", targetID, "error", err)
	}

	h.auditService.Record(models.AuditLog{
		ActorUID:   h.actorUID(r),
		Action:     models.AuditActionUserDeactivate,
		Resource:   models.ResourceUser,
		ResourceID: fmt.Sprintf("%d", targetID),
	})

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) HandleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.auditService.List(limit, offset)
	if err != nil {
		logger.L.Error("Failed to list audit logs", "error", err)
		utils.SendJSONError(w, "Failed to retrieve audit logs", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}
	utils.SendJSON(w, http.StatusOK, entries)
}

// HandleBackup exports accounts and audit history as a JSON document.
// Qualification records belong to the corredores and stay out of it.
func (h *AdminHandler) HandleBackup(w http.ResponseWriter, r *http.Request) {
	doc, err := h.exportService.BuildBackup()
	if err != nil {
		logger.L.Error("Failed to build backup document", "error", err)
		utils.SendJSONError(w, "Failed to build backup", http.StatusInternalServerError)
		return
	}

	h.auditService.Record(models.AuditLog{
		ActorUID: h.actorUID(r),
		Action:   models.AuditActionBackupExport,
		Resource: models.ResourceBackup,
		Details:  fmt.Sprintf("users=%d auditLogs=%d", len(doc.Users), len(doc.AuditLogs)),
	})

	filename := fmt.Sprintf("qualitax_backup_%s.json", time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	utils.SendJSON(w, http.StatusOK, doc)
}
