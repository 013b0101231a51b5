package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/qualitax/backend/src/logger"
	"github.com/username/qualitax/backend/src/models"
	"github.com/username/qualitax/backend/src/services"
	"github.com/username/qualitax/backend/src/storage"
	"github.com/username/qualitax/backend/src/utils"
)

type QualificationHandler struct {
	uploadService services.UploadService
	auditService  services.AuditService
}

func NewQualificationHandler(uploadService services.UploadService, auditService services.AuditService) *QualificationHandler {
	return &QualificationHandler{
		uploadService: uploadService,
		auditService:  auditService,
	}
}

func (h *QualificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	brokerID := strconv.FormatInt(userID, 10)

	records, err := h.uploadService.ListQualifications(r.Context(), brokerID)
	if err != nil {
		logger.L.Error("Failed to list qualifications", "brokerID", brokerID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve qualification records", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.TaxQualification{}
	}

	currentETag, etagErr := utils.GenerateETag(records)
	w.Header().Set("Cache-Control", "no-cache, private")
	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("%q", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	utils.SendJSON(w, http.StatusOK, records)
}

func (h *QualificationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	brokerID := strconv.FormatInt(userID, 10)

	var payload struct {
		Instrumento      string             `json:"instrumento"`
		Mercado          string             `json:"mercado"`
		Periodo          string             `json:"periodo"`
		TipoCalificacion string             `json:"tipo_calificacion"`
		Factores         map[string]float64 `json:"factores"`
		Monto            float64            `json:"monto"`
		EsOficial        bool               `json:"es_oficial"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	q := &models.TaxQualification{
		BrokerID:         brokerID,
		Instrumento:      payload.Instrumento,
		Mercado:          payload.Mercado,
		Periodo:          payload.Periodo,
		TipoCalificacion: payload.TipoCalificacion,
		Factores:         payload.Factores,
		Monto:            payload.Monto,
		EsOficial:        payload.EsOficial,
	}

	validationErrors, err := h.uploadService.CreateQualification(r.Context(), brokerID, q)
	if err != nil {
		logger.L.Error("Failed to create qualification", "brokerID", brokerID, "error", err)
		utils.SendJSONError(w, "Failed to save qualification record", http.StatusInternalServerError)
		return
	}
	if len(validationErrors) > 0 {
		utils.SendJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"errores": validationErrors,
		})
		return
	}

	h.auditService.Record(models.AuditLog{
		ActorUID:   brokerID,
		Action:     models.AuditActionQualifCreate,
		Resource:   models.ResourceQualification,
		ResourceID: q.ID,
		Details:    fmt.Sprintf("instrumento=%s mercado=%s periodo=%s", q.Instrumento, q.Mercado, q.Periodo),
	})

	utils.SendJSON(w, http.StatusCreated, q)
}

func (h *QualificationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	brokerID := strconv.FormatInt(userID, 10)

	id := r.PathValue("id")
	if id == "" {
		utils.SendJSONError(w, "Qualification id is required", http.StatusBadRequest)
		return
	}

	if err := h.uploadService.DeleteQualification(r.Context(), brokerID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.SendJSONError(w, "Qualification record not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to delete qualification", "brokerID", brokerID, "id", id, "error", err)
		utils.SendJSONError(w, "Failed to delete qualification record", http.StatusInternalServerError)
		return
	}

	h.auditService.Record(models.AuditLog{
		ActorUID:   brokerID,
		Action:     models.AuditActionQualifDelete,
		Resource:   models.ResourceQualification,
		ResourceID: id,
	})

	w.WriteHeader(http.StatusNoContent)
}
