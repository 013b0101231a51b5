package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/username/qualitax/backend/src/config"
	"github.com/username/qualitax/backend/src/logger"
	"github.com/username/qualitax/backend/src/models"
	"github.com/username/qualitax/backend/src/security/validation"
	"github.com/username/qualitax/backend/src/services"
	"github.com/username/qualitax/backend/src/utils"
)

type UploadHandler struct {
	uploadService services.UploadService
	exportService *services.ExportService
	auditService  services.AuditService
}

func NewUploadHandler(uploadService services.UploadService, exportService *services.ExportService, auditService services.AuditService) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		exportService: exportService,
		auditService:  auditService,
	}
}

func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	brokerID := strconv.FormatInt(userID, 10)

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "brokerID", brokerID, "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "brokerID", brokerID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file header reports size too large", "brokerID", brokerID, "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		logger.L.Warn("Invalid client-declared file type", "brokerID", brokerID, "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		logger.L.Warn("Server-side file content validation failed", "brokerID", brokerID, "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Info("File content validated", "brokerID", brokerID, "filename", fileHeader.Filename, "clientType", clientContentType, "detectedType", detectedContentType)

	progress := func(processed, total int, phase string) {
		logger.L.Info("Upload progress", "brokerID", brokerID, "phase", phase, "processed", processed, "total", total)
	}

	result, err := h.uploadService.ProcessUpload(r.Context(), file, fileHeader.Filename, brokerID, progress)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrParsingFailed):
			logger.L.Warn("Upload rejected: file could not be parsed", "brokerID", brokerID, "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error parsing file: %v", err), http.StatusBadRequest)
		case errors.Is(err, services.ErrCommitFailed):
			logger.L.Error("Upload commit failed", "brokerID", brokerID, "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, "An error occurred while saving the records. Some batches may have been written.", http.StatusInternalServerError)
		case errors.Is(err, services.ErrProcessingFailed):
			logger.L.Warn("Upload processing failed", "brokerID", brokerID, "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error processing records in file: %v", err), http.StatusBadRequest)
		default:
			logger.L.Error("Internal error processing upload", "brokerID", brokerID, "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, "An internal error occurred while processing the file. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	h.auditService.Record(models.AuditLog{
		ActorUID: brokerID,
		Action:   models.AuditActionBulkUpload,
		Resource: models.ResourceQualification,
		Details: fmt.Sprintf("archivo=%s total=%d agregados=%d actualizados=%d errores=%d",
			fileHeader.Filename, result.Total, result.Added, result.Updated, result.Errored),
	})

	utils.SendJSON(w, http.StatusOK, result)
}

// HandleExportErrors streams the row errors of the broker's most recent
// upload as a CSV download.
func (h *UploadHandler) HandleExportErrors(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	brokerID := strconv.FormatInt(userID, 10)

	result, ok := h.uploadService.GetLastUploadResult(brokerID)
	if !ok {
		utils.SendJSONError(w, "No recent upload result available for export", http.StatusNotFound)
		return
	}

	h.auditService.Record(models.AuditLog{
		ActorUID: brokerID,
		Action:   models.AuditActionErrorExport,
		Resource: models.ResourceQualification,
		Details:  fmt.Sprintf("errores=%d", result.Errored),
	})

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="errores_carga.csv"`)
	if err := h.exportService.WriteErrorReportCSV(w, result); err != nil {
		logger.L.Error("Failed to write error report CSV", "brokerID", brokerID, "error", err)
	}
}
