// backend/src/handlers/import_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/username/contaflow/src/config"
	"github.com/username/contaflow/src/logger"
	"github.com/username/contaflow/src/models"
	"github.com/username/contaflow/src/security/validation"
	"github.com/username/contaflow/src/services"
	"github.com/username/contaflow/src/utils"
)

type ImportHandler struct {
	importService services.ImportService
}

func NewImportHandler(service services.ImportService) *ImportHandler {
	return &ImportHandler{importService: service}
}

// HandleUpload accepts a multipart statement upload and runs the import
// pipeline. Responds 200 with the summary when the import reached a terminal
// state, 202 when it paused waiting for a column mapping.
func (h *ImportHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	businessID, err := businessIDFromRequest(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		ctxLogger.Warn("Failed to parse multipart form or request too large", "businessID", businessID, "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("failed to process upload or file too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	fileType := r.FormValue("file_type")
	if !models.ValidFileType(fileType) {
		utils.SendJSONError(w, "file_type must be 'csv' or 'pdf'", http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		ctxLogger.Warn("Failed to retrieve file from request", "businessID", businessID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		utils.SendJSONError(w, fmt.Sprintf("file too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringMaxLength(fileHeader.Filename, validation.MaxFileNameLength, "filename"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		ctxLogger.Warn("Invalid client-declared file type", "businessID", businessID, "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateFileContent(file); err != nil {
		ctxLogger.Warn("Server-side file content validation failed", "businessID", businessID, "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctxLogger.Info("Processing statement upload", "businessID", businessID, "filename", fileHeader.Filename)
	summary, err := h.importService.ProcessUpload(r.Context(), businessID, fileHeader.Filename, models.FileType(fileType), fileHeader.Size, file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if summary.ProposedMapping != nil {
		status = http.StatusAccepted
	}
	utils.SendJSON(w, summary, status)
}

// HandleSupplyMapping commits a caller-approved column mapping for an import
// waiting in mapping state and resumes processing.
func (h *ImportHandler) HandleSupplyMapping(w http.ResponseWriter, r *http.Request) {
	businessID, err := businessIDFromRequest(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	publicID := chi.URLParam(r, "importID")

	var mapping models.ColumnMapping
	if err := json.NewDecoder(r.Body).Decode(&mapping); err != nil {
		utils.SendJSONError(w, "invalid mapping payload", http.StatusBadRequest)
		return
	}

	summary, err := h.importService.SupplyMapping(r.Context(), businessID, publicID, mapping)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, summary, http.StatusOK)
}

// HandleGetImportSummary returns counters and status for one import;
// ?failures=true includes row-level failure detail.
func (h *ImportHandler) HandleGetImportSummary(w http.ResponseWriter, r *http.Request) {
	businessID, err := businessIDFromRequest(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	publicID := chi.URLParam(r, "importID")
	withFailures := r.URL.Query().Get("failures") == "true"

	summary, err := h.importService.GetImportSummary(r.Context(), businessID, publicID, withFailures)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, summary, http.StatusOK)
}
