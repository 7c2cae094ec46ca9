package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/peyvandapp/peyvand-backend/internal/config"
	"github.com/peyvandapp/peyvand-backend/internal/services"
)

var cloudinaryService *services.CloudinaryService

func InitCloudinaryService(cfg *config.Config) error {
	service, err := services.NewCloudinaryService(
		cfg.CloudinaryName,
		cfg.CloudinaryAPIKey,
		cfg.CloudinaryAPISecret,
	)
	if err != nil {
		return err
	}
	cloudinaryService = service
	return nil
}

// UploadEvidence uploads a snapshot to Cloudinary and attaches its URL
// to an existing report.
func UploadEvidence(w http.ResponseWriter, r *http.Request) {
	if cloudinaryService == nil {
		writeError(w, http.StatusServiceUnavailable, "Evidence storage not configured")
		return
	}

	reportID := r.URL.Query().Get("report_id")
	if reportID == "" {
		writeError(w, http.StatusBadRequest, "Report ID is required")
		return
	}

	// Parse multipart form (max 10MB)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form: "+err.Error())
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	// The report must exist before anything is uploaded.
	if _, err := reportStore.GetReport(ctx, reportID); err != nil {
		serviceError(w, err)
		return
	}

	url, err := cloudinaryService.UploadEvidenceFromHeader(ctx, fileHeader)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	if err := reportStore.AttachEvidence(ctx, reportID, url); err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Evidence uploaded successfully",
		"url":     url,
	})
}
