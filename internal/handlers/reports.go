package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/peyvandapp/peyvand-backend/internal/models"
	"github.com/peyvandapp/peyvand-backend/internal/services"
)

// duplicateWindow suppresses repeat reports from the same reporter
// against the same user for the same violation type.
const duplicateWindow = 24 * time.Hour

// SubmitReportRequest is the report intake payload.
type SubmitReportRequest struct {
	ReporterID     string               `json:"reporter_id"`
	ReportedUserID string               `json:"reported_user_id"`
	ViolationType  models.ViolationType `json:"violation_type"`
	Description    string               `json:"description"`
	Evidence       []string             `json:"evidence"`
}

// SubmitReport accepts a violation report, runs it through the
// evaluator, and notifies admins. The decision is returned inline so
// the caller knows immediately whether a warning or ban resulted.
func SubmitReport(w http.ResponseWriter, r *http.Request) {
	var req SubmitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.ReporterID = strings.TrimSpace(req.ReporterID)
	req.ReportedUserID = strings.TrimSpace(req.ReportedUserID)
	req.Description = strings.TrimSpace(req.Description)

	if req.ReporterID == "" || req.ReportedUserID == "" {
		writeError(w, http.StatusBadRequest, "reporter_id and reported_user_id are required")
		return
	}
	if req.ReporterID == req.ReportedUserID {
		writeError(w, http.StatusBadRequest, "You cannot report yourself")
		return
	}
	if !req.ViolationType.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown violation type")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	// The reported user must exist before anything is recorded.
	if _, err := userDirectory.GetUser(ctx, req.ReportedUserID); err != nil {
		serviceError(w, err)
		return
	}

	duplicate, err := reportStore.HasRecentDuplicate(ctx, req.ReporterID, req.ReportedUserID,
		req.ViolationType, time.Now().Add(-duplicateWindow))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check for duplicate reports")
		return
	}
	if duplicate {
		writeError(w, http.StatusConflict, "You have already reported this user for this violation recently")
		return
	}

	report, err := reportStore.CreateReport(ctx, req.ReporterID, req.ReportedUserID,
		req.ViolationType, req.Description, req.Evidence)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create report")
		return
	}

	outcome, err := evaluator.EvaluateReport(ctx, report.ID.Hex())
	if err != nil {
		// The report is stored even when evaluation fails; it stays
		// pending and can be retried.
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"success":   true,
			"message":   "Report received, processing is delayed",
			"report_id": report.ID.Hex(),
		})
		return
	}

	notifier.NotifyAdminsAboutReport(ctx, report, "لطفا در اسرع وقت بررسی نمایید.")

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":   true,
		"message":   "Report submitted successfully",
		"report_id": report.ID.Hex(),
		"outcome":   outcome,
	})
}

// ListReports returns one page of reports for the admin dashboard.
// Filters come in as query parameters.
func ListReports(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	query := r.URL.Query()
	filter := services.ReportFilter{
		Status:         models.ReportStatus(query.Get("status")),
		ViolationType:  models.ViolationType(query.Get("violation_type")),
		ActionTaken:    models.ActionType(query.Get("action_taken")),
		ReportedUserID: query.Get("reported_user_id"),
		ReporterID:     query.Get("reporter_id"),
	}
	if v := query.Get("is_warning"); v != "" {
		isWarning := v == "true" || v == "1"
		filter.IsWarning = &isWarning
	}

	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	reports, total, err := reportStore.ListReports(ctx, filter, page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch reports")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"reports": reports,
		"total":   total,
		"count":   len(reports),
	})
}

// GetReportDetail returns one report by id.
func GetReportDetail(w http.ResponseWriter, r *http.Request) {
	reportID := r.URL.Query().Get("id")
	if reportID == "" {
		writeError(w, http.StatusBadRequest, "Report ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report, err := reportStore.GetReport(ctx, reportID)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"report":  report,
	})
}

// EscalateReport converts an open warning into the rule's punishment
// without waiting for a repeat offense.
func EscalateReport(w http.ResponseWriter, r *http.Request) {
	reportID := r.URL.Query().Get("id")
	if reportID == "" {
		writeError(w, http.StatusBadRequest, "Report ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	outcome, err := evaluator.EscalateWarning(ctx, reportID)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Warning escalated",
		"outcome": outcome,
	})
}

// GetViolationHistory returns a user's confirmed violations, newest
// first.
func GetViolationHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	history, err := reportStore.ViolationHistory(ctx, userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch violation history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"violations": history,
		"count":      len(history),
	})
}

// GetReportStats returns aggregate reporting stats for the dashboard.
// The window defaults to the last 30 days.
func GetReportStats(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 30
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := reportStore.Stats(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"days":    days,
		"stats":   stats,
	})
}

// RunSweep triggers one expiry sweep on demand instead of waiting for
// the next tick.
func RunSweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	summary, err := sweeper.Sweep(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Sweep completed",
		"summary": summary,
	})
}
