package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/peyvandapp/peyvand-backend/internal/models"
	"github.com/peyvandapp/peyvand-backend/internal/services"
)

// CreateRule creates a moderation rule. At most one active rule may
// exist per violation type.
func CreateRule(w http.ResponseWriter, r *http.Request) {
	var spec services.RuleSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	spec.CreatedBy = adminIDFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rule, err := ruleStore.CreateRule(ctx, spec)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Rule created successfully",
		"rule":    rule,
	})
}

// ListRules returns all rules, newest first. Pass active=true to hide
// inactive ones.
func ListRules(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("active") == "true"

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rules, err := ruleStore.ListRules(ctx, onlyActive)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch rules")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"rules":   rules,
		"count":   len(rules),
	})
}

// GetRule returns one rule by id.
func GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := r.URL.Query().Get("id")
	if ruleID == "" {
		writeError(w, http.StatusBadRequest, "Rule ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rule, err := ruleStore.GetRule(ctx, ruleID)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"rule":    rule,
	})
}

// UpdateRule applies a partial update to a rule. The violation type of
// an existing rule cannot be changed.
func UpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := r.URL.Query().Get("id")
	if ruleID == "" {
		writeError(w, http.StatusBadRequest, "Rule ID is required")
		return
	}

	var patch services.RulePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rule, err := ruleStore.UpdateRule(ctx, ruleID, patch)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Rule updated successfully",
		"rule":    rule,
	})
}

// ToggleRuleWarning flips whether first violations get a warning
// before punishment.
func ToggleRuleWarning(w http.ResponseWriter, r *http.Request) {
	ruleID := r.URL.Query().Get("id")
	if ruleID == "" {
		writeError(w, http.StatusBadRequest, "Rule ID is required")
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rule, err := ruleStore.ToggleWarning(ctx, ruleID, req.Enabled)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Rule updated successfully",
		"rule":    rule,
	})
}

// DeleteRule removes a rule entirely. Reports already decided under it
// keep their outcomes.
func DeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := r.URL.Query().Get("id")
	if ruleID == "" {
		writeError(w, http.StatusBadRequest, "Rule ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := ruleStore.DeleteRule(ctx, ruleID); err != nil {
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Rule deleted successfully",
	})
}

// ListViolationTypes returns the known violation types with their
// Persian labels, for admin form dropdowns.
func ListViolationTypes(w http.ResponseWriter, r *http.Request) {
	types := make([]map[string]interface{}, len(models.ViolationTypes))
	for i, vt := range models.ViolationTypes {
		types[i] = map[string]interface{}{
			"key":   vt,
			"label": vt.Label(),
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"types":   types,
	})
}
