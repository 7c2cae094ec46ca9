package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/peyvandapp/peyvand-backend/internal/database"
	"github.com/peyvandapp/peyvand-backend/internal/middleware"
	"github.com/peyvandapp/peyvand-backend/internal/services"
	"github.com/peyvandapp/peyvand-backend/pkg/utils"
)

// AdminSignupRequest represents the request to create an admin account
type AdminSignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminSigninRequest represents the request to sign in as admin
type AdminSigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func adminIDFromContext(ctx context.Context) string {
	return middleware.AdminIDFromContext(ctx)
}

// AdminSignup creates a new admin account. Only registered outside
// production; live admin accounts are provisioned directly.
func AdminSignup(w http.ResponseWriter, r *http.Request) {
	var req AdminSignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username, email, and password are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters long")
		return
	}

	// Check if admin with username already exists
	var existingUsername string
	err := database.PostgresDB.QueryRow("SELECT username FROM admins WHERE username = $1", req.Username).Scan(&existingUsername)
	if err == nil {
		writeError(w, http.StatusConflict, "Admin with this username already exists")
		return
	} else if err != sql.ErrNoRows {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	// Check if admin with email already exists
	var existingEmail string
	err = database.PostgresDB.QueryRow("SELECT email FROM admins WHERE email = $1", req.Email).Scan(&existingEmail)
	if err == nil {
		writeError(w, http.StatusConflict, "Admin with this email already exists")
		return
	} else if err != sql.ErrNoRows {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	adminID := uuid.New()
	now := time.Now()
	_, err = database.PostgresDB.Exec(`
		INSERT INTO admins (id, created_at, updated_at, username, email, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, adminID, now, now, req.Username, req.Email, hashedPassword, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create admin account")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Admin account created successfully",
		"admin": map[string]interface{}{
			"id":         adminID.String(),
			"username":   req.Username,
			"email":      req.Email,
			"created_at": now,
		},
	})
}

// AdminSignin handles admin login and issues a session token.
func AdminSignin(w http.ResponseWriter, r *http.Request) {
	var req AdminSigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	var adminID uuid.UUID
	var username, email, passwordHash string
	var isActive bool
	var createdAt time.Time

	err := database.PostgresDB.QueryRow(`
		SELECT id, created_at, username, email, password_hash, is_active
		FROM admins
		WHERE username = $1
	`, req.Username).Scan(&adminID, &createdAt, &username, &email, &passwordHash, &isActive)
	if err != nil {
		if err == sql.ErrNoRows {
			writeError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !isActive {
		writeError(w, http.StatusForbidden, "Admin account is inactive")
		return
	}

	valid, err := utils.VerifyPassword(req.Password, passwordHash)
	if err != nil || !valid {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := services.CreateAdminSession(r.Context(), adminID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Admin signed in successfully",
		"admin": map[string]interface{}{
			"id":         adminID.String(),
			"username":   username,
			"email":      email,
			"created_at": createdAt,
		},
		"token": token,
	})
}

// AdminSignout invalidates the caller's session token.
func AdminSignout(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractSessionToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "Session token is required")
		return
	}

	if err := services.InvalidateAdminSession(r.Context(), token); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to invalidate session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Signed out successfully",
	})
}
