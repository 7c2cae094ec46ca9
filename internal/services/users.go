package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/peyvandapp/peyvand-backend/internal/database"
	"github.com/peyvandapp/peyvand-backend/internal/models"
)

// UserDirectory is the external user collaborator: lookups, admin
// discovery, and the two ban-state fields this pipeline owns.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	SetBanState(ctx context.Context, id string, status models.UserStatus, banExpiresAt *time.Time) error
	FindAdmins(ctx context.Context) ([]models.User, error)
}

// PostgresUserDirectory reads and writes the users/user_devices tables.
type PostgresUserDirectory struct{}

func NewPostgresUserDirectory() *PostgresUserDirectory {
	return &PostgresUserDirectory{}
}

// GetUser loads one user with registered device tokens.
func (d *PostgresUserDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id", ErrValidation)
	}

	var user models.User
	var displayName sql.NullString
	var banExpiresAt sql.NullTime
	err = database.PostgresDB.QueryRowContext(ctx, `
		SELECT id, created_at, username, display_name, role, status, ban_expires_at
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.CreatedAt, &user.Username, &displayName, &user.Role, &user.Status, &banExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if displayName.Valid {
		user.DisplayName = displayName.String
	}
	if banExpiresAt.Valid {
		t := banExpiresAt.Time
		user.BanExpiresAt = &t
	}

	tokens, err := d.deviceTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.DeviceTokens = tokens

	return &user, nil
}

func (d *PostgresUserDirectory) deviceTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT device_token FROM user_devices WHERE user_id = $1 ORDER BY last_used DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// SetBanState writes the user's ban state. A nil banExpiresAt together
// with UserBanned means the ban is permanent.
func (d *PostgresUserDirectory) SetBanState(ctx context.Context, id string, status models.UserStatus, banExpiresAt *time.Time) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid user id", ErrValidation)
	}

	result, err := database.PostgresDB.ExecContext(ctx, `
		UPDATE users SET status = $2, ban_expires_at = $3, updated_at = NOW() WHERE id = $1
	`, userID, status, banExpiresAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindAdmins returns active admin and moderator accounts, with device
// tokens, for report fan-out.
func (d *PostgresUserDirectory) FindAdmins(ctx context.Context) ([]models.User, error) {
	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT id, created_at, username, display_name, role, status
		FROM users WHERE role IN ('admin', 'moderator') AND status = 'active'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []models.User
	for rows.Next() {
		var user models.User
		var displayName sql.NullString
		if err := rows.Scan(&user.ID, &user.CreatedAt, &user.Username, &displayName, &user.Role, &user.Status); err != nil {
			return nil, err
		}
		if displayName.Valid {
			user.DisplayName = displayName.String
		}
		admins = append(admins, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range admins {
		tokens, err := d.deviceTokens(ctx, admins[i].ID)
		if err != nil {
			return nil, err
		}
		admins[i].DeviceTokens = tokens
	}

	return admins, nil
}

// ListExpiredBans returns ids of users whose temporary ban has passed.
func (d *PostgresUserDirectory) ListExpiredBans(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT id FROM users
		WHERE status = 'banned' AND ban_expires_at IS NOT NULL AND ban_expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id.String())
	}
	return ids, rows.Err()
}

// ClearExpiredBan reactivates one user, guarded so a ban that was just
// re-applied (or already cleared) is left alone. Returns whether this
// call did the clearing.
func (d *PostgresUserDirectory) ClearExpiredBan(ctx context.Context, id string, now time.Time) (bool, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return false, fmt.Errorf("%w: invalid user id", ErrValidation)
	}

	result, err := database.PostgresDB.ExecContext(ctx, `
		UPDATE users SET status = 'active', ban_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'banned' AND ban_expires_at IS NOT NULL AND ban_expires_at < $2
	`, userID, now)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
