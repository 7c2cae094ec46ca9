package models

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserActive UserStatus = "active"
	UserBanned UserStatus = "banned"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User is the directory view this pipeline needs: identity, role, ban
// state and registered device tokens. The pipeline is the only writer of
// Status/BanExpiresAt; everything else is owned elsewhere.
type User struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Role        Role   `json:"role"`

	Status UserStatus `json:"status"`
	// BanExpiresAt is nil for permanent bans; a set value is a temporary
	// ban the sweeper reverts once passed.
	BanExpiresAt *time.Time `json:"ban_expires_at,omitempty"`

	DeviceTokens []string `json:"device_tokens,omitempty"`
}

// DisplayOrUsername prefers the username, falling back to display name.
func (u *User) DisplayOrUsername() string {
	if u.Username != "" {
		return u.Username
	}
	return u.DisplayName
}
