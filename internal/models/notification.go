package models

import "time"

type NotificationType string

const (
	NotificationWarning    NotificationType = "warning"
	NotificationPunishment NotificationType = "punishment"
	NotificationNewReport  NotificationType = "new_report"
)

type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Notification is the payload this pipeline prepares for delivery. It is
// produced, not persisted, here; push transport and any inbox storage are
// external collaborators.
type Notification struct {
	ID         string           `json:"id"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	UserID     string           `json:"user_id"`
	ReportID   string           `json:"report_id,omitempty"`
	RuleID     string           `json:"rule_id,omitempty"`
	Priority   Priority         `json:"priority"`
	ActionType ActionType       `json:"action_type,omitempty"`
	ExpiresAt  *time.Time       `json:"expires_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
