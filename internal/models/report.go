package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReportStatus string

const (
	ReportPending     ReportStatus = "pending"
	ReportWarningSent ReportStatus = "warning_sent"
	ReportResolved    ReportStatus = "resolved"
)

func (s ReportStatus) Valid() bool {
	return s == ReportPending || s == ReportWarningSent || s == ReportResolved
}

type ActionType string

const (
	ActionNone         ActionType = "none"
	ActionWarning      ActionType = "warning"
	ActionTemporaryBan ActionType = "temporary_ban"
	ActionPermanentBan ActionType = "permanent_ban"
)

var actionTypeLabels = map[ActionType]string{
	ActionNone:         "هیچ اقدامی",
	ActionWarning:      "تذکر",
	ActionTemporaryBan: "مسدودی موقت",
	ActionPermanentBan: "مسدودی دائم",
}

// Label returns the Persian display string for the action type,
// falling back to the raw key for unknown values.
func (a ActionType) Label() string {
	if label, ok := actionTypeLabels[a]; ok {
		return label
	}
	return string(a)
}

// Resolution provenance for resolved warnings.
const (
	ResolutionEscalated = "escalated" // superseded by a punishment decision
	ResolutionExpired   = "expired"   // grace period elapsed with no recurrence
)

// Report is one reported incident. It is created pending by the intake
// path, mutated exactly once by the evaluator into warning_sent or
// resolved, and a warning_sent report is later resolved either by the
// sweeper (expired) or by a punishment decision (escalated).
type Report struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	ReporterID     string        `bson:"reporter_id" json:"reporter_id"`
	ReportedUserID string        `bson:"reported_user_id" json:"reported_user_id"`
	ViolationType  ViolationType `bson:"violation_type" json:"violation_type"`
	Description    string        `bson:"description,omitempty" json:"description,omitempty"`
	Evidence       []string      `bson:"evidence,omitempty" json:"evidence,omitempty"`

	Status ReportStatus `bson:"status" json:"status"`

	// Warning system fields
	IsWarning     bool       `bson:"is_warning" json:"is_warning"`
	WarningExpiry *time.Time `bson:"warning_expiry,omitempty" json:"warning_expiry,omitempty"`
	Resolution    string     `bson:"resolution,omitempty" json:"resolution,omitempty"`

	// Action taken
	ActionTaken     ActionType `bson:"action_taken" json:"action_taken"`
	ActionDuration  int        `bson:"action_duration" json:"action_duration"` // hours, temporary bans
	ActionExpiresAt *time.Time `bson:"action_expires_at,omitempty" json:"action_expires_at,omitempty"`

	// Admin handling
	HandledBy  string     `bson:"handled_by,omitempty" json:"handled_by,omitempty"`
	HandledAt  *time.Time `bson:"handled_at,omitempty" json:"handled_at,omitempty"`
	AdminNotes string     `bson:"admin_notes,omitempty" json:"admin_notes,omitempty"`

	// Automatic processing
	IsAutoProcessed bool       `bson:"is_auto_processed" json:"is_auto_processed"`
	AutoProcessedAt *time.Time `bson:"auto_processed_at,omitempty" json:"auto_processed_at,omitempty"`

	// Notification tracking
	NotificationSent   bool       `bson:"notification_sent" json:"notification_sent"`
	NotificationSentAt *time.Time `bson:"notification_sent_at,omitempty" json:"notification_sent_at,omitempty"`
}

// WarningLiveAt reports whether this report is a live warning at the
// given instant: warning_sent status with an unexpired grace period.
// The time check matters; a warning the sweeper has not resolved yet is
// still dead once its expiry has passed.
func (r *Report) WarningLiveAt(now time.Time) bool {
	return r.IsWarning &&
		r.Status == ReportWarningSent &&
		r.WarningExpiry != nil &&
		r.WarningExpiry.After(now)
}
