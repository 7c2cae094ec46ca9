package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ViolationType string

const (
	ViolationInappropriateContent  ViolationType = "inappropriate_content"
	ViolationHarassment            ViolationType = "harassment"
	ViolationSpam                  ViolationType = "spam"
	ViolationFakeProfile           ViolationType = "fake_profile"
	ViolationInappropriateLanguage ViolationType = "inappropriate_language"
	ViolationImmoralBehavior       ViolationType = "immoral_behavior"
	ViolationOther                 ViolationType = "other"
)

// ViolationTypes lists every valid violation type key.
var ViolationTypes = []ViolationType{
	ViolationInappropriateContent,
	ViolationHarassment,
	ViolationSpam,
	ViolationFakeProfile,
	ViolationInappropriateLanguage,
	ViolationImmoralBehavior,
	ViolationOther,
}

// Valid reports whether vt is one of the known violation type keys.
func (vt ViolationType) Valid() bool {
	for _, t := range ViolationTypes {
		if vt == t {
			return true
		}
	}
	return false
}

var violationTypeLabels = map[ViolationType]string{
	ViolationInappropriateContent:  "محتوای نامناسب",
	ViolationHarassment:            "آزار و اذیت",
	ViolationSpam:                  "هرزنامه",
	ViolationFakeProfile:           "پروفایل جعلی",
	ViolationInappropriateLanguage: "زبان نامناسب",
	ViolationImmoralBehavior:       "رفتار غیراخلاقی",
	ViolationOther:                 "سایر",
}

// Label returns the Persian display string for the violation type.
// Unknown keys render as the raw key so message building never fails.
func (vt ViolationType) Label() string {
	if label, ok := violationTypeLabels[vt]; ok {
		return label
	}
	return string(vt)
}

type PunishmentType string

const (
	PunishmentTemporary PunishmentType = "temporary"
	PunishmentPermanent PunishmentType = "permanent"
)

func (pt PunishmentType) Valid() bool {
	return pt == PunishmentTemporary || pt == PunishmentPermanent
}

// Rule configures how one violation type is warned about and punished.
// At most one active rule may exist per violation type.
type Rule struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	Title         string        `bson:"title" json:"title"`
	Description   string        `bson:"description" json:"description"`
	ViolationType ViolationType `bson:"violation_type" json:"violation_type"`

	PunishmentType               PunishmentType `bson:"punishment_type" json:"punishment_type"`
	PunishmentDuration           int            `bson:"punishment_duration" json:"punishment_duration"` // hours, temporary only
	MaxViolationsForPermanentBan int            `bson:"max_violations_for_permanent_ban" json:"max_violations_for_permanent_ban"`

	IsActive             bool   `bson:"is_active" json:"is_active"`
	NotificationMessage  string `bson:"notification_message" json:"notification_message"`
	AutoSendNotification bool   `bson:"auto_send_notification" json:"auto_send_notification"`

	// Warning system configuration
	SendWarningBeforeAction bool   `bson:"send_warning_before_action" json:"send_warning_before_action"`
	WarningMessage          string `bson:"warning_message" json:"warning_message"`
	WarningExpiryHours      int    `bson:"warning_expiry_hours" json:"warning_expiry_hours"`
	EscalationThreshold     int    `bson:"escalation_threshold" json:"escalation_threshold"`

	CreatedBy string `bson:"created_by,omitempty" json:"created_by,omitempty"`
}
