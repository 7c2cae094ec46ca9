package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/peyvandapp/peyvand-backend/internal/config"
	"github.com/peyvandapp/peyvand-backend/internal/database"
	"github.com/peyvandapp/peyvand-backend/internal/models"
)

const (
	rulesCollection    = "rules"
	activeRuleCacheKey = "rules:active:"
	// Rules are read on every evaluation but change rarely; a short
	// cache keeps the decider off Mongo without holding stale rules for
	// longer than one evaluation batch cares about.
	activeRuleCacheTTL = 60 * time.Second
)

// RuleStore owns the moderation rules collection. Creation enforces the
// one-active-rule-per-violation-type invariant; reads of the active rule
// go through a short Redis cache.
type RuleStore struct {
	Defaults config.RuleDefaults
}

func NewRuleStore(defaults config.RuleDefaults) *RuleStore {
	return &RuleStore{Defaults: defaults}
}

func (s *RuleStore) col() *mongo.Collection {
	return database.DB.Collection(rulesCollection)
}

// RuleSpec is the creation payload. Zero-valued numeric and message
// fields fall back to the store's injected defaults.
type RuleSpec struct {
	Title                        string                `json:"title"`
	Description                  string                `json:"description"`
	ViolationType                models.ViolationType  `json:"violation_type"`
	PunishmentType               models.PunishmentType `json:"punishment_type"`
	PunishmentDuration           int                   `json:"punishment_duration"`
	MaxViolationsForPermanentBan int                   `json:"max_violations_for_permanent_ban"`
	IsActive                     *bool                 `json:"is_active"`
	NotificationMessage          string                `json:"notification_message"`
	AutoSendNotification         *bool                 `json:"auto_send_notification"`
	SendWarningBeforeAction      bool                  `json:"send_warning_before_action"`
	WarningMessage               string                `json:"warning_message"`
	WarningExpiryHours           int                   `json:"warning_expiry_hours"`
	EscalationThreshold          int                   `json:"escalation_threshold"`
	CreatedBy                    string                `json:"-"`
}

// RulePatch carries the updatable fields; nil means "leave unchanged".
// The violation type of an existing rule cannot be changed.
type RulePatch struct {
	Title                        *string                `json:"title"`
	Description                  *string                `json:"description"`
	PunishmentType               *models.PunishmentType `json:"punishment_type"`
	PunishmentDuration           *int                   `json:"punishment_duration"`
	MaxViolationsForPermanentBan *int                   `json:"max_violations_for_permanent_ban"`
	IsActive                     *bool                  `json:"is_active"`
	NotificationMessage          *string                `json:"notification_message"`
	AutoSendNotification         *bool                  `json:"auto_send_notification"`
	SendWarningBeforeAction      *bool                  `json:"send_warning_before_action"`
	WarningMessage               *string                `json:"warning_message"`
	WarningExpiryHours           *int                   `json:"warning_expiry_hours"`
	EscalationThreshold          *int                   `json:"escalation_threshold"`
}

// ApplyDefaults fills omitted spec fields from the injected defaults and
// returns the rule to insert.
func (s *RuleStore) ApplyDefaults(spec RuleSpec, now time.Time) models.Rule {
	rule := models.Rule{
		CreatedAt:                    now,
		UpdatedAt:                    now,
		Title:                        strings.TrimSpace(spec.Title),
		Description:                  strings.TrimSpace(spec.Description),
		ViolationType:                spec.ViolationType,
		PunishmentType:               spec.PunishmentType,
		PunishmentDuration:           spec.PunishmentDuration,
		MaxViolationsForPermanentBan: spec.MaxViolationsForPermanentBan,
		IsActive:                     true,
		NotificationMessage:          strings.TrimSpace(spec.NotificationMessage),
		AutoSendNotification:         true,
		SendWarningBeforeAction:      spec.SendWarningBeforeAction,
		WarningMessage:               strings.TrimSpace(spec.WarningMessage),
		WarningExpiryHours:           spec.WarningExpiryHours,
		EscalationThreshold:          spec.EscalationThreshold,
		CreatedBy:                    spec.CreatedBy,
	}

	if spec.IsActive != nil {
		rule.IsActive = *spec.IsActive
	}
	if spec.AutoSendNotification != nil {
		rule.AutoSendNotification = *spec.AutoSendNotification
	}
	if rule.PunishmentDuration <= 0 {
		rule.PunishmentDuration = s.Defaults.PunishmentDurationHours
	}
	if rule.MaxViolationsForPermanentBan <= 0 {
		rule.MaxViolationsForPermanentBan = s.Defaults.MaxViolationsForPermanentBan
	}
	if rule.WarningExpiryHours <= 0 {
		rule.WarningExpiryHours = s.Defaults.WarningExpiryHours
	}
	if rule.EscalationThreshold <= 0 {
		rule.EscalationThreshold = s.Defaults.EscalationThreshold
	}
	if rule.NotificationMessage == "" {
		rule.NotificationMessage = s.Defaults.NotificationMessage
	}
	if rule.WarningMessage == "" {
		rule.WarningMessage = s.Defaults.WarningMessage
	}

	return rule
}

// ValidateSpec rejects malformed creation payloads before any state is
// touched.
func ValidateSpec(spec RuleSpec) error {
	if strings.TrimSpace(spec.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(spec.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if !spec.ViolationType.Valid() {
		return fmt.Errorf("%w: unknown violation type %q", ErrValidation, spec.ViolationType)
	}
	if !spec.PunishmentType.Valid() {
		return fmt.Errorf("%w: unknown punishment type %q", ErrValidation, spec.PunishmentType)
	}
	return nil
}

// ActiveRule returns the single active rule for a violation type, or
// ErrNotFound. Inactive rules are invisible here.
func (s *RuleStore) ActiveRule(ctx context.Context, vt models.ViolationType) (*models.Rule, error) {
	cacheKey := activeRuleCacheKey + string(vt)
	if database.RedisClient != nil {
		if val, err := database.RedisClient.Get(ctx, cacheKey).Result(); err == nil {
			var rule models.Rule
			if err := json.Unmarshal([]byte(val), &rule); err == nil {
				return &rule, nil
			}
		}
	}

	var rule models.Rule
	err := s.col().FindOne(ctx, bson.M{"violation_type": vt, "is_active": true}).Decode(&rule)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if database.RedisClient != nil {
		if data, err := json.Marshal(rule); err == nil {
			// Best effort; a cache write failure only costs the next read.
			_ = database.RedisClient.Set(ctx, cacheKey, data, activeRuleCacheTTL).Err()
		}
	}

	return &rule, nil
}

func (s *RuleStore) invalidateActiveRule(ctx context.Context, vt models.ViolationType) {
	if database.RedisClient != nil {
		_ = database.RedisClient.Del(ctx, activeRuleCacheKey+string(vt)).Err()
	}
}

// CreateRule inserts a new rule, failing with ErrConflict when an active
// rule for the violation type already exists.
func (s *RuleStore) CreateRule(ctx context.Context, spec RuleSpec) (*models.Rule, error) {
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}

	var existing models.Rule
	err := s.col().FindOne(ctx, bson.M{"violation_type": spec.ViolationType, "is_active": true}).Decode(&existing)
	if err == nil {
		return nil, fmt.Errorf("%w: an active rule already exists for violation type %q", ErrConflict, spec.ViolationType)
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	rule := s.ApplyDefaults(spec, time.Now())
	rule.ID = primitive.NewObjectID()

	if _, err := s.col().InsertOne(ctx, rule); err != nil {
		return nil, err
	}
	s.invalidateActiveRule(ctx, rule.ViolationType)

	log.Printf("rule created: id=%s type=%s punishment=%s warning_first=%v",
		rule.ID.Hex(), rule.ViolationType, rule.PunishmentType, rule.SendWarningBeforeAction)
	return &rule, nil
}

// GetRule fetches one rule by id.
func (s *RuleStore) GetRule(ctx context.Context, id string) (*models.Rule, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid rule id", ErrValidation)
	}

	var rule models.Rule
	err = s.col().FindOne(ctx, bson.M{"_id": objectID}).Decode(&rule)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRules returns all rules, newest first.
func (s *RuleStore) ListRules(ctx context.Context, onlyActive bool) ([]models.Rule, error) {
	filter := bson.M{}
	if onlyActive {
		filter["is_active"] = true
	}

	cursor, err := s.col().Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rules []models.Rule
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// PatchChanges lists the field names a patch would modify, for the audit
// log line.
func PatchChanges(patch RulePatch) []string {
	var changed []string
	add := func(name string, set bool) {
		if set {
			changed = append(changed, name)
		}
	}
	add("title", patch.Title != nil)
	add("description", patch.Description != nil)
	add("punishment_type", patch.PunishmentType != nil)
	add("punishment_duration", patch.PunishmentDuration != nil)
	add("max_violations_for_permanent_ban", patch.MaxViolationsForPermanentBan != nil)
	add("is_active", patch.IsActive != nil)
	add("notification_message", patch.NotificationMessage != nil)
	add("auto_send_notification", patch.AutoSendNotification != nil)
	add("send_warning_before_action", patch.SendWarningBeforeAction != nil)
	add("warning_message", patch.WarningMessage != nil)
	add("warning_expiry_hours", patch.WarningExpiryHours != nil)
	add("escalation_threshold", patch.EscalationThreshold != nil)
	return changed
}

// UpdateRule applies a patch to an existing rule. Re-activating a rule
// fails with ErrConflict when another active rule holds the violation
// type.
func (s *RuleStore) UpdateRule(ctx context.Context, id string, patch RulePatch) (*models.Rule, error) {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.PunishmentType != nil && !patch.PunishmentType.Valid() {
		return nil, fmt.Errorf("%w: unknown punishment type %q", ErrValidation, *patch.PunishmentType)
	}

	if patch.IsActive != nil && *patch.IsActive && !rule.IsActive {
		var other models.Rule
		err := s.col().FindOne(ctx, bson.M{
			"violation_type": rule.ViolationType,
			"is_active":      true,
			"_id":            bson.M{"$ne": rule.ID},
		}).Decode(&other)
		if err == nil {
			return nil, fmt.Errorf("%w: an active rule already exists for violation type %q", ErrConflict, rule.ViolationType)
		}
		if err != mongo.ErrNoDocuments {
			return nil, err
		}
	}

	set := bson.M{"updated_at": time.Now()}
	if patch.Title != nil {
		set["title"] = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		set["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.PunishmentType != nil {
		set["punishment_type"] = *patch.PunishmentType
	}
	if patch.PunishmentDuration != nil {
		set["punishment_duration"] = *patch.PunishmentDuration
	}
	if patch.MaxViolationsForPermanentBan != nil {
		set["max_violations_for_permanent_ban"] = *patch.MaxViolationsForPermanentBan
	}
	if patch.IsActive != nil {
		set["is_active"] = *patch.IsActive
	}
	if patch.NotificationMessage != nil {
		set["notification_message"] = *patch.NotificationMessage
	}
	if patch.AutoSendNotification != nil {
		set["auto_send_notification"] = *patch.AutoSendNotification
	}
	if patch.SendWarningBeforeAction != nil {
		set["send_warning_before_action"] = *patch.SendWarningBeforeAction
	}
	if patch.WarningMessage != nil {
		set["warning_message"] = *patch.WarningMessage
	}
	if patch.WarningExpiryHours != nil {
		set["warning_expiry_hours"] = *patch.WarningExpiryHours
	}
	if patch.EscalationThreshold != nil {
		set["escalation_threshold"] = *patch.EscalationThreshold
	}

	result, err := s.col().UpdateOne(ctx, bson.M{"_id": rule.ID}, bson.M{"$set": set})
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	s.invalidateActiveRule(ctx, rule.ViolationType)

	log.Printf("rule updated: id=%s type=%s changed=%s",
		rule.ID.Hex(), rule.ViolationType, strings.Join(PatchChanges(patch), ","))

	return s.GetRule(ctx, id)
}

// ToggleWarning flips whether first violations of this rule's type get a
// warning instead of direct punishment.
func (s *RuleStore) ToggleWarning(ctx context.Context, id string, enabled bool) (*models.Rule, error) {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	_, err = s.col().UpdateOne(ctx, bson.M{"_id": rule.ID}, bson.M{"$set": bson.M{
		"send_warning_before_action": enabled,
		"updated_at":                 time.Now(),
	}})
	if err != nil {
		return nil, err
	}
	s.invalidateActiveRule(ctx, rule.ViolationType)

	log.Printf("rule updated: id=%s type=%s changed=send_warning_before_action(%v)",
		rule.ID.Hex(), rule.ViolationType, enabled)

	return s.GetRule(ctx, id)
}

// DeleteRule removes a rule, failing with ErrNotFound when absent.
func (s *RuleStore) DeleteRule(ctx context.Context, id string) error {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return err
	}

	result, err := s.col().DeleteOne(ctx, bson.M{"_id": rule.ID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	s.invalidateActiveRule(ctx, rule.ViolationType)

	log.Printf("rule deleted: id=%s type=%s", rule.ID.Hex(), rule.ViolationType)
	return nil
}
