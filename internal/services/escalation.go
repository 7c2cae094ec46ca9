package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/peyvandapp/peyvand-backend/internal/models"
)

// RuleFinder resolves the single active rule for a violation type.
type RuleFinder interface {
	ActiveRule(ctx context.Context, vt models.ViolationType) (*models.Rule, error)
}

// ReportStore is the report persistence the evaluator depends on.
type ReportStore interface {
	GetReport(ctx context.Context, id string) (*models.Report, error)
	LiveWarning(ctx context.Context, userID string, vt models.ViolationType, now time.Time) (*models.Report, error)
	CountConfirmedViolations(ctx context.Context, userID string, vt models.ViolationType, since *time.Time) (int64, error)
	MarkWarningSent(ctx context.Context, id string, now, expiry time.Time) error
	ResolvePending(ctx context.Context, id string, now time.Time, action models.ActionType, durationHours int, expiresAt *time.Time) error
	ResolveWarning(ctx context.Context, id string, now time.Time, resolution string) error
	SetNotificationSent(ctx context.Context, id string, at time.Time) error
}

// OutcomeNotifier dispatches the evaluator's decisions. Both methods
// report whether the notification could be prepared; the punishment
// variant is also where the ban itself is applied.
type OutcomeNotifier interface {
	SendWarningNotification(ctx context.Context, userID string, rule *models.Rule, report *models.Report) bool
	SendPunishmentNotification(ctx context.Context, userID string, rule *models.Rule, report *models.Report, actionType models.ActionType, expiresAt *time.Time) bool
}

// Outcome is what an evaluation decided for one report.
type Outcome struct {
	Action           models.ActionType `json:"action"`
	ExpiresAt        *time.Time        `json:"expires_at,omitempty"`
	WarningExpiry    *time.Time        `json:"warning_expiry,omitempty"`
	NotificationSent bool              `json:"notification_sent"`
}

// Evaluator turns a pending report into a warning or a punishment,
// following the active rule for its violation type. Evaluations of the
// same (user, violation type) pair are serialized through a key lock,
// and every status transition is a conditional update, so a report is
// decided exactly once even under concurrent submissions.
type Evaluator struct {
	Rules   RuleFinder
	Reports ReportStore
	Notify  OutcomeNotifier
	Locks   *KeyLock

	// CountWindowDays bounds the violation count used for the permanent
	// ban override; zero counts the user's lifetime history.
	CountWindowDays int

	Now func() time.Time
}

func NewEvaluator(rules RuleFinder, reports ReportStore, notify OutcomeNotifier, countWindowDays int) *Evaluator {
	return &Evaluator{
		Rules:           rules,
		Reports:         reports,
		Notify:          notify,
		Locks:           NewKeyLock(),
		CountWindowDays: countWindowDays,
	}
}

func (e *Evaluator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Evaluator) countSince(now time.Time) *time.Time {
	if e.CountWindowDays <= 0 {
		return nil
	}
	since := now.AddDate(0, 0, -e.CountWindowDays)
	return &since
}

// recordedOutcome reconstructs the outcome of an already-decided
// report, so re-evaluation is idempotent.
func recordedOutcome(report *models.Report) *Outcome {
	return &Outcome{
		Action:           report.ActionTaken,
		ExpiresAt:        report.ActionExpiresAt,
		WarningExpiry:    report.WarningExpiry,
		NotificationSent: report.NotificationSent,
	}
}

// EvaluateReport decides one report. Safe to call more than once for
// the same report: a report that has already left pending returns its
// recorded outcome untouched.
func (e *Evaluator) EvaluateReport(ctx context.Context, reportID string) (*Outcome, error) {
	report, err := e.Reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	unlock := e.Locks.Lock(report.ReportedUserID + "|" + string(report.ViolationType))
	defer unlock()

	// Re-read under the lock; another evaluation may have decided this
	// report while we waited.
	report, err = e.Reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	outcome, err := e.evaluateLocked(ctx, report)
	if errors.Is(err, ErrConcurrency) {
		// Lost a transition race to a writer outside the lock (another
		// instance). The report's new state is authoritative; re-read
		// and report it.
		report, rerr := e.Reports.GetReport(ctx, reportID)
		if rerr != nil {
			return nil, rerr
		}
		if report.Status != models.ReportPending {
			return recordedOutcome(report), nil
		}
		return e.evaluateLocked(ctx, report)
	}
	return outcome, err
}

func (e *Evaluator) evaluateLocked(ctx context.Context, report *models.Report) (*Outcome, error) {
	if report.Status != models.ReportPending {
		return recordedOutcome(report), nil
	}

	now := e.now()

	rule, err := e.Rules.ActiveRule(ctx, report.ViolationType)
	if errors.Is(err, ErrNotFound) {
		// No active rule means no enforcement: resolve with no action so
		// the report does not linger pending.
		if err := e.Reports.ResolvePending(ctx, report.ID.Hex(), now, models.ActionNone, 0, nil); err != nil {
			return nil, err
		}
		log.Printf("report resolved without action (no active rule): report=%s type=%s",
			report.ID.Hex(), report.ViolationType)
		return &Outcome{Action: models.ActionNone}, nil
	}
	if err != nil {
		return nil, err
	}

	liveWarning, err := e.Reports.LiveWarning(ctx, report.ReportedUserID, report.ViolationType, now)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	hasLiveWarning := liveWarning != nil && liveWarning.WarningLiveAt(now)

	if rule.SendWarningBeforeAction && !hasLiveWarning {
		return e.applyWarning(ctx, report, rule, now)
	}
	return e.applyPunishment(ctx, report, rule, liveWarning, now)
}

func (e *Evaluator) applyWarning(ctx context.Context, report *models.Report, rule *models.Rule, now time.Time) (*Outcome, error) {
	expiry := now.Add(time.Duration(rule.WarningExpiryHours) * time.Hour)

	if err := e.Reports.MarkWarningSent(ctx, report.ID.Hex(), now, expiry); err != nil {
		return nil, err
	}
	report.Status = models.ReportWarningSent
	report.IsWarning = true
	report.WarningExpiry = &expiry
	report.ActionTaken = models.ActionWarning

	log.Printf("warning issued: user=%s type=%s report=%s expires=%s",
		report.ReportedUserID, report.ViolationType, report.ID.Hex(), expiry.Format(time.RFC3339))

	sent := e.Notify.SendWarningNotification(ctx, report.ReportedUserID, rule, report)
	if sent {
		if err := e.Reports.SetNotificationSent(ctx, report.ID.Hex(), now); err != nil {
			log.Printf("failed to record notification for report %s: %v", report.ID.Hex(), err)
		}
	}

	return &Outcome{
		Action:           models.ActionWarning,
		WarningExpiry:    &expiry,
		NotificationSent: sent,
	}, nil
}

func (e *Evaluator) applyPunishment(ctx context.Context, report *models.Report, rule *models.Rule, liveWarning *models.Report, now time.Time) (*Outcome, error) {
	count, err := e.Reports.CountConfirmedViolations(ctx, report.ReportedUserID, report.ViolationType, e.countSince(now))
	if err != nil {
		return nil, err
	}

	action, durationHours, expiresAt := e.decideAction(rule, count+1, now)

	if err := e.Reports.ResolvePending(ctx, report.ID.Hex(), now, action, durationHours, expiresAt); err != nil {
		return nil, err
	}
	report.Status = models.ReportResolved
	report.ActionTaken = action
	report.ActionDuration = durationHours
	report.ActionExpiresAt = expiresAt

	// A punishment supersedes the warning that preceded it.
	if liveWarning != nil {
		if err := e.Reports.ResolveWarning(ctx, liveWarning.ID.Hex(), now, models.ResolutionEscalated); err != nil {
			log.Printf("failed to resolve escalated warning %s: %v", liveWarning.ID.Hex(), err)
		}
	}

	log.Printf("punishment decided: user=%s type=%s action=%s violations=%d report=%s",
		report.ReportedUserID, report.ViolationType, action, count+1, report.ID.Hex())

	sent := e.Notify.SendPunishmentNotification(ctx, report.ReportedUserID, rule, report, action, expiresAt)
	if sent {
		if err := e.Reports.SetNotificationSent(ctx, report.ID.Hex(), now); err != nil {
			log.Printf("failed to record notification for report %s: %v", report.ID.Hex(), err)
		}
	}

	return &Outcome{
		Action:           action,
		ExpiresAt:        expiresAt,
		NotificationSent: sent,
	}, nil
}

// decideAction maps a rule and the user's violation count (including
// the report being decided) to a concrete action. Reaching the rule's
// repeat-offender cap upgrades any punishment to a permanent ban.
func (e *Evaluator) decideAction(rule *models.Rule, violations int64, now time.Time) (models.ActionType, int, *time.Time) {
	if rule.MaxViolationsForPermanentBan > 0 && violations >= int64(rule.MaxViolationsForPermanentBan) {
		return models.ActionPermanentBan, 0, nil
	}
	if rule.PunishmentType == models.PunishmentPermanent {
		return models.ActionPermanentBan, 0, nil
	}
	expiresAt := now.Add(time.Duration(rule.PunishmentDuration) * time.Hour)
	return models.ActionTemporaryBan, rule.PunishmentDuration, &expiresAt
}

// EscalateWarning is the manual admin path: it converts a live warning
// straight into the rule's punishment without waiting for a repeat
// report. The warning itself already counts as a confirmed violation,
// so no extra increment is applied.
func (e *Evaluator) EscalateWarning(ctx context.Context, reportID string) (*Outcome, error) {
	report, err := e.Reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	unlock := e.Locks.Lock(report.ReportedUserID + "|" + string(report.ViolationType))
	defer unlock()

	report, err = e.Reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status != models.ReportWarningSent {
		return nil, fmt.Errorf("%w: report %s is %s, only an open warning can be escalated",
			ErrConflict, reportID, report.Status)
	}

	now := e.now()

	rule, err := e.Rules.ActiveRule(ctx, report.ViolationType)
	if err != nil {
		return nil, err
	}

	count, err := e.Reports.CountConfirmedViolations(ctx, report.ReportedUserID, report.ViolationType, e.countSince(now))
	if err != nil {
		return nil, err
	}

	action, _, expiresAt := e.decideAction(rule, count, now)

	if err := e.Reports.ResolveWarning(ctx, reportID, now, models.ResolutionEscalated); err != nil {
		return nil, err
	}
	report.Status = models.ReportResolved
	report.ActionTaken = action
	report.ActionExpiresAt = expiresAt

	log.Printf("warning escalated: user=%s type=%s action=%s report=%s",
		report.ReportedUserID, report.ViolationType, action, reportID)

	sent := e.Notify.SendPunishmentNotification(ctx, report.ReportedUserID, rule, report, action, expiresAt)
	if sent {
		if err := e.Reports.SetNotificationSent(ctx, reportID, now); err != nil {
			log.Printf("failed to record notification for report %s: %v", reportID, err)
		}
	}

	return &Outcome{
		Action:           action,
		ExpiresAt:        expiresAt,
		NotificationSent: sent,
	}, nil
}
