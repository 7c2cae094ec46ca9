package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/peyvandapp/peyvand-backend/internal/models"
)

const (
	warningTitle    = "تذکر قوانین اپلیکیشن"
	punishmentTitle = "اطلاع مسدودی حساب کاربری"
	newReportTitle  = "گزارش جدید دریافت شد"

	unlimitedLabel     = "نامحدود"
	unknownReasonLabel = "نامشخص"

	dateLayout = "2006/01/02"
	timeLayout = "15:04"
)

// Notifier renders and emits warning, punishment and admin
// notifications. It is also the single writer of user ban state: the
// decider chooses the action, the dispatcher applies it, so exactly one
// component mutates the user collaborator.
type Notifier struct {
	Users  UserDirectory
	Push   PushSender
	Events EventPublisher

	LookupTimeout time.Duration
	Now           func() time.Time
}

func NewNotifier(users UserDirectory, push PushSender, events EventPublisher, lookupTimeout time.Duration) *Notifier {
	return &Notifier{
		Users:         users,
		Push:          push,
		Events:        events,
		LookupTimeout: lookupTimeout,
	}
}

func (n *Notifier) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func (n *Notifier) lookupCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := n.LookupTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// publish forwards the prepared notification to the admin feed, best
// effort.
func (n *Notifier) publish(ctx context.Context, notification models.Notification) {
	if n.Events == nil {
		return
	}
	if err := n.Events.PublishNotification(ctx, notification); err != nil {
		log.Printf("failed to publish moderation event: %v", err)
	}
}

// forwardPush delivers to the user's devices when the rule allows it
// and the user has at least one registered token. Failures are logged,
// never propagated: preparation is the contract, not delivery.
func (n *Notifier) forwardPush(ctx context.Context, user *models.User, autoSend bool, notification models.Notification) {
	if !autoSend {
		log.Printf("push skipped (auto send disabled): notification=%s user=%s", notification.ID, user.ID)
		return
	}
	if len(user.DeviceTokens) == 0 {
		return
	}
	if err := n.Push.Send(ctx, user.DeviceTokens, notification); err != nil {
		log.Printf("push delivery failed for user %s: %v (notification prepared, delivery deferred)", user.ID, err)
	}
}

// SendWarningNotification renders the rule's warning message and
// prepares a high-priority warning notification. Returns false only
// when the user cannot be resolved; push failures still return true.
func (n *Notifier) SendWarningNotification(ctx context.Context, userID string, rule *models.Rule, report *models.Report) bool {
	lookupCtx, cancel := n.lookupCtx(ctx)
	user, err := n.Users.GetUser(lookupCtx, userID)
	cancel()
	if err != nil {
		log.Printf("user not found for warning notification: %s (%v)", userID, err)
		return false
	}

	template := rule.WarningMessage
	if template == "" {
		template = rule.NotificationMessage
	}

	now := n.now()
	reason := report.Description
	if reason == "" {
		reason = unknownReasonLabel
	}

	message := Render(template, map[string]string{
		"violationType": report.ViolationType.Label(),
		"username":      user.DisplayOrUsername(),
		"date":          now.Format(dateLayout),
		"time":          now.Format(timeLayout),
		"reportReason":  reason,
	})

	notification := models.Notification{
		ID:        uuid.NewString(),
		Type:      models.NotificationWarning,
		Title:     warningTitle,
		Message:   message,
		UserID:    userID,
		ReportID:  report.ID.Hex(),
		RuleID:    rule.ID.Hex(),
		Priority:  models.PriorityHigh,
		ExpiresAt: report.WarningExpiry,
		CreatedAt: now,
	}

	log.Printf("warning notification prepared: user=%s type=%s report=%s", userID, report.ViolationType, report.ID.Hex())

	n.publish(ctx, notification)
	n.forwardPush(ctx, user, rule.AutoSendNotification, notification)

	return true
}

// TimeLeftLabel renders the remaining ban time: whole days (rounded up)
// when more than a day remains, whole hours otherwise, "نامحدود" when
// there is no expiry.
func TimeLeftLabel(now time.Time, expiresAt *time.Time) string {
	if expiresAt == nil {
		return unlimitedLabel
	}
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return unlimitedLabel
	}
	hours := int(math.Ceil(remaining.Hours()))
	days := (hours + 23) / 24
	if days > 1 {
		return fmt.Sprintf("%d روز", days)
	}
	return fmt.Sprintf("%d ساعت", hours)
}

// SendPunishmentNotification renders the rule's punishment message,
// applies the ban to the user collaborator (this is the only place ban
// state is written) and prepares a critical-priority notification.
func (n *Notifier) SendPunishmentNotification(ctx context.Context, userID string, rule *models.Rule, report *models.Report, actionType models.ActionType, expiresAt *time.Time) bool {
	lookupCtx, cancel := n.lookupCtx(ctx)
	user, err := n.Users.GetUser(lookupCtx, userID)
	cancel()
	if err != nil {
		log.Printf("user not found for punishment notification: %s (%v)", userID, err)
		return false
	}

	now := n.now()

	var timeLeft, dateLabel string
	if actionType == models.ActionTemporaryBan && expiresAt != nil {
		timeLeft = TimeLeftLabel(now, expiresAt)
		dateLabel = expiresAt.Format(dateLayout)
	} else {
		timeLeft = unlimitedLabel
		dateLabel = unlimitedLabel
	}

	message := Render(rule.NotificationMessage, map[string]string{
		"violationType":   report.ViolationType.Label(),
		"reason":          report.ViolationType.Label(),
		"username":        user.DisplayOrUsername(),
		"date":            dateLabel,
		"time_left":       timeLeft,
		"punishment_type": actionType.Label(),
	})

	notification := models.Notification{
		ID:         uuid.NewString(),
		Type:       models.NotificationPunishment,
		Title:      punishmentTitle,
		Message:    message,
		UserID:     userID,
		ReportID:   report.ID.Hex(),
		RuleID:     rule.ID.Hex(),
		Priority:   models.PriorityCritical,
		ActionType: actionType,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
	}

	// Authoritative state first: the ban must stand even when push
	// delivery fails afterwards.
	if actionType == models.ActionPermanentBan || actionType == models.ActionTemporaryBan {
		banCtx, cancel := n.lookupCtx(ctx)
		err := n.Users.SetBanState(banCtx, userID, models.UserBanned, expiresAt)
		cancel()
		if err != nil {
			log.Printf("failed to apply ban to user %s: %v", userID, err)
			return false
		}
		log.Printf("ban applied: user=%s action=%s expires=%v", userID, actionType, expiresAt)
	}

	log.Printf("punishment notification prepared: user=%s action=%s report=%s", userID, actionType, report.ID.Hex())

	n.publish(ctx, notification)
	n.forwardPush(ctx, user, rule.AutoSendNotification, notification)

	return true
}

// NotifyAdminsAboutReport fans a normal-priority notification out to
// every active admin or moderator with a registered device. A failure
// for one admin never aborts the rest.
func (n *Notifier) NotifyAdminsAboutReport(ctx context.Context, report *models.Report, reporterInfo string) bool {
	lookupCtx, cancel := n.lookupCtx(ctx)
	admins, err := n.Users.FindAdmins(lookupCtx)
	cancel()
	if err != nil {
		log.Printf("failed to load admins for report notification: %v", err)
		return false
	}

	now := n.now()
	message := fmt.Sprintf("گزارش جدیدی با موضوع «%s» دریافت شد. %s", report.ViolationType.Label(), reporterInfo)

	notification := models.Notification{
		ID:        uuid.NewString(),
		Type:      models.NotificationNewReport,
		Title:     newReportTitle,
		Message:   message,
		ReportID:  report.ID.Hex(),
		Priority:  models.PriorityNormal,
		CreatedAt: now,
	}

	n.publish(ctx, notification)

	for _, admin := range admins {
		if len(admin.DeviceTokens) == 0 {
			continue
		}
		perAdmin := notification
		perAdmin.UserID = admin.ID.String()
		if err := n.Push.Send(ctx, admin.DeviceTokens, perAdmin); err != nil {
			log.Printf("failed to notify admin %s about report %s: %v", admin.ID, report.ID.Hex(), err)
		}
	}

	log.Printf("admin notification sent for report %s to %d admins", report.ID.Hex(), len(admins))
	return true
}
