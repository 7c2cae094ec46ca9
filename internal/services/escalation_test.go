package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/peyvandapp/peyvand-backend/internal/models"
)

type fakeRuleFinder struct {
	rules map[models.ViolationType]*models.Rule
}

func (f *fakeRuleFinder) ActiveRule(ctx context.Context, vt models.ViolationType) (*models.Rule, error) {
	rule, ok := f.rules[vt]
	if !ok {
		return nil, ErrNotFound
	}
	return rule, nil
}

type fakeReportStore struct {
	mu      sync.Mutex
	reports map[string]*models.Report
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{reports: make(map[string]*models.Report)}
}

func (f *fakeReportStore) add(report *models.Report) *models.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	if report.ID.IsZero() {
		report.ID = primitive.NewObjectID()
	}
	f.reports[report.ID.Hex()] = report
	return report
}

func (f *fakeReportStore) addPending(userID string, vt models.ViolationType) *models.Report {
	return f.add(&models.Report{
		ReporterID:     "reporter",
		ReportedUserID: userID,
		ViolationType:  vt,
		Status:         models.ReportPending,
		ActionTaken:    models.ActionNone,
		CreatedAt:      time.Now(),
	})
}

func (f *fakeReportStore) GetReport(ctx context.Context, id string) (*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *report
	return &copied, nil
}

func (f *fakeReportStore) LiveWarning(ctx context.Context, userID string, vt models.ViolationType, now time.Time) (*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, report := range f.reports {
		if report.ReportedUserID == userID && report.ViolationType == vt && report.WarningLiveAt(now) {
			copied := *report
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeReportStore) CountConfirmedViolations(ctx context.Context, userID string, vt models.ViolationType, since *time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, report := range f.reports {
		if report.ReportedUserID != userID || report.ViolationType != vt {
			continue
		}
		if report.Status != models.ReportResolved && report.Status != models.ReportWarningSent {
			continue
		}
		if since != nil && report.CreatedAt.Before(*since) {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeReportStore) MarkWarningSent(ctx context.Context, id string, now, expiry time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[id]
	if !ok {
		return ErrNotFound
	}
	if report.Status != models.ReportPending {
		return ErrConcurrency
	}
	report.Status = models.ReportWarningSent
	report.IsWarning = true
	report.WarningExpiry = &expiry
	report.ActionTaken = models.ActionWarning
	return nil
}

func (f *fakeReportStore) ResolvePending(ctx context.Context, id string, now time.Time, action models.ActionType, durationHours int, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[id]
	if !ok {
		return ErrNotFound
	}
	if report.Status != models.ReportPending {
		return ErrConcurrency
	}
	report.Status = models.ReportResolved
	report.ActionTaken = action
	report.ActionDuration = durationHours
	report.ActionExpiresAt = expiresAt
	return nil
}

func (f *fakeReportStore) ResolveWarning(ctx context.Context, id string, now time.Time, resolution string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[id]
	if !ok {
		return ErrNotFound
	}
	if report.Status != models.ReportWarningSent {
		return ErrConcurrency
	}
	report.Status = models.ReportResolved
	report.Resolution = resolution
	return nil
}

func (f *fakeReportStore) SetNotificationSent(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[id]
	if !ok {
		return ErrNotFound
	}
	report.NotificationSent = true
	report.NotificationSentAt = &at
	return nil
}

type fakeOutcomeNotifier struct {
	mu            sync.Mutex
	warnings      int
	punishments   int
	lastAction    models.ActionType
	lastExpiry    *time.Time
	warningResult bool
	punishResult  bool
}

func newFakeOutcomeNotifier() *fakeOutcomeNotifier {
	return &fakeOutcomeNotifier{warningResult: true, punishResult: true}
}

func (f *fakeOutcomeNotifier) SendWarningNotification(ctx context.Context, userID string, rule *models.Rule, report *models.Report) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings++
	return f.warningResult
}

func (f *fakeOutcomeNotifier) SendPunishmentNotification(ctx context.Context, userID string, rule *models.Rule, report *models.Report, actionType models.ActionType, expiresAt *time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.punishments++
	f.lastAction = actionType
	f.lastExpiry = expiresAt
	return f.punishResult
}

func warningRule(vt models.ViolationType) *models.Rule {
	return &models.Rule{
		ID:                           primitive.NewObjectID(),
		ViolationType:                vt,
		PunishmentType:               models.PunishmentTemporary,
		PunishmentDuration:           24,
		MaxViolationsForPermanentBan: 3,
		IsActive:                     true,
		AutoSendNotification:         true,
		SendWarningBeforeAction:      true,
		WarningExpiryHours:           168,
		NotificationMessage:          "banned for {violationType}",
		WarningMessage:               "warned for {violationType}",
	}
}

func newTestEvaluator(rules *fakeRuleFinder, reports *fakeReportStore, notify *fakeOutcomeNotifier) *Evaluator {
	return NewEvaluator(rules, reports, notify, 0)
}

func TestEvaluateReportNoActiveRule(t *testing.T) {
	reports := newFakeReportStore()
	notify := newFakeOutcomeNotifier()
	evaluator := newTestEvaluator(&fakeRuleFinder{rules: map[models.ViolationType]*models.Rule{}}, reports, notify)

	report := reports.addPending("user-1", models.ViolationSpam)

	outcome, err := evaluator.EvaluateReport(context.Background(), report.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ActionNone, outcome.Action)

	stored, err := reports.GetReport(context.Background(), report.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ReportResolved, stored.Status)
	assert.Zero(t, notify.warnings)
	assert.Zero(t, notify.punishments)
}

func TestEvaluateFirstOffenseGetsWarning(t *testing.T) {
	rule := warningRule(models.ViolationSpam)
	reports := newFakeReportStore()
	notify := newFakeOutcomeNotifier()
	evaluator := newTestEvaluator(&fakeRuleFinder{rules: map[models.ViolationType]*models.Rule{
		models.ViolationSpam: rule,
	}}, reports, notify)

	now := time.Now()
	evaluator.Now = func() time.Time { return now }

	report := reports.addPending("user-1", models.ViolationSpam)

	outcome, err := evaluator.EvaluateReport(context.Background(), report.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ActionWarning, outcome.Action)
	require.NotNil(t, outcome.WarningExpiry)
	assert.Equal(t, now.Add(168*time.Hour), *outcome.WarningExpiry)
	assert.True(t, outcome.NotificationSent)

	stored, _ := reports.GetReport(context.Background(), report.ID.Hex())
	assert.Equal(t, models.ReportWarningSent, stored.Status)
	assert.True(t, stored.IsWarning)
	assert.True(t, stored.NotificationSent)
	assert.Equal(t, 1, notify.warnings)
}

func TestEvaluateRepeatOffenseEscalatesWarning(t *testing.T) {
	rule := warningRule(models.ViolationHarassment)
	reports := newFakeReportStore()
	notify := newFakeOutcomeNotifier()
	evaluator := newTestEvaluator(&fakeRuleFinder{rules: map[models.ViolationType]*models.Rule{
		models.ViolationHarassment: rule,
	}}, reports, notify)

	now := time.Now()
	evaluator.Now = func() time.Time { return now }

	// Live warning from an earlier report
	warningExpiry := now.Add(48 * time.Hour)
	warning := reports.add(&models.Report{
		ReportedUserID: "user-2",
		ViolationType:  models.ViolationHarassment,
		Status:         models.ReportWarningSent,
		IsWarning:      true,
		WarningExpiry:  &warningExpiry,
		ActionTaken:    models.ActionWarning,
		CreatedAt:      now.Add(-time.Hour),
	})

	report := reports.addPending("user-2", models.ViolationHarassment)

	outcome, err := evaluator.EvaluateReport(context.Background(), report.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ActionTemporaryBan, outcome.Action)
	require.NotNil(t, outcome.ExpiresAt)
	assert.Equal(t, now.Add(24*time.Hour), *outcome.ExpiresAt)

	// The superseded warning is resolved as escalated
	storedWarning, _ := reports.GetReport(context.Background(), warning.ID.Hex())
	assert.Equal(t, models.ReportResolved, storedWarning.Status)
	assert.Equal(t, models.ResolutionEscalated, storedWarning.Resolution)

	assert.Equal(t, 1, notify.punishments)
	assert.Equal(t, models.ActionTemporaryBan, notify.lastAction)
	assert.Equal(t, outcome.ExpiresAt, notify.lastExpiry)
}

func TestEvaluateExpiredWarningDoesNotEscalate(t *testing.T) {
	rule := warningRule(models.ViolationSpam)
	reports := newFakeReportStore()
	notify := newFakeOutcomeNotifier()
	evaluator := newTestEvaluator(&fakeRuleFinder{rules: map[models.ViolationType]*models.Rule{
		models.ViolationSpam: rule,
	}}, reports, notify)

	now := time.Now()
	evaluator.Now = func() time.Time { return now }

	// Warning whose grace period has already passed; the sweeper just
	// has not resolved it yet.
	expiredAt := now.Add(-time.Hour)
	reports.add(&models.Report{
		ReportedUserID: "user-3",
		ViolationType:  models.ViolationSpam,
		Status:         models.ReportWarningSent,
		IsWarning:      true,
		WarningExpiry:  &expiredAt,
		CreatedAt:      now.Add(-200 * time.Hour),
	})

	report := reports.addPending("user-3", models.ViolationSpam)

	outcome, err := evaluator.EvaluateReport(context.Background(), report.ID.Hex())
	require.NoError(t, err)

	// A dead warning means the new report starts the cycle over.
	assert.Equal(t, models.ActionWarning, outcome.Action)
	assert.Equal(t, 1, notify.warnings)
	assert.Zero(t, notify.punishments)
}

func TestEvaluatePermanentBanAtThreshold(t *testing.T) {
	rule := warningRule(models.ViolationSpam)
	rule.SendWarningBeforeAction = false
	rule.MaxViolationsForPermanentBan = 3
	reports := newFakeReportStore()
	notify := newFakeOutcomeNotifier()
	evaluator := newTestEvaluator(&fakeRuleFinder{rules: map[models.ViolationType]*models.Rule{
		models.ViolationSpam: rule,
	}}, reports, notify)

	now := time.Now()
	evaluator.Now = func() time.Time { return now }

	// Two prior confirmed violations; this report makes three.
	for i := 0; i < 2; i++ {
		reports.add(&models.Report{
			ReportedUserID: "user-4",
			ViolationType:  models.ViolationSpam,
			Status:         models.ReportResolved,
			ActionTaken:    models.ActionTemporaryBan,
			CreatedAt:      now.Add(-time.Duration(i+1) * 24 * time.Hour),
		})
	}

	report := reports.addPending("user-4", models.ViolationSpam)

	outcome, err := evaluator.EvaluateReport(context.Background(), report.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ActionPermanentBan, outcome.Action)
	assert.Nil(t, outcome.ExpiresAt)
}

func TestEvaluateReportIsIdempotent(t *testing.T) {
	rule := warningRule(models.ViolationSpam)
	reports := newFakeReportStore()
	notify := newFakeOutcomeNotifier()
	evaluator := newTestEvaluator(&fakeRuleFinder{rules: map[models.ViolationType]*models.Rule{
		models.ViolationSpam: rule,
	}}, reports, notify)

	report := reports.addPending("user-5", models.ViolationSpam)

	first, err := evaluator.EvaluateReport(context.Background(), report.ID.Hex())
	require.NoError(t, err)
	second, err := evaluator.EvaluateReport(context.Background(), report.ID.Hex())
	require.NoError(t, err)

	assert.Equal(t, first.Action, second.Action)
	assert.Equal(t, 1, notify.warnings, "notification must not be re-sent on re-evaluation")
}

func TestEvaluateConcurrentSubmissions(t *testing.T) {
	rule := warningRule(models.ViolationSpam)
	reports := newFakeReportStore()
	notify := newFakeOutcomeNotifier()
	evaluator := newTestEvaluator(&fakeRuleFinder{rules: map[models.ViolationType]*models.Rule{
		models.ViolationSpam: rule,
	}}, reports, notify)

	first := reports.addPending("user-6", models.ViolationSpam)
	second := reports.addPending("user-6", models.ViolationSpam)

	var wg sync.WaitGroup
	outcomes := make([]*Outcome, 2)
	for i, id := range []string{first.ID.Hex(), second.ID.Hex()} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			outcome, err := evaluator.EvaluateReport(context.Background(), id)
			assert.NoError(t, err)
			outcomes[i] = outcome
		}(i, id)
	}
	wg.Wait()

	// Exactly one warning and one escalation regardless of ordering.
	actions := map[models.ActionType]int{}
	for _, outcome := range outcomes {
		actions[outcome.Action]++
	}
	assert.Equal(t, 1, actions[models.ActionWarning])
	assert.Equal(t, 1, actions[models.ActionTemporaryBan])
}

func TestEscalateWarningManually(t *testing.T) {
	rule := warningRule(models.ViolationHarassment)
	reports := newFakeReportStore()
	notify := newFakeOutcomeNotifier()
	evaluator := newTestEvaluator(&fakeRuleFinder{rules: map[models.ViolationType]*models.Rule{
		models.ViolationHarassment: rule,
	}}, reports, notify)

	now := time.Now()
	evaluator.Now = func() time.Time { return now }

	warningExpiry := now.Add(24 * time.Hour)
	warning := reports.add(&models.Report{
		ReportedUserID: "user-7",
		ViolationType:  models.ViolationHarassment,
		Status:         models.ReportWarningSent,
		IsWarning:      true,
		WarningExpiry:  &warningExpiry,
		CreatedAt:      now.Add(-time.Hour),
	})

	outcome, err := evaluator.EscalateWarning(context.Background(), warning.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ActionTemporaryBan, outcome.Action)

	stored, _ := reports.GetReport(context.Background(), warning.ID.Hex())
	assert.Equal(t, models.ReportResolved, stored.Status)
	assert.Equal(t, models.ResolutionEscalated, stored.Resolution)
	assert.Equal(t, 1, notify.punishments)
}

func TestEscalateRejectsNonWarning(t *testing.T) {
	rule := warningRule(models.ViolationSpam)
	reports := newFakeReportStore()
	notify := newFakeOutcomeNotifier()
	evaluator := newTestEvaluator(&fakeRuleFinder{rules: map[models.ViolationType]*models.Rule{
		models.ViolationSpam: rule,
	}}, reports, notify)

	report := reports.addPending("user-8", models.ViolationSpam)

	_, err := evaluator.EscalateWarning(context.Background(), report.ID.Hex())
	assert.ErrorIs(t, err, ErrConflict)
	assert.Zero(t, notify.punishments)
}
