package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/peyvandapp/peyvand-backend/internal/models"
)

type fakeUserDirectory struct {
	mu    sync.Mutex
	users map[string]*models.User

	bannedUser   string
	bannedStatus models.UserStatus
	bannedExpiry *time.Time
	banErr       error
}

func newFakeUserDirectory() *fakeUserDirectory {
	return &fakeUserDirectory{users: make(map[string]*models.User)}
}

func (f *fakeUserDirectory) addUser(tokens ...string) *models.User {
	user := &models.User{
		ID:           uuid.New(),
		Username:     "someone",
		DisplayName:  "کاربر",
		Role:         models.RoleUser,
		Status:       models.UserActive,
		DeviceTokens: tokens,
	}
	f.users[user.ID.String()] = user
	return user
}

func (f *fakeUserDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return user, nil
}

func (f *fakeUserDirectory) SetBanState(ctx context.Context, id string, status models.UserStatus, banExpiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.banErr != nil {
		return f.banErr
	}
	f.bannedUser = id
	f.bannedStatus = status
	f.bannedExpiry = banExpiresAt
	return nil
}

func (f *fakeUserDirectory) FindAdmins(ctx context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var admins []models.User
	for _, user := range f.users {
		if user.Role == models.RoleAdmin || user.Role == models.RoleModerator {
			admins = append(admins, *user)
		}
	}
	return admins, nil
}

type fakePushSender struct {
	mu    sync.Mutex
	sends int
	err   error
}

func (f *fakePushSender) Send(ctx context.Context, deviceTokens []string, notification models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	return f.err
}

type fakeEventBus struct {
	mu     sync.Mutex
	events []models.Notification
}

func (f *fakeEventBus) PublishNotification(ctx context.Context, notification models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, notification)
	return nil
}

func testReport(userID string, vt models.ViolationType) *models.Report {
	return &models.Report{
		ID:             primitive.NewObjectID(),
		ReportedUserID: userID,
		ViolationType:  vt,
		Status:         models.ReportPending,
		CreatedAt:      time.Now(),
	}
}

func TestSendWarningNotificationRendersTemplate(t *testing.T) {
	users := newFakeUserDirectory()
	user := users.addUser("device-1")
	push := &fakePushSender{}
	bus := &fakeEventBus{}
	notifier := NewNotifier(users, push, bus, time.Second)

	rule := warningRule(models.ViolationSpam)
	rule.WarningMessage = "گزارش {violationType} علیه {username} ثبت شد: {reportReason}"
	report := testReport(user.ID.String(), models.ViolationSpam)
	report.Description = "مزاحمت مکرر"

	ok := notifier.SendWarningNotification(context.Background(), user.ID.String(), rule, report)
	require.True(t, ok)

	require.Len(t, bus.events, 1)
	event := bus.events[0]
	assert.Equal(t, models.NotificationWarning, event.Type)
	assert.Equal(t, models.PriorityHigh, event.Priority)
	assert.Equal(t, "تذکر قوانین اپلیکیشن", event.Title)
	assert.Equal(t, "گزارش هرزنامه علیه someone ثبت شد: مزاحمت مکرر", event.Message)
	assert.Equal(t, 1, push.sends)
}

func TestSendWarningNotificationMissingUser(t *testing.T) {
	users := newFakeUserDirectory()
	push := &fakePushSender{}
	bus := &fakeEventBus{}
	notifier := NewNotifier(users, push, bus, time.Second)

	rule := warningRule(models.ViolationSpam)
	report := testReport("nobody", models.ViolationSpam)

	ok := notifier.SendWarningNotification(context.Background(), "nobody", rule, report)
	assert.False(t, ok)
	assert.Empty(t, bus.events)
	assert.Zero(t, push.sends)
}

func TestSendWarningSkipsPushWhenAutoSendDisabled(t *testing.T) {
	users := newFakeUserDirectory()
	user := users.addUser("device-1")
	push := &fakePushSender{}
	bus := &fakeEventBus{}
	notifier := NewNotifier(users, push, bus, time.Second)

	rule := warningRule(models.ViolationSpam)
	rule.AutoSendNotification = false
	report := testReport(user.ID.String(), models.ViolationSpam)

	ok := notifier.SendWarningNotification(context.Background(), user.ID.String(), rule, report)
	require.True(t, ok)

	// The notification is still prepared and published for the admin
	// feed; only device delivery is suppressed.
	assert.Len(t, bus.events, 1)
	assert.Zero(t, push.sends)
}

func TestSendPunishmentAppliesBan(t *testing.T) {
	users := newFakeUserDirectory()
	user := users.addUser("device-1")
	push := &fakePushSender{}
	bus := &fakeEventBus{}
	notifier := NewNotifier(users, push, bus, time.Second)

	rule := warningRule(models.ViolationHarassment)
	report := testReport(user.ID.String(), models.ViolationHarassment)
	expiresAt := time.Now().Add(24 * time.Hour)

	ok := notifier.SendPunishmentNotification(context.Background(), user.ID.String(), rule, report,
		models.ActionTemporaryBan, &expiresAt)
	require.True(t, ok)

	assert.Equal(t, user.ID.String(), users.bannedUser)
	assert.Equal(t, models.UserBanned, users.bannedStatus)
	require.NotNil(t, users.bannedExpiry)
	assert.Equal(t, expiresAt, *users.bannedExpiry)

	require.Len(t, bus.events, 1)
	assert.Equal(t, models.NotificationPunishment, bus.events[0].Type)
	assert.Equal(t, models.PriorityCritical, bus.events[0].Priority)
}

func TestSendPunishmentPermanentBanHasNoExpiry(t *testing.T) {
	users := newFakeUserDirectory()
	user := users.addUser()
	push := &fakePushSender{}
	bus := &fakeEventBus{}
	notifier := NewNotifier(users, push, bus, time.Second)

	rule := warningRule(models.ViolationSpam)
	report := testReport(user.ID.String(), models.ViolationSpam)

	ok := notifier.SendPunishmentNotification(context.Background(), user.ID.String(), rule, report,
		models.ActionPermanentBan, nil)
	require.True(t, ok)

	assert.Equal(t, models.UserBanned, users.bannedStatus)
	assert.Nil(t, users.bannedExpiry)
}

func TestSendPunishmentBanFailureReturnsFalse(t *testing.T) {
	users := newFakeUserDirectory()
	user := users.addUser()
	users.banErr = errors.New("postgres down")
	push := &fakePushSender{}
	bus := &fakeEventBus{}
	notifier := NewNotifier(users, push, bus, time.Second)

	rule := warningRule(models.ViolationSpam)
	report := testReport(user.ID.String(), models.ViolationSpam)

	ok := notifier.SendPunishmentNotification(context.Background(), user.ID.String(), rule, report,
		models.ActionPermanentBan, nil)
	assert.False(t, ok)
}

func TestPushFailureDoesNotFailNotification(t *testing.T) {
	users := newFakeUserDirectory()
	user := users.addUser("device-1")
	push := &fakePushSender{err: errors.New("fcm unavailable")}
	bus := &fakeEventBus{}
	notifier := NewNotifier(users, push, bus, time.Second)

	rule := warningRule(models.ViolationSpam)
	report := testReport(user.ID.String(), models.ViolationSpam)

	ok := notifier.SendWarningNotification(context.Background(), user.ID.String(), rule, report)
	assert.True(t, ok, "preparation succeeds even when device delivery fails")
}

func TestTimeLeftLabel(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		expiresAt *time.Time
		want      string
	}{
		{"permanent", nil, "نامحدود"},
		{"five hours", timePtr(now.Add(5 * time.Hour)), "5 ساعت"},
		{"one day exactly", timePtr(now.Add(24 * time.Hour)), "24 ساعت"},
		{"just over a day", timePtr(now.Add(25 * time.Hour)), "2 روز"},
		{"a week", timePtr(now.Add(7 * 24 * time.Hour)), "7 روز"},
		{"half hour rounds up", timePtr(now.Add(30 * time.Minute)), "1 ساعت"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TimeLeftLabel(now, tc.expiresAt))
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestRetryingPushSenderRetries(t *testing.T) {
	inner := &fakePushSender{err: errors.New("transient")}
	sender := NewRetryingPushSender(inner, 3, time.Second)

	err := sender.Send(context.Background(), []string{"d"}, models.Notification{})
	assert.Error(t, err)
	assert.Equal(t, 3, inner.sends)
}
