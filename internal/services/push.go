package services

import (
	"context"
	"log"
	"time"

	"github.com/peyvandapp/peyvand-backend/internal/models"
)

// PushSender is the push-transport collaborator. Delivery is best
// effort; the pipeline only prepares payloads and never propagates
// transport failures into report or user state.
type PushSender interface {
	Send(ctx context.Context, deviceTokens []string, notification models.Notification) error
}

// LogPushSender logs prepared notifications instead of delivering them.
// It stands in for FCM/APNS until a real transport is configured.
type LogPushSender struct{}

func (LogPushSender) Send(ctx context.Context, deviceTokens []string, notification models.Notification) error {
	log.Printf("push notification prepared: type=%s priority=%s devices=%d title=%q",
		notification.Type, notification.Priority, len(deviceTokens), notification.Title)
	return nil
}

// RetryingPushSender bounds each attempt with a timeout and retries a
// fixed number of times before giving up.
type RetryingPushSender struct {
	Sender   PushSender
	Attempts int
	Timeout  time.Duration
}

func NewRetryingPushSender(sender PushSender, attempts int, timeout time.Duration) *RetryingPushSender {
	if attempts < 1 {
		attempts = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RetryingPushSender{Sender: sender, Attempts: attempts, Timeout: timeout}
}

func (s *RetryingPushSender) Send(ctx context.Context, deviceTokens []string, notification models.Notification) error {
	var lastErr error
	for attempt := 1; attempt <= s.Attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.Timeout)
		lastErr = s.Sender.Send(attemptCtx, deviceTokens, notification)
		cancel()
		if lastErr == nil {
			return nil
		}
		log.Printf("push attempt %d/%d failed: %v", attempt, s.Attempts, lastErr)
	}
	return lastErr
}
