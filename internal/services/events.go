package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/peyvandapp/peyvand-backend/internal/database"
	"github.com/peyvandapp/peyvand-backend/internal/models"
)

const moderationEventsChannel = "moderation:events"

// EventPublisher fans moderation notifications out to listening admin
// dashboards.
type EventPublisher interface {
	PublishNotification(ctx context.Context, notification models.Notification) error
}

// RedisEventBus publishes every prepared notification to a Redis
// channel so all instances can feed their connected admin sockets.
type RedisEventBus struct{}

func NewRedisEventBus() *RedisEventBus {
	return &RedisEventBus{}
}

func (b *RedisEventBus) PublishNotification(ctx context.Context, notification models.Notification) error {
	if database.RedisClient == nil {
		return nil
	}
	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return database.RedisClient.Publish(ctx, moderationEventsChannel, data).Err()
}

// AdminConn is the minimal interface an admin feed connection must
// satisfy.
type AdminConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// adminFeedHub is a registry of connected admin dashboard sockets.
type adminFeedHub struct {
	mu          sync.RWMutex
	connections map[string]AdminConn
}

var (
	feedHub     = &adminFeedHub{connections: make(map[string]AdminConn)}
	feedStarted sync.Once
)

// RegisterAdminConnection registers or replaces an admin's feed
// connection, keyed by admin id.
func RegisterAdminConnection(adminID string, conn AdminConn) {
	feedHub.mu.Lock()
	feedHub.connections[adminID] = conn
	feedHub.mu.Unlock()
}

// UnregisterAdminConnection removes an admin's feed connection.
func UnregisterAdminConnection(adminID string) {
	feedHub.mu.Lock()
	delete(feedHub.connections, adminID)
	feedHub.mu.Unlock()
}

// FanOutNotification sends a notification to all locally connected
// admin dashboards, best effort.
func FanOutNotification(notification models.Notification) {
	feedHub.mu.RLock()
	defer feedHub.mu.RUnlock()

	for adminID, conn := range feedHub.connections {
		go func(id string, c AdminConn) {
			if err := c.WriteJSON(notification); err != nil {
				log.Printf("error writing moderation event to admin %s: %v", id, err)
			}
		}(adminID, conn)
	}
}

// StartEventSubscriber ensures a single shared Redis listener per
// instance for the admin feed.
func StartEventSubscriber(ctx context.Context) {
	feedStarted.Do(func() {
		go runEventSubscriber(ctx)
	})
}

func runEventSubscriber(ctx context.Context) {
	client := database.RedisClient
	if client == nil {
		log.Println("Redis client not initialized; moderation event subscriber not started")
		return
	}

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := client.Subscribe(ctx, moderationEventsChannel)
			defer pubsub.Close()

			log.Printf("✅ Moderation event subscriber started (channel: %s)", moderationEventsChannel)

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("moderation event subscriber error: %v", err)
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var notification models.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &notification); err != nil {
					log.Printf("failed to unmarshal moderation event: %v", err)
					continue
				}

				FanOutNotification(notification)
			}
		}()
	}
}
