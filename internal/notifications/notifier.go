// Package notifications provides real-time notification delivery and management.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"quill/internal/models"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes notification payloads into Redis channels. All methods
// are no-ops when Redis is not configured; persisted notification rows are
// the source of truth, pub/sub only accelerates delivery.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func userChannel(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// PublishNotification sends a stored notification to its recipient's channel.
func (n *Notifier) PublishNotification(ctx context.Context, notification *models.Notification) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, userChannel(notification.RecipientID), payload).Err()
}

// PublishUser sends a raw payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, userChannel(userID), payload).Err()
}

// StartPatternSubscriber subscribes to pattern `notifications:user:*` and
// calls onMessage for each incoming message. onMessage receives channel and
// payload.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "notifications:user:*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.Error("panic in pattern subscriber", "panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
