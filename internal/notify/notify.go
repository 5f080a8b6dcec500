// Package notify hands user-facing events to the notification dispatcher.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	EmailVerification  = "email.verification"
	ApplicationCreated = "application.created"
	MissionAssigned    = "mission.assigned"
	MissionCompleted   = "mission.completed"
	PaymentCompleted   = "payment.completed"
	PaymentRefunded    = "payment.refunded"
	ReviewReceived     = "review.received"
	MessageReceived    = "message.received"
)

type Event struct {
	Type   string         `json:"type"`
	UserID uuid.UUID      `json:"user_id"`
	Data   map[string]any `json:"data,omitempty"`
	At     time.Time      `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Redis publishes each event on notifications:<user id>.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func Channel(userID uuid.UUID) string {
	return "notifications:" + userID.String()
}

func (r *Redis) Notify(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, Channel(e.UserID), b).Err()
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
