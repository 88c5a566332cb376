// Package redisnotify publishes user-facing engine events to a Redis
// pub/sub channel as JSON. It is the delivery side of match, unlock and
// purchase notifications: push services subscribe to the channel and fan
// the events out to devices.
package redisnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/rapport/entitlement"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/plugin"
	"github.com/xraph/rapport/presence"
)

// DefaultChannel is the channel events are published to unless overridden.
const DefaultChannel = "rapport.events"

// Event types.
const (
	TypeMatchCreated        = "match.created"
	TypeUnmatched           = "match.dissolved"
	TypeSessionJoined       = "session.joined"
	TypeSubscriptionCreated = "subscription.created"
	TypePurchaseCompleted   = "purchase.completed"
	TypeChatUnlocked        = "chat.unlocked"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Notifier)(nil)
	_ plugin.OnShutdown            = (*Notifier)(nil)
	_ plugin.OnMatchCreated        = (*Notifier)(nil)
	_ plugin.OnUnmatched           = (*Notifier)(nil)
	_ plugin.OnSessionJoined       = (*Notifier)(nil)
	_ plugin.OnSubscriptionCreated = (*Notifier)(nil)
	_ plugin.OnPurchaseCompleted   = (*Notifier)(nil)
	_ plugin.OnChatUnlocked        = (*Notifier)(nil)
)

// Publisher is the subset of *redis.Client the notifier uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Event is the JSON payload published for every notification.
type Event struct {
	ID         id.EventID     `json:"id"`
	Type       string         `json:"type"`
	Users      []string       `json:"users"`
	MatchID    string         `json:"match_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Notifier is a plugin that publishes events to Redis.
type Notifier struct {
	pub     Publisher
	channel string
	clock   func() time.Time
	closer  func() error
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithChannel overrides DefaultChannel.
func WithChannel(channel string) Option {
	return func(n *Notifier) {
		if channel != "" {
			n.channel = channel
		}
	}
}

// WithClock sets the time source for OccurredAt.
func WithClock(clock func() time.Time) Option {
	return func(n *Notifier) { n.clock = clock }
}

// New creates a Notifier publishing through pub.
func New(pub Publisher, opts ...Option) *Notifier {
	n := &Notifier{
		pub:     pub,
		channel: DefaultChannel,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Dial connects to the Redis instance at url (redis:// or rediss://) and
// returns a Notifier that owns the connection. The connection is closed
// when the engine shuts down.
func Dial(ctx context.Context, url string, opts ...Option) (*Notifier, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("rapport/redisnotify: parse url: %w", err)
	}
	rdb := redis.NewClient(ropts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("rapport/redisnotify: ping: %w", err)
	}

	n := New(rdb, opts...)
	n.closer = rdb.Close
	return n, nil
}

// Name implements plugin.Plugin.
func (n *Notifier) Name() string { return "redis-notify" }

// Channel returns the channel events are published to.
func (n *Notifier) Channel() string { return n.channel }

// OnShutdown implements plugin.OnShutdown.
func (n *Notifier) OnShutdown(_ context.Context) error {
	if n.closer == nil {
		return nil
	}
	return n.closer()
}

// OnMatchCreated implements plugin.OnMatchCreated.
func (n *Notifier) OnMatchCreated(ctx context.Context, matchID id.EdgeID, a, b string) error {
	return n.publish(ctx, &Event{Type: TypeMatchCreated, Users: []string{a, b}, MatchID: matchID.String()})
}

// OnUnmatched implements plugin.OnUnmatched.
func (n *Notifier) OnUnmatched(ctx context.Context, a, b string) error {
	return n.publish(ctx, &Event{Type: TypeUnmatched, Users: []string{a, b}})
}

// OnSessionJoined implements plugin.OnSessionJoined. The host is told
// their guest arrived.
func (n *Notifier) OnSessionJoined(ctx context.Context, s *presence.Session) error {
	users := []string{s.HostUser}
	if s.GuestUser != nil {
		users = append(users, *s.GuestUser)
	}
	return n.publish(ctx, &Event{
		Type:  TypeSessionJoined,
		Users: users,
		Data:  map[string]any{"code": s.Code, "mode_id": s.ModeID},
	})
}

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (n *Notifier) OnSubscriptionCreated(ctx context.Context, g *entitlement.Grant) error {
	data := map[string]any{"plan": g.Plan}
	if g.ExpiresAt != nil {
		data["expires_at"] = *g.ExpiresAt
	}
	return n.publish(ctx, &Event{Type: TypeSubscriptionCreated, Users: []string{g.OwnerUser}, Data: data})
}

// OnPurchaseCompleted implements plugin.OnPurchaseCompleted.
func (n *Notifier) OnPurchaseCompleted(ctx context.Context, p *entitlement.Purchase) error {
	data := map[string]any{"kind": p.Kind}
	if p.Reference != "" {
		data["reference"] = p.Reference
	}
	return n.publish(ctx, &Event{Type: TypePurchaseCompleted, Users: []string{p.UserID}, Data: data})
}

// OnChatUnlocked implements plugin.OnChatUnlocked.
func (n *Notifier) OnChatUnlocked(ctx context.Context, matchID id.EdgeID, a, b string) error {
	return n.publish(ctx, &Event{Type: TypeChatUnlocked, Users: []string{a, b}, MatchID: matchID.String()})
}

func (n *Notifier) publish(ctx context.Context, evt *Event) error {
	evt.ID = id.NewEventID()
	evt.OccurredAt = n.clock().UTC()

	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("rapport/redisnotify: marshal %s: %w", evt.Type, err)
	}
	if err := n.pub.Publish(ctx, n.channel, b).Err(); err != nil {
		return fmt.Errorf("rapport/redisnotify: publish %s: %w", evt.Type, err)
	}
	return nil
}
