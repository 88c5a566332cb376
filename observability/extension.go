// Package observability provides a metrics extension that records engine
// event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/rapport/entitlement"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/interest"
	"github.com/xraph/rapport/plugin"
	"github.com/xraph/rapport/presence"
	"github.com/xraph/rapport/vibelock"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnInterestRecorded    = (*MetricsExtension)(nil)
	_ plugin.OnInterestDeclined    = (*MetricsExtension)(nil)
	_ plugin.OnMatchCreated        = (*MetricsExtension)(nil)
	_ plugin.OnUnmatched           = (*MetricsExtension)(nil)
	_ plugin.OnSessionCreated      = (*MetricsExtension)(nil)
	_ plugin.OnSessionJoined       = (*MetricsExtension)(nil)
	_ plugin.OnSessionEnded        = (*MetricsExtension)(nil)
	_ plugin.OnGrantCreated        = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCreated = (*MetricsExtension)(nil)
	_ plugin.OnBalanceChanged      = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseCompleted   = (*MetricsExtension)(nil)
	_ plugin.OnAccessChecked       = (*MetricsExtension)(nil)
	_ plugin.OnRoundCompleted      = (*MetricsExtension)(nil)
	_ plugin.OnChatUnlocked        = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide event metrics.
// Register it as an engine plugin to track matching and entitlement metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Match metrics
	InterestRecorded Counter
	InterestDeclined Counter
	MatchCreated     Counter
	MatchDissolved   Counter

	// Presence metrics
	SessionCreated  Counter
	SessionJoined   Counter
	SessionEnded    Counter
	SessionUnjoined Counter

	// Entitlement metrics
	GrantCreated         Counter
	SubscriptionCreated  Counter
	SuperLikesCredited   Counter
	SuperLikesSpent      Counter
	PurchaseCompleted    Counter
	PowerUpMultiplier    Histogram
	AccessChecks         Counter
	AccessDenied         Counter
	PremiumSubscriptions Counter

	// VibeLock metrics
	RoundCompleted Counter
	RoundScore     Histogram
	ChatUnlocked   Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		InterestRecorded: factory.Counter("rapport.interest.recorded"),
		InterestDeclined: factory.Counter("rapport.interest.declined"),
		MatchCreated:     factory.Counter("rapport.match.created"),
		MatchDissolved:   factory.Counter("rapport.match.dissolved"),

		SessionCreated:  factory.Counter("rapport.session.created"),
		SessionJoined:   factory.Counter("rapport.session.joined"),
		SessionEnded:    factory.Counter("rapport.session.ended"),
		SessionUnjoined: factory.Counter("rapport.session.ended_unjoined"),

		GrantCreated:         factory.Counter("rapport.grant.created"),
		SubscriptionCreated:  factory.Counter("rapport.subscription.created"),
		SuperLikesCredited:   factory.Counter("rapport.super_like.credited"),
		SuperLikesSpent:      factory.Counter("rapport.super_like.spent"),
		PurchaseCompleted:    factory.Counter("rapport.purchase.completed"),
		PowerUpMultiplier:    factory.Histogram("rapport.power_up.multiplier"),
		AccessChecks:         factory.Counter("rapport.access.checks"),
		AccessDenied:         factory.Counter("rapport.access.denied"),
		PremiumSubscriptions: factory.Counter("rapport.subscription.yearly"),

		RoundCompleted: factory.Counter("rapport.vibelock.round.completed"),
		RoundScore:     factory.Histogram("rapport.vibelock.round.score"),
		ChatUnlocked:   factory.Counter("rapport.vibelock.chat.unlocked"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Match hooks
// ──────────────────────────────────────────────────

// OnInterestRecorded implements plugin.OnInterestRecorded.
func (m *MetricsExtension) OnInterestRecorded(_ context.Context, _ *interest.Edge) error {
	m.InterestRecorded.Inc()
	return nil
}

// OnInterestDeclined implements plugin.OnInterestDeclined.
func (m *MetricsExtension) OnInterestDeclined(_ context.Context, _ *interest.Edge) error {
	m.InterestDeclined.Inc()
	return nil
}

// OnMatchCreated implements plugin.OnMatchCreated.
func (m *MetricsExtension) OnMatchCreated(_ context.Context, _ id.EdgeID, _, _ string) error {
	m.MatchCreated.Inc()
	return nil
}

// OnUnmatched implements plugin.OnUnmatched.
func (m *MetricsExtension) OnUnmatched(_ context.Context, _, _ string) error {
	m.MatchDissolved.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Presence hooks
// ──────────────────────────────────────────────────

// OnSessionCreated implements plugin.OnSessionCreated.
func (m *MetricsExtension) OnSessionCreated(_ context.Context, _ *presence.Session) error {
	m.SessionCreated.Inc()
	return nil
}

// OnSessionJoined implements plugin.OnSessionJoined.
func (m *MetricsExtension) OnSessionJoined(_ context.Context, _ *presence.Session) error {
	m.SessionJoined.Inc()
	return nil
}

// OnSessionEnded implements plugin.OnSessionEnded.
func (m *MetricsExtension) OnSessionEnded(_ context.Context, s *presence.Session) error {
	m.SessionEnded.Inc()
	if !s.HasGuest() {
		m.SessionUnjoined.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnGrantCreated implements plugin.OnGrantCreated.
func (m *MetricsExtension) OnGrantCreated(_ context.Context, g *entitlement.Grant) error {
	m.GrantCreated.Inc()
	if g.Kind == entitlement.KindPowerUp {
		m.PowerUpMultiplier.Observe(g.Multiplier)
	}
	return nil
}

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (m *MetricsExtension) OnSubscriptionCreated(_ context.Context, g *entitlement.Grant) error {
	m.SubscriptionCreated.Inc()
	if g.Plan == entitlement.PlanYearly {
		m.PremiumSubscriptions.Inc()
	}
	return nil
}

// OnBalanceChanged implements plugin.OnBalanceChanged.
func (m *MetricsExtension) OnBalanceChanged(_ context.Context, _, counter string, delta int64) error {
	if counter != entitlement.CounterSuperLike {
		return nil
	}
	if delta > 0 {
		m.SuperLikesCredited.Add(float64(delta))
	} else {
		m.SuperLikesSpent.Add(float64(-delta))
	}
	return nil
}

// OnPurchaseCompleted implements plugin.OnPurchaseCompleted.
func (m *MetricsExtension) OnPurchaseCompleted(_ context.Context, _ *entitlement.Purchase) error {
	m.PurchaseCompleted.Inc()
	return nil
}

// OnAccessChecked implements plugin.OnAccessChecked.
func (m *MetricsExtension) OnAccessChecked(_ context.Context, _, _ string, allowed bool) error {
	m.AccessChecks.Inc()
	if !allowed {
		m.AccessDenied.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// VibeLock hooks
// ──────────────────────────────────────────────────

// OnRoundCompleted implements plugin.OnRoundCompleted.
func (m *MetricsExtension) OnRoundCompleted(_ context.Context, r *vibelock.Round) error {
	m.RoundCompleted.Inc()
	if r.Score != nil {
		m.RoundScore.Observe(float64(*r.Score))
	}
	return nil
}

// OnChatUnlocked implements plugin.OnChatUnlocked.
func (m *MetricsExtension) OnChatUnlocked(_ context.Context, _ id.EdgeID, _, _ string) error {
	m.ChatUnlocked.Inc()
	return nil
}
