// Package audithook bridges engine events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// an audit library directly. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/rapport/entitlement"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/interest"
	"github.com/xraph/rapport/plugin"
	"github.com/xraph/rapport/presence"
	"github.com/xraph/rapport/vibelock"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnInterestRecorded    = (*Extension)(nil)
	_ plugin.OnInterestDeclined    = (*Extension)(nil)
	_ plugin.OnMatchCreated        = (*Extension)(nil)
	_ plugin.OnUnmatched           = (*Extension)(nil)
	_ plugin.OnSessionCreated      = (*Extension)(nil)
	_ plugin.OnSessionJoined       = (*Extension)(nil)
	_ plugin.OnSessionEnded        = (*Extension)(nil)
	_ plugin.OnGrantCreated        = (*Extension)(nil)
	_ plugin.OnSubscriptionCreated = (*Extension)(nil)
	_ plugin.OnBalanceChanged      = (*Extension)(nil)
	_ plugin.OnPurchaseCompleted   = (*Extension)(nil)
	_ plugin.OnAccessChecked       = (*Extension)(nil)
	_ plugin.OnRoundCompleted      = (*Extension)(nil)
	_ plugin.OnChatUnlocked        = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges engine events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Match hooks
// ──────────────────────────────────────────────────

// OnInterestRecorded implements plugin.OnInterestRecorded.
func (e *Extension) OnInterestRecorded(ctx context.Context, edge *interest.Edge) error {
	return e.record(ctx, ActionInterestRecorded, SeverityInfo, OutcomeSuccess,
		ResourceEdge, edge.ID.String(), CategoryMatching, nil,
		"from", edge.FromUser,
		"to", edge.ToUser,
		"status", string(edge.Status),
	)
}

// OnInterestDeclined implements plugin.OnInterestDeclined.
func (e *Extension) OnInterestDeclined(ctx context.Context, edge *interest.Edge) error {
	return e.record(ctx, ActionInterestDeclined, SeverityInfo, OutcomeSuccess,
		ResourceEdge, edge.ID.String(), CategoryMatching, nil,
		"from", edge.FromUser,
		"to", edge.ToUser,
	)
}

// OnMatchCreated implements plugin.OnMatchCreated.
func (e *Extension) OnMatchCreated(ctx context.Context, matchID id.EdgeID, a, b string) error {
	return e.record(ctx, ActionMatchCreated, SeverityInfo, OutcomeSuccess,
		ResourceMatch, matchID.String(), CategoryMatching, nil,
		"user_a", a,
		"user_b", b,
	)
}

// OnUnmatched implements plugin.OnUnmatched.
func (e *Extension) OnUnmatched(ctx context.Context, a, b string) error {
	return e.record(ctx, ActionMatchDissolved, SeverityInfo, OutcomeSuccess,
		ResourceMatch, interest.PairKey(a, b), CategoryMatching, nil,
		"user_a", a,
		"user_b", b,
	)
}

// ──────────────────────────────────────────────────
// Presence hooks
// ──────────────────────────────────────────────────

// OnSessionCreated implements plugin.OnSessionCreated.
func (e *Extension) OnSessionCreated(ctx context.Context, s *presence.Session) error {
	return e.record(ctx, ActionSessionCreated, SeverityInfo, OutcomeSuccess,
		ResourceSession, s.Code, CategoryPresence, nil,
		"host", s.HostUser,
		"mode", s.ModeID,
	)
}

// OnSessionJoined implements plugin.OnSessionJoined.
func (e *Extension) OnSessionJoined(ctx context.Context, s *presence.Session) error {
	guest := ""
	if s.GuestUser != nil {
		guest = *s.GuestUser
	}
	return e.record(ctx, ActionSessionJoined, SeverityInfo, OutcomeSuccess,
		ResourceSession, s.Code, CategoryPresence, nil,
		"host", s.HostUser,
		"guest", guest,
	)
}

// OnSessionEnded implements plugin.OnSessionEnded.
func (e *Extension) OnSessionEnded(ctx context.Context, s *presence.Session) error {
	return e.record(ctx, ActionSessionEnded, SeverityInfo, OutcomeSuccess,
		ResourceSession, s.Code, CategoryPresence, nil,
		"host", s.HostUser,
		"had_guest", s.HasGuest(),
	)
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnGrantCreated implements plugin.OnGrantCreated.
func (e *Extension) OnGrantCreated(ctx context.Context, g *entitlement.Grant) error {
	kv := []any{
		"owner", g.OwnerUser,
		"kind", string(g.Kind),
		"scope", g.ScopeKey,
	}
	if g.ExpiresAt != nil {
		kv = append(kv, "expires_at", g.ExpiresAt.UTC())
	}
	return e.record(ctx, ActionGrantCreated, SeverityInfo, OutcomeSuccess,
		ResourceGrant, g.ID.String(), CategoryEntitlement, nil, kv...)
}

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (e *Extension) OnSubscriptionCreated(ctx context.Context, g *entitlement.Grant) error {
	return e.record(ctx, ActionSubscriptionCreated, SeverityInfo, OutcomeSuccess,
		ResourceGrant, g.ID.String(), CategoryEntitlement, nil,
		"owner", g.OwnerUser,
		"plan", string(g.Plan),
	)
}

// OnBalanceChanged implements plugin.OnBalanceChanged.
func (e *Extension) OnBalanceChanged(ctx context.Context, owner, counter string, delta int64) error {
	action := ActionBalanceCredited
	if delta < 0 {
		action = ActionBalanceDebited
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceBalance, owner+"/"+counter, CategoryEntitlement, nil,
		"owner", owner,
		"counter", counter,
		"delta", delta,
	)
}

// OnPurchaseCompleted implements plugin.OnPurchaseCompleted.
func (e *Extension) OnPurchaseCompleted(ctx context.Context, p *entitlement.Purchase) error {
	return e.record(ctx, ActionPurchaseCompleted, SeverityInfo, OutcomeSuccess,
		ResourceGrant, p.Reference, CategoryPayment, nil,
		"user", p.UserID,
		"kind", string(p.Kind),
	)
}

// OnAccessChecked implements plugin.OnAccessChecked. Only denials are
// audited unless ActionAccessGranted is explicitly enabled.
func (e *Extension) OnAccessChecked(ctx context.Context, user, target string, allowed bool) error {
	if allowed {
		if e.enabled == nil || !e.enabled[ActionAccessGranted] {
			return nil
		}
		return e.record(ctx, ActionAccessGranted, SeverityInfo, OutcomeSuccess,
			ResourceAccess, user, CategoryAccess, nil,
			"target", target,
		)
	}
	return e.record(ctx, ActionAccessDenied, SeverityInfo, OutcomeFailure,
		ResourceAccess, user, CategoryAccess, nil,
		"target", target,
	)
}

// ──────────────────────────────────────────────────
// VibeLock hooks
// ──────────────────────────────────────────────────

// OnRoundCompleted implements plugin.OnRoundCompleted.
func (e *Extension) OnRoundCompleted(ctx context.Context, r *vibelock.Round) error {
	score := ""
	if r.Score != nil {
		score = strconv.Itoa(*r.Score)
	}
	return e.record(ctx, ActionRoundCompleted, SeverityInfo, OutcomeSuccess,
		ResourceRound, r.ID.String(), CategoryMatching, nil,
		"match", r.MatchID.String(),
		"question", r.Question.ID,
		"score", score,
	)
}

// OnChatUnlocked implements plugin.OnChatUnlocked.
func (e *Extension) OnChatUnlocked(ctx context.Context, matchID id.EdgeID, a, b string) error {
	return e.record(ctx, ActionChatUnlocked, SeverityInfo, OutcomeSuccess,
		ResourceMatch, matchID.String(), CategoryMatching, nil,
		"user_a", a,
		"user_b", b,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
