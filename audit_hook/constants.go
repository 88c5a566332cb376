package audithook

// Action constants for audit events.
const (
	// Match actions
	ActionInterestRecorded = "interest.recorded"
	ActionInterestDeclined = "interest.declined"
	ActionMatchCreated     = "match.created"
	ActionMatchDissolved   = "match.dissolved"

	// Presence actions
	ActionSessionCreated = "session.created"
	ActionSessionJoined  = "session.joined"
	ActionSessionEnded   = "session.ended"

	// Entitlement actions
	ActionGrantCreated        = "grant.created"
	ActionSubscriptionCreated = "subscription.created"
	ActionBalanceCredited     = "balance.credited"
	ActionBalanceDebited      = "balance.debited"
	ActionPurchaseCompleted   = "purchase.completed"

	// Access actions
	ActionAccessGranted = "access.granted"
	ActionAccessDenied  = "access.denied"

	// VibeLock actions
	ActionRoundCompleted = "round.completed"
	ActionChatUnlocked   = "chat.unlocked"
)

// Resource constants for audit events.
const (
	ResourceEdge    = "edge"
	ResourceMatch   = "match"
	ResourceSession = "session"
	ResourceGrant   = "grant"
	ResourceBalance = "balance"
	ResourceAccess  = "access"
	ResourceRound   = "round"
)

// Category constants for audit events.
const (
	CategoryMatching    = "matching"
	CategoryPresence    = "presence"
	CategoryEntitlement = "entitlement"
	CategoryPayment     = "payment"
	CategoryAccess      = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
