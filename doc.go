// Package rapport is the matching and entitlement core of a dating
// application.
//
// Rapport is a library, not a service. The HTTP or RPC surface, auth and
// payment verification live in the host application; rapport owns the
// state transitions that must stay consistent under concurrent requests:
//
//   - Mutual matching from directed interest edges
//   - Two-party presence pairing through short public codes
//   - An entitlement ledger of subscriptions, chat unlocks, timed passes,
//     power-ups and consumable counters
//   - An access resolver deciding who may message whom
//   - VibeLock, a synchronized question round that can unlock chat
//
// Every atomic transition is a single call on a store.Store, implemented
// as a conditional write or transaction by each backend (memory, sqlite,
// postgres, mongo).
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/rapport"
//	    "github.com/xraph/rapport/store/postgres"
//	)
//
//	st, err := postgres.Open(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine := rapport.New(st, rapport.WithLogger(logger))
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Matching
//
// Interest is directed. The second of two mutual likes forms the match in
// the same transaction that records it:
//
//	engine.RecordInterest(ctx, "alice", "bob")
//	res, _ := engine.RecordInterest(ctx, "bob", "alice")
//	// res.IsNewMatch == true, res.MatchID is alice's edge
//
// # Entitlements
//
// All grant kinds share one record, entitlement.Grant, tagged by Kind.
// Expiry is evaluated lazily against the engine clock; nothing sweeps
// expired grants.
//
//	engine.Subscribe(ctx, "alice", entitlement.PlanMonthly)
//	ok, _ := engine.CanMessage(ctx, "alice", "bob")
//
// # Events
//
// Plugins registered with WithPlugin observe every transition (new match,
// new subscription, completed purchase, chat unlocked, ...). Hooks run
// with a timeout and their failures are logged, never returned.
//
// # TypeID
//
// Persisted records use TypeID identifiers:
//
//	edge_01h2xcejqtf2nbrexx3vqjhp41   // Interest edge / match ID
//	grant_01h2xcejqtf2nbrexx3vqjhp41  // Entitlement grant
//	round_01h455vb4pex5vsknk084sn02q  // VibeLock round
package rapport
