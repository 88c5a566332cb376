// Package mongo implements store.Store on MongoDB through grove's
// mongodriver.
//
// Pair-scoped transitions run inside a multi-document transaction that
// first bumps a lock document for the pair, so concurrent transactions on
// the same pair conflict and the loser is retried a bounded number of
// times. Transactions require a replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/topology"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/store"
)

// Collection name constants.
const (
	colEdges    = "rapport_edges"
	colSessions = "rapport_sessions"
	colGrants   = "rapport_grants"
	colBalances = "rapport_balances"
	colRounds   = "rapport_rounds"
	colLocks    = "rapport_locks"
)

// txAttempts bounds how often a transaction that lost a write conflict
// is replayed.
const txAttempts = 4

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Open connects to uri and returns a store on database. The driver
// pings the server before returning.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	mdb := mongodriver.New()
	if err := mdb.Open(ctx, uri, mongodriver.WithDatabase(database)); err != nil {
		_ = mdb.Close()
		return nil, wrap("connect", err)
	}
	db, err := grove.Open(mdb)
	if err != nil {
		_ = mdb.Close()
		return nil, fmt.Errorf("rapport/mongo: open grove: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all collections. Index creation is
// idempotent, so it runs on every start.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.col(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%w: rapport/mongo: migrate %s indexes: %w", rapport.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return rapport.Unavailable("rapport/mongo: ping", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) col(name string) *mongo.Collection { return s.mdb.Collection(name) }

// withTx runs fn in a transaction after taking the lock document key.
// A transaction aborted by a write conflict is replayed up to txAttempts
// times; fn must not keep state across attempts beyond what it returns.
// An expired context or an unreachable server ends the loop at once.
func (s *Store) withTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	var err error
	for range txAttempts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rapport.Unavailable("rapport/mongo: transaction", ctxErr)
		}
		err = s.runTx(ctx, key, fn)
		if err == nil || rapport.IsUnavailable(err) || !isTransient(err) {
			return err
		}
	}
	return err
}

func (s *Store) runTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	sess, err := s.mdb.Client().StartSession()
	if err != nil {
		return wrap("start session", err)
	}
	defer sess.EndSession(ctx)

	if err := sess.StartTransaction(); err != nil {
		return wrap("start transaction", err)
	}
	sctx := mongo.NewSessionContext(ctx, sess)

	err = s.lock(sctx, key)
	if err == nil {
		err = fn(sctx)
	}
	if err != nil {
		if !rapport.IsUnavailable(err) {
			_ = sess.AbortTransaction(ctx)
		}
		return err
	}
	if err := sess.CommitTransaction(ctx); err != nil {
		return wrap("commit", err)
	}
	return nil
}

// lock bumps the lock document for key so that transactions touching
// the same key conflict.
func (s *Store) lock(ctx context.Context, key string) error {
	_, err := s.col(colLocks).UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"n": 1}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return wrap("lock "+key, err)
	}
	return nil
}

// wrap annotates a driver error, classifying network failures, timeouts
// and failed server selection as ErrUnavailable.
func wrap(op string, err error) error {
	var sse topology.ServerSelectionError
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.As(err, &sse) ||
		errors.Is(err, mongo.ErrClientDisconnected) || errors.Is(err, context.Canceled) {
		return rapport.Unavailable("rapport/mongo: "+op, err)
	}
	return fmt.Errorf("rapport/mongo: %s: %w", op, err)
}

func isTransient(err error) bool {
	var le mongo.LabeledError
	return errors.As(err, &le) && le.HasErrorLabel("TransientTransactionError")
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colEdges: {
			{
				Keys:    bson.D{{Key: "from_user", Value: 1}, {Key: "to_user", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "from_user", Value: 1}, {Key: "status", Value: 1}}},
		},
		colSessions: {
			{Keys: bson.D{{Key: "host_user", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "guest_user", Value: 1}, {Key: "status", Value: 1}}},
		},
		colGrants: {
			{Keys: bson.D{{Key: "owner_user", Value: 1}, {Key: "kind", Value: 1}, {Key: "scope_key", Value: 1}}},
		},
		colBalances: {
			{
				Keys:    bson.D{{Key: "owner_user", Value: 1}, {Key: "counter", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colRounds: {
			{
				Keys: bson.D{{Key: "match_id", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"completed": false}),
			},
		},
	}
}
