package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/entitlement"
)

func activeFilter(now time.Time) bson.A {
	return bson.A{bson.M{"expires_at": nil}, bson.M{"expires_at": bson.M{"$gt": now}}}
}

func (s *Store) findGrants(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOptions]) ([]*entitlement.Grant, error) {
	cursor, err := s.col(colGrants).Find(ctx, filter, opts...)
	if err != nil {
		return nil, wrap("find grants", err)
	}
	var models []grantModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, wrap("find grants", err)
	}
	out := make([]*entitlement.Grant, 0, len(models))
	for i := range models {
		g, err := fromGrantModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Store) CreateGrant(ctx context.Context, g *entitlement.Grant) error {
	if _, err := s.col(colGrants).InsertOne(ctx, toGrantModel(g)); err != nil {
		return wrap("create grant", err)
	}
	return nil
}

func (s *Store) CreateExclusiveGrant(ctx context.Context, g *entitlement.Grant, now time.Time) error {
	return s.withTx(ctx, "grant:"+g.OwnerUser+"|"+string(g.Kind), func(ctx context.Context) error {
		n, err := s.col(colGrants).CountDocuments(ctx, bson.M{
			"owner_user": g.OwnerUser,
			"kind":       string(g.Kind),
			"$or":        activeFilter(now),
		})
		if err != nil {
			return wrap("check active grant", err)
		}
		if n > 0 {
			return rapport.ErrAlreadyActive
		}
		return s.CreateGrant(ctx, g)
	})
}

func (s *Store) EnsureGrant(ctx context.Context, g *entitlement.Grant) (*entitlement.Grant, bool, error) {
	var (
		out     *entitlement.Grant
		created bool
	)
	key := "grant:" + g.OwnerUser + "|" + string(g.Kind) + "|" + g.ScopeKey
	err := s.withTx(ctx, key, func(ctx context.Context) error {
		out, created = nil, false
		var m grantModel
		err := s.col(colGrants).FindOne(ctx,
			bson.M{"owner_user": g.OwnerUser, "kind": string(g.Kind), "scope_key": g.ScopeKey},
			options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}}),
		).Decode(&m)
		if err == nil {
			out, err = fromGrantModel(&m)
			return err
		}
		if !isNoDocuments(err) {
			return wrap("find grant", err)
		}
		if err := s.CreateGrant(ctx, g); err != nil {
			return err
		}
		out, created = g, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (s *Store) FindActiveGrant(ctx context.Context, owner string, kind entitlement.Kind, scope string, now time.Time) (*entitlement.Grant, error) {
	grants, err := s.findGrants(ctx, bson.M{"owner_user": owner, "kind": string(kind), "$or": activeFilter(now)})
	if err != nil {
		return nil, err
	}
	best := entitlement.Latest(grants, kind, scope, now)
	if best == nil {
		return nil, rapport.ErrGrantNotFound
	}
	return best, nil
}

func (s *Store) ListActiveGrants(ctx context.Context, owner string, now time.Time) ([]*entitlement.Grant, error) {
	return s.findGrants(ctx,
		bson.M{"owner_user": owner, "$or": activeFilter(now)},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (s *Store) AddBalance(ctx context.Context, owner, counter string, n int64, now time.Time) (int64, error) {
	var m balanceModel
	err := s.col(colBalances).FindOneAndUpdate(ctx,
		bson.M{"owner_user": owner, "counter": counter},
		bson.M{"$inc": bson.M{"balance": n}, "$set": bson.M{"updated_at": now}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		// Two first-time upserts can race on the unique index; the loser
		// retries as a plain increment.
		if mongo.IsDuplicateKeyError(err) {
			return s.AddBalance(ctx, owner, counter, n, now)
		}
		return 0, wrap("add balance", err)
	}
	return m.Balance, nil
}

func (s *Store) ConsumeBalance(ctx context.Context, owner, counter string, now time.Time) (bool, error) {
	r, err := s.col(colBalances).UpdateOne(ctx,
		bson.M{"owner_user": owner, "counter": counter, "balance": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"balance": -1}, "$set": bson.M{"updated_at": now}})
	if err != nil {
		return false, wrap("consume balance", err)
	}
	return r.ModifiedCount == 1, nil
}

func (s *Store) GetBalance(ctx context.Context, owner, counter string) (int64, error) {
	var m balanceModel
	err := s.col(colBalances).FindOne(ctx, bson.M{"owner_user": owner, "counter": counter}).Decode(&m)
	if isNoDocuments(err) {
		return 0, nil
	}
	if err != nil {
		return 0, wrap("get balance", err)
	}
	return m.Balance, nil
}
