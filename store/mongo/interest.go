package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/interest"
)

func pairFilter(a, b string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"from_user": a, "to_user": b},
		bson.M{"from_user": b, "to_user": a},
	}}
}

func (s *Store) findEdge(ctx context.Context, filter bson.M) (*interest.Edge, error) {
	var m edgeModel
	if err := s.col(colEdges).FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, rapport.ErrEdgeNotFound
		}
		return nil, wrap("get edge", err)
	}
	return fromEdgeModel(&m)
}

func (s *Store) insertEdge(ctx context.Context, e *interest.Edge) error {
	if _, err := s.col(colEdges).InsertOne(ctx, toEdgeModel(e)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return rapport.ErrDuplicateInterest
		}
		return wrap("insert edge", err)
	}
	return nil
}

func (s *Store) RecordInterest(ctx context.Context, from, to string, now time.Time) (*interest.Result, error) {
	var res *interest.Result
	err := s.withTx(ctx, "edge:"+interest.PairKey(from, to), func(ctx context.Context) error {
		if _, err := s.findEdge(ctx, bson.M{"from_user": from, "to_user": to}); err == nil {
			return rapport.ErrDuplicateInterest
		} else if !errors.Is(err, rapport.ErrEdgeNotFound) {
			return err
		}

		edge := &interest.Edge{
			ID:        id.NewEdgeID(),
			FromUser:  from,
			ToUser:    to,
			Status:    interest.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		res = &interest.Result{Edge: edge}

		var rev edgeModel
		err := s.col(colEdges).FindOneAndUpdate(ctx,
			bson.M{"from_user": to, "to_user": from, "status": string(interest.StatusPending)},
			bson.M{"$set": bson.M{"status": string(interest.StatusMatched), "matched_at": now, "updated_at": now}},
		).Decode(&rev)
		switch {
		case err == nil:
			revID, err := id.ParseEdgeID(rev.ID)
			if err != nil {
				return err
			}
			matchedAt := now
			edge.Status = interest.StatusMatched
			edge.MatchedAt = &matchedAt
			res.IsNewMatch = true
			res.MatchID = revID
		case !isNoDocuments(err):
			return wrap("promote edge", err)
		}
		return s.insertEdge(ctx, edge)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) GetEdge(ctx context.Context, edgeID id.EdgeID) (*interest.Edge, error) {
	return s.findEdge(ctx, bson.M{"_id": edgeID.String()})
}

func (s *Store) GetEdgeByPair(ctx context.Context, from, to string) (*interest.Edge, error) {
	return s.findEdge(ctx, bson.M{"from_user": from, "to_user": to})
}

func (s *Store) ListMatches(ctx context.Context, user string) ([]*interest.Edge, error) {
	cursor, err := s.col(colEdges).Find(ctx,
		bson.M{"from_user": user, "status": string(interest.StatusMatched)},
		options.Find().SetSort(bson.D{{Key: "matched_at", Value: -1}}))
	if err != nil {
		return nil, wrap("list matches", err)
	}
	var models []edgeModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, wrap("list matches", err)
	}
	out := make([]*interest.Edge, 0, len(models))
	for i := range models {
		e, err := fromEdgeModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) Respond(ctx context.Context, edgeID id.EdgeID, accept bool, now time.Time) (*interest.Edge, error) {
	e, err := s.GetEdge(ctx, edgeID)
	if err != nil {
		return nil, err
	}

	var out *interest.Edge
	err = s.withTx(ctx, "edge:"+interest.PairKey(e.FromUser, e.ToUser), func(ctx context.Context) error {
		next := interest.StatusDeclined
		set := bson.M{"status": string(next), "updated_at": now}
		if accept {
			next = interest.StatusMatched
			set = bson.M{"status": string(next), "matched_at": now, "updated_at": now}
		}
		var m edgeModel
		err := s.col(colEdges).FindOneAndUpdate(ctx,
			bson.M{"_id": edgeID.String(), "status": string(interest.StatusPending)},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&m)
		if isNoDocuments(err) {
			return rapport.ErrEdgeNotPending
		}
		if err != nil {
			return wrap("respond", err)
		}
		if out, err = fromEdgeModel(&m); err != nil {
			return err
		}
		if !accept {
			return nil
		}

		r, err := s.col(colEdges).UpdateOne(ctx,
			bson.M{"from_user": m.ToUser, "to_user": m.FromUser},
			bson.M{"$set": bson.M{"status": string(interest.StatusMatched), "matched_at": now, "updated_at": now}})
		if err != nil {
			return wrap("promote reverse edge", err)
		}
		if r.MatchedCount == 1 {
			return nil
		}
		matchedAt := now
		return s.insertEdge(ctx, &interest.Edge{
			ID:        id.NewEdgeID(),
			FromUser:  m.ToUser,
			ToUser:    m.FromUser,
			Status:    interest.StatusMatched,
			CreatedAt: now,
			UpdatedAt: now,
			MatchedAt: &matchedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Unmatch(ctx context.Context, a, b string, now time.Time) (int, error) {
	filter := pairFilter(a, b)
	filter["status"] = string(interest.StatusMatched)
	r, err := s.col(colEdges).UpdateMany(ctx, filter,
		bson.M{"$set": bson.M{"status": string(interest.StatusUnmatched), "updated_at": now}})
	if err != nil {
		return 0, wrap("unmatch", err)
	}
	return int(r.ModifiedCount), nil
}

func (s *Store) SetChatUnlocked(ctx context.Context, a, b string, now time.Time) error {
	r, err := s.col(colEdges).UpdateMany(ctx, pairFilter(a, b),
		bson.M{"$set": bson.M{"chat_unlocked": true, "updated_at": now}})
	if err != nil {
		return wrap("set chat unlocked", err)
	}
	if r.MatchedCount == 0 {
		return rapport.ErrEdgeNotFound
	}
	return nil
}
