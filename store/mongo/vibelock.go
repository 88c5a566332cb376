package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/vibelock"
)

func (s *Store) OpenRound(ctx context.Context, r *vibelock.Round) (*vibelock.Round, bool, error) {
	_, err := s.col(colRounds).InsertOne(ctx, toRoundModel(r))
	if err == nil {
		return r, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, wrap("insert round", err)
	}

	// The partial unique index admits one open round per match.
	var m roundModel
	err = s.col(colRounds).FindOne(ctx, bson.M{"match_id": r.MatchID.String(), "completed": false}).Decode(&m)
	if isNoDocuments(err) {
		return s.OpenRound(ctx, r)
	}
	if err != nil {
		return nil, false, wrap("find open round", err)
	}
	existing, err := fromRoundModel(&m)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Store) GetRound(ctx context.Context, roundID id.RoundID) (*vibelock.Round, error) {
	var m roundModel
	if err := s.col(colRounds).FindOne(ctx, bson.M{"_id": roundID.String()}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, rapport.ErrRoundNotFound
		}
		return nil, wrap("get round", err)
	}
	return fromRoundModel(&m)
}

func (s *Store) SetAnswer(ctx context.Context, roundID id.RoundID, slot int, answer string, now time.Time) (*vibelock.Round, bool, error) {
	var field string
	switch slot {
	case 1:
		field = "answer1"
	case 2:
		field = "answer2"
	default:
		return nil, false, rapport.ErrNotParticipant
	}

	var m roundModel
	err := s.col(colRounds).FindOneAndUpdate(ctx,
		bson.M{"_id": roundID.String(), "completed": false},
		bson.M{"$set": bson.M{field: answer, "updated_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err == nil {
		r, err := fromRoundModel(&m)
		return r, err == nil, err
	}
	if !isNoDocuments(err) {
		return nil, false, wrap("set answer", err)
	}

	current, err := s.GetRound(ctx, roundID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *Store) CompleteRound(ctx context.Context, roundID id.RoundID, answer1, answer2 string, score int, now time.Time) (bool, error) {
	r, err := s.col(colRounds).UpdateOne(ctx,
		bson.M{"_id": roundID.String(), "completed": false, "answer1": answer1, "answer2": answer2},
		bson.M{"$set": bson.M{"score": score, "completed": true, "completed_at": now, "updated_at": now}})
	if err != nil {
		return false, wrap("complete round", err)
	}
	return r.ModifiedCount == 1, nil
}
