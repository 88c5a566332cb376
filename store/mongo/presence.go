package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/presence"
)

func (s *Store) CreateSession(ctx context.Context, sess *presence.Session) error {
	if _, err := s.col(colSessions).InsertOne(ctx, toSessionModel(sess)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return rapport.ErrDuplicateCode
		}
		return wrap("create session", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, code string) (*presence.Session, error) {
	var m sessionModel
	if err := s.col(colSessions).FindOne(ctx, bson.M{"_id": code}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, rapport.ErrSessionNotFound
		}
		return nil, wrap("get session", err)
	}
	return fromSessionModel(&m), nil
}

func (s *Store) JoinSession(ctx context.Context, code, guest string, now time.Time) (*presence.Session, error) {
	var m sessionModel
	err := s.col(colSessions).FindOneAndUpdate(ctx,
		bson.M{"_id": code, "guest_user": nil, "status": string(presence.StatusWaiting)},
		bson.M{"$set": bson.M{"guest_user": guest, "status": string(presence.StatusActive), "joined_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err == nil {
		return fromSessionModel(&m), nil
	}
	if !isNoDocuments(err) {
		return nil, wrap("join session", err)
	}

	current, err := s.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if current.Status == presence.StatusEnded {
		return nil, rapport.ErrSessionEnded
	}
	return nil, rapport.ErrSessionFull
}

func (s *Store) EndSession(ctx context.Context, code string, now time.Time) (*presence.Session, bool, error) {
	r, err := s.col(colSessions).UpdateOne(ctx,
		bson.M{"_id": code, "status": bson.M{"$ne": string(presence.StatusEnded)}},
		bson.M{"$set": bson.M{"status": string(presence.StatusEnded), "ended_at": now}},
	)
	if err != nil {
		return nil, false, wrap("end session", err)
	}
	sess, err := s.GetSession(ctx, code)
	if err != nil {
		return nil, false, err
	}
	return sess, r.ModifiedCount == 1, nil
}

func (s *Store) ActiveSessionForUser(ctx context.Context, user string) (*presence.Session, error) {
	var m sessionModel
	err := s.col(colSessions).FindOne(ctx,
		bson.M{
			"status": bson.M{"$ne": string(presence.StatusEnded)},
			"$or":    bson.A{bson.M{"host_user": user}, bson.M{"guest_user": user}},
		},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, rapport.ErrSessionNotFound
		}
		return nil, wrap("active session", err)
	}
	return fromSessionModel(&m), nil
}
