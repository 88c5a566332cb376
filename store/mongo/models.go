package mongo

import (
	"time"

	"github.com/xraph/rapport/entitlement"
	"github.com/xraph/rapport/id"
	"github.com/xraph/rapport/interest"
	"github.com/xraph/rapport/presence"
	"github.com/xraph/rapport/vibelock"
)

// ==================== Edge models ====================

type edgeModel struct {
	ID           string     `bson:"_id"`
	FromUser     string     `bson:"from_user"`
	ToUser       string     `bson:"to_user"`
	Status       string     `bson:"status"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
	MatchedAt    *time.Time `bson:"matched_at,omitempty"`
	ChatUnlocked bool       `bson:"chat_unlocked"`
}

func toEdgeModel(e *interest.Edge) *edgeModel {
	return &edgeModel{
		ID:           e.ID.String(),
		FromUser:     e.FromUser,
		ToUser:       e.ToUser,
		Status:       string(e.Status),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
		MatchedAt:    e.MatchedAt,
		ChatUnlocked: e.ChatUnlocked,
	}
}

func fromEdgeModel(m *edgeModel) (*interest.Edge, error) {
	edgeID, err := id.ParseEdgeID(m.ID)
	if err != nil {
		return nil, err
	}
	return &interest.Edge{
		ID:           edgeID,
		FromUser:     m.FromUser,
		ToUser:       m.ToUser,
		Status:       interest.Status(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		MatchedAt:    m.MatchedAt,
		ChatUnlocked: m.ChatUnlocked,
	}, nil
}

// ==================== Session models ====================

type sessionModel struct {
	Code      string     `bson:"_id"`
	HostUser  string     `bson:"host_user"`
	GuestUser *string    `bson:"guest_user"`
	ModeID    string     `bson:"mode_id"`
	Status    string     `bson:"status"`
	CreatedAt time.Time  `bson:"created_at"`
	JoinedAt  *time.Time `bson:"joined_at,omitempty"`
	EndedAt   *time.Time `bson:"ended_at,omitempty"`
}

func toSessionModel(s *presence.Session) *sessionModel {
	return &sessionModel{
		Code:      s.Code,
		HostUser:  s.HostUser,
		GuestUser: s.GuestUser,
		ModeID:    s.ModeID,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
		JoinedAt:  s.JoinedAt,
		EndedAt:   s.EndedAt,
	}
}

func fromSessionModel(m *sessionModel) *presence.Session {
	return &presence.Session{
		Code:      m.Code,
		HostUser:  m.HostUser,
		GuestUser: m.GuestUser,
		ModeID:    m.ModeID,
		Status:    presence.Status(m.Status),
		CreatedAt: m.CreatedAt,
		JoinedAt:  m.JoinedAt,
		EndedAt:   m.EndedAt,
	}
}

// ==================== Grant models ====================

type grantModel struct {
	ID         string     `bson:"_id"`
	OwnerUser  string     `bson:"owner_user"`
	Kind       string     `bson:"kind"`
	ScopeKey   string     `bson:"scope_key"`
	ExpiresAt  *time.Time `bson:"expires_at"`
	Plan       string     `bson:"plan,omitempty"`
	Multiplier float64    `bson:"multiplier,omitempty"`
	CreatedAt  time.Time  `bson:"created_at"`
}

func toGrantModel(g *entitlement.Grant) *grantModel {
	return &grantModel{
		ID:         g.ID.String(),
		OwnerUser:  g.OwnerUser,
		Kind:       string(g.Kind),
		ScopeKey:   g.ScopeKey,
		ExpiresAt:  g.ExpiresAt,
		Plan:       string(g.Plan),
		Multiplier: g.Multiplier,
		CreatedAt:  g.CreatedAt,
	}
}

func fromGrantModel(m *grantModel) (*entitlement.Grant, error) {
	grantID, err := id.ParseGrantID(m.ID)
	if err != nil {
		return nil, err
	}
	return &entitlement.Grant{
		ID:         grantID,
		OwnerUser:  m.OwnerUser,
		Kind:       entitlement.Kind(m.Kind),
		ScopeKey:   m.ScopeKey,
		ExpiresAt:  m.ExpiresAt,
		Plan:       entitlement.Plan(m.Plan),
		Multiplier: m.Multiplier,
		CreatedAt:  m.CreatedAt,
	}, nil
}

type balanceModel struct {
	OwnerUser string    `bson:"owner_user"`
	Counter   string    `bson:"counter"`
	Balance   int64     `bson:"balance"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// ==================== Round models ====================

type questionModel struct {
	ID      string   `bson:"id"`
	Prompt  string   `bson:"prompt"`
	Options []string `bson:"options"`
}

type roundModel struct {
	ID          string        `bson:"_id"`
	MatchID     string        `bson:"match_id"`
	Question    questionModel `bson:"question"`
	User1       string        `bson:"user1"`
	User2       string        `bson:"user2"`
	Answer1     *string       `bson:"answer1"`
	Answer2     *string       `bson:"answer2"`
	Score       *int          `bson:"score"`
	Completed   bool          `bson:"completed"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
	CompletedAt *time.Time    `bson:"completed_at,omitempty"`
}

func toRoundModel(r *vibelock.Round) *roundModel {
	return &roundModel{
		ID:      r.ID.String(),
		MatchID: r.MatchID.String(),
		Question: questionModel{
			ID:      r.Question.ID,
			Prompt:  r.Question.Prompt,
			Options: r.Question.Options,
		},
		User1:       r.User1,
		User2:       r.User2,
		Answer1:     r.Answer1,
		Answer2:     r.Answer2,
		Score:       r.Score,
		Completed:   r.Completed,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		CompletedAt: r.CompletedAt,
	}
}

func fromRoundModel(m *roundModel) (*vibelock.Round, error) {
	roundID, err := id.ParseRoundID(m.ID)
	if err != nil {
		return nil, err
	}
	matchID, err := id.ParseEdgeID(m.MatchID)
	if err != nil {
		return nil, err
	}
	return &vibelock.Round{
		ID:      roundID,
		MatchID: matchID,
		Question: vibelock.Question{
			ID:      m.Question.ID,
			Prompt:  m.Question.Prompt,
			Options: m.Question.Options,
		},
		User1:       m.User1,
		User2:       m.User2,
		Answer1:     m.Answer1,
		Answer2:     m.Answer2,
		Score:       m.Score,
		Completed:   m.Completed,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		CompletedAt: m.CompletedAt,
	}, nil
}
