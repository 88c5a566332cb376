package postgres

import (
	"context"
	"time"

	"github.com/xraph/grove/driver"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/entitlement"
)

func insertGrant(ctx context.Context, q querier, g *entitlement.Grant) error {
	_, err := q.Exec(ctx,
		`INSERT INTO rapport_grants (`+grantColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		g.ID.String(), g.OwnerUser, string(g.Kind), g.ScopeKey, g.ExpiresAt,
		string(g.Plan), g.Multiplier, g.CreatedAt)
	if err != nil {
		return wrap("insert grant", err)
	}
	return nil
}

func (s *Store) CreateGrant(ctx context.Context, g *entitlement.Grant) error {
	return insertGrant(ctx, s.pg, g)
}

func (s *Store) CreateExclusiveGrant(ctx context.Context, g *entitlement.Grant, now time.Time) error {
	return s.withTx(ctx, func(tx driver.Tx) error {
		if err := lockKey(ctx, tx, "grant:"+g.OwnerUser+"|"+string(g.Kind)); err != nil {
			return err
		}
		var found int
		err := tx.QueryRow(ctx,
			`SELECT 1 FROM rapport_grants
			 WHERE owner_user = $1 AND kind = $2 AND (expires_at IS NULL OR expires_at > $3) LIMIT 1`,
			g.OwnerUser, string(g.Kind), now).Scan(&found)
		switch {
		case err == nil:
			return rapport.ErrAlreadyActive
		case !isNoRows(err):
			return wrap("check active grant", err)
		}
		return insertGrant(ctx, tx, g)
	})
}

func (s *Store) EnsureGrant(ctx context.Context, g *entitlement.Grant) (*entitlement.Grant, bool, error) {
	var (
		out     *entitlement.Grant
		created bool
	)
	err := s.withTx(ctx, func(tx driver.Tx) error {
		if err := lockKey(ctx, tx, "grant:"+g.OwnerUser+"|"+string(g.Kind)+"|"+g.ScopeKey); err != nil {
			return err
		}
		existing, err := scanGrant(tx.QueryRow(ctx,
			`SELECT `+grantColumns+` FROM rapport_grants
			 WHERE owner_user = $1 AND kind = $2 AND scope_key = $3 ORDER BY created_at LIMIT 1`,
			g.OwnerUser, string(g.Kind), g.ScopeKey))
		if err == nil {
			out = existing
			return nil
		}
		if !isNoRows(err) {
			return wrap("find grant", err)
		}
		if err := insertGrant(ctx, tx, g); err != nil {
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
	rows, err := s.pg.Query(ctx,
		`SELECT `+grantColumns+` FROM rapport_grants
		 WHERE owner_user = $1 AND kind = $2 AND (expires_at IS NULL OR expires_at > $3)`,
		owner, string(kind), now)
	if err != nil {
		return nil, wrap("find active grant", err)
	}
	grants, err := collect(rows, scanGrant)
	if err != nil {
		return nil, wrap("find active grant", err)
	}
	best := entitlement.Latest(grants, kind, scope, now)
	if best == nil {
		return nil, rapport.ErrGrantNotFound
	}
	return best, nil
}

func (s *Store) ListActiveGrants(ctx context.Context, owner string, now time.Time) ([]*entitlement.Grant, error) {
	rows, err := s.pg.Query(ctx,
		`SELECT `+grantColumns+` FROM rapport_grants
		 WHERE owner_user = $1 AND (expires_at IS NULL OR expires_at > $2) ORDER BY created_at`,
		owner, now)
	if err != nil {
		return nil, wrap("list active grants", err)
	}
	grants, err := collect(rows, scanGrant)
	if err != nil {
		return nil, wrap("list active grants", err)
	}
	return grants, nil
}

func (s *Store) AddBalance(ctx context.Context, owner, counter string, n int64, now time.Time) (int64, error) {
	var balance int64
	err := s.pg.QueryRow(ctx,
		`INSERT INTO rapport_balances (owner_user, counter, balance, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner_user, counter) DO UPDATE
		 SET balance = rapport_balances.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
		 RETURNING balance`,
		owner, counter, n, now).Scan(&balance)
	if err != nil {
		return 0, wrap("add balance", err)
	}
	return balance, nil
}

func (s *Store) ConsumeBalance(ctx context.Context, owner, counter string, now time.Time) (bool, error) {
	tag, err := s.pg.Exec(ctx,
		`UPDATE rapport_balances SET balance = balance - 1, updated_at = $1
		 WHERE owner_user = $2 AND counter = $3 AND balance > 0`,
		now, owner, counter)
	if err != nil {
		return false, wrap("consume balance", err)
	}
	return affected(tag) == 1, nil
}

func (s *Store) GetBalance(ctx context.Context, owner, counter string) (int64, error) {
	var balance int64
	err := s.pg.QueryRow(ctx,
		`SELECT balance FROM rapport_balances WHERE owner_user = $1 AND counter = $2`,
		owner, counter).Scan(&balance)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, wrap("get balance", err)
	}
	return balance, nil
}
