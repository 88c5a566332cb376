package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/rapport"
	"github.com/xraph/rapport/entitlement"
)

const grantColumns = `id, owner_user, kind, scope_key, expires_at, plan, multiplier, created_at`

// activeClause matches grants unexpired at the bound instant.
const activeClause = `(expires_at IS NULL OR expires_at > ?)`

func scanGrant(row rowScanner) (*entitlement.Grant, error) {
	var (
		g          entitlement.Grant
		kind, plan string
		expiresAt  sql.NullInt64
		createdAt  int64
	)
	if err := row.Scan(&g.ID, &g.OwnerUser, &kind, &g.ScopeKey, &expiresAt, &plan, &g.Multiplier, &createdAt); err != nil {
		return nil, err
	}
	g.Kind = entitlement.Kind(kind)
	g.Plan = entitlement.Plan(plan)
	g.ExpiresAt = ptrMillis(expiresAt)
	g.CreatedAt = fromMillis(createdAt)
	return &g, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertGrant(ctx context.Context, db execer, g *entitlement.Grant) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO rapport_grants (`+grantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID.String(), g.OwnerUser, string(g.Kind), g.ScopeKey, nullMillis(g.ExpiresAt),
		string(g.Plan), g.Multiplier, toMillis(g.CreatedAt))
	if err != nil {
		return fmt.Errorf("rapport/sqlite: insert grant: %w", err)
	}
	return nil
}

func (s *Store) CreateGrant(ctx context.Context, g *entitlement.Grant) error {
	return insertGrant(ctx, s.db, g)
}

func (s *Store) CreateExclusiveGrant(ctx context.Context, g *entitlement.Grant, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var found int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM rapport_grants WHERE owner_user = ? AND kind = ? AND `+activeClause+` LIMIT 1`,
			g.OwnerUser, string(g.Kind), toMillis(now)).Scan(&found)
		switch {
		case err == nil:
			return rapport.ErrAlreadyActive
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("rapport/sqlite: check active grant: %w", err)
		}
		return insertGrant(ctx, tx, g)
	})
}

func (s *Store) EnsureGrant(ctx context.Context, g *entitlement.Grant) (*entitlement.Grant, bool, error) {
	var (
		out     *entitlement.Grant
		created bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanGrant(tx.QueryRowContext(ctx,
			`SELECT `+grantColumns+` FROM rapport_grants
			 WHERE owner_user = ? AND kind = ? AND scope_key = ? ORDER BY created_at LIMIT 1`,
			g.OwnerUser, string(g.Kind), g.ScopeKey))
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("rapport/sqlite: find grant: %w", err)
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
	grants, err := s.queryGrants(ctx,
		`SELECT `+grantColumns+` FROM rapport_grants WHERE owner_user = ? AND kind = ? AND `+activeClause,
		owner, string(kind), toMillis(now))
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
	return s.queryGrants(ctx,
		`SELECT `+grantColumns+` FROM rapport_grants WHERE owner_user = ? AND `+activeClause+` ORDER BY created_at`,
		owner, toMillis(now))
}

func (s *Store) queryGrants(ctx context.Context, query string, args ...any) ([]*entitlement.Grant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("rapport/sqlite: query grants: %w", err)
	}
	defer rows.Close()

	var out []*entitlement.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("rapport/sqlite: scan grant: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) AddBalance(ctx context.Context, owner, counter string, n int64, now time.Time) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO rapport_balances (owner_user, counter, balance, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (owner_user, counter) DO UPDATE
		 SET balance = rapport_balances.balance + excluded.balance, updated_at = excluded.updated_at
		 RETURNING balance`,
		owner, counter, n, toMillis(now)).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("rapport/sqlite: add balance: %w", err)
	}
	return balance, nil
}

func (s *Store) ConsumeBalance(ctx context.Context, owner, counter string, now time.Time) (bool, error) {
	r, err := s.db.ExecContext(ctx,
		`UPDATE rapport_balances SET balance = balance - 1, updated_at = ?
		 WHERE owner_user = ? AND counter = ? AND balance > 0`,
		toMillis(now), owner, counter)
	if err != nil {
		return false, fmt.Errorf("rapport/sqlite: consume balance: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rapport/sqlite: consume balance: %w", err)
	}
	return n == 1, nil
}

func (s *Store) GetBalance(ctx context.Context, owner, counter string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM rapport_balances WHERE owner_user = ? AND counter = ?`,
		owner, counter).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rapport/sqlite: get balance: %w", err)
	}
	return balance, nil
}
