package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Rapport store.
var Migrations = migrate.NewGroup("rapport")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_rapport_edges",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rapport_edges (
    id            TEXT PRIMARY KEY,
    from_user     TEXT NOT NULL,
    to_user       TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'pending',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    matched_at    TIMESTAMPTZ,
    chat_unlocked BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_rapport_edges_pair ON rapport_edges (from_user, to_user);
CREATE INDEX IF NOT EXISTS idx_rapport_edges_matches ON rapport_edges (from_user, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS rapport_edges`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_rapport_sessions",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rapport_sessions (
    code       TEXT PRIMARY KEY,
    host_user  TEXT NOT NULL,
    guest_user TEXT,
    mode_id    TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL DEFAULT 'waiting',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    joined_at  TIMESTAMPTZ,
    ended_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_rapport_sessions_host ON rapport_sessions (host_user, status);
CREATE INDEX IF NOT EXISTS idx_rapport_sessions_guest ON rapport_sessions (guest_user, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS rapport_sessions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_rapport_grants",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rapport_grants (
    id         TEXT PRIMARY KEY,
    owner_user TEXT NOT NULL,
    kind       TEXT NOT NULL,
    scope_key  TEXT NOT NULL DEFAULT '',
    expires_at TIMESTAMPTZ,
    plan       TEXT NOT NULL DEFAULT '',
    multiplier DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_rapport_grants_owner ON rapport_grants (owner_user, kind, scope_key);

CREATE TABLE IF NOT EXISTS rapport_balances (
    owner_user TEXT NOT NULL,
    counter    TEXT NOT NULL,
    balance    BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (owner_user, counter)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS rapport_balances;
DROP TABLE IF EXISTS rapport_grants`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_rapport_rounds",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rapport_rounds (
    id           TEXT PRIMARY KEY,
    match_id     TEXT NOT NULL,
    question     JSONB NOT NULL,
    user1        TEXT NOT NULL,
    user2        TEXT NOT NULL,
    answer1      TEXT,
    answer2      TEXT,
    score        INT,
    completed    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_rapport_rounds_open ON rapport_rounds (match_id) WHERE NOT completed;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS rapport_rounds`)
				return err
			},
		},
	)
}
