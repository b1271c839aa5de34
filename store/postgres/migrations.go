package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the vault store.
var Migrations = migrate.NewGroup("vault")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_vault_vaults",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS vault_vaults (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    administrator TEXT NOT NULL,
    account       TEXT NOT NULL,
    authority     TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_vault_vaults_name ON vault_vaults (name);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS vault_vaults`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_vault_balances",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS vault_balances (
    vault      TEXT NOT NULL,
    depositor  TEXT NOT NULL,
    amount     TEXT NOT NULL DEFAULT '0',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (vault, depositor)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS vault_balances`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_vault_entries",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS vault_entries (
    id         TEXT PRIMARY KEY,
    vault      TEXT NOT NULL,
    ref        TEXT NOT NULL DEFAULT '',
    transfer   TEXT NOT NULL DEFAULT '',
    kind       TEXT NOT NULL,
    status     TEXT NOT NULL,
    depositor  TEXT NOT NULL,
    amount     TEXT NOT NULL DEFAULT '0',
    balance    TEXT NOT NULL DEFAULT '0',
    error      TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_vault_entries_vault ON vault_entries (vault, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_vault_entries_depositor ON vault_entries (vault, depositor, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS vault_entries`)
				return err
			},
		},
	)
}
