// Package schema owns the Postgres DDL for owners, pets and the import ledger.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Statement is one named, idempotent DDL step.
type Statement struct {
	Name string
	SQL  string
}

// Statements are applied in order. Each one is safe to re-run.
var Statements = []Statement{
	{"owners", `
CREATE TABLE IF NOT EXISTS owners (
    id              UUID PRIMARY KEY,
    organization_id TEXT NOT NULL,
    name            TEXT NOT NULL,
    email           TEXT NOT NULL,
    phone           TEXT,
    address         TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (organization_id, email)
)`},
	{"pets", `
CREATE TABLE IF NOT EXISTS pets (
    id              UUID PRIMARY KEY,
    owner_id        UUID NOT NULL REFERENCES owners (id) ON DELETE CASCADE,
    organization_id TEXT NOT NULL,
    name            TEXT NOT NULL,
    species         TEXT NOT NULL DEFAULT 'dog',
    breed           TEXT,
    weight_kg       NUMERIC(7, 2),
    age_years       INTEGER,
    notes           TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (owner_id, name)
)`},
	{"pets_organization_idx", `
CREATE INDEX IF NOT EXISTS pets_organization_idx ON pets (organization_id)`},
	{"import_runs", `
CREATE TABLE IF NOT EXISTS import_runs (
    id              UUID PRIMARY KEY,
    organization_id TEXT NOT NULL,
    file_name       TEXT,
    source          TEXT NOT NULL,
    checksum        TEXT,
    dry_run         BOOLEAN NOT NULL DEFAULT false,
    status          TEXT NOT NULL,
    total_rows      INTEGER NOT NULL,
    clients_created INTEGER NOT NULL,
    pets_created    INTEGER NOT NULL,
    skipped         INTEGER NOT NULL,
    failures        JSONB NOT NULL DEFAULT '[]',
    started_at      TIMESTAMPTZ NOT NULL,
    finished_at     TIMESTAMPTZ,
    previous_run_id UUID
)`},
	{"import_runs_org_started_idx", `
CREATE INDEX IF NOT EXISTS import_runs_org_started_idx ON import_runs (organization_id, started_at DESC)`},
	{"import_runs_checksum_idx", `
CREATE INDEX IF NOT EXISTS import_runs_checksum_idx ON import_runs (organization_id, checksum) WHERE NOT dry_run`},
}

// Apply runs every statement in order, stopping at the first failure.
func Apply(ctx context.Context, db Execer) error {
	for _, st := range Statements {
		if _, err := db.Exec(ctx, st.SQL); err != nil {
			return fmt.Errorf("apply schema %s: %w", st.Name, err)
		}
		slog.Debug("schema statement applied", "name", st.Name)
	}
	return nil
}

// SQL returns the whole schema as one script, for `barkbook schema`.
func SQL() string {
	var b strings.Builder
	for _, st := range Statements {
		fmt.Fprintf(&b, "-- %s%s;\n\n", st.Name, st.SQL)
	}
	return b.String()
}
