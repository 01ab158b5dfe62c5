package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const importRunColumns = `id, organization_id, file_name, source, checksum, dry_run, status,
    total_rows, clients_created, pets_created, skipped, failures,
    started_at, finished_at, previous_run_id`

const insertImportRun = `
INSERT INTO import_runs (` + importRunColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`

func (q *Queries) InsertImportRun(ctx context.Context, arg ImportRun) error {
	_, err := q.db.Exec(ctx, insertImportRun,
		arg.ID,
		arg.OrganizationID,
		arg.FileName,
		arg.Source,
		arg.Checksum,
		arg.DryRun,
		arg.Status,
		arg.TotalRows,
		arg.ClientsCreated,
		arg.PetsCreated,
		arg.Skipped,
		arg.Failures,
		arg.StartedAt,
		arg.FinishedAt,
		arg.PreviousRunID,
	)
	return err
}

const listImportRuns = `
SELECT ` + importRunColumns + `
FROM import_runs
WHERE organization_id = $1
ORDER BY started_at DESC
LIMIT $2
`

func (q *Queries) ListImportRuns(ctx context.Context, organizationID string, limit int32) ([]ImportRun, error) {
	rows, err := q.db.Query(ctx, listImportRuns, organizationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ImportRun
	for rows.Next() {
		i, err := scanImportRun(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getImportRun = `
SELECT ` + importRunColumns + `
FROM import_runs
WHERE organization_id = $1 AND id = $2
`

func (q *Queries) GetImportRun(ctx context.Context, organizationID string, id pgtype.UUID) (ImportRun, error) {
	return scanImportRun(q.db.QueryRow(ctx, getImportRun, organizationID, id))
}

const findImportRunByChecksum = `
SELECT ` + importRunColumns + `
FROM import_runs
WHERE organization_id = $1 AND checksum = $2 AND NOT dry_run
ORDER BY started_at DESC
LIMIT 1
`

func (q *Queries) FindImportRunByChecksum(ctx context.Context, organizationID, checksum string) (ImportRun, error) {
	return scanImportRun(q.db.QueryRow(ctx, findImportRunByChecksum, organizationID, checksum))
}

const purgeImportRunsBefore = `
DELETE FROM import_runs WHERE started_at < $1
`

func (q *Queries) PurgeImportRunsBefore(ctx context.Context, cutoff pgtype.Timestamptz) (int64, error) {
	tag, err := q.db.Exec(ctx, purgeImportRunsBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImportRun(row rowScanner) (ImportRun, error) {
	var i ImportRun
	err := row.Scan(
		&i.ID,
		&i.OrganizationID,
		&i.FileName,
		&i.Source,
		&i.Checksum,
		&i.DryRun,
		&i.Status,
		&i.TotalRows,
		&i.ClientsCreated,
		&i.PetsCreated,
		&i.Skipped,
		&i.Failures,
		&i.StartedAt,
		&i.FinishedAt,
		&i.PreviousRunID,
	)
	return i, err
}
