package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// The insert and the fallback SELECT share one statement snapshot, so an
// owner committed by a concurrent import after the snapshot was taken shows
// up in neither branch and the query returns no rows. Callers retry.
const resolveOwner = `
WITH inserted AS (
    INSERT INTO owners (id, organization_id, name, email, phone, address)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (organization_id, email) DO NOTHING
    RETURNING id
)
SELECT id, true AS created FROM inserted
UNION ALL
SELECT id, false AS created FROM owners
WHERE organization_id = $2 AND email = $4
LIMIT 1
`

type ResolveOwnerParams struct {
	ID             pgtype.UUID
	OrganizationID string
	Name           string
	Email          string
	Phone          pgtype.Text
	Address        pgtype.Text
}

type ResolveOwnerRow struct {
	ID      pgtype.UUID
	Created bool
}

func (q *Queries) ResolveOwner(ctx context.Context, arg ResolveOwnerParams) (ResolveOwnerRow, error) {
	row := q.db.QueryRow(ctx, resolveOwner,
		arg.ID,
		arg.OrganizationID,
		arg.Name,
		arg.Email,
		arg.Phone,
		arg.Address,
	)
	var i ResolveOwnerRow
	err := row.Scan(&i.ID, &i.Created)
	return i, err
}

const findOwnerByEmail = `
SELECT id FROM owners
WHERE organization_id = $1 AND email = $2
`

func (q *Queries) FindOwnerByEmail(ctx context.Context, organizationID, email string) (pgtype.UUID, error) {
	row := q.db.QueryRow(ctx, findOwnerByEmail, organizationID, email)
	var id pgtype.UUID
	err := row.Scan(&id)
	return id, err
}
