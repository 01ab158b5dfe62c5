package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const resolvePet = `
WITH inserted AS (
    INSERT INTO pets (id, owner_id, organization_id, name, species, breed, weight_kg, age_years, notes)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    ON CONFLICT (owner_id, name) DO NOTHING
    RETURNING id
)
SELECT id, true AS created FROM inserted
UNION ALL
SELECT id, false AS created FROM pets
WHERE owner_id = $2 AND name = $4
LIMIT 1
`

type ResolvePetParams struct {
	ID             pgtype.UUID
	OwnerID        pgtype.UUID
	OrganizationID string
	Name           string
	Species        string
	Breed          pgtype.Text
	WeightKg       pgtype.Numeric
	AgeYears       pgtype.Int4
	Notes          pgtype.Text
}

type ResolvePetRow struct {
	ID      pgtype.UUID
	Created bool
}

func (q *Queries) ResolvePet(ctx context.Context, arg ResolvePetParams) (ResolvePetRow, error) {
	row := q.db.QueryRow(ctx, resolvePet,
		arg.ID,
		arg.OwnerID,
		arg.OrganizationID,
		arg.Name,
		arg.Species,
		arg.Breed,
		arg.WeightKg,
		arg.AgeYears,
		arg.Notes,
	)
	var i ResolvePetRow
	err := row.Scan(&i.ID, &i.Created)
	return i, err
}

const findPetByName = `
SELECT id FROM pets
WHERE owner_id = $1 AND name = $2
`

func (q *Queries) FindPetByName(ctx context.Context, ownerID pgtype.UUID, name string) (pgtype.UUID, error) {
	row := q.db.QueryRow(ctx, findPetByName, ownerID, name)
	var id pgtype.UUID
	err := row.Scan(&id)
	return id, err
}
