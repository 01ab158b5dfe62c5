package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Owner struct {
	ID             pgtype.UUID
	OrganizationID string
	Name           string
	Email          string
	Phone          pgtype.Text
	Address        pgtype.Text
	CreatedAt      pgtype.Timestamptz
}

type Pet struct {
	ID             pgtype.UUID
	OwnerID        pgtype.UUID
	OrganizationID string
	Name           string
	Species        string
	Breed          pgtype.Text
	WeightKg       pgtype.Numeric
	AgeYears       pgtype.Int4
	Notes          pgtype.Text
	CreatedAt      pgtype.Timestamptz
}

type ImportRun struct {
	ID             pgtype.UUID
	OrganizationID string
	FileName       pgtype.Text
	Source         string
	Checksum       pgtype.Text
	DryRun         bool
	Status         string
	TotalRows      int32
	ClientsCreated int32
	PetsCreated    int32
	Skipped        int32
	Failures       []byte // jsonb array of core.RowFailure
	StartedAt      pgtype.Timestamptz
	FinishedAt     pgtype.Timestamptz
	PreviousRunID  pgtype.UUID
}
