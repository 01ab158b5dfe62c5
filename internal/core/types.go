package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ImportRow is one raw input record: column name -> cell value.
// Arbitrary extra keys are allowed and ignored by the normalizer.
type ImportRow map[string]string

// UnmarshalJSON accepts rows whose values are strings, numbers, booleans or null.
// Browser uploaders routinely send "pet_age": 5 rather than "5". Arrays and
// objects are kept as their compact JSON text.
func (r *ImportRow) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	row := make(ImportRow, len(raw))
	for key, val := range raw {
		val = bytes.TrimSpace(val)
		switch {
		case len(val) == 0 || bytes.Equal(val, []byte("null")):
			row[key] = ""
		case val[0] == '"':
			var s string
			if err := json.Unmarshal(val, &s); err != nil {
				return fmt.Errorf("column %q: %w", key, err)
			}
			row[key] = s
		case bytes.Equal(val, []byte("true")), bytes.Equal(val, []byte("false")):
			row[key] = string(val)
		case val[0] == '[' || val[0] == '{':
			var buf bytes.Buffer
			if err := json.Compact(&buf, val); err != nil {
				return fmt.Errorf("column %q: %w", key, err)
			}
			row[key] = buf.String()
		default:
			var n json.Number
			if err := json.Unmarshal(val, &n); err != nil {
				return fmt.Errorf("column %q: unsupported value %s", key, val)
			}
			row[key] = n.String()
		}
	}

	*r = row
	return nil
}

// ClientRecord is the canonical pet-owner record written to the datastore.
// Email is never empty and, together with OrganizationID, is the dedup key.
type ClientRecord struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Phone          *string `json:"phone,omitempty"`
	Address        *string `json:"address,omitempty"`
	OrganizationID string  `json:"organization_id"`
}

// PetRecord is the canonical pet record. (Name, OwnerID) is the dedup key.
type PetRecord struct {
	Name           string   `json:"name"`
	Breed          *string  `json:"breed,omitempty"`
	WeightKg       *float64 `json:"weight_kg,omitempty"`
	AgeYears       *int     `json:"age_years,omitempty"`
	Notes          *string  `json:"notes,omitempty"`
	OwnerID        string   `json:"owner_id"`
	OrganizationID string   `json:"organization_id"`
	Species        string   `json:"species"`
}

// Resolution is the outcome of an insert-or-fetch against the datastore.
type Resolution struct {
	ID      string
	Created bool // false when an existing record matched the dedup key
}

// ErrNotFound is returned by a Finder when no record matches the dedup key.
var ErrNotFound = errors.New("record not found")

// Store is the datastore collaborator the importer writes through.
//
// Both methods are insert-or-fetch: implementations must resolve the dedup
// key and insert in one constrained operation so that two concurrent imports
// of the same data cannot create duplicates. Existing records are never
// updated.
type Store interface {
	ResolveClient(ctx context.Context, client ClientRecord) (Resolution, error)
	ResolvePet(ctx context.Context, pet PetRecord) (Resolution, error)
}

// Finder looks records up by dedup key without writing.
// Both methods return ErrNotFound when nothing matches.
type Finder interface {
	FindClient(ctx context.Context, organizationID, email string) (string, error)
	FindPet(ctx context.Context, ownerID, name string) (string, error)
}

// ImportResult is the per-call summary returned after every row was processed.
type ImportResult struct {
	TotalRows      int      `json:"total_rows"`
	ClientsCreated int      `json:"clients_created"`
	PetsCreated    int      `json:"pets_created"`
	Skipped        int      `json:"skipped"`
	Errors         []string `json:"errors"`

	// Failures mirrors Errors with the row number and error kind kept apart,
	// for the history ledger and the failed-rows export.
	Failures []RowFailure `json:"-"`
}

// RowFailure is the structured form of one entry in ImportResult.Errors.
type RowFailure struct {
	Row     int          `json:"row"`
	Kind    RowErrorKind `json:"kind"`
	Message string       `json:"message"`
}

// Source identifies how rows reached the importer.
type Source string

const (
	SourceJSON        Source = "json"
	SourceCSV         Source = "csv"
	SourceSpreadsheet Source = "xlsx"
)

// ParseSource converts a stored source name back to a Source.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceJSON, SourceCSV, SourceSpreadsheet:
		return Source(s), nil
	}
	return "", fmt.Errorf("unknown source %s", strconv.Quote(s))
}
