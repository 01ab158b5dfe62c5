package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/barkbook/internal/core"
)

// raceRetries bounds how often an insert-or-fetch that lost a race is re-run.
const raceRetries = 3

// Store implements core.Store, core.Finder and core.RunStore on Postgres.
type Store struct {
	q          *Queries
	newBackOff func() backoff.BackOff
}

// NewStore wraps db, typically a *pgxpool.Pool.
func NewStore(db DBTX) *Store {
	return &Store{
		q: New(db),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 10 * time.Millisecond
			b.MaxInterval = 200 * time.Millisecond
			return b
		},
	}
}

func (s *Store) ResolveClient(ctx context.Context, c core.ClientRecord) (core.Resolution, error) {
	params := ResolveOwnerParams{
		ID:             NewUUID(),
		OrganizationID: c.OrganizationID,
		Name:           c.Name,
		Email:          c.Email,
		Phone:          TextPtr(c.Phone),
		Address:        TextPtr(c.Address),
	}

	var row ResolveOwnerRow
	err := s.retryRace(ctx, "resolve owner", func() error {
		var err error
		row, err = s.q.ResolveOwner(ctx, params)
		return err
	})
	if err != nil {
		return core.Resolution{}, fmt.Errorf("resolve client %s: %w", c.Email, err)
	}
	return core.Resolution{ID: UUIDString(row.ID), Created: row.Created}, nil
}

func (s *Store) ResolvePet(ctx context.Context, p core.PetRecord) (core.Resolution, error) {
	ownerID, err := ParseUUID(p.OwnerID)
	if err != nil {
		return core.Resolution{}, fmt.Errorf("resolve pet %s: %w", p.Name, err)
	}
	params := ResolvePetParams{
		ID:             NewUUID(),
		OwnerID:        ownerID,
		OrganizationID: p.OrganizationID,
		Name:           p.Name,
		Species:        p.Species,
		Breed:          TextPtr(p.Breed),
		WeightKg:       NumericPtr(p.WeightKg),
		AgeYears:       Int4Ptr(p.AgeYears),
		Notes:          TextPtr(p.Notes),
	}

	var row ResolvePetRow
	err = s.retryRace(ctx, "resolve pet", func() error {
		var err error
		row, err = s.q.ResolvePet(ctx, params)
		return err
	})
	if err != nil {
		return core.Resolution{}, fmt.Errorf("resolve pet %s: %w", p.Name, err)
	}
	return core.Resolution{ID: UUIDString(row.ID), Created: row.Created}, nil
}

// retryRace re-runs op while it returns pgx.ErrNoRows, which for the
// insert-or-fetch queries means a concurrent import committed the same key
// after our snapshot. Any other error is returned at once.
func (s *Store) retryRace(ctx context.Context, what string, op func() error) error {
	var opErr error
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), raceRetries), ctx)

	err := backoff.RetryNotify(func() error {
		opErr = op()
		if errors.Is(opErr, pgx.ErrNoRows) {
			return opErr
		}
		return nil
	}, b, func(err error, wait time.Duration) {
		slog.Debug("insert-or-fetch lost a race, retrying", "op", what, "wait", wait)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: conflicting row not visible after %d retries: %w", what, raceRetries, err)
	}
	return opErr
}

func (s *Store) FindClient(ctx context.Context, organizationID, email string) (string, error) {
	id, err := s.q.FindOwnerByEmail(ctx, organizationID, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find client %s: %w", email, err)
	}
	return UUIDString(id), nil
}

func (s *Store) FindPet(ctx context.Context, ownerID, name string) (string, error) {
	owner, err := ParseUUID(ownerID)
	if err != nil {
		// Dry runs hand out placeholder owner IDs; nothing can be stored under them.
		return "", core.ErrNotFound
	}
	id, err := s.q.FindPetByName(ctx, owner, name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find pet %s: %w", name, err)
	}
	return UUIDString(id), nil
}

func (s *Store) SaveRun(ctx context.Context, run *core.ImportRun) error {
	row, err := runToRow(run)
	if err != nil {
		return err
	}
	if err := s.q.InsertImportRun(ctx, row); err != nil {
		return fmt.Errorf("save import run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, organizationID string, limit int) ([]core.ImportRun, error) {
	rows, err := s.q.ListImportRuns(ctx, organizationID, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	runs := make([]core.ImportRun, 0, len(rows))
	for _, r := range rows {
		run, err := rowToRun(r)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func (s *Store) GetRun(ctx context.Context, organizationID, runID string) (*core.ImportRun, error) {
	id, err := ParseUUID(runID)
	if err != nil {
		return nil, core.ErrRunNotFound
	}
	row, err := s.q.GetImportRun(ctx, organizationID, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import run %s: %w", runID, err)
	}
	return rowToRun(row)
}

func (s *Store) FindRunByChecksum(ctx context.Context, organizationID, checksum string) (*core.ImportRun, error) {
	row, err := s.q.FindImportRunByChecksum(ctx, organizationID, checksum)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find import run by checksum: %w", err)
	}
	return rowToRun(row)
}

func (s *Store) PurgeRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.q.PurgeImportRunsBefore(ctx, Timestamptz(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge import runs: %w", err)
	}
	return n, nil
}

func runToRow(run *core.ImportRun) (ImportRun, error) {
	id, err := ParseUUID(run.ID)
	if err != nil {
		return ImportRun{}, err
	}
	var prev pgtype.UUID
	if run.PreviousRunID != "" {
		if prev, err = ParseUUID(run.PreviousRunID); err != nil {
			return ImportRun{}, err
		}
	}
	failures := run.Result.Failures
	if failures == nil {
		failures = []core.RowFailure{}
	}
	payload, err := json.Marshal(failures)
	if err != nil {
		return ImportRun{}, fmt.Errorf("encode failures: %w", err)
	}

	return ImportRun{
		ID:             id,
		OrganizationID: run.OrganizationID,
		FileName:       Text(run.FileName),
		Source:         string(run.Source),
		Checksum:       Text(run.Checksum),
		DryRun:         run.DryRun,
		Status:         string(run.Status),
		TotalRows:      int32(run.Result.TotalRows),
		ClientsCreated: int32(run.Result.ClientsCreated),
		PetsCreated:    int32(run.Result.PetsCreated),
		Skipped:        int32(run.Result.Skipped),
		Failures:       payload,
		StartedAt:      Timestamptz(run.StartedAt),
		FinishedAt:     Timestamptz(run.FinishedAt),
		PreviousRunID:  prev,
	}, nil
}

func rowToRun(r ImportRun) (*core.ImportRun, error) {
	source, err := core.ParseSource(r.Source)
	if err != nil {
		return nil, err
	}
	var failures []core.RowFailure
	if len(r.Failures) > 0 {
		if err := json.Unmarshal(r.Failures, &failures); err != nil {
			return nil, fmt.Errorf("decode failures of run %s: %w", UUIDString(r.ID), err)
		}
	}
	errs := make([]string, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, f.Message)
	}

	return &core.ImportRun{
		ID:             UUIDString(r.ID),
		OrganizationID: r.OrganizationID,
		FileName:       TextValue(r.FileName),
		Source:         source,
		Checksum:       TextValue(r.Checksum),
		DryRun:         r.DryRun,
		Status:         core.RunStatus(r.Status),
		Result: core.ImportResult{
			TotalRows:      int(r.TotalRows),
			ClientsCreated: int(r.ClientsCreated),
			PetsCreated:    int(r.PetsCreated),
			Skipped:        int(r.Skipped),
			Errors:         errs,
			Failures:       failures,
		},
		StartedAt:     TimeValue(r.StartedAt),
		FinishedAt:    TimeValue(r.FinishedAt),
		PreviousRunID: UUIDString(r.PreviousRunID),
	}, nil
}
