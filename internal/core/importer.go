package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultCallTimeout bounds each individual datastore call.
const DefaultCallTimeout = 10 * time.Second

// Importer runs the per-row normalize -> dedup -> upsert pipeline.
// It is safe for concurrent use if its Store is.
type Importer struct {
	store       Store
	callTimeout time.Duration
	logger      *slog.Logger
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithCallTimeout bounds each ResolveClient/ResolvePet call. Zero disables it.
func WithCallTimeout(d time.Duration) ImporterOption {
	return func(im *Importer) { im.callTimeout = d }
}

// WithImportLogger sets the logger used for per-row diagnostics.
func WithImportLogger(l *slog.Logger) ImporterOption {
	return func(im *Importer) { im.logger = l }
}

// NewImporter creates an Importer writing through store.
func NewImporter(store Store, opts ...ImporterOption) *Importer {
	im := &Importer{
		store:       store,
		callTimeout: DefaultCallTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Import processes rows in order for one organization.
//
// Row-level failures never abort the call; they are recorded in the result.
// Only request-level conditions return an error: a missing organization, or
// ctx ending between rows or during a datastore call. A row interrupted that
// way is neither counted nor recorded as failed. In the latter case the partial result covers
// every row processed so far and the datastore keeps what was written.
func (im *Importer) Import(ctx context.Context, organizationID string, rows []ImportRow) (ImportResult, error) {
	agg := newAggregator(len(rows))
	if organizationID == "" {
		return agg.finish(), ErrMissingOrganization
	}

	for i, row := range rows {
		err := ctx.Err()
		if err == nil {
			err = im.processRow(ctx, i, row, organizationID, agg)
		}
		if err != nil {
			im.logger.Warn("import stopped", "processed", i, "total", len(rows), "error", err)
			return agg.finish(), fmt.Errorf("import stopped after %d of %d rows: %w", i, len(rows), err)
		}
	}

	res := agg.finish()
	im.logger.Info("import finished",
		"organization_id", organizationID,
		"total_rows", res.TotalRows,
		"clients_created", res.ClientsCreated,
		"pets_created", res.PetsCreated,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
	)
	return res, nil
}

// processRow records the row's outcome in agg. It returns ctx's error, without
// recording a row failure, when a datastore call failed because ctx ended.
func (im *Importer) processRow(ctx context.Context, index int, row ImportRow, organizationID string, agg *aggregator) error {
	rowNum := index + 1
	defer func() {
		if r := recover(); r != nil {
			im.logger.Error("row panicked", "row", rowNum, "panic", r)
			agg.fail(&RowError{Row: rowNum, Kind: RowUnexpected, Err: fmt.Errorf("unexpected failure: %v", r)})
		}
	}()

	cand := Normalize(row, index, organizationID)
	if cand.Skippable {
		agg.skip()
		return nil
	}
	if cand.LastVisit != "" || cand.NextAppointment != "" {
		im.logger.Debug("appointment data not imported",
			"row", rowNum, "last_visit", cand.LastVisit, "next_appointment", cand.NextAppointment)
	}

	client, err := im.resolveClient(ctx, cand.Client)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		agg.fail(&RowError{Row: rowNum, Kind: RowClientWrite, Err: err})
		return nil
	}
	if client.ID == "" {
		agg.fail(&RowError{Row: rowNum, Kind: RowUnexpected, Err: errors.New("client resolved without an id")})
		return nil
	}
	if client.Created {
		agg.clientCreated()
		im.logger.Debug("client created", "row", rowNum, "client_id", client.ID)
	}

	if cand.Pet == nil {
		return nil
	}
	pet := *cand.Pet
	pet.OwnerID = client.ID

	res, err := im.resolvePet(ctx, pet)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		agg.fail(&RowError{Row: rowNum, Kind: RowPetWrite, PetName: pet.Name, Err: err})
		return nil
	}
	if res.Created {
		agg.petCreated()
		im.logger.Debug("pet created", "row", rowNum, "pet_id", res.ID, "owner_id", client.ID)
	}
	return nil
}

func (im *Importer) resolveClient(ctx context.Context, c ClientRecord) (Resolution, error) {
	ctx, cancel := im.callContext(ctx)
	defer cancel()
	return im.store.ResolveClient(ctx, c)
}

func (im *Importer) resolvePet(ctx context.Context, p PetRecord) (Resolution, error) {
	ctx, cancel := im.callContext(ctx)
	defer cancel()
	return im.store.ResolvePet(ctx, p)
}

func (im *Importer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if im.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, im.callTimeout)
}

// aggregator accumulates counters and row errors for one Import call.
type aggregator struct {
	res ImportResult
}

func newAggregator(total int) *aggregator {
	return &aggregator{res: ImportResult{
		TotalRows: total,
		Errors:    []string{},
		Failures:  []RowFailure{},
	}}
}

func (a *aggregator) skip()          { a.res.Skipped++ }
func (a *aggregator) clientCreated() { a.res.ClientsCreated++ }
func (a *aggregator) petCreated()    { a.res.PetsCreated++ }

func (a *aggregator) fail(err *RowError) {
	msg := err.Error()
	a.res.Errors = append(a.res.Errors, msg)
	a.res.Failures = append(a.res.Failures, RowFailure{Row: err.Row, Kind: err.Kind, Message: msg})
}

func (a *aggregator) finish() ImportResult {
	return a.res
}
