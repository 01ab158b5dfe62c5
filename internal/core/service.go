package core

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// ServiceConfig bounds import runs. Zero values select defaults.
type ServiceConfig struct {
	MaxFileSize   int64         // bytes; default 10MB
	MaxRows       int           // rows per run; default 10000
	MaxConcurrent int           // parallel runs; default DefaultMaxConcurrentImports
	MaxWaitTime   time.Duration // wait for a run slot; default DefaultMaxWaitTime
	CallTimeout   time.Duration // per datastore call; default DefaultCallTimeout
	ImportTimeout time.Duration // whole run; default 5m
}

const (
	defaultMaxFileSize   = 10 << 20
	defaultMaxRows       = 10000
	defaultImportTimeout = 5 * time.Minute
	saveRunTimeout       = 5 * time.Second
)

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = defaultMaxFileSize
	}
	if c.MaxRows <= 0 {
		c.MaxRows = defaultMaxRows
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.ImportTimeout <= 0 {
		c.ImportTimeout = defaultImportTimeout
	}
	return c
}

// Service is the entry point for import operations. It is safe for concurrent use.
type Service struct {
	store    Store
	finder   Finder
	runs     RunStore
	notifier Notifier
	limiter  *ImportLimiter
	cfg      ServiceConfig
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNotifier sends a summary of every finished, non-dry run to n.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithLogger replaces slog.Default for service diagnostics.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires the import service. finder backs dry runs and may be the
// same value as store.
func NewService(store Store, finder Finder, runs RunStore, cfg ServiceConfig, opts ...ServiceOption) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		store:   store,
		finder:  finder,
		runs:    runs,
		limiter: NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// runRequest describes one import run before it starts.
type runRequest struct {
	organizationID string
	fileName       string
	source         Source
	checksum       string
	dryRun         bool
	rows           []ImportRow
}

// ImportRows imports rows supplied directly by the caller (the JSON API).
func (s *Service) ImportRows(ctx context.Context, organizationID string, rows []ImportRow, dryRun bool) (*ImportRun, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	sum, err := checksumRows(rows)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, runRequest{
		organizationID: organizationID,
		source:         SourceJSON,
		checksum:       sum,
		dryRun:         dryRun,
		rows:           rows,
	})
}

// FileImport is an uploaded file to import.
type FileImport struct {
	OrganizationID string
	FileName       string
	Reader         io.Reader
	DryRun         bool
}

// ImportFile parses a .csv or .xlsx upload and imports its rows.
func (s *Service) ImportFile(ctx context.Context, req FileImport) (*ImportRun, error) {
	source, err := SourceForFile(req.FileName)
	if err != nil {
		return nil, err
	}
	data, err := readLimited(req.Reader, s.cfg.MaxFileSize)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseFile(source, data)
	if err != nil {
		return nil, err
	}
	if len(parsed.Rows) == 0 {
		return nil, ErrNoRows
	}
	return s.run(ctx, runRequest{
		organizationID: req.OrganizationID,
		fileName:       req.FileName,
		source:         source,
		checksum:       checksumBytes(data),
		dryRun:         req.DryRun,
		rows:           parsed.Rows,
	})
}

func (s *Service) run(ctx context.Context, req runRequest) (*ImportRun, error) {
	if req.organizationID == "" {
		return nil, ErrMissingOrganization
	}
	if len(req.rows) > s.cfg.MaxRows {
		return nil, fmt.Errorf("%w: %d rows, limit is %d", ErrTooManyRows, len(req.rows), s.cfg.MaxRows)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ImportTimeout)
	defer cancel()

	store := s.store
	if req.dryRun {
		store = NewReadOnlyStore(s.finder)
	}

	run := &ImportRun{
		ID:             uuid.NewString(),
		OrganizationID: req.organizationID,
		FileName:       req.fileName,
		Source:         req.source,
		Checksum:       req.checksum,
		DryRun:         req.dryRun,
		StartedAt:      s.now().UTC(),
	}
	if req.checksum != "" {
		prev, err := s.runs.FindRunByChecksum(ctx, req.organizationID, req.checksum)
		switch {
		case err == nil:
			run.PreviousRunID = prev.ID
		case !errors.Is(err, ErrRunNotFound):
			s.logger.Warn("checksum lookup failed", "error", err)
		}
	}

	logger := s.logger.With(
		"run_id", run.ID,
		"organization_id", run.OrganizationID,
		"dry_run", run.DryRun,
		"ip", IPAddressFromContext(ctx),
		"user_agent", UserAgentFromContext(ctx),
	)
	logger.Info("import started", "rows", len(req.rows), "source", req.source, "file", req.fileName,
		"previous_run_id", run.PreviousRunID)

	importer := NewImporter(store, WithCallTimeout(s.cfg.CallTimeout), WithImportLogger(logger))
	result, importErr := importer.Import(ctx, req.organizationID, req.rows)

	run.Result = result
	run.FinishedAt = s.now().UTC()
	run.Status = statusFor(result, importErr)

	// The run is recorded even when the request context is already gone.
	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), saveRunTimeout)
	defer saveCancel()
	if err := s.runs.SaveRun(saveCtx, run); err != nil {
		logger.Error("save import run failed", "error", err)
	}

	if s.notifier != nil && !run.DryRun && run.Status != StatusFailed {
		if err := s.notifier.NotifyImport(saveCtx, run); err != nil {
			logger.Warn("import notification failed", "error", err)
		}
	}

	if importErr != nil {
		return run, importErr
	}
	return run, nil
}

func statusFor(res ImportResult, err error) RunStatus {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	case err != nil:
		return StatusFailed
	case len(res.Errors) > 0:
		return StatusCompletedWithErrors
	default:
		return StatusCompleted
	}
}

// ListRuns returns the organization's most recent runs, newest first.
func (s *Service) ListRuns(ctx context.Context, organizationID string, limit int) ([]ImportRun, error) {
	if organizationID == "" {
		return nil, ErrMissingOrganization
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.runs.ListRuns(ctx, organizationID, limit)
}

// GetRun returns one run of the organization.
func (s *Service) GetRun(ctx context.Context, organizationID, runID string) (*ImportRun, error) {
	if organizationID == "" {
		return nil, ErrMissingOrganization
	}
	return s.runs.GetRun(ctx, organizationID, runID)
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until in-flight imports finish or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func checksumBytes(data []byte) string {
	h := xxhash.New()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// checksumRows hashes the canonical JSON of rows; encoding/json sorts map keys.
func checksumRows(rows []ImportRow) (string, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("checksum rows: %w", err)
	}
	return checksumBytes(data), nil
}
