package core

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// RunStatus is the terminal state of an import run.
type RunStatus string

const (
	StatusCompleted           RunStatus = "completed"
	StatusCompletedWithErrors RunStatus = "completed_with_errors"
	StatusCancelled           RunStatus = "cancelled"
	StatusFailed              RunStatus = "failed"
)

// ImportRun is one entry of the import history ledger.
type ImportRun struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	FileName       string       `json:"file_name,omitempty"`
	Source         Source       `json:"source"`
	Checksum       string       `json:"checksum,omitempty"`
	DryRun         bool         `json:"dry_run"`
	Status         RunStatus    `json:"status"`
	Result         ImportResult `json:"result"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`

	// PreviousRunID links to the last non-dry run of identical content for the
	// same organization, if there was one.
	PreviousRunID string `json:"previous_run_id,omitempty"`
}

// RunStore persists the import history.
type RunStore interface {
	SaveRun(ctx context.Context, run *ImportRun) error
	// ListRuns returns the organization's runs, newest first.
	ListRuns(ctx context.Context, organizationID string, limit int) ([]ImportRun, error)
	// GetRun returns ErrRunNotFound for unknown IDs and for other organizations' runs.
	GetRun(ctx context.Context, organizationID, runID string) (*ImportRun, error)
	// FindRunByChecksum returns the newest non-dry run with checksum, or ErrRunNotFound.
	FindRunByChecksum(ctx context.Context, organizationID, checksum string) (*ImportRun, error)
	PurgeRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Notifier is told about every finished, non-dry import.
type Notifier interface {
	NotifyImport(ctx context.Context, run *ImportRun) error
}

// WriteFailuresCSV writes a run's row failures as "row,kind,message" CSV.
func WriteFailuresCSV(w io.Writer, run *ImportRun) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"row", "kind", "message"}); err != nil {
		return err
	}
	for _, f := range run.Result.Failures {
		if err := cw.Write([]string{strconv.Itoa(f.Row), string(f.Kind), f.Message}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
