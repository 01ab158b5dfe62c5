package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	runs []ImportRun
	err  error
}

func (n *recordingNotifier) NotifyImport(ctx context.Context, run *ImportRun) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.runs = append(n.runs, *run)
	return n.err
}

func newTestService(t *testing.T, cfg ServiceConfig, opts ...ServiceOption) (*Service, *MemoryStore, *MemoryRunStore) {
	t.Helper()
	store := NewMemoryStore()
	runs := NewMemoryRunStore()
	return NewService(store, store, runs, cfg, opts...), store, runs
}

func TestService_ImportRows(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, store, runs := newTestService(t, ServiceConfig{}, WithNotifier(notifier))

	run, err := svc.ImportRows(context.Background(), "org-1", []ImportRow{
		{"name": "Ann", "email": "ann@x.com", "pet_name": "Rex"},
		{},
	}, false)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, SourceJSON, run.Source)
	assert.NotEmpty(t, run.Checksum)
	assert.Equal(t, 1, run.Result.ClientsCreated)
	assert.Equal(t, 1, run.Result.Skipped)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))

	clients, pets := store.Counts()
	assert.Equal(t, 1, clients)
	assert.Equal(t, 1, pets)

	saved, err := runs.GetRun(context.Background(), "org-1", run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Result.ClientsCreated, saved.Result.ClientsCreated)

	require.Len(t, notifier.runs, 1)
	assert.Equal(t, run.ID, notifier.runs[0].ID)
}

func TestService_ImportRowsValidation(t *testing.T) {
	svc, _, _ := newTestService(t, ServiceConfig{MaxRows: 2})
	ctx := context.Background()

	_, err := svc.ImportRows(ctx, "org-1", nil, false)
	assert.ErrorIs(t, err, ErrNoRows)

	_, err = svc.ImportRows(ctx, "", []ImportRow{{"name": "A"}}, false)
	assert.ErrorIs(t, err, ErrMissingOrganization)

	_, err = svc.ImportRows(ctx, "org-1", []ImportRow{{}, {}, {}}, false)
	assert.ErrorIs(t, err, ErrTooManyRows)
}

func TestService_DryRunWritesNothing(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, store, _ := newTestService(t, ServiceConfig{}, WithNotifier(notifier))
	ctx := context.Background()

	_, err := svc.ImportRows(ctx, "org-1", []ImportRow{{"name": "Ann", "email": "ann@x.com"}}, false)
	require.NoError(t, err)

	rows := []ImportRow{
		{"name": "Ann", "email": "ann@x.com", "pet_name": "Rex"},
		{"name": "Ben", "email": "ben@x.com", "pet_name": "Tom"},
		{"name": "Ben", "email": "ben@x.com", "pet_name": "Tom"},
	}
	run, err := svc.ImportRows(ctx, "org-1", rows, true)
	require.NoError(t, err)

	assert.True(t, run.DryRun)
	assert.Equal(t, 1, run.Result.ClientsCreated, "only ben is new")
	assert.Equal(t, 2, run.Result.PetsCreated, "rex and tom, tom once")

	clients, pets := store.Counts()
	assert.Equal(t, 1, clients)
	assert.Equal(t, 0, pets)
	assert.Len(t, notifier.runs, 1, "dry runs are not notified")
}

func TestService_ImportFileCSV(t *testing.T) {
	svc, _, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	body := "\xEF\xBB\xBFname,email,pet_name\nAnn,ann@x.com,Rex\nBen,,Tom\n"

	first, err := svc.ImportFile(ctx, FileImport{OrganizationID: "org-1", FileName: "clients.csv", Reader: strings.NewReader(body)})
	require.NoError(t, err)
	assert.Equal(t, SourceCSV, first.Source)
	assert.Equal(t, "clients.csv", first.FileName)
	assert.Equal(t, 2, first.Result.ClientsCreated)
	assert.Empty(t, first.PreviousRunID)

	second, err := svc.ImportFile(ctx, FileImport{OrganizationID: "org-1", FileName: "clients.csv", Reader: strings.NewReader(body)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.PreviousRunID)
	assert.Equal(t, first.Checksum, second.Checksum)
	assert.Equal(t, 0, second.Result.ClientsCreated)
	assert.Equal(t, 0, second.Result.PetsCreated)
}

func TestService_ImportFileErrors(t *testing.T) {
	svc, _, _ := newTestService(t, ServiceConfig{MaxFileSize: 32})
	ctx := context.Background()

	tests := []struct {
		name    string
		file    string
		body    string
		wantErr error
	}{
		{"unsupported", "a.pdf", "x", ErrUnsupportedFile},
		{"too large", "a.csv", strings.Repeat("x", 33), ErrFileTooLarge},
		{"empty", "a.csv", "\n\n", ErrEmptyInput},
		{"header only", "a.csv", "name,email\n", ErrNoRows},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ImportFile(ctx, FileImport{OrganizationID: "org-1", FileName: tt.file, Reader: strings.NewReader(tt.body)})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_CancelledRunIsRecorded(t *testing.T) {
	svc, _, runs := newTestService(t, ServiceConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := svc.ImportRows(ctx, "org-1", []ImportRow{{"name": "A"}}, false)
	// The limiter may observe the cancellation before the importer does.
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	if run != nil {
		assert.Equal(t, StatusCancelled, run.Status)
		_, getErr := runs.GetRun(context.Background(), "org-1", run.ID)
		assert.NoError(t, getErr)
	}
}

func TestService_StatusFor(t *testing.T) {
	assert.Equal(t, StatusCompleted, statusFor(ImportResult{}, nil))
	assert.Equal(t, StatusCompletedWithErrors, statusFor(ImportResult{Errors: []string{"Row 1: x"}}, nil))
	assert.Equal(t, StatusCancelled, statusFor(ImportResult{}, context.DeadlineExceeded))
	assert.Equal(t, StatusFailed, statusFor(ImportResult{}, ErrMissingOrganization))
}

func TestService_History(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	svc, _, _ := newTestService(t, ServiceConfig{}, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		now = base.Add(time.Duration(i) * time.Hour)
		_, err := svc.ImportRows(ctx, "org-1", []ImportRow{{"name": "A", "email": "a@x.com"}}, false)
		require.NoError(t, err)
	}
	_, err := svc.ImportRows(ctx, "org-2", []ImportRow{{"name": "B"}}, false)
	require.NoError(t, err)

	list, err := svc.ListRuns(ctx, "org-1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].StartedAt.After(list[1].StartedAt), "newest first")

	_, err = svc.GetRun(ctx, "org-2", list[0].ID)
	assert.ErrorIs(t, err, ErrRunNotFound, "runs are scoped to their organization")

	now = base.AddDate(0, 0, 91)
	svc.purgeRuns(ctx, 90)
	list, err = svc.ListRuns(ctx, "org-1", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_NotifierFailureDoesNotFailRun(t *testing.T) {
	svc, _, _ := newTestService(t, ServiceConfig{}, WithNotifier(&recordingNotifier{err: errors.New("smtp down")}))
	run, err := svc.ImportRows(context.Background(), "org-1", []ImportRow{{"name": "A"}}, false)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
}

func TestService_LimiterBusy(t *testing.T) {
	svc, _, _ := newTestService(t, ServiceConfig{MaxConcurrent: 1, MaxWaitTime: 20 * time.Millisecond})
	require.NoError(t, svc.limiter.Acquire(context.Background()))
	defer svc.limiter.Release()

	_, err := svc.ImportRows(context.Background(), "org-1", []ImportRow{{"name": "A"}}, false)
	assert.ErrorIs(t, err, ErrTooManyImports)
	assert.Equal(t, 1, svc.LimiterStatus().Active)
}

func TestService_Preview(t *testing.T) {
	svc, store, _ := newTestService(t, ServiceConfig{})
	var b strings.Builder
	b.WriteString("Name,Email,Pet Name,favourite_toy\n")
	for i := 0; i < 7; i++ {
		b.WriteString("Ann,ann@x.com,Rex,ball\n")
	}
	b.WriteString(",,,ball\n")

	p, err := svc.Preview(context.Background(), "clients.csv", strings.NewReader(b.String()))
	require.NoError(t, err)

	assert.Equal(t, 8, p.TotalRows)
	assert.Equal(t, 1, p.Skippable)
	assert.Equal(t, 7, p.WithPets)
	assert.Len(t, p.Sample, previewSampleRows)
	assert.Equal(t, FieldPetName, p.Recognized["Pet Name"])
	assert.Equal(t, []string{"favourite_toy"}, p.Unknown)

	clients, _ := store.Counts()
	assert.Zero(t, clients)
}

func TestWriteFailuresCSV(t *testing.T) {
	run := &ImportRun{Result: ImportResult{Failures: []RowFailure{
		{Row: 2, Kind: RowPetWrite, Message: "Row 2: Failed to create pet Rex - bad, very bad"},
	}}}
	var buf bytes.Buffer
	require.NoError(t, WriteFailuresCSV(&buf, run))
	assert.Equal(t, "row,kind,message\n2,pet_write,\"Row 2: Failed to create pet Rex - bad, very bad\"\n", buf.String())
}

func TestService_RetentionPurge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _, runs := newTestService(t, ServiceConfig{}, WithClock(func() time.Time { return now }))

	ctx := context.Background()
	require.NoError(t, runs.SaveRun(ctx, &ImportRun{ID: "old", OrganizationID: "org-1", StartedAt: now.AddDate(0, 0, -31)}))
	require.NoError(t, runs.SaveRun(ctx, &ImportRun{ID: "recent", OrganizationID: "org-1", StartedAt: now.AddDate(0, 0, -2)}))

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	// The first purge runs before the loop notices cancellation.
	svc.StartRetentionScheduler(ctx, RetentionConfig{RetentionDays: 30, CheckInterval: time.Hour})

	left, err := svc.ListRuns(context.Background(), "org-1", 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "recent", left[0].ID)
}
