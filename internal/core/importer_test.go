package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testOrg = "org-test"

// mockStore lets a test script individual datastore outcomes.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) ResolveClient(ctx context.Context, c ClientRecord) (Resolution, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(Resolution), args.Error(1)
}

func (m *mockStore) ResolvePet(ctx context.Context, p PetRecord) (Resolution, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(Resolution), args.Error(1)
}

func TestImport_DuplicateRowsCreateOnce(t *testing.T) {
	store := NewMemoryStore()
	im := NewImporter(store)

	rows := []ImportRow{
		{"name": "A", "email": "a@x.com", "pet_name": "Rex"},
		{"name": "A", "email": "a@x.com", "pet_name": "Rex"},
	}

	res, err := im.Import(context.Background(), testOrg, rows)
	require.NoError(t, err)

	assert.Equal(t, 2, res.TotalRows)
	assert.Equal(t, 1, res.ClientsCreated)
	assert.Equal(t, 1, res.PetsCreated)
	assert.Equal(t, 0, res.Skipped)
	assert.Empty(t, res.Errors)

	clients, pets := store.Counts()
	assert.Equal(t, 1, clients)
	assert.Equal(t, 1, pets)
}

func TestImport_EmptyRowIsSkipped(t *testing.T) {
	store := new(mockStore)
	im := NewImporter(store)

	res, err := im.Import(context.Background(), testOrg, []ImportRow{{}})
	require.NoError(t, err)

	assert.Equal(t, ImportResult{TotalRows: 1, Skipped: 1, Errors: []string{}, Failures: []RowFailure{}}, res)
	store.AssertNotCalled(t, "ResolveClient", mock.Anything, mock.Anything)
}

func TestImport_ClientFailureAbandonsRow(t *testing.T) {
	store := new(mockStore)
	store.On("ResolveClient", mock.Anything, mock.Anything).
		Return(Resolution{}, errors.New("insert rejected"))
	im := NewImporter(store)

	res, err := im.Import(context.Background(), testOrg, []ImportRow{
		{"name": "A", "email": "a@x.com", "pet_name": "Rex"},
	})
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "Row 1:"), res.Errors[0])
	assert.Equal(t, 0, res.ClientsCreated)
	assert.Equal(t, RowClientWrite, res.Failures[0].Kind)
	store.AssertNotCalled(t, "ResolvePet", mock.Anything, mock.Anything)
}

func TestImport_PetFailureKeepsClient(t *testing.T) {
	store := new(mockStore)
	store.On("ResolveClient", mock.Anything, mock.Anything).
		Return(Resolution{ID: "c1", Created: true}, nil)
	store.On("ResolvePet", mock.Anything, mock.MatchedBy(func(p PetRecord) bool {
		return p.OwnerID == "c1" && p.Name == "Rex"
	})).Return(Resolution{}, errors.New("weight out of range"))
	im := NewImporter(store)

	res, err := im.Import(context.Background(), testOrg, []ImportRow{
		{"name": "A", "email": "a@x.com", "pet_name": "Rex"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ClientsCreated)
	assert.Equal(t, 0, res.PetsCreated)
	assert.Equal(t, []string{"Row 1: Failed to create pet Rex - weight out of range"}, res.Errors)
	store.AssertExpectations(t)
}

func TestImport_PanicBecomesRowError(t *testing.T) {
	store := new(mockStore)
	store.On("ResolveClient", mock.Anything, mock.MatchedBy(func(c ClientRecord) bool { return c.Email == "boom@x.com" })).
		Panic("nil owner map")
	store.On("ResolveClient", mock.Anything, mock.Anything).
		Return(Resolution{ID: "c2", Created: true}, nil)
	im := NewImporter(store)

	res, err := im.Import(context.Background(), testOrg, []ImportRow{
		{"email": "boom@x.com"},
		{"email": "ok@x.com"},
	})
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, RowUnexpected, res.Failures[0].Kind)
	assert.Equal(t, "Row 1: unexpected failure: nil owner map", res.Errors[0])
	assert.Equal(t, 1, res.ClientsCreated)
}

func TestImport_MissingIDIsUnexpected(t *testing.T) {
	store := new(mockStore)
	store.On("ResolveClient", mock.Anything, mock.Anything).Return(Resolution{Created: true}, nil)
	im := NewImporter(store)

	res, err := im.Import(context.Background(), testOrg, []ImportRow{{"name": "A"}})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, RowUnexpected, res.Failures[0].Kind)
	assert.Equal(t, 0, res.ClientsCreated)
}

func TestImport_SecondRunCreatesNothing(t *testing.T) {
	store := NewMemoryStore()
	im := NewImporter(store)
	rows := []ImportRow{
		{"name": "Ann", "email": "ann@x.com", "pet_name": "Rex"},
		{"name": "Ben", "pet_name": "Tom"},
		{"client_name": "Cy", "phone_number": "555"},
	}

	first, err := im.Import(context.Background(), testOrg, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, first.ClientsCreated)
	assert.Equal(t, 2, first.PetsCreated)
	assert.Equal(t, 1, first.Skipped)

	second, err := im.Import(context.Background(), testOrg, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ClientsCreated)
	assert.Equal(t, 0, second.PetsCreated)
	assert.Empty(t, second.Errors)
}

func TestImport_CountsAddUp(t *testing.T) {
	store := new(mockStore)
	store.On("ResolveClient", mock.Anything, mock.MatchedBy(func(c ClientRecord) bool { return strings.HasPrefix(c.Email, "bad") })).
		Return(Resolution{}, errors.New("rejected"))
	store.On("ResolveClient", mock.Anything, mock.Anything).
		Return(Resolution{ID: "id", Created: true}, nil)
	im := NewImporter(store)

	var rows []ImportRow
	for i := 0; i < 12; i++ {
		switch i % 3 {
		case 0:
			rows = append(rows, ImportRow{"name": fmt.Sprintf("c%d", i)})
		case 1:
			rows = append(rows, ImportRow{"email": fmt.Sprintf("bad%d@x.com", i)})
		default:
			rows = append(rows, ImportRow{"notes": "nothing actionable"})
		}
	}

	res, err := im.Import(context.Background(), testOrg, rows)
	require.NoError(t, err)
	assert.Equal(t, res.TotalRows, res.ClientsCreated+res.Skipped+len(res.Errors))
}

func TestImport_TenantsAreIsolated(t *testing.T) {
	store := NewMemoryStore()
	im := NewImporter(store)
	rows := []ImportRow{{"name": "A", "email": "a@x.com"}}

	for _, org := range []string{"org-a", "org-b"} {
		res, err := im.Import(context.Background(), org, rows)
		require.NoError(t, err)
		assert.Equal(t, 1, res.ClientsCreated, org)
	}
}

func TestImport_MissingOrganization(t *testing.T) {
	im := NewImporter(NewMemoryStore())
	_, err := im.Import(context.Background(), "", []ImportRow{{"name": "A"}})
	assert.ErrorIs(t, err, ErrMissingOrganization)
}

func TestImport_CancelledBetweenRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := new(mockStore)
	store.On("ResolveClient", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(Resolution{ID: "c1", Created: true}, nil)
	im := NewImporter(store)

	res, err := im.Import(ctx, testOrg, []ImportRow{{"name": "A"}, {"name": "B"}, {"name": "C"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, res.TotalRows)
	assert.Equal(t, 1, res.ClientsCreated)
	store.AssertNumberOfCalls(t, "ResolveClient", 1)
}

func TestImport_CallTimeoutIsRowError(t *testing.T) {
	store := new(mockStore)
	store.On("ResolveClient", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(Resolution{}, context.DeadlineExceeded)
	im := NewImporter(store, WithCallTimeout(20*time.Millisecond))

	res, err := im.Import(context.Background(), testOrg, []ImportRow{{"name": "A"}})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Row 1: Failed to create client")
}

func TestImport_ImportDeadlineStopsWithoutRowError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	store := new(mockStore)
	store.On("ResolveClient", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(Resolution{}, context.DeadlineExceeded)
	im := NewImporter(store, WithCallTimeout(time.Minute))

	res, err := im.Import(ctx, testOrg, []ImportRow{{"name": "A"}, {"name": "B"}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "after 0 of 2 rows")
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 0, res.ClientsCreated)
	store.AssertNumberOfCalls(t, "ResolveClient", 1)
}

func TestImport_CancelledDuringPetKeepsClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := new(mockStore)
	store.On("ResolveClient", mock.Anything, mock.Anything).
		Return(Resolution{ID: "c1", Created: true}, nil)
	store.On("ResolvePet", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(Resolution{}, context.Canceled)
	im := NewImporter(store)

	res, err := im.Import(ctx, testOrg, []ImportRow{{"name": "A", "pet_name": "Rex"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.ClientsCreated)
	assert.Empty(t, res.Errors)
}

func TestImport_RowDataDoesNotPickMessage(t *testing.T) {
	driverErr := errors.New("ERROR: value too long for type character varying(255) (SQLSTATE 22001)")
	store := new(mockStore)
	for _, email := range []string{"signature.salon@x.com", "b@x.com"} {
		email := email
		store.On("ResolveClient", mock.Anything, mock.MatchedBy(func(c ClientRecord) bool { return c.Email == email })).
			Return(Resolution{}, fmt.Errorf("resolve client %s: %w", email, driverErr))
	}
	im := NewImporter(store)

	res, err := im.Import(context.Background(), testOrg, []ImportRow{
		{"name": "A", "email": "signature.salon@x.com"},
		{"name": "B", "email": "b@x.com"},
	})
	require.NoError(t, err)
	require.Len(t, res.Errors, 2)
	for i, msg := range res.Errors {
		assert.Contains(t, msg, "value too long", msg)
		assert.NotContains(t, msg, "WH001", msg)
		assert.True(t, strings.HasPrefix(msg, fmt.Sprintf("Row %d: Failed to create client - resolve client", i+1)), msg)
	}
}

func TestImport_CatalogueMatchesCause(t *testing.T) {
	store := new(mockStore)
	store.On("ResolveClient", mock.Anything, mock.Anything).
		Return(Resolution{}, fmt.Errorf("resolve client timeout@x.com: %w", errors.New(`ERROR: duplicate key value violates unique constraint "owners_pkey"`)))
	im := NewImporter(store)

	res, err := im.Import(context.Background(), testOrg, []ImportRow{{"email": "timeout@x.com"}})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Row 1: Failed to create client - A record with this key already exists (Code: DB001)", res.Errors[0])
}

func TestImport_ExistingClientIsNotUpdated(t *testing.T) {
	store := NewMemoryStore()
	im := NewImporter(store)

	_, err := im.Import(context.Background(), testOrg, []ImportRow{{"name": "Original", "email": "a@x.com"}})
	require.NoError(t, err)
	_, err = im.Import(context.Background(), testOrg, []ImportRow{{"name": "Changed", "email": "A@X.com", "phone": "555"}})
	require.NoError(t, err)

	c, ok := store.Client(testOrg, "a@x.com")
	require.True(t, ok)
	assert.Equal(t, "Original", c.Name)
	assert.Nil(t, c.Phone)
}
