package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store and Finder with the same dedup keys as
// the Postgres store. It backs tests and the CLI's offline dry run.
type MemoryStore struct {
	mu      sync.Mutex
	clients map[clientKey]ClientRecord
	ids     map[clientKey]string
	pets    map[petKey]string
	petRecs map[string]PetRecord
}

type clientKey struct{ org, email string }
type petKey struct{ owner, name string }

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients: make(map[clientKey]ClientRecord),
		ids:     make(map[clientKey]string),
		pets:    make(map[petKey]string),
		petRecs: make(map[string]PetRecord),
	}
}

func (m *MemoryStore) ResolveClient(ctx context.Context, c ClientRecord) (Resolution, error) {
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := clientKey{c.OrganizationID, c.Email}
	if id, ok := m.ids[key]; ok {
		return Resolution{ID: id}, nil
	}
	id := uuid.NewString()
	m.ids[key] = id
	m.clients[key] = c
	return Resolution{ID: id, Created: true}, nil
}

func (m *MemoryStore) ResolvePet(ctx context.Context, p PetRecord) (Resolution, error) {
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := petKey{p.OwnerID, p.Name}
	if id, ok := m.pets[key]; ok {
		return Resolution{ID: id}, nil
	}
	id := uuid.NewString()
	m.pets[key] = id
	m.petRecs[id] = p
	return Resolution{ID: id, Created: true}, nil
}

func (m *MemoryStore) FindClient(ctx context.Context, organizationID, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.ids[clientKey{organizationID, email}]; ok {
		return id, nil
	}
	return "", ErrNotFound
}

func (m *MemoryStore) FindPet(ctx context.Context, ownerID, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.pets[petKey{ownerID, name}]; ok {
		return id, nil
	}
	return "", ErrNotFound
}

// Client returns the stored record for a dedup key.
func (m *MemoryStore) Client(organizationID, email string) (ClientRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientKey{organizationID, email}]
	return c, ok
}

// Pets returns the pets stored for an owner, sorted by name.
func (m *MemoryStore) Pets(ownerID string) []PetRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PetRecord
	for _, p := range m.petRecs {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Counts returns the number of stored clients and pets.
func (m *MemoryStore) Counts() (clients, pets int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids), len(m.pets)
}

// ReadOnlyStore turns a Finder into a Store that never writes. Records that do
// not exist yet get a placeholder ID, remembered so that later rows of the same
// run dedup against them exactly as a real import would.
type ReadOnlyStore struct {
	finder Finder

	mu      sync.Mutex
	clients map[clientKey]string
	pets    map[petKey]string
}

func NewReadOnlyStore(finder Finder) *ReadOnlyStore {
	return &ReadOnlyStore{
		finder:  finder,
		clients: make(map[clientKey]string),
		pets:    make(map[petKey]string),
	}
}

func (s *ReadOnlyStore) ResolveClient(ctx context.Context, c ClientRecord) (Resolution, error) {
	key := clientKey{c.OrganizationID, c.Email}
	s.mu.Lock()
	id, ok := s.clients[key]
	s.mu.Unlock()
	if ok {
		return Resolution{ID: id}, nil
	}
	return s.resolve(ctx, func(ctx context.Context) (string, error) {
		return s.finder.FindClient(ctx, c.OrganizationID, c.Email)
	}, func(id string) { s.clients[key] = id })
}

func (s *ReadOnlyStore) ResolvePet(ctx context.Context, p PetRecord) (Resolution, error) {
	key := petKey{p.OwnerID, p.Name}
	s.mu.Lock()
	id, ok := s.pets[key]
	s.mu.Unlock()
	if ok {
		return Resolution{ID: id}, nil
	}
	return s.resolve(ctx, func(ctx context.Context) (string, error) {
		return s.finder.FindPet(ctx, p.OwnerID, p.Name)
	}, func(id string) { s.pets[key] = id })
}

func (s *ReadOnlyStore) resolve(ctx context.Context, find func(context.Context) (string, error), remember func(string)) (Resolution, error) {
	id, err := find(ctx)
	switch {
	case err == nil:
		s.mu.Lock()
		remember(id)
		s.mu.Unlock()
		return Resolution{ID: id}, nil
	case errors.Is(err, ErrNotFound):
		id = "dryrun-" + uuid.NewString()
		s.mu.Lock()
		remember(id)
		s.mu.Unlock()
		return Resolution{ID: id, Created: true}, nil
	default:
		return Resolution{}, err
	}
}

// MemoryRunStore is an in-process RunStore.
type MemoryRunStore struct {
	mu   sync.Mutex
	runs []ImportRun
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{}
}

func (m *MemoryRunStore) SaveRun(ctx context.Context, run *ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

func (m *MemoryRunStore) ListRuns(ctx context.Context, organizationID string, limit int) ([]ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ImportRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].OrganizationID == organizationID {
			out = append(out, m.runs[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryRunStore) GetRun(ctx context.Context, organizationID, runID string) (*ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == runID && m.runs[i].OrganizationID == organizationID {
			run := m.runs[i]
			return &run, nil
		}
	}
	return nil, ErrRunNotFound
}

func (m *MemoryRunStore) FindRunByChecksum(ctx context.Context, organizationID, checksum string) (*ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.runs) - 1; i >= 0; i-- {
		r := m.runs[i]
		if r.OrganizationID == organizationID && r.Checksum == checksum && !r.DryRun {
			return &r, nil
		}
	}
	return nil, ErrRunNotFound
}

func (m *MemoryRunStore) PurgeRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.runs[:0]
	var purged int64
	for _, r := range m.runs {
		if r.StartedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, r)
	}
	m.runs = kept
	return purged, nil
}
