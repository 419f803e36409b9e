package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"maaser/internal/core"
)

// memRepo is an in-memory schedule repository with staged units of work.
type memRepo struct {
	mu          sync.Mutex
	obligations map[string]core.Obligation
	entries     []core.LedgerEntry

	listErr     error
	beginErr    error
	failInsert  func(e core.LedgerEntry) error
	failAdvance func(id string) error
	failCommit  func(id string) error

	listCalls int
	commits   int
	rollbacks int
}

func newMemRepo(obs ...core.Obligation) *memRepo {
	r := &memRepo{obligations: map[string]core.Obligation{}}
	for _, o := range obs {
		r.obligations[o.ID] = o
	}
	return r
}

func (r *memRepo) ListActiveDue(_ context.Context, today core.Date) ([]core.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []core.Obligation
	for _, o := range r.obligations {
		if o.IsDue(today) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextDueDate.Equal(out[j].NextDueDate) {
			return out[i].NextDueDate.Before(out[j].NextDueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memRepo) Begin(context.Context) (core.UnitOfWork, error) {
	if r.beginErr != nil {
		return nil, r.beginErr
	}
	return &memUnit{repo: r, staged: map[string]core.Obligation{}}, nil
}

func (r *memRepo) obligation(id string) core.Obligation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.obligations[id]
}

func (r *memRepo) entriesFor(id string) []core.LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.LedgerEntry
	for _, e := range r.entries {
		if e.SourceObligationID == id {
			out = append(out, e)
		}
	}
	return out
}

type memUnit struct {
	repo    *memRepo
	staged  map[string]core.Obligation
	entries []core.LedgerEntry
	touched string
	done    bool
}

func (u *memUnit) GetObligation(_ context.Context, id string) (core.Obligation, error) {
	if o, ok := u.staged[id]; ok {
		return o, nil
	}
	u.repo.mu.Lock()
	defer u.repo.mu.Unlock()
	o, ok := u.repo.obligations[id]
	if !ok {
		return core.Obligation{}, core.ErrNotFound
	}
	return o, nil
}

func (u *memUnit) InsertEntry(_ context.Context, e core.LedgerEntry) error {
	u.touched = e.SourceObligationID
	if u.repo.failInsert != nil {
		if err := u.repo.failInsert(e); err != nil {
			return err
		}
	}
	u.repo.mu.Lock()
	defer u.repo.mu.Unlock()
	for _, set := range [][]core.LedgerEntry{u.repo.entries, u.entries} {
		for _, existing := range set {
			if existing.SourceObligationID == e.SourceObligationID && existing.OccurrenceNumber == e.OccurrenceNumber {
				return fmt.Errorf("duplicate occurrence %d", e.OccurrenceNumber)
			}
		}
	}
	u.entries = append(u.entries, e)
	return nil
}

func (u *memUnit) Advance(ctx context.Context, id string, a core.ScheduleAdvance) error {
	u.touched = id
	if u.repo.failAdvance != nil {
		if err := u.repo.failAdvance(id); err != nil {
			return err
		}
	}
	o, err := u.GetObligation(ctx, id)
	if err != nil {
		return err
	}
	u.staged[id] = o.Advance(a)
	return nil
}

func (u *memUnit) Commit() error {
	if u.done {
		return errors.New("unit already finished")
	}
	if u.repo.failCommit != nil {
		if err := u.repo.failCommit(u.touched); err != nil {
			return err
		}
	}
	u.done = true
	u.repo.mu.Lock()
	defer u.repo.mu.Unlock()
	u.repo.commits++
	u.repo.entries = append(u.repo.entries, u.entries...)
	for id, o := range u.staged {
		u.repo.obligations[id] = o
	}
	return nil
}

func (u *memUnit) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	u.repo.mu.Lock()
	u.repo.rollbacks++
	u.repo.mu.Unlock()
	return nil
}

// memStore is an in-memory obligation store for the service tests.
type memStore struct {
	obligations map[string]core.Obligation
}

func newMemStore() *memStore {
	return &memStore{obligations: map[string]core.Obligation{}}
}

func (s *memStore) CreateObligation(_ context.Context, o core.Obligation) error {
	if _, ok := s.obligations[o.ID]; ok {
		return fmt.Errorf("duplicate id %s", o.ID)
	}
	s.obligations[o.ID] = o
	return nil
}

func (s *memStore) GetObligation(_ context.Context, id string) (core.Obligation, error) {
	o, ok := s.obligations[id]
	if !ok {
		return core.Obligation{}, core.ErrNotFound
	}
	return o, nil
}

func (s *memStore) ListObligations(_ context.Context, status core.Status) ([]core.Obligation, error) {
	var out []core.Obligation
	for _, o := range s.obligations {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpdateObligation(_ context.Context, o core.Obligation) error {
	if _, ok := s.obligations[o.ID]; !ok {
		return core.ErrNotFound
	}
	s.obligations[o.ID] = o
	return nil
}

func (s *memStore) DeleteObligation(_ context.Context, id string) error {
	if _, ok := s.obligations[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.obligations, id)
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	entries []core.LedgerEntry
	err     error
}

func (p *recordingPublisher) PublishEntryCreated(_ context.Context, e core.LedgerEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, e)
	return p.err
}

// gatedRepo holds the first ListActiveDue until release is closed or the
// caller's context ends.
type gatedRepo struct {
	*memRepo
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedRepo(r *memRepo) *gatedRepo {
	return &gatedRepo{memRepo: r, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedRepo) ListActiveDue(ctx context.Context, today core.Date) ([]core.Obligation, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.memRepo.ListActiveDue(ctx, today)
}
