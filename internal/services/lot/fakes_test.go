package lot

import (
	"context"
	"sync"
	"time"

	"lotservice/internal/clients/invoiceissuer"
	"lotservice/internal/clients/notificationgateway"
	"lotservice/internal/clients/userdirectory"
	"lotservice/internal/lots"
)

// memStore is an in-memory lotstore.Store with real version-conditioned
// replace semantics, so optimistic-concurrency paths behave as they would
// against Postgres.
type memStore struct {
	mu   sync.Mutex
	docs map[string]*lots.Lot

	// forceConflicts makes the next n ConditionalReplace calls fail with
	// ErrConflict without touching state.
	forceConflicts int
	replaceCalls   int

	// getErrs fails Get for specific ids, simulating per-row store faults.
	getErrs map[string]error
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]*lots.Lot{}}
}

func clone(l *lots.Lot) *lots.Lot {
	cp := *l
	cp.Bids = append([]lots.Bid{}, l.Bids...)
	return &cp
}

func (s *memStore) Get(_ context.Context, id string) (*lots.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.getErrs[id]; ok {
		return nil, err
	}
	l, ok := s.docs[id]
	if !ok {
		return nil, lots.ErrLotNotFound
	}
	return clone(l), nil
}

func (s *memStore) List(_ context.Context) ([]*lots.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*lots.Lot, 0, len(s.docs))
	for _, l := range s.docs {
		out = append(out, clone(l))
	}
	return out, nil
}

func (s *memStore) ListExpired(_ context.Context, now time.Time) ([]*lots.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*lots.Lot{}
	for _, l := range s.docs {
		if l.Open && !l.EndTime.After(now) {
			out = append(out, clone(l))
		}
	}
	return out, nil
}

func (s *memStore) Insert(_ context.Context, lot *lots.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot.Version = 1
	s.docs[lot.ID] = clone(lot)
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return lots.ErrLotNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *memStore) ConditionalReplace(_ context.Context, expectedVersion int64, lot *lots.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	if s.forceConflicts > 0 {
		s.forceConflicts--
		return lots.ErrConflict
	}
	stored, ok := s.docs[lot.ID]
	if !ok || stored.Version != expectedVersion {
		return lots.ErrConflict
	}
	lot.Version = expectedVersion + 1
	s.docs[lot.ID] = clone(lot)
	return nil
}

type fakeDirectory struct {
	mu    sync.Mutex
	users map[string]*userdirectory.User
	err   error
	calls []string
}

func newFakeDirectory(users ...*userdirectory.User) *fakeDirectory {
	d := &fakeDirectory{users: map[string]*userdirectory.User{}}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) Fetch(_ context.Context, bidderID string) (*userdirectory.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, bidderID)
	if d.err != nil {
		return nil, d.err
	}
	if u, ok := d.users[bidderID]; ok {
		return u, nil
	}
	return nil, lots.ErrIdentityUnavailable
}

type fakeIssuer struct {
	mu       sync.Mutex
	err      error
	invoices []invoiceissuer.InvoiceRequest
}

func (f *fakeIssuer) Create(_ context.Context, inv invoiceissuer.InvoiceRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.invoices = append(f.invoices, inv)
	return nil
}

type fakeGateway struct {
	mu   sync.Mutex
	err  error
	sent []notificationgateway.Notification
}

func (f *fakeGateway) Send(_ context.Context, n notificationgateway.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) Publish(_ context.Context, _, event string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}
