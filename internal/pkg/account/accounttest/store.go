// Package accounttest provides an in-memory account.Store for tests.
package accounttest

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

// Store mimics the gorm repositories: unique customer ids, revision checks and
// event markers written together with the row.
type Store struct {
	mu       sync.Mutex
	backend  identity.Backend
	nextID   uint64
	accounts map[string]*account.Account
	markers  map[string]string

	// Err, when set, is returned by every call.
	Err error
	// BeforeUpdate runs inside Update before the revision check.
	BeforeUpdate func(s *Store, a *account.Account)
	Writes       int
}

func NewStore(backend identity.Backend) *Store {
	return &Store{
		backend:  backend,
		accounts: map[string]*account.Account{},
		markers:  map[string]string{},
	}
}

func (s *Store) Backend() identity.Backend { return s.backend }

func (s *Store) Get(_ context.Context, id identity.UserID) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if id.Kind() != s.backend.Kind() {
		return nil, identity.NewAdapter(s.backend).Check(id)
	}
	a, ok := s.accounts[id.Key()]
	if !ok {
		return nil, account.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *Store) FindByProviderCustomer(_ context.Context, customerID string) (*account.Account, error) {
	return s.find(func(a *account.Account) bool { return customerID != "" && a.ProviderCustomerID == customerID })
}

func (s *Store) FindByEmail(_ context.Context, email string) (*account.Account, error) {
	return s.find(func(a *account.Account) bool { return email != "" && strings.EqualFold(a.Email, email) })
}

func (s *Store) find(match func(*account.Account) bool) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, a := range s.accounts {
		if match(a) {
			return a.Clone(), nil
		}
	}
	return nil, account.ErrNotFound
}

func (s *Store) Create(_ context.Context, a *account.Account, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.markers[eventID]; ok && eventID != "" {
		return account.ErrEventApplied
	}
	if s.backend.Kind() == identity.KindOpaque {
		a.ID = identity.FromUUID(uuid.New())
	} else {
		s.nextID++
		a.ID = identity.Numeric(s.nextID)
	}
	a.Revision = 1
	s.accounts[a.ID.Key()] = a.Clone()
	if eventID != "" {
		s.markers[eventID] = account.MarkerApplied
	}
	s.Writes++
	return nil
}

func (s *Store) Update(_ context.Context, a *account.Account, eventID string) error {
	if s.BeforeUpdate != nil {
		hook := s.BeforeUpdate
		s.BeforeUpdate = nil
		hook(s, a)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cur, ok := s.accounts[a.ID.Key()]
	if !ok {
		return account.ErrNotFound
	}
	if _, ok := s.markers[eventID]; ok && eventID != "" {
		return account.ErrEventApplied
	}
	if cur.Revision != a.Revision {
		return account.ErrRevisionConflict
	}
	a.Revision++
	s.accounts[a.ID.Key()] = a.Clone()
	if eventID != "" {
		s.markers[eventID] = account.MarkerApplied
	}
	s.Writes++
	return nil
}

func (s *Store) EventApplied(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.markers[eventID]
	return ok, nil
}

func (s *Store) MarkEvent(_ context.Context, eventID string, _ identity.UserID, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.markers[eventID]; !ok {
		s.markers[eventID] = outcome
	}
	return nil
}

// Marker returns the recorded outcome of an event.
func (s *Store) Marker(eventID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.markers[eventID]
	return o, ok
}

// Put stores a copy of a, assigning an id when it has none.
func (s *Store) Put(a *account.Account) *account.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID.IsZero() {
		if s.backend.Kind() == identity.KindOpaque {
			a.ID = identity.FromUUID(uuid.New())
		} else {
			s.nextID++
			a.ID = identity.Numeric(s.nextID)
		}
	}
	if a.Revision == 0 {
		a.Revision = 1
	}
	s.accounts[a.ID.Key()] = a.Clone()
	return a.Clone()
}

// Bump simulates a concurrent writer.
func (s *Store) Bump(id identity.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id.Key()]; ok {
		a.Revision++
	}
}
