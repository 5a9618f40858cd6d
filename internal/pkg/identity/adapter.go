package identity

import (
	"fmt"
	"strings"

	"github.com/ManuelReschke/HubSuite/internal/pkg/env"
)

// Backend names a user store.
type Backend string

const (
	BackendUsers    Backend = "users"
	BackendProfiles Backend = "profiles"
)

// ParseBackend accepts the USER_STORE values.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case BackendUsers, "":
		return BackendUsers, nil
	case BackendProfiles:
		return BackendProfiles, nil
	default:
		return "", fmt.Errorf("unknown user store %q", s)
	}
}

// Kind is the id representation the backend is keyed by.
func (b Backend) Kind() Kind {
	if b == BackendProfiles {
		return KindOpaque
	}
	return KindNumeric
}

// Adapter validates ids against the active backend.
type Adapter struct {
	backend Backend
}

func NewAdapter(backend Backend) *Adapter {
	return &Adapter{backend: backend}
}

// NewAdapterFromEnv reads USER_STORE.
func NewAdapterFromEnv() (*Adapter, error) {
	b, err := ParseBackend(env.GetEnv("USER_STORE", string(BackendUsers)))
	if err != nil {
		return nil, err
	}
	return NewAdapter(b), nil
}

func (a *Adapter) Backend() Backend { return a.backend }

// Check fails with ErrKindMismatch when id is not keyed the way the active store is.
func (a *Adapter) Check(id UserID) error {
	if id.IsZero() {
		return fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if id.Kind() != a.backend.Kind() {
		return fmt.Errorf("%w: %s id %q used against the %s store", ErrKindMismatch, id.Kind(), id.String(), a.backend)
	}
	return nil
}

// Parse parses raw and checks it against the active backend.
func (a *Adapter) Parse(raw string) (UserID, error) {
	id, err := Parse(raw)
	if err != nil {
		return UserID{}, err
	}
	if err := a.Check(id); err != nil {
		return UserID{}, err
	}
	return id, nil
}
