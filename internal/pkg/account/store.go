package account

import (
	"context"
	"errors"

	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

var (
	ErrNotFound         = errors.New("account not found")
	ErrRevisionConflict = errors.New("account revision conflict")
	// ErrEventApplied is returned by writes whose event marker already exists.
	ErrEventApplied = errors.New("event already applied")
)

// Event marker outcomes.
const (
	MarkerApplied = "applied"
	MarkerStale   = "stale"
)

// Store persists accounts. Writes that carry an event id record the event
// marker in the same transaction as the row change.
type Store interface {
	Backend() identity.Backend
	Get(ctx context.Context, id identity.UserID) (*Account, error)
	FindByProviderCustomer(ctx context.Context, customerID string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// Create assigns a.ID and a.Revision.
	Create(ctx context.Context, a *Account, eventID string) error
	// Update succeeds only if the stored revision equals a.Revision, then
	// increments a.Revision.
	Update(ctx context.Context, a *Account, eventID string) error

	EventApplied(ctx context.Context, eventID string) (bool, error)
	MarkEvent(ctx context.Context, eventID string, id identity.UserID, outcome string) error
}
