package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/HubSuite/app/models"
	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

// userRepository implements account.Store on the legacy, numerically keyed users table
type userRepository struct {
	db  *gorm.DB
	ids *identity.Adapter
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) account.Store {
	return &userRepository{db: db, ids: identity.NewAdapter(identity.BackendUsers)}
}

func (r *userRepository) Backend() identity.Backend {
	return identity.BackendUsers
}

// Get retrieves a user by their ID
func (r *userRepository) Get(ctx context.Context, id identity.UserID) (*account.Account, error) {
	if err := r.ids.Check(id); err != nil {
		return nil, err
	}
	n, err := id.Uint()
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, n).Error; err != nil {
		return nil, notFound(err)
	}
	return userToAccount(&user)
}

func (r *userRepository) FindByProviderCustomer(ctx context.Context, customerID string) (*account.Account, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, account.ErrNotFound
	}
	var user models.User
	if err := r.db.WithContext(ctx).Where("provider_customer_id = ?", customerID).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return userToAccount(&user)
}

// FindByEmail retrieves a user by their email address
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, account.ErrNotFound
	}
	var user models.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return userToAccount(&user)
}

// Create inserts a user created by a paid signup together with the event marker
func (r *userRepository) Create(ctx context.Context, a *account.Account, eventID string) error {
	user, err := models.NewBillingUser(a.Email, a.Name)
	if err != nil {
		return err
	}
	a.Revision = 1
	user.SubscriptionColumns = columnsFromAccount(a)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		a.ID = identity.Numeric(uint64(user.ID))
		return insertMarker(tx, eventID, a.ID, account.MarkerApplied)
	})
}

// Update writes the subscription columns if the stored revision still matches
func (r *userRepository) Update(ctx context.Context, a *account.Account, eventID string) error {
	n, err := a.ID.Uint()
	if err != nil {
		return err
	}
	updates := subscriptionUpdates(columnsFromAccount(a))
	updates["name"] = a.Name

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertMarker(tx, eventID, a.ID, account.MarkerApplied); err != nil {
			return err
		}
		return updateRevisioned(tx, &models.User{}, n, a.Revision, updates)
	})
	if err != nil {
		return err
	}
	a.Revision++
	return nil
}

func (r *userRepository) EventApplied(ctx context.Context, eventID string) (bool, error) {
	return eventApplied(ctx, r.db, eventID)
}

func (r *userRepository) MarkEvent(ctx context.Context, eventID string, id identity.UserID, outcome string) error {
	return markEvent(ctx, r.db, eventID, id, outcome)
}

func userToAccount(u *models.User) (*account.Account, error) {
	return accountFromColumns(identity.Numeric(uint64(u.ID)), u.Email, u.Name, u.SubscriptionColumns)
}
