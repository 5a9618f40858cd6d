package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/HubSuite/app/models"
	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

// profileRepository implements account.Store on the UUID keyed profiles table.
type profileRepository struct {
	db  *gorm.DB
	ids *identity.Adapter
}

func NewProfileRepository(db *gorm.DB) account.Store {
	return &profileRepository{db: db, ids: identity.NewAdapter(identity.BackendProfiles)}
}

func (r *profileRepository) Backend() identity.Backend {
	return identity.BackendProfiles
}

func (r *profileRepository) Get(ctx context.Context, id identity.UserID) (*account.Account, error) {
	if err := r.ids.Check(id); err != nil {
		return nil, err
	}
	key, err := id.UUID()
	if err != nil {
		return nil, err
	}
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", key.String()).First(&profile).Error; err != nil {
		return nil, notFound(err)
	}
	return profileToAccount(&profile)
}

func (r *profileRepository) FindByProviderCustomer(ctx context.Context, customerID string) (*account.Account, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, account.ErrNotFound
	}
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("provider_customer_id = ?", customerID).First(&profile).Error; err != nil {
		return nil, notFound(err)
	}
	return profileToAccount(&profile)
}

func (r *profileRepository) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, account.ErrNotFound
	}
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&profile).Error; err != nil {
		return nil, notFound(err)
	}
	return profileToAccount(&profile)
}

func (r *profileRepository) Create(ctx context.Context, a *account.Account, eventID string) error {
	a.Revision = 1
	profile := &models.Profile{
		Email:               a.Email,
		DisplayName:         a.Name,
		SubscriptionColumns: columnsFromAccount(a),
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		a.ID = identity.FromUUID(profile.ID)
		return insertMarker(tx, eventID, a.ID, account.MarkerApplied)
	})
}

func (r *profileRepository) Update(ctx context.Context, a *account.Account, eventID string) error {
	key, err := a.ID.UUID()
	if err != nil {
		return err
	}
	updates := subscriptionUpdates(columnsFromAccount(a))
	updates["display_name"] = a.Name

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertMarker(tx, eventID, a.ID, account.MarkerApplied); err != nil {
			return err
		}
		return updateRevisioned(tx, &models.Profile{}, key.String(), a.Revision, updates)
	})
	if err != nil {
		return err
	}
	a.Revision++
	return nil
}

func (r *profileRepository) EventApplied(ctx context.Context, eventID string) (bool, error) {
	return eventApplied(ctx, r.db, eventID)
}

func (r *profileRepository) MarkEvent(ctx context.Context, eventID string, id identity.UserID, outcome string) error {
	return markEvent(ctx, r.db, eventID, id, outcome)
}

func profileToAccount(p *models.Profile) (*account.Account, error) {
	return accountFromColumns(identity.FromUUID(p.ID), p.Email, p.DisplayName, p.SubscriptionColumns)
}
