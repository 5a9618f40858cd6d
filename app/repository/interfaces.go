package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/HubSuite/internal/pkg/account"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

// Repositories struct holds all repository instances
type Repositories struct {
	Users    account.Store
	Profiles account.Store
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Users:    NewUserRepository(db),
		Profiles: NewProfileRepository(db),
	}
}

// AccountStore returns the store keyed the way backend is.
func (r *Repositories) AccountStore(backend identity.Backend) account.Store {
	if backend == identity.BackendProfiles {
		return r.Profiles
	}
	return r.Users
}
