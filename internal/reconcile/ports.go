package reconcile

import (
	"context"

	"idstatus/internal/identity/models"
	"idstatus/internal/resolver"
	id "idstatus/pkg/domain"
)

// Store is the persistence the engine needs. Lookups return an error
// wrapping sentinel.ErrNotFound on a miss; Save returns one wrapping
// sentinel.ErrConflict when the application reference is already taken.
type Store interface {
	FindByNino(ctx context.Context, nino id.Nino) (*models.IdentityRecord, error)
	FindBySubjectID(ctx context.Context, subjectID id.SubjectID) (*models.IdentityRecord, error)
	Save(ctx context.Context, record *models.IdentityRecord) (*models.IdentityRecord, error)
}

// Resolver looks up the application reference for a nino.
type Resolver interface {
	Resolve(ctx context.Context, nino id.Nino) (resolver.Resolution, error)
}

// KeyLocker runs fn while holding exclusive locks on every key.
type KeyLocker interface {
	WithKeyLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}
