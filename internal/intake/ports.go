package intake

import (
	"context"

	"idstatus/internal/identity/models"
	"idstatus/internal/routing"
)

// Reconciler folds a fact into the identity store.
type Reconciler interface {
	Reconcile(ctx context.Context, fact models.VerificationFact) (*models.IdentityRecord, error)
}

// Distributor notifies owners about a persisted record.
type Distributor interface {
	Distribute(ctx context.Context, record *models.IdentityRecord, identityID string) ([]routing.Owner, error)
}

// Publisher writes dead letters. Satisfied by the Kafka producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}
