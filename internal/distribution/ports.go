package distribution

import (
	"context"

	"idstatus/internal/notify"
	"idstatus/internal/routing"
	id "idstatus/pkg/domain"
)

// Classifier answers which owner is responsible for an application.
type Classifier interface {
	Classify(ctx context.Context, ref id.ApplicationReference) (routing.Owner, error)
}

// Notifier delivers one notification to one owner.
type Notifier interface {
	Notify(ctx context.Context, owner routing.Owner, n notify.Notification) error
}
