package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"idstatus/internal/identity/models"
	"idstatus/internal/resolver"
	dErrors "idstatus/pkg/domain-errors"
	"idstatus/pkg/platform/upstream"
)

// NotFoundMessage is the resolution error stored when no application matches.
func NotFoundMessage(identityID string) string {
	return "Application ID not found for identity with id: " + identityID
}

// ConflictMessage is the resolution error stored when several applications match.
func ConflictMessage(identityID string) string {
	return "Multiple Application IDs found for identity with id: " + identityID
}

// resolve fills in the application reference or the resolution error.
// Only a transport failure is returned: the remote state is unknown and
// recording "not found" would be wrong. Anything else degrades into
// ResolutionError so the fact is not lost.
func (e *Engine) resolve(ctx context.Context, record *models.IdentityRecord, identityID string) error {
	ctx, span := e.tracer.Start(ctx, "reconcile.resolve")
	defer span.End()

	rctx, cancel := context.WithTimeout(ctx, e.resolverTimeout)
	defer cancel()

	res, err := e.resolver.Resolve(rctx, record.Nino)
	if err != nil {
		if isTransport(err) {
			e.metrics.IncResolution("transport_error")
			span.RecordError(err)
			span.SetStatus(codes.Error, "transport")
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "application resolver unavailable")
		}
		e.metrics.IncResolution("failed")
		e.logger.WarnContext(ctx, "application resolution failed, recording on record",
			"identity_id", identityID,
			"error", err,
		)
		record.ResolutionError = err.Error()
		return nil
	}

	span.SetAttributes(attribute.String("outcome", res.Outcome.String()))
	e.metrics.IncResolution(res.Outcome.String())

	switch res.Outcome {
	case resolver.Found:
		record.ApplicationReference = res.ApplicationReference
		record.ResolutionError = ""
	case resolver.NotFound:
		record.ResolutionError = NotFoundMessage(identityID)
	case resolver.Conflict:
		record.ResolutionError = ConflictMessage(identityID)
	default:
		record.ResolutionError = fmt.Sprintf("unexpected resolver outcome: %s", res.Outcome)
	}
	return nil
}

// isTransport covers explicit transport errors and a context that expired
// before the resolver could classify the failure.
func isTransport(err error) bool {
	return upstream.IsTransport(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
