// Package reconcile folds inbound verification facts into identity records.
//
// One call to Engine.Reconcile locates the record for the person (by nino,
// then by subject id), merges the fact, resolves the application reference
// when it is still unknown, and persists the result. Facts that change
// nothing are reported with ErrDuplicateFact and have no side effects.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"idstatus/internal/identity/models"
	dErrors "idstatus/pkg/domain-errors"
	"idstatus/pkg/platform/redact"
	"idstatus/pkg/platform/sentinel"
	"idstatus/pkg/requestcontext"
)

// ErrDuplicateFact reports that a fact carried no new information. It is an
// outcome, not a failure: callers acknowledge the fact and stop.
var ErrDuplicateFact = errors.New("duplicate verification fact")

const defaultResolverTimeout = 5 * time.Second

// Engine is safe for concurrent use; facts for the same person are
// serialised by the KeyLocker.
type Engine struct {
	store           Store
	resolver        Resolver
	locker          KeyLocker
	resolverTimeout time.Duration
	logger          *slog.Logger
	metrics         *Metrics
	redactor        *redact.Hasher
	tracer          trace.Tracer
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLocker replaces the in-process sharded locker.
func WithLocker(l KeyLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithResolverTimeout bounds each resolver call.
func WithResolverTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.resolverTimeout = d
		}
	}
}

// WithRedactor sets the hasher used for nino log fields.
func WithRedactor(h *redact.Hasher) Option {
	return func(e *Engine) {
		e.redactor = h
	}
}

// New creates an Engine.
func New(store Store, resolver Resolver, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		resolver:        resolver,
		locker:          NewShardedLocker(defaultLockShards, defaultLockTimeout),
		resolverTimeout: defaultResolverTimeout,
		logger:          slog.Default(),
		tracer:          otel.Tracer("idstatus/reconcile"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile applies fact and returns the persisted record.
//
// Errors:
//   - CodeValidation: the fact is incomplete; nothing was read or written
//   - ErrDuplicateFact: returned with the unchanged stored record
//   - CodeUnavailable: the resolver or store could not be reached; nothing
//     was persisted
//   - CodeConflict: the resolved reference already belongs to another record
func (e *Engine) Reconcile(ctx context.Context, fact models.VerificationFact) (*models.IdentityRecord, error) {
	start := time.Now()
	if err := fact.Validate(); err != nil {
		e.metrics.ObserveReconcile("invalid", time.Since(start))
		return nil, err
	}
	if fact.Timestamp.IsZero() {
		fact.Timestamp = requestcontext.Now(ctx)
	}
	ctx = requestcontext.WithIdentityID(ctx, fact.IdentityID)

	ctx, span := e.tracer.Start(ctx, "reconcile.Reconcile", trace.WithAttributes(
		attribute.String("identity_id", fact.IdentityID),
		attribute.String("channel", fact.Channel),
	))
	defer span.End()

	var record *models.IdentityRecord
	err := e.locker.WithKeyLock(ctx, lockKeys(fact), func(ctx context.Context) error {
		var err error
		record, err = e.reconcileLocked(ctx, fact)
		return err
	})

	outcome := outcomeOf(err)
	e.metrics.ObserveReconcile(outcome, time.Since(start))
	span.SetAttributes(attribute.String("outcome", outcome))

	switch {
	case err == nil:
		e.logger.InfoContext(ctx, "verification fact reconciled",
			"identity_id", fact.IdentityID,
			"record_id", record.ID.String(),
			"nino_hash", e.redactor.Digest(fact.Nino.String()),
			"channel", fact.Channel,
			"resolved", record.HasApplicationReference(),
		)
		return record, nil
	case errors.Is(err, ErrDuplicateFact):
		e.logger.InfoContext(ctx, "duplicate verification fact ignored",
			"identity_id", fact.IdentityID,
			"record_id", record.ID.String(),
			"channel", fact.Channel,
		)
		return record, err
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		e.logger.ErrorContext(ctx, "verification fact not reconciled",
			"identity_id", fact.IdentityID,
			"nino_hash", e.redactor.Digest(fact.Nino.String()),
			"outcome", outcome,
			"error", err,
		)
		return nil, err
	}
}

func (e *Engine) reconcileLocked(ctx context.Context, fact models.VerificationFact) (*models.IdentityRecord, error) {
	target, err := e.findTarget(ctx, fact)
	if err != nil {
		return nil, err
	}

	next, changed := models.Merge(target, fact)
	if target != nil && !changed {
		return target, ErrDuplicateFact
	}

	if !next.HasApplicationReference() {
		if err := e.resolve(ctx, &next, fact.IdentityID); err != nil {
			return nil, err
		}
	}

	saved, err := e.store.Save(ctx, &next)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "application reference already assigned to another identity")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist identity record")
	}
	return saved, nil
}

// findTarget matches on nino first, then subject id. A nil record means the
// person is new.
func (e *Engine) findTarget(ctx context.Context, fact models.VerificationFact) (*models.IdentityRecord, error) {
	record, err := e.store.FindByNino(ctx, fact.Nino)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity lookup by nino failed")
	}

	record, err = e.store.FindBySubjectID(ctx, fact.SubjectID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity lookup by subject failed")
	}
	return nil, nil
}

// lockKeys covers both match keys so facts that share either one serialise.
func lockKeys(fact models.VerificationFact) []string {
	return []string{"nino:" + fact.Nino.String(), "subject:" + fact.SubjectID.String()}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "persisted"
	case errors.Is(err, ErrDuplicateFact):
		return "duplicate"
	case dErrors.HasCode(err, dErrors.CodeValidation):
		return "invalid"
	case dErrors.HasCode(err, dErrors.CodeConflict):
		return "conflict"
	case dErrors.HasCode(err, dErrors.CodeUnavailable), dErrors.HasCode(err, dErrors.CodeTimeout):
		return "unavailable"
	default:
		return "error"
	}
}
