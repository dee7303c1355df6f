// Package distribution tells the owning downstream system(s) when an identity
// becomes verified against a known application.
package distribution

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"idstatus/internal/identity/models"
	"idstatus/internal/notify"
	"idstatus/internal/routing"
	dErrors "idstatus/pkg/domain-errors"
	"idstatus/pkg/platform/upstream"
)

// Result values recorded on the distribution counter.
const (
	ResultSkipped        = "skipped"
	ResultDelivered      = "delivered"
	ResultClassifyFailed = "classify_failed"
	ResultPublishFailed  = "publish_failed"
)

// Service gates, classifies and fans out notifications.
type Service struct {
	classifier Classifier
	notifier   Notifier
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer

	publishAttempts int
	publishBackoff  time.Duration
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublishRetry sets how many times each owner's publish is attempted and
// the pause between attempts. The classifier is never retried.
func WithPublishRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.publishAttempts = attempts
		}
		if backoff >= 0 {
			s.publishBackoff = backoff
		}
	}
}

// New creates a distribution Service.
func New(classifier Classifier, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		classifier: classifier,
		notifier:   notifier,
		logger:     slog.Default(),
		tracer:     otel.Tracer("idstatus/distribution"),

		publishAttempts: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShouldDistribute reports whether record qualifies for notification: it must
// be verified and carry an application reference.
func ShouldDistribute(record *models.IdentityRecord) bool {
	return record != nil && models.IsVerified(*record) && record.HasApplicationReference()
}

// Distribute notifies the owner(s) of record's application and returns who
// was notified. Records that do not qualify return no owners and no error.
//
// The classifier is asked once and a classifier failure aborts before
// anything is published. An unrouted application is sent to both owners.
// Each owner's publish is retried on its own, so an owner that already
// received the notification is not sent it again. On a publish failure the
// owners that were notified are returned alongside a CodeUnavailable error.
func (s *Service) Distribute(ctx context.Context, record *models.IdentityRecord, identityID string) ([]routing.Owner, error) {
	if !ShouldDistribute(record) {
		s.metrics.incDistribution(ResultSkipped)
		return nil, nil
	}

	ctx, span := s.tracer.Start(ctx, "distribution.Distribute", trace.WithAttributes(
		attribute.String("identity_id", identityID),
		attribute.String("record_id", record.ID.String()),
	))
	defer span.End()

	owner, err := s.classifier.Classify(ctx, record.ApplicationReference)
	if err != nil {
		s.metrics.incDistribution(ResultClassifyFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, ResultClassifyFailed)
		s.logger.ErrorContext(ctx, "ownership classification failed",
			"identity_id", identityID,
			"record_id", record.ID.String(),
			"error", err,
		)
		if upstream.IsTransport(err) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "ownership classifier unavailable")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "ownership classification failed")
	}

	owners := targets(owner)
	span.SetAttributes(attribute.String("owner", owner.String()))

	n := notify.Notification{
		ApplicationReference: record.ApplicationReference.String(),
		EffectiveStatus:      models.EffectiveStatus(*record),
		IdentityID:           identityID,
	}

	var (
		mu       sync.Mutex
		notified []routing.Owner
		g        errgroup.Group
	)
	for _, target := range owners {
		g.Go(func() error {
			if err := s.publish(ctx, target, n); err != nil {
				return err
			}
			s.metrics.incNotification(target)
			mu.Lock()
			notified = append(notified, target)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	slices.Sort(notified)
	if err != nil {
		s.metrics.incDistribution(ResultPublishFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, ResultPublishFailed)
		s.logger.ErrorContext(ctx, "notification publish failed",
			"identity_id", identityID,
			"record_id", record.ID.String(),
			"owner", owner.String(),
			"notified", len(notified),
			"error", err,
		)
		return notified, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to publish notification")
	}

	s.metrics.incDistribution(ResultDelivered)
	s.logger.InfoContext(ctx, "status distributed",
		"identity_id", identityID,
		"record_id", record.ID.String(),
		"owner", owner.String(),
		"targets", len(owners),
	)
	return notified, nil
}

// publish sends n to one owner, retrying that owner alone.
func (s *Service) publish(ctx context.Context, owner routing.Owner, n notify.Notification) error {
	var err error
	for attempt := 1; attempt <= s.publishAttempts; attempt++ {
		if err = s.notifier.Notify(ctx, owner, n); err == nil {
			return nil
		}
		if attempt == s.publishAttempts || ctx.Err() != nil {
			break
		}
		s.logger.WarnContext(ctx, "notification publish failed, retrying",
			"owner", owner.String(),
			"attempt", attempt,
			"error", err,
		)
		if s.publishBackoff > 0 {
			timer := time.NewTimer(s.publishBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}
	}
	return err
}

// targets expands a classification into destinations.
func targets(owner routing.Owner) []routing.Owner {
	switch owner {
	case routing.OwnerA, routing.OwnerB:
		return []routing.Owner{owner}
	default:
		return []routing.Owner{routing.OwnerA, routing.OwnerB}
	}
}
