// Package intake consumes inbound verification facts, reconciles them and
// distributes the outcome.
//
// Reconciliation is retried in place while failures are transient. Messages
// that can never succeed, or that exhaust their attempts, go to the
// dead-letter topic and are committed. The handler only returns an error when
// the dead letter itself cannot be written, leaving the message for
// redelivery.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"idstatus/internal/identity/models"
	"idstatus/internal/platform/kafka/consumer"
	"idstatus/internal/reconcile"
	dErrors "idstatus/pkg/domain-errors"
	"idstatus/pkg/platform/redact"
	"idstatus/pkg/requestcontext"
)

// Dead-letter reasons, sent in the dlq-reason header.
const (
	ReasonInvalid            = "invalid"
	ReasonConflict           = "conflict"
	ReasonExhausted          = "exhausted"
	ReasonDistributionFailed = "distribution_failed"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
)

// Handler implements consumer.Handler for the inbound fact topic.
type Handler struct {
	reconciler      Reconciler
	distributor     Distributor
	deadLetters     Publisher
	deadLetterTopic string
	maxAttempts     int
	backoff         time.Duration
	logger          *slog.Logger
	metrics         *Metrics
	redactor        *redact.Hasher
	now             func() time.Time
}

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithRetry sets the attempt budget and the pause between attempts.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(h *Handler) {
		if maxAttempts > 0 {
			h.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			h.backoff = backoff
		}
	}
}

// WithRedactor sets the hasher used for nino log fields.
func WithRedactor(r *redact.Hasher) Option {
	return func(h *Handler) {
		h.redactor = r
	}
}

// WithClock overrides the clock used to pin each message's time.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler creates an intake handler writing dead letters to deadLetterTopic.
func NewHandler(reconciler Reconciler, distributor Distributor, deadLetters Publisher, deadLetterTopic string, opts ...Option) *Handler {
	h := &Handler{
		reconciler:      reconciler,
		distributor:     distributor,
		deadLetters:     deadLetters,
		deadLetterTopic: deadLetterTopic,
		maxAttempts:     defaultMaxAttempts,
		backoff:         defaultBackoff,
		logger:          slog.Default(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ consumer.Handler = (*Handler)(nil)

// Handle processes one inbound message. A nil return commits it.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	ctx = requestcontext.WithTime(ctx, h.now())

	fact, err := DecodeFact(msg.Value)
	if err != nil {
		h.logger.WarnContext(ctx, "rejecting invalid verification fact",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return h.deadLetter(ctx, msg, ReasonInvalid, err)
	}
	ctx = requestcontext.WithIdentityID(ctx, fact.IdentityID)

	var record *models.IdentityRecord
	err = h.withRetry(ctx, func(ctx context.Context) error {
		var err error
		record, err = h.reconciler.Reconcile(ctx, fact)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, reconcile.ErrDuplicateFact):
		h.metrics.incHandled("duplicate")
		return nil
	case ctx.Err() != nil:
		// shutting down; leave the message for redelivery
		return ctx.Err()
	case dErrors.HasCode(err, dErrors.CodeValidation):
		return h.deadLetter(ctx, msg, ReasonInvalid, err)
	case dErrors.HasCode(err, dErrors.CodeConflict):
		return h.deadLetter(ctx, msg, ReasonConflict, err)
	default:
		return h.deadLetter(ctx, msg, ReasonExhausted, err)
	}

	// The record is persisted, so a redelivery would be a duplicate. The
	// distributor retries publishes per owner; anything it returns is final.
	notified, err := h.distributor.Distribute(ctx, record, fact.IdentityID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.logger.ErrorContext(ctx, "distribution failed",
			"identity_id", fact.IdentityID,
			"notified", len(notified),
			"error", err,
		)
		return h.deadLetter(ctx, msg, ReasonDistributionFailed, err)
	}

	h.metrics.incHandled("processed")
	return nil
}

// withRetry runs fn until it succeeds, fails permanently, or the attempt
// budget is spent. Only CodeUnavailable and CodeTimeout are retried.
func (h *Handler) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= h.maxAttempts; attempt++ {
		if err = fn(ctx); err == nil || !retryable(err) {
			return err
		}
		if attempt == h.maxAttempts {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.metrics.incRetry()
		h.logger.WarnContext(ctx, "transient failure, retrying",
			"identity_id", requestcontext.IdentityID(ctx),
			"attempt", attempt,
			"error", err,
		)
		if h.backoff > 0 {
			timer := time.NewTimer(h.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return err
}

func retryable(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeUnavailable) || dErrors.HasCode(err, dErrors.CodeTimeout)
}

func (h *Handler) deadLetter(ctx context.Context, msg *consumer.Message, reason string, cause error) error {
	headers := map[string]string{
		"dlq-reason":       reason,
		"dlq-error":        cause.Error(),
		"source-topic":     msg.Topic,
		"source-partition": strconv.FormatInt(int64(msg.Partition), 10),
		"source-offset":    strconv.FormatInt(msg.Offset, 10),
	}
	if err := h.deadLetters.Publish(ctx, h.deadLetterTopic, msg.Key, msg.Value, headers); err != nil {
		h.logger.ErrorContext(ctx, "dead-letter publish failed",
			"reason", reason,
			"offset", msg.Offset,
			"error", err,
		)
		return fmt.Errorf("dead-letter %s message: %w", reason, err)
	}
	h.metrics.incDeadLetter(reason)
	h.metrics.incHandled("dead_lettered")
	h.logger.WarnContext(ctx, "message dead-lettered",
		"identity_id", requestcontext.IdentityID(ctx),
		"nino_hash", h.redactor.Digest(string(msg.Key)),
		"reason", reason,
		"error", cause,
	)
	return nil
}
