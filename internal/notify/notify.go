// Package notify publishes status outcomes to the downstream owners.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"idstatus/internal/routing"
)

// Notification is the payload delivered to an owner.
type Notification struct {
	ApplicationReference string `json:"applicationReference"`
	EffectiveStatus      string `json:"effectiveStatus"`
	IdentityID           string `json:"identityId"`
}

// Publisher writes one record to a topic. Satisfied by the Kafka producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Topics maps each owner to its destination.
type Topics struct {
	OwnerA string
	OwnerB string
}

// KafkaNotifier sends notifications to the topic of the target owner.
type KafkaNotifier struct {
	publisher Publisher
	topics    Topics
	logger    *slog.Logger
}

// Option configures the KafkaNotifier.
type Option func(*KafkaNotifier)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *KafkaNotifier) {
		n.logger = logger
	}
}

// NewKafkaNotifier creates a notifier publishing through p.
func NewKafkaNotifier(p Publisher, topics Topics, opts ...Option) *KafkaNotifier {
	n := &KafkaNotifier{
		publisher: p,
		topics:    topics,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Encode renders the wire form of a notification.
func Encode(n Notification) ([]byte, error) {
	return json.Marshal(n)
}

// Notify publishes n to owner. Only settled owners are addressable.
func (k *KafkaNotifier) Notify(ctx context.Context, owner routing.Owner, n Notification) error {
	topic, err := k.topicFor(owner)
	if err != nil {
		return err
	}
	payload, err := Encode(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	headers := map[string]string{
		"content-type": "application/json",
		"owner":        owner.String(),
	}
	if err := k.publisher.Publish(ctx, topic, []byte(n.ApplicationReference), payload, headers); err != nil {
		return fmt.Errorf("notify owner %s: %w", owner, err)
	}
	k.logger.DebugContext(ctx, "notification published",
		"owner", owner.String(),
		"topic", topic,
		"identity_id", n.IdentityID,
	)
	return nil
}

func (k *KafkaNotifier) topicFor(owner routing.Owner) (string, error) {
	switch owner {
	case routing.OwnerA:
		return k.topics.OwnerA, nil
	case routing.OwnerB:
		return k.topics.OwnerB, nil
	default:
		return "", fmt.Errorf("no destination for owner %q", owner)
	}
}
