// Package consumer runs a franz-go consumer group with manual commits.
//
// Records are handed to a Handler one at a time per partition, so ordering
// within a partition is preserved while partitions progress concurrently.
// An offset is committed only after its handler returns nil; a handler error
// stops the loop and leaves the record uncommitted for redelivery.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"
)

// Message is a transport-neutral view of one consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message. Returning nil commits it.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// Config names the group and topics to consume.
type Config struct {
	Brokers []string
	Group   string
	Topics  []string
}

// Consumer polls and dispatches records.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// Option configures the Consumer.
type Option func(*Consumer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// New creates a consumer group member. Nothing is fetched until Run.
func New(cfg Config, handler Handler, opts ...Option) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Group == "" || len(cfg.Topics) == 0 {
		return nil, errors.New("consumer requires brokers, group and topics")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	c := &Consumer{
		client:  client,
		handler: handler,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run polls until ctx is cancelled or a handler fails.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var partitions [][]*kgo.Record
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			if len(p.Records) > 0 {
				partitions = append(partitions, p.Records)
			}
		})

		done, handleErr := dispatch(ctx, c.handler, partitions)
		if len(done) > 0 {
			if err := c.client.CommitRecords(ctx, done...); err != nil {
				c.logger.ErrorContext(ctx, "kafka commit failed", "error", err)
				if handleErr == nil {
					handleErr = fmt.Errorf("commit offsets: %w", err)
				}
			}
		}
		c.client.AllowRebalance()
		if handleErr != nil {
			return handleErr
		}
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}

// dispatch handles each partition's records in order, partitions in
// parallel. It returns the records that were handled successfully; on error
// a partition stops at the failing record.
func dispatch(ctx context.Context, handler Handler, partitions [][]*kgo.Record) ([]*kgo.Record, error) {
	var (
		mu   sync.Mutex
		done []*kgo.Record
		g    errgroup.Group
	)
	for _, records := range partitions {
		g.Go(func() error {
			for _, rec := range records {
				if err := handler.Handle(ctx, toMessage(rec)); err != nil {
					return fmt.Errorf("handle %s/%d@%d: %w", rec.Topic, rec.Partition, rec.Offset, err)
				}
				mu.Lock()
				done = append(done, rec)
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	return done, err
}

func toMessage(rec *kgo.Record) *Message {
	var headers map[string]string
	if len(rec.Headers) > 0 {
		headers = make(map[string]string, len(rec.Headers))
		for _, h := range rec.Headers {
			headers[h.Key] = string(h.Value)
		}
	}
	return &Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Headers:   headers,
		Timestamp: rec.Timestamp,
	}
}
