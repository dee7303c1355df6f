package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"idstatus/internal/intake"
	"idstatus/internal/platform/kafka/consumer"
)

func newConsumeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Consume verification facts, reconcile them and notify owners",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runConsume(ctx, opts)
		},
	}
}

func runConsume(ctx context.Context, opts *rootOptions) error {
	cfg, log := opts.cfg, opts.logger

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.producer(ctx)
	if err != nil {
		return err
	}
	engine, err := a.engine()
	if err != nil {
		return err
	}
	dist, err := a.distributor(p)
	if err != nil {
		return err
	}

	h := intake.NewHandler(engine, dist, p, cfg.Kafka.DeadLetterTopic,
		intake.WithLogger(log),
		intake.WithMetrics(intake.NewMetrics()),
		intake.WithRetry(cfg.Kafka.MaxAttempts, cfg.Kafka.RetryBackoff),
		intake.WithRedactor(a.redactor),
	)
	c, err := consumer.New(consumer.Config{
		Brokers: cfg.Kafka.Brokers,
		Group:   cfg.Kafka.ConsumerGroup,
		Topics:  []string{cfg.Kafka.InboundTopic},
	}, h, consumer.WithLogger(log))
	if err != nil {
		return err
	}
	defer c.Close()

	log.InfoContext(ctx, "consuming verification facts",
		"topic", cfg.Kafka.InboundTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.InfoContext(context.WithoutCancel(ctx), "consumer stopped")
	return nil
}
