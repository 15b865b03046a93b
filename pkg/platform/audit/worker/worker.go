// Package worker drains the audit outbox into Kafka.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "expensio/pkg/platform/audit"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 2 * time.Second
)

// Worker polls the outbox and produces unpublished events to the audit topic.
// Rows are marked published only after Kafka acknowledges the batch, so a
// crash between produce and mark yields at-least-once delivery.
type Worker struct {
	client   *kgo.Client
	outbox   audit.Outbox
	topic    string
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// New connects to Kafka and ensures the audit topic exists.
func New(brokers []string, topic string, outbox audit.Outbox, logger *slog.Logger) (*Worker, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := ensureTopic(context.Background(), client, topic); err != nil {
		client.Close()
		return nil, err
	}
	return &Worker{
		client:   client,
		outbox:   outbox,
		topic:    topic,
		logger:   logger,
		interval: defaultPollInterval,
		batch:    defaultBatchSize,
	}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("ensure audit topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("ensure audit topic: %w", resp.Err)
	}
	return nil
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer w.client.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	pending, err := w.outbox.Unpublished(ctx, w.batch)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(pending))
	published := make([]string, 0, len(pending))
	for _, row := range pending {
		records = append(records, &kgo.Record{
			Topic: w.topic,
			Key:   []byte(row.ID),
			Value: row.Payload,
		})
		published = append(published, row.ID)
	}
	if err := w.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}
	return w.outbox.MarkPublished(ctx, published)
}
