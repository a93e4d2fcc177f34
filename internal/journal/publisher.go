package journal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Producer ships one encoded outbox payload
type Producer interface {
	ProduceRaw(ctx context.Context, topic string, key string, value []byte) error
}

// Publisher drains the outbox to Kafka
type Publisher struct {
	store     *Store
	producer  Producer
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

// NewPublisher creates a new outbox publisher
func NewPublisher(store *Store, producer Producer, logger *zap.Logger) *Publisher {
	return &Publisher{
		store:     store,
		producer:  producer,
		logger:    logger,
		interval:  250 * time.Millisecond,
		batchSize: 100,
	}
}

// Run publishes on every tick until ctx ends
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.Error("failed to publish batch", zap.Error(err))
			}
		}
	}
}

// PublishBatch publishes up to one batch of unpublished events and returns
// how many were acknowledged. Failed events stay in the outbox for the next call.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	pending, err := p.store.ListUnpublished(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unpublished events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	published := 0
	for _, event := range pending {
		if err := p.producer.ProduceRaw(ctx, event.Topic, event.Key, []byte(event.PayloadJSON)); err != nil {
			p.logger.Error("failed to produce event",
				zap.String("event_id", event.EventID),
				zap.String("topic", event.Topic),
				zap.Error(err),
			)
			continue
		}

		// a failed mark means a republish later; consumers dedupe on exec id
		if err := p.store.MarkPublished(ctx, event.EventID, p.store.now().UnixMilli()); err != nil {
			p.logger.Error("failed to mark event as published",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			continue
		}

		published++
		p.logger.Debug("published outbox event",
			zap.String("event_id", event.EventID),
			zap.String("episode", event.Episode),
		)
	}

	if published > 0 {
		p.logger.Info("published outbox batch",
			zap.Int("published", published),
			zap.Int("total", len(pending)),
		)
	}

	return published, nil
}
