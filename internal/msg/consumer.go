package msg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Handler processes one record. A returned error is retried with backoff.
type Handler func(context.Context, Record) error

// Consumer wraps a Kafka consumer
type Consumer struct {
	client     *kgo.Client
	logger     *zap.Logger
	topics     []string
	group      string
	running    int32
	handled    int64
	errorCount int64
	maxRetries int
	backoff    time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

// NewConsumer creates a consumer. An empty group reads the topics from the
// start without committing offsets.
func NewConsumer(cfg *Config, group string, topics []string, logger *zap.Logger) (*Consumer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	if group != "" {
		opts = append(opts,
			kgo.ConsumerGroup(group),
			kgo.DisableAutoCommit(),
		)
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	c := &Consumer{
		client:     client,
		logger:     logger,
		topics:     topics,
		group:      group,
		maxRetries: 3,
		backoff:    100 * time.Millisecond,
		done:       make(chan struct{}),
	}

	logger.Info("consumer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("group", group),
		zap.Strings("topics", topics),
	)

	go c.logStats()

	return c, nil
}

// Run polls until ctx ends and calls handler for each record. Offsets are
// committed after the handler succeeds.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	c.logger.Info("starting consumer",
		zap.String("group", c.group),
		zap.Strings("topics", c.topics),
	)

	atomic.StoreInt32(&c.running, 1)
	defer atomic.StoreInt32(&c.running, 0)

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return fmt.Errorf("kafka client closed")
		}
		if err := ctx.Err(); err != nil {
			c.logger.Info("consumer stopping", zap.String("group", c.group))
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if !errors.Is(err, context.Canceled) {
				c.logger.Warn("fetch error",
					zap.String("topic", topic),
					zap.Int32("partition", partition),
					zap.Error(err),
				)
			}
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()
			rec := toRecord(record)

			if err := c.handleWithRetry(ctx, rec, handler); err != nil {
				c.logger.Error("handler failed after retries",
					zap.String("topic", rec.Topic),
					zap.String("key", rec.Key),
					zap.Error(err),
				)
				atomic.AddInt64(&c.errorCount, 1)
				continue
			}

			if c.group != "" {
				if err := c.client.CommitRecords(ctx, record); err != nil {
					c.logger.Warn("commit failed", zap.Int64("offset", rec.Offset), zap.Error(err))
				}
			}
			atomic.AddInt64(&c.handled, 1)
		}
	}
}

func toRecord(r *kgo.Record) Record {
	return Record{
		Topic:     r.Topic,
		Key:       string(r.Key),
		Value:     r.Value,
		Partition: r.Partition,
		Offset:    r.Offset,
		Timestamp: r.Timestamp.UnixMilli(),
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, rec Record, handler Handler) error {
	backoff := c.backoff
	var err error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err = handler(ctx, rec); err == nil {
			return nil
		}
		if attempt == c.maxRetries-1 {
			break
		}
		c.logger.Warn("handler failed, retrying",
			zap.String("topic", rec.Topic),
			zap.String("key", rec.Key),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("handler failed after %d attempts: %w", c.maxRetries, err)
}

// Close closes the consumer
func (c *Consumer) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.client != nil {
			c.client.Close()
		}
	})
}

// IsRunning returns whether the consumer is running
func (c *Consumer) IsRunning() bool {
	return atomic.LoadInt32(&c.running) == 1
}

// Handled returns the number of records handled successfully
func (c *Consumer) Handled() int64 {
	return atomic.LoadInt64(&c.handled)
}

func (c *Consumer) logStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.logger.Info("consumer stats",
				zap.String("group", c.group),
				zap.Int64("processed", atomic.LoadInt64(&c.handled)),
				zap.Int64("errors", atomic.LoadInt64(&c.errorCount)),
			)
		}
	}
}
