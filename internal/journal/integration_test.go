//go:build integration
// +build integration

package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ismaiel54/agent-trading-gateway/internal/ledger"
	"github.com/ismaiel54/agent-trading-gateway/internal/msg"
	"github.com/ismaiel54/agent-trading-gateway/internal/router"
)

func TestIntegration_DuplicateFillPublishedOnce(t *testing.T) {
	if os.Getenv("INTEGRATION") != "1" {
		t.Skip("Skipping integration test. Set INTEGRATION=1 to run.")
	}
	cfg := msg.LoadConfig()
	if !cfg.Enabled() {
		t.Skip("KAFKA_BROKERS not set")
	}

	store, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	episode := "it-" + router.NewID()
	execID := "exec-" + router.NewID()

	fill := ledger.Fill{OrderID: "o1", ExecID: execID, Symbol: "AMZ", Side: ledger.Buy, Qty: 10, Price: 100, At: time.Now()}
	require.NoError(t, store.RecordFill(ctx, episode, fill))
	require.NoError(t, store.RecordFill(ctx, episode, fill))

	producer, err := msg.NewProducer(cfg, zap.NewNop())
	require.NoError(t, err)
	defer producer.Close()

	n, err := NewPublisher(store, producer, zap.NewNop()).PublishBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	consumer, err := msg.NewConsumer(cfg, "", []string{msg.TopicFills}, zap.NewNop())
	require.NoError(t, err)
	defer consumer.Close()

	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	seen := 0
	err = consumer.Run(runCtx, func(_ context.Context, rec msg.Record) error {
		var f msg.FillMsg
		if err := rec.Decode(&f); err != nil {
			return nil
		}
		if f.Episode == episode && f.ExecID == execID {
			seen++
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, seen)
}
