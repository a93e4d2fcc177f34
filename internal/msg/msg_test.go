package msg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " 10.0.0.1:9092, ,10.0.0.2:9092 ")
	t.Setenv("KAFKA_CLIENT_ID", "")

	cfg := LoadConfig()
	assert.Equal(t, []string{"10.0.0.1:9092", "10.0.0.2:9092"}, cfg.Brokers)
	assert.Equal(t, "agent-trading-gateway", cfg.ClientID)
	assert.True(t, cfg.Enabled())
}

func TestLoadConfigDisabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	cfg := LoadConfig()
	assert.False(t, cfg.Enabled())

	_, err := NewProducer(cfg, zap.NewNop())
	require.Error(t, err)
	_, err = NewConsumer(cfg, "g", []string{TopicFills}, zap.NewNop())
	require.Error(t, err)
}

func TestRecordDecode(t *testing.T) {
	rec := Record{Topic: TopicFills, Value: []byte(`{"exec_id":"e1","qty":5,"price":101.5,"side":"BUY"}`)}
	var fill FillMsg
	require.NoError(t, rec.Decode(&fill))
	assert.Equal(t, "e1", fill.ExecID)
	assert.Equal(t, int64(5), fill.Qty)
	assert.Equal(t, 101.5, fill.Price)

	bad := Record{Topic: TopicFills, Offset: 7, Value: []byte("{")}
	err := bad.Decode(&fill)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 7")
}

func TestHandleWithRetry(t *testing.T) {
	c := &Consumer{logger: zap.NewNop(), maxRetries: 3, backoff: time.Millisecond}

	calls := 0
	err := c.handleWithRetry(context.Background(), Record{}, func(context.Context, Record) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	boom := errors.New("boom")
	calls = 0
	err = c.handleWithRetry(context.Background(), Record{}, func(context.Context, Record) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestHandleWithRetryStopsOnCancel(t *testing.T) {
	c := &Consumer{logger: zap.NewNop(), maxRetries: 5, backoff: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := c.handleWithRetry(ctx, Record{}, func(context.Context, Record) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
