package journal

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ismaiel54/agent-trading-gateway/internal/events"
	"github.com/ismaiel54/agent-trading-gateway/internal/ledger"
	"github.com/ismaiel54/agent-trading-gateway/internal/msg"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEpisodeLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, err := store.LatestEpisode(ctx)
	require.ErrorIs(t, err, ErrEpisodeNotFound)

	require.NoError(t, store.BeginEpisode(ctx, Episode{
		ID:          "ep-1",
		Scenario:    "take-profit-basic",
		Params:      json.RawMessage(`{"target_profit":200}`),
		InitialCash: 15000,
		StartedAt:   time.UnixMilli(1000),
	}))
	require.NoError(t, store.BeginEpisode(ctx, Episode{ID: "ep-2", Scenario: "maker-discipline", InitialCash: 15000, StartedAt: time.UnixMilli(2000)}))

	latest, err := store.LatestEpisode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ep-2", latest.ID)
	assert.JSONEq(t, `{}`, string(latest.Params))
	assert.Nil(t, latest.Score)

	require.NoError(t, store.EndEpisode(ctx, "ep-1", 12, 0.75))
	ep, err := store.Episode(ctx, "ep-1")
	require.NoError(t, err)
	assert.Equal(t, 12, ep.Steps)
	require.NotNil(t, ep.Score)
	assert.Equal(t, 0.75, *ep.Score)
	assert.JSONEq(t, `{"target_profit":200}`, string(ep.Params))

	require.ErrorIs(t, store.EndEpisode(ctx, "missing", 1, 0), ErrEpisodeNotFound)
	_, err = store.Episode(ctx, "missing")
	require.ErrorIs(t, err, ErrEpisodeNotFound)
}

func TestRecordFillIsIdempotentPerExecID(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	f := ledger.Fill{OrderID: "o1", ExecID: "e1", Symbol: "AMZ", Side: ledger.Buy, Qty: 10, Price: 101.5}
	require.NoError(t, store.RecordFill(ctx, "ep", f))
	require.NoError(t, store.RecordFill(ctx, "ep", f))
	// same exec id in another episode is a different fill
	require.NoError(t, store.RecordFill(ctx, "other", f))
	// setup fills carry no exec id and are never deduplicated
	setup := ledger.Fill{OrderID: "setup", Symbol: "AMZ", Side: ledger.Buy, Qty: 5, Price: 100}
	require.NoError(t, store.RecordFill(ctx, "ep", setup))
	require.NoError(t, store.RecordFill(ctx, "ep", setup))

	fills, err := store.Fills(ctx, "ep")
	require.NoError(t, err)
	require.Len(t, fills, 3)
	assert.Equal(t, "e1", fills[0].ExecID)
	assert.Equal(t, ledger.Buy, fills[0].Side)
	assert.Equal(t, 101.5, fills[0].Price)
	assert.Equal(t, "setup", fills[1].OrderID)

	pending, err := store.ListUnpublished(ctx, 100)
	require.NoError(t, err)
	require.Len(t, pending, 4)
	assert.Equal(t, msg.TopicFills, pending[0].Topic)
	assert.Equal(t, "fill-ep-e1", pending[0].EventID)

	var out msg.FillMsg
	require.NoError(t, json.Unmarshal([]byte(pending[0].PayloadJSON), &out))
	assert.Equal(t, "e1", out.ExecID)
	assert.Equal(t, "BUY", out.Side)
	assert.Equal(t, int64(10), out.Qty)
}

func TestRecordEventRoutesOrderEvents(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	canceled := &events.ExecutionReport{
		ClOrdID:     "c2",
		OrigClOrdID: "c1",
		ExecID:      "x1",
		ExecType:    events.Enum{Code: "4", Text: events.ExecCanceled, Known: true},
		OrdStatus:   events.Enum{Code: "4", Text: "CANCELED", Known: true},
		Symbol:      "AMZ",
	}
	trade := &events.ExecutionReport{
		ClOrdID:  "c3",
		ExecID:   "x2",
		ExecType: events.Enum{Code: "F", Text: events.ExecTrade, Known: true},
		LastQty:  5,
		LastPx:   100,
	}
	cxlRej := &events.OrderCancelReject{
		ClOrdID:      "c4",
		OrigClOrdID:  "c3",
		OrdStatus:    events.Enum{Code: "2", Text: "FILLED", Known: true},
		CxlRejReason: events.Enum{Code: "0", Text: "TOO_LATE_TO_CANCEL", Known: true},
	}
	md := &events.MarketDataSnapshot{Symbol: "AMZ"}

	for _, ev := range []events.Event{canceled, canceled, trade, cxlRej, md} {
		require.NoError(t, store.RecordEvent(ctx, "ep", ev))
	}

	n, err := store.CountEvents(ctx, "ep", string(events.KindExecutionReport))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = store.CountEvents(ctx, "ep", string(events.KindMarketDataSnapshot))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := store.ListUnpublished(ctx, 100)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, p := range pending {
		assert.Equal(t, msg.TopicOrderEvents, p.Topic)
	}

	var first msg.OrderEventMsg
	require.NoError(t, json.Unmarshal([]byte(pending[0].PayloadJSON), &first))
	assert.Equal(t, "c2", first.OrderID)
	assert.Equal(t, "c1", first.OrigOrderID)
	assert.Equal(t, events.ExecCanceled, first.ExecType)
	assert.Equal(t, "CANCELED", first.Status)

	var second msg.OrderEventMsg
	require.NoError(t, json.Unmarshal([]byte(pending[1].PayloadJSON), &second))
	assert.Equal(t, string(events.KindOrderCancelReject), second.Kind)
	assert.Equal(t, "TOO_LATE_TO_CANCEL", second.Reason)
}

type fakeProducer struct {
	sent []string
	fail map[string]bool
}

func (p *fakeProducer) ProduceRaw(_ context.Context, topic, key string, _ []byte) error {
	if p.fail[key] {
		return errors.New("broker down")
	}
	p.sent = append(p.sent, topic+"/"+key)
	return nil
}

func TestPublisherMarksOnlyAcknowledged(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordFill(ctx, "ep", ledger.Fill{OrderID: "o1", ExecID: "e1", Symbol: "AMZ", Side: ledger.Buy, Qty: 1, Price: 1}))
	require.NoError(t, store.RecordFill(ctx, "ep", ledger.Fill{OrderID: "o2", ExecID: "e2", Symbol: "MSF", Side: ledger.Sell, Qty: 1, Price: 1}))

	producer := &fakeProducer{fail: map[string]bool{"MSF": true}}
	pub := NewPublisher(store, producer, zap.NewNop())

	n, err := pub.PublishBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{msg.TopicFills + "/AMZ"}, producer.sent)

	pending, err := store.ListUnpublished(ctx, 100)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "MSF", pending[0].Key)

	producer.fail = nil
	n, err = pub.PublishBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err = store.ListUnpublished(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
