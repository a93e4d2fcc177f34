package toolkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ismaiel54/agent-trading-gateway/internal/events"
	"github.com/ismaiel54/agent-trading-gateway/internal/fix"
	"github.com/ismaiel54/agent-trading-gateway/internal/grading"
	"github.com/ismaiel54/agent-trading-gateway/internal/journal"
	"github.com/ismaiel54/agent-trading-gateway/internal/ledger"
	"github.com/ismaiel54/agent-trading-gateway/internal/router"
	"github.com/ismaiel54/agent-trading-gateway/internal/scenario"
	"github.com/ismaiel54/agent-trading-gateway/internal/session"
)

// fakeSession records sent messages and lets a test script venue replies
type fakeSession struct {
	sent     []*fix.Message
	pending  []events.Event
	sendErr  error
	drainErr error
	state    session.State
	reply    func(m *fix.Message) []events.Event
}

func (s *fakeSession) Send(m *fix.Message) (int64, error) {
	if s.sendErr != nil {
		return 0, s.sendErr
	}
	s.sent = append(s.sent, m)
	if s.reply != nil {
		s.pending = append(s.pending, s.reply(m)...)
	}
	return int64(len(s.sent)), nil
}

func (s *fakeSession) Drain() ([]events.Event, error) {
	out := s.pending
	s.pending = nil
	return out, s.drainErr
}

func (s *fakeSession) Connect(context.Context) error {
	s.state = session.StateActive
	return nil
}

func (s *fakeSession) State() session.State { return s.state }

func (s *fakeSession) last() *fix.Message {
	return s.sent[len(s.sent)-1]
}

type fakeVenue struct {
	symbols []string
	resets  int
}

func (v *fakeVenue) Symbols(context.Context) ([]string, error) { return v.symbols, nil }
func (v *fakeVenue) Reset(context.Context) bool {
	v.resets++
	return true
}

type memorySink struct {
	episodes []journal.Episode
	events   []events.Event
	fills    []ledger.Fill
	scores   map[string]float64
}

func (m *memorySink) BeginEpisode(_ context.Context, ep journal.Episode) error {
	m.episodes = append(m.episodes, ep)
	return nil
}

func (m *memorySink) RecordEvent(_ context.Context, _ string, ev events.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *memorySink) RecordFill(_ context.Context, _ string, f ledger.Fill) error {
	m.fills = append(m.fills, f)
	return nil
}

func (m *memorySink) EndEpisode(_ context.Context, episode string, _ int, score float64) error {
	if m.scores == nil {
		m.scores = map[string]float64{}
	}
	m.scores[episode] = score
	return nil
}

func enum(code, text string) events.Enum {
	return events.Enum{Code: code, Text: text, Known: true}
}

func tradeReport(clOrdID, execID, side string, qty int64, px float64) *events.ExecutionReport {
	sideCode := "1"
	if side == events.SideSell {
		sideCode = "2"
	}
	return &events.ExecutionReport{
		ClOrdID:  clOrdID,
		ExecID:   execID,
		ExecType: enum("F", events.ExecTrade),
		Symbol:   "AMZ",
		Side:     enum(sideCode, side),
		LastQty:  qty,
		LastPx:   px,
	}
}

func newToolkit(sess *fakeSession, opts ...Option) *Toolkit {
	sess.state = session.StateActive
	cfg := DefaultConfig()
	return New(cfg, sess, &fakeVenue{symbols: []string{"AMZ", "MSF"}}, zap.NewNop(), opts...)
}

func field(t *testing.T, m *fix.Message, tag int) string {
	t.Helper()
	v, ok := m.Get(tag)
	require.True(t, ok, "tag %d missing from %s", tag, m)
	return v
}

func TestPlaceOrderLocksCash(t *testing.T) {
	sess := &fakeSession{}
	tk := newToolkit(sess)

	res, err := tk.PlaceOrder(context.Background(), PlaceRequest{Symbol: "AMZ", Side: "buy", Qty: 10, Price: 100})
	require.NoError(t, err)
	assert.Len(t, res.OrderID, 16)
	assert.Equal(t, 0, res.ImmediateFills)

	m := sess.last()
	assert.Equal(t, fix.MsgTypeNewOrderSingle, m.MsgType())
	assert.Equal(t, res.OrderID, field(t, m, fix.TagClOrdID))
	assert.Equal(t, "100.0000", field(t, m, fix.TagPrice))

	snap := tk.Portfolio(context.Background())
	assert.Equal(t, 1000.0, snap.LockedCash)
	assert.Equal(t, 14000.0, snap.AvailableCash)
	require.Len(t, snap.ActiveOrders, 1)
}

func TestPlaceOrderSendFailureReleasesLock(t *testing.T) {
	sess := &fakeSession{sendErr: session.ErrNotConnected}
	tk := newToolkit(sess)

	_, err := tk.PlaceOrder(context.Background(), PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 10, Price: 100})
	require.ErrorIs(t, err, session.ErrNotConnected)

	snap := tk.Portfolio(context.Background())
	assert.Equal(t, 0.0, snap.LockedCash)
	assert.Empty(t, snap.ActiveOrders)
}

func TestPlaceOrderRejectedByLedger(t *testing.T) {
	sess := &fakeSession{}
	tk := newToolkit(sess)

	_, err := tk.PlaceOrder(context.Background(), PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 1000, Price: 100})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	_, err = tk.PlaceOrder(context.Background(), PlaceRequest{Symbol: "AMZ", Side: "SELL", Qty: 1, Price: 100})
	require.ErrorIs(t, err, ledger.ErrInsufficientPosition)
	assert.Empty(t, sess.sent)
}

func TestPlaceOrderValidation(t *testing.T) {
	sess := &fakeSession{}
	tk := newToolkit(sess)
	ctx := context.Background()

	_, err := tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "HOLD", Qty: 1, Price: 1})
	require.ErrorIs(t, err, router.ErrValidation)
	_, err = tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 0, Price: 1})
	require.ErrorIs(t, err, router.ErrValidation)
	_, err = tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 1, Price: 0})
	require.ErrorIs(t, err, router.ErrValidation)
	_, err = tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 1, Price: 1, TimeInForce: "GTD"})
	require.ErrorIs(t, err, router.ErrValidation)
	assert.Empty(t, sess.sent)
}

func TestPlaceOrderImmediateFill(t *testing.T) {
	sess := &fakeSession{}
	sess.reply = func(m *fix.Message) []events.Event {
		id, _ := m.Get(fix.TagClOrdID)
		return []events.Event{tradeReport(id, "x-"+id, events.SideBuy, 10, 99)}
	}
	tk := newToolkit(sess)
	ctx := context.Background()

	res, err := tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 10, Price: 100})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImmediateFills)

	fills := tk.PollFills(ctx)
	require.Len(t, fills, 1)
	assert.Equal(t, res.OrderID, fills[0].OrderID)
	assert.Equal(t, 99.0, fills[0].Price)
	assert.Empty(t, tk.PollFills(ctx))

	snap := tk.Portfolio(ctx)
	assert.Equal(t, int64(10), snap.Positions["AMZ"].Qty)
	assert.InDelta(t, 15000-990.0, snap.Cash, 1e-9)
	assert.Equal(t, 0.0, snap.LockedCash)

	px, ok := tk.LastPrice(ctx, "AMZ")
	require.True(t, ok)
	assert.Equal(t, 99.0, px)
}

func TestMarketOrderReferencePrice(t *testing.T) {
	sess := &fakeSession{}
	tk := newToolkit(sess)
	ctx := context.Background()

	_, err := tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 5, OrdType: "market"})
	require.ErrorIs(t, err, router.ErrValidation)

	tk.Ledger(func(l *ledger.Ledger) { l.RecordFill("seed", "AMZ", ledger.Buy, 1, 120) })
	_, err = tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 5, OrdType: "market"})
	require.NoError(t, err)

	assert.False(t, sess.last().Has(fix.TagPrice))
	// 5 x 120 plus the default 5% slippage
	assert.InDelta(t, 630.0, tk.Portfolio(ctx).LockedCash, 1e-9)
}

func verifyLedger(t *testing.T, tk *Toolkit) {
	t.Helper()
	tk.Ledger(func(l *ledger.Ledger) { require.NoError(t, l.Verify()) })
}

func TestMarketBuyLocksSlippage(t *testing.T) {
	sess := &fakeSession{}
	tk := newToolkit(sess)
	ctx := context.Background()

	tk.Ledger(func(l *ledger.Ledger) {
		l.Reset(2000)
		l.RecordFill("seed", "AMZ", ledger.Buy, 1, 100)
	})
	_, err := tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 9, Price: 100})
	require.NoError(t, err)
	verifyLedger(t, tk)

	// 10 at 100 fits the 1000 available, 10 at 105 does not
	_, err = tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 10, OrdType: "MARKET"})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	verifyLedger(t, tk)

	res, err := tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 9, OrdType: "MARKET"})
	require.NoError(t, err)
	verifyLedger(t, tk)

	// the venue fills above the last price
	sess.pending = append(sess.pending, tradeReport(res.OrderID, "m-1", events.SideBuy, 9, 105))
	snap := tk.Portfolio(ctx)
	verifyLedger(t, tk)
	assert.InDelta(t, 955.0, snap.Cash, 1e-6)
	assert.InDelta(t, 900.0, snap.LockedCash, 1e-6)
	assert.GreaterOrEqual(t, snap.AvailableCash, 0.0)
}

func TestPendingReplaceReservesFunds(t *testing.T) {
	sess := &fakeSession{}
	tk := newToolkit(sess)
	ctx := context.Background()

	res, err := tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 100, Price: 100})
	require.NoError(t, err)

	rep, err := tk.ReplaceOrder(ctx, ReplaceRequest{OrderID: res.OrderID, Qty: 150, Price: 100})
	require.NoError(t, err)
	verifyLedger(t, tk)
	assert.InDelta(t, 15000.0, tk.Portfolio(ctx).LockedCash, 1e-9)

	// the replace has not been confirmed, but its funds are taken
	_, err = tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 50, Price: 100})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	verifyLedger(t, tk)

	_, err = tk.ReplaceOrder(ctx, ReplaceRequest{OrderID: res.OrderID, Qty: 120, Price: 100})
	require.ErrorIs(t, err, ledger.ErrReplacePending)

	sess.pending = append(sess.pending, &events.OrderCancelReject{
		ClOrdID:     rep.NewOrderID,
		OrigClOrdID: res.OrderID,
		ResponseTo:  enum("2", "ORDER_CANCEL_REPLACE_REQUEST"),
	})
	snap := tk.Portfolio(ctx)
	verifyLedger(t, tk)
	assert.InDelta(t, 10000.0, snap.LockedCash, 1e-9)
	assert.Empty(t, snap.PendingReplaces)
	assert.Len(t, tk.PollOrderEvents(ctx), 1)

	rep, err = tk.ReplaceOrder(ctx, ReplaceRequest{OrderID: res.OrderID, Qty: 150, Price: 100})
	require.NoError(t, err)
	leaves := int64(150)
	price := 100.0
	sess.pending = append(sess.pending, &events.ExecutionReport{
		ClOrdID:     rep.NewOrderID,
		OrigClOrdID: res.OrderID,
		ExecID:      "r-1",
		ExecType:    enum("5", events.ExecReplaced),
		Symbol:      "AMZ",
		Side:        enum("1", events.SideBuy),
		LeavesQty:   &leaves,
		Price:       &price,
	})
	snap = tk.Portfolio(ctx)
	verifyLedger(t, tk)
	assert.InDelta(t, 15000.0, snap.LockedCash, 1e-9)
	require.Len(t, snap.ActiveOrders, 1)
	assert.Equal(t, rep.NewOrderID, snap.ActiveOrders[0].ID)
	assert.Empty(t, snap.PendingReplaces)
}

func TestReplaceSendFailureReleasesReservation(t *testing.T) {
	sess := &fakeSession{}
	tk := newToolkit(sess)
	ctx := context.Background()

	res, err := tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 100, Price: 100})
	require.NoError(t, err)

	sess.sendErr = session.ErrDisconnected
	_, err = tk.ReplaceOrder(ctx, ReplaceRequest{OrderID: res.OrderID, Qty: 150, Price: 100})
	require.ErrorIs(t, err, session.ErrDisconnected)

	snap := tk.Portfolio(ctx)
	assert.InDelta(t, 10000.0, snap.LockedCash, 1e-9)
	assert.Empty(t, snap.PendingReplaces)
	verifyLedger(t, tk)
}

func TestCancelOrderUsesWorkingOrder(t *testing.T) {
	sess := &fakeSession{}
	tk := newToolkit(sess)
	ctx := context.Background()

	_, err := tk.CancelOrder(ctx, "nope", "", "")
	require.ErrorIs(t, err, ErrUnknownOrder)

	res, err := tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 10, Price: 100})
	require.NoError(t, err)

	cancel, err := tk.CancelOrder(ctx, res.OrderID, "", "")
	require.NoError(t, err)
	m := sess.last()
	assert.Equal(t, fix.MsgTypeOrderCancelRequest, m.MsgType())
	assert.Equal(t, res.OrderID, field(t, m, fix.TagOrigClOrdID))
	assert.Equal(t, cancel.CancelID, field(t, m, fix.TagClOrdID))
	assert.Equal(t, "AMZ", field(t, m, fix.TagSymbol))
	assert.Equal(t, "1", field(t, m, fix.TagSide))
	assert.False(t, m.Has(fix.TagOrderQty))

	// lock stays until the venue confirms
	assert.Equal(t, 1000.0, tk.Portfolio(ctx).LockedCash)

	sess.pending = append(sess.pending, &events.ExecutionReport{
		ClOrdID:     cancel.CancelID,
		OrigClOrdID: res.OrderID,
		ExecID:      "c1",
		ExecType:    enum("4", events.ExecCanceled),
		OrdStatus:   enum("4", "CANCELED"),
	})
	evs := tk.PollOrderEvents(ctx)
	require.Len(t, evs, 1)
	assert.Equal(t, events.KindExecutionReport, evs[0].Kind())
	assert.Equal(t, 0.0, tk.Portfolio(ctx).LockedCash)

	// an order the ledger no longer tracks can still be cancelled explicitly
	_, err = tk.CancelOrder(ctx, "external", "MSF", "sell")
	require.NoError(t, err)
	assert.Equal(t, "2", field(t, sess.last(), fix.TagSide))
}

func TestReplaceOrderChecksLedger(t *testing.T) {
	sess := &fakeSession{}
	tk := newToolkit(sess)
	ctx := context.Background()

	res, err := tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 10, Price: 100})
	require.NoError(t, err)
	sent := len(sess.sent)

	_, err = tk.ReplaceOrder(ctx, ReplaceRequest{OrderID: res.OrderID, Qty: 500, Price: 100})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Len(t, sess.sent, sent)

	_, err = tk.ReplaceOrder(ctx, ReplaceRequest{OrderID: "ghost", Qty: 1, Price: 1})
	require.ErrorIs(t, err, ErrUnknownOrder)

	rep, err := tk.ReplaceOrder(ctx, ReplaceRequest{OrderID: res.OrderID, Qty: 20, Price: 101})
	require.NoError(t, err)
	m := sess.last()
	assert.Equal(t, fix.MsgTypeOrderCancelReplace, m.MsgType())
	assert.Equal(t, rep.NewOrderID, field(t, m, fix.TagClOrdID))
	assert.Equal(t, "20", field(t, m, fix.TagOrderQty))
	assert.Equal(t, "AMZ", field(t, m, fix.TagSymbol))

	// confirmation moves the lock to the new id and size
	leaves := int64(20)
	price := 101.0
	sess.pending = append(sess.pending, &events.ExecutionReport{
		ClOrdID:     rep.NewOrderID,
		OrigClOrdID: res.OrderID,
		ExecID:      "r1",
		ExecType:    enum("5", events.ExecReplaced),
		Symbol:      "AMZ",
		Side:        enum("1", events.SideBuy),
		LeavesQty:   &leaves,
		Price:       &price,
	})
	snap := tk.Portfolio(ctx)
	assert.InDelta(t, 2020.0, snap.LockedCash, 1e-9)
	require.Len(t, snap.ActiveOrders, 1)
	assert.Equal(t, rep.NewOrderID, snap.ActiveOrders[0].ID)
}

func TestEventsAreSortedIntoBuffers(t *testing.T) {
	sess := &fakeSession{}
	tk := newToolkit(sess)
	ctx := context.Background()

	sess.pending = []events.Event{
		&events.MarketDataSnapshot{Symbol: "AMZ"},
		&events.MarketDataUpdate{},
		&events.SecurityStatus{Symbol: "AMZ"},
		&events.BusinessReject{Text: "nope"},
		&events.OrderCancelReject{ClOrdID: "c"},
		&events.MarketDataReject{MDReqID: "m"},
	}

	assert.Len(t, tk.PollMarketData(ctx), 3)
	assert.Len(t, tk.PollSecurityStatus(ctx), 1)
	assert.Len(t, tk.PollOrderEvents(ctx), 2)
	assert.Empty(t, tk.PollMarketData(ctx))
}

func TestBuffersAreCapped(t *testing.T) {
	sess := &fakeSession{}
	cfg := DefaultConfig()
	cfg.MaxBuffered = 2
	sess.state = session.StateActive
	tk := New(cfg, sess, &fakeVenue{}, zap.NewNop())

	for i := 0; i < 5; i++ {
		sess.pending = append(sess.pending, &events.SecurityStatus{ReqID: string(rune('a' + i))})
	}
	got := tk.PollSecurityStatus(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, "e", got[1].(*events.SecurityStatus).ReqID)
}

func TestMarketDataAndSecurityStatusRequests(t *testing.T) {
	sess := &fakeSession{}
	tk := newToolkit(sess)
	ctx := context.Background()

	id, err := tk.MarketData(ctx, router.Subscribe, MarketDataParams{Symbols: []string{"AMZ"}, EntryTypes: []string{"bid", "trade"}})
	require.NoError(t, err)
	m := sess.last()
	assert.Equal(t, fix.MsgTypeMarketDataRequest, m.MsgType())
	assert.Equal(t, id, field(t, m, fix.TagMDReqID))
	assert.Equal(t, []string{"0", "2"}, m.GetAll(fix.TagMDEntryType))

	_, err = tk.MarketData(ctx, router.Unsubscribe, MarketDataParams{ReqID: id, Symbols: []string{"AMZ"}})
	require.NoError(t, err)
	assert.Equal(t, id, field(t, sess.last(), fix.TagMDReqID))

	_, err = tk.MarketData(ctx, router.Snapshot, MarketDataParams{Symbols: []string{"AMZ"}, Depth: "sideways"})
	require.ErrorIs(t, err, router.ErrValidation)

	reqID, err := tk.SecurityStatus(ctx, router.Snapshot, "AMZ", "")
	require.NoError(t, err)
	assert.Equal(t, fix.MsgTypeSecurityStatusRequest, sess.last().MsgType())
	assert.Equal(t, reqID, field(t, sess.last(), fix.TagSecStatusReq))
}

func TestDisconnectedPumpKeepsBuffers(t *testing.T) {
	sess := &fakeSession{}
	tk := newToolkit(sess)
	ctx := context.Background()

	sess.pending = []events.Event{tradeReport("o1", "e1", events.SideBuy, 1, 10)}
	sess.drainErr = session.ErrDisconnected
	sess.state = session.StateDisconnected

	fills := tk.PollFills(ctx)
	require.Len(t, fills, 1)
	st := tk.SessionState()
	assert.Equal(t, "DISCONNECTED", st.State)
	assert.Contains(t, st.LastError, "disconnected")

	require.NoError(t, tk.Reconnect(ctx))
	assert.Equal(t, "ACTIVE", tk.SessionState().State)
	assert.Empty(t, tk.SessionState().LastError)
}

func TestDuplicateFillIsAppliedOnce(t *testing.T) {
	sess := &fakeSession{}
	sink := &memorySink{}
	tk := newToolkit(sess, WithSink(sink))
	ctx := context.Background()

	fill := tradeReport("o1", "dup", events.SideBuy, 2, 50)
	sess.pending = []events.Event{fill, fill}

	assert.Len(t, tk.PollFills(ctx), 1)
	assert.Equal(t, int64(2), positionOf(tk, "AMZ"))
	assert.Len(t, sink.fills, 1)
	assert.Len(t, sink.events, 2)
}

func positionOf(tk *Toolkit, symbol string) int64 {
	var q int64
	tk.Ledger(func(l *ledger.Ledger) { q = l.Position(symbol).Qty })
	return q
}

func TestEpisodeLifecycle(t *testing.T) {
	sess := &fakeSession{}
	sink := &memorySink{}
	venue := &fakeVenue{}
	cfg := DefaultConfig()
	cfg.ResetVenueOnStart = true
	sess.state = session.StateActive
	tk := New(cfg, sess, venue, zap.NewNop(), WithSink(sink))
	ctx := context.Background()

	_, err := tk.GradeEpisode(ctx)
	require.ErrorIs(t, err, ErrNoEpisode)

	_, err = tk.StartEpisode(ctx, "unknown", nil)
	require.ErrorIs(t, err, scenario.ErrUnknownScenario)

	info, err := tk.StartEpisode(ctx, scenario.UnderwaterUnwind, map[string]any{"target_profit": 100})
	require.NoError(t, err)
	assert.Equal(t, 1, venue.resets)
	assert.Equal(t, 100.0, info.Params.TargetProfit)
	assert.Contains(t, info.Prompt, "220 shares")
	require.Len(t, sink.episodes, 1)
	assert.Equal(t, info.ID, sink.episodes[0].ID)
	require.Len(t, sink.fills, 1)
	assert.Equal(t, "setup", sink.fills[0].OrderID)

	snap := tk.Portfolio(ctx)
	assert.Equal(t, int64(220), snap.Positions["AMZ"].Qty)

	res, err := tk.GradeEpisode(ctx)
	require.NoError(t, err)
	assert.Equal(t, info.ID, res.ID)
	assert.Equal(t, 1, res.Steps)
	assert.GreaterOrEqual(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Score, 1.0)
	assert.Equal(t, 0.0, res.Grade.Subscores[grading.NameEndFlat])
	assert.Contains(t, sink.scores, info.ID)
}

func TestTakeProfitRoundTripScores(t *testing.T) {
	sess := &fakeSession{}
	sess.reply = func(m *fix.Message) []events.Event {
		if m.MsgType() != fix.MsgTypeNewOrderSingle {
			return nil
		}
		id, _ := m.Get(fix.TagClOrdID)
		side, _ := m.Get(fix.TagSide)
		if side == "1" {
			return []events.Event{tradeReport(id, "b-"+id, events.SideBuy, 100, 100)}
		}
		return []events.Event{tradeReport(id, "s-"+id, events.SideSell, 100, 102)}
	}
	tk := newToolkit(sess)
	ctx := context.Background()

	_, err := tk.StartEpisode(ctx, scenario.TakeProfitBasic, nil)
	require.NoError(t, err)
	_, err = tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "BUY", Qty: 100, Price: 101})
	require.NoError(t, err)
	_, err = tk.PlaceOrder(ctx, PlaceRequest{Symbol: "AMZ", Side: "SELL", Qty: 100, Price: 102})
	require.NoError(t, err)

	res, err := tk.GradeEpisode(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Score, 1e-9)
	assert.Equal(t, 2, res.Steps)
}

func TestSymbolsFromVenue(t *testing.T) {
	tk := newToolkit(&fakeSession{})
	symbols, err := tk.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AMZ", "MSF"}, symbols)
}
