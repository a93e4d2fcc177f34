package events

import (
	"encoding/json"
	"testing"

	"github.com/ismaiel54/agent-trading-gateway/internal/fix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(msgType string, seq int64) *fix.Message {
	return fix.NewMessage().
		Add(fix.TagBeginString, "FIXT.1.1").
		Add(fix.TagMsgType, msgType).
		Add(fix.TagSenderCompID, "SIM_XETRA").
		Add(fix.TagTargetCompID, "CLIENT_XETRA").
		AddInt(fix.TagMsgSeqNum, seq)
}

func TestTranslate_ExecutionReportFill(t *testing.T) {
	m := header(fix.MsgTypeExecutionReport, 12).
		Add(fix.TagOrderID, "V-1").
		Add(fix.TagClOrdID, "c-1").
		Add(fix.TagExecID, "E-1").
		Add(fix.TagExecType, "F").
		Add(fix.TagOrdStatus, "1").
		Add(fix.TagSymbol, "AMZ").
		Add(fix.TagSide, "1").
		Add(fix.TagOrderQty, "100").
		Add(fix.TagPrice, "102.5000").
		Add(fix.TagLastQty, "40").
		Add(fix.TagLastPx, "101.75").
		Add(fix.TagLeavesQty, "60").
		Add(fix.TagCumQty, "40")

	ev, err := Translate(m)
	require.NoError(t, err)
	er, ok := ev.(*ExecutionReport)
	require.True(t, ok)

	assert.Equal(t, KindExecutionReport, er.Kind())
	assert.Equal(t, int64(12), er.SeqNum)
	assert.Equal(t, ExecTrade, er.ExecType.Text)
	assert.Equal(t, "PARTIALLY_FILLED", er.OrdStatus.Text)
	assert.Equal(t, SideBuy, er.Side.Text)
	require.NotNil(t, er.OrderQty)
	assert.Equal(t, int64(100), *er.OrderQty)
	require.NotNil(t, er.Price)
	assert.InDelta(t, 102.5, *er.Price, 1e-9)
	assert.Equal(t, int64(40), er.LastQty)
	assert.InDelta(t, 101.75, er.LastPx, 1e-9)
	require.NotNil(t, er.LeavesQty)
	assert.Equal(t, int64(60), *er.LeavesQty)
	assert.True(t, er.IsFill())
	assert.True(t, er.OrdRejReason.IsZero())
}

func TestTranslate_UnknownCodesPassThrough(t *testing.T) {
	m := header(fix.MsgTypeExecutionReport, 3).
		Add(fix.TagExecType, "Z").
		Add(fix.TagOrdStatus, "Q").
		Add(fix.TagSide, "9")

	ev, err := Translate(m)
	require.NoError(t, err)
	er := ev.(*ExecutionReport)

	assert.Equal(t, Enum{Code: "Z", Text: "Z"}, er.ExecType)
	assert.False(t, er.OrdStatus.Known)
	assert.Equal(t, "Q", er.OrdStatus.Text)
	assert.Equal(t, "9", er.Side.String())
	assert.Nil(t, er.OrderQty)
	assert.Nil(t, er.LeavesQty)
	assert.False(t, er.IsFill())
}

func TestTranslate_CancelReject(t *testing.T) {
	m := header(fix.MsgTypeOrderCancelReject, 5).
		Add(fix.TagClOrdID, "cx-1").
		Add(fix.TagOrigClOrdID, "c-1").
		Add(fix.TagOrdStatus, "2").
		Add(fix.TagCxlRejRespTo, "1").
		Add(fix.TagCxlRejReason, "0").
		Add(fix.TagText, "too late")

	ev, err := Translate(m)
	require.NoError(t, err)
	rej := ev.(*OrderCancelReject)

	assert.Equal(t, "c-1", rej.OrigClOrdID)
	assert.Equal(t, "FILLED", rej.OrdStatus.Text)
	assert.Equal(t, "CANCEL_REQUEST", rej.ResponseTo.Text)
	assert.Equal(t, "TOO_LATE_TO_CANCEL", rej.CxlRejReason.Text)
	assert.Equal(t, "too late", rej.Text)
}

func TestTranslate_SnapshotGroups(t *testing.T) {
	m := header(fix.MsgTypeMarketDataSnapshot, 8).
		Add(fix.TagMDReqID, "md-1").
		Add(fix.TagSymbol, "AMZ").
		AddInt(fix.TagNoMDEntries, 3).
		Add(fix.TagMDEntryType, "0").
		Add(fix.TagMDEntryPx, "98").
		Add(fix.TagMDEntrySize, "100").
		Add(fix.TagMDEntryType, "1").
		Add(fix.TagMDEntryPx, "102").
		Add(fix.TagMDEntrySize, "50").
		Add(290, "1").
		Add(fix.TagMDEntryType, "X").
		Add(fix.TagMDEntryPx, "100")

	ev, err := Translate(m)
	require.NoError(t, err)
	snap := ev.(*MarketDataSnapshot)

	assert.Equal(t, "md-1", snap.MDReqID)
	assert.Equal(t, "AMZ", snap.Symbol)
	require.Len(t, snap.Entries, 3)

	assert.Equal(t, EntryBid, snap.Entries[0].EntryType.Text)
	assert.InDelta(t, 98.0, *snap.Entries[0].Price, 1e-9)
	assert.InDelta(t, 100.0, *snap.Entries[0].Size, 1e-9)

	assert.Equal(t, EntryOffer, snap.Entries[1].EntryType.Text)
	assert.Equal(t, []fix.Field{{Tag: 290, Value: "1"}}, snap.Entries[1].Extra)

	assert.Equal(t, "X", snap.Entries[2].EntryType.Text)
	assert.False(t, snap.Entries[2].EntryType.Known)
	assert.Nil(t, snap.Entries[2].Size)
}

func TestTranslate_IncrementalGroups(t *testing.T) {
	m := header(fix.MsgTypeMarketDataIncremental, 9).
		Add(fix.TagMDReqID, "md-2").
		AddInt(fix.TagNoMDEntries, 2).
		Add(fix.TagMDUpdateAction, "0").
		Add(fix.TagMDEntryType, "2").
		Add(fix.TagSymbol, "AMZ").
		Add(fix.TagMDEntryPx, "100.5").
		Add(fix.TagMDUpdateAction, "2").
		Add(fix.TagMDEntryType, "0").
		Add(fix.TagSymbol, "VOW").
		Add(fix.TagMDEntryID, "b-7")

	ev, err := Translate(m)
	require.NoError(t, err)
	upd := ev.(*MarketDataUpdate)

	require.Len(t, upd.Entries, 2)
	assert.Equal(t, "NEW", upd.Entries[0].Action.Text)
	assert.Equal(t, EntryTrade, upd.Entries[0].EntryType.Text)
	assert.Equal(t, "AMZ", upd.Entries[0].Symbol)
	assert.Equal(t, "DELETE", upd.Entries[1].Action.Text)
	assert.Equal(t, "VOW", upd.Entries[1].Symbol)
	assert.Equal(t, "b-7", upd.Entries[1].EntryID)
	assert.Nil(t, upd.Entries[1].Price)
}

func TestTranslate_NoBoundaryMeansNoEntries(t *testing.T) {
	m := header(fix.MsgTypeMarketDataIncremental, 10).Add(fix.TagMDReqID, "md-3")

	ev, err := Translate(m)
	require.NoError(t, err)
	assert.Empty(t, ev.(*MarketDataUpdate).Entries)
}

func TestTranslate_RejectsAndStatus(t *testing.T) {
	ev, err := Translate(header(fix.MsgTypeMarketDataReject, 1).
		Add(fix.TagMDReqID, "md-9").
		Add(fix.TagMDReqRejReason, "0"))
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN_SYMBOL", ev.(*MarketDataReject).Reason.Text)

	ev, err = Translate(header(fix.MsgTypeSecurityStatus, 2).
		Add(fix.TagSecStatusReq, "ss-1").
		Add(fix.TagSymbol, "AMZ").
		Add(fix.TagSecTradingSts, "17").
		Add(fix.TagTradingSubID, "3"))
	require.NoError(t, err)
	status := ev.(*SecurityStatus)
	assert.Equal(t, "READY_TO_TRADE", status.TradingStatus.Text)
	assert.Equal(t, "CONTINUOUS_TRADING", status.TradingPhase.Text)

	ev, err = Translate(header(fix.MsgTypeBusinessReject, 3).
		Add(fix.TagRefSeqNum, "41").
		Add(fix.TagRefMsgType, "D").
		Add(fix.TagBizRejectRsn, "42"))
	require.NoError(t, err)
	rej := ev.(*BusinessReject)
	assert.Equal(t, int64(41), rej.RefSeqNum)
	assert.Equal(t, "D", rej.RefMsgType)
	assert.Equal(t, "42", rej.Reason.Text)
}

func TestTranslate_UnsupportedType(t *testing.T) {
	_, err := Translate(header(fix.MsgTypeHeartbeat, 4))
	assert.ErrorIs(t, err, ErrUnsupportedMessage)
}

func TestEnum_MarshalsAsText(t *testing.T) {
	ev, err := Translate(header(fix.MsgTypeExecutionReport, 1).Add(fix.TagExecType, "0").Add(fix.TagSide, "2"))
	require.NoError(t, err)

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"exec_type":"NEW"`)
	assert.Contains(t, string(data), `"side":"SELL"`)
}
