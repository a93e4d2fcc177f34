package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ismaiel54/agent-trading-gateway/internal/fix"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sender writes a message on the session and returns its sequence number
type Sender interface {
	Send(m *fix.Message) (int64, error)
}

// NewOrder is a NewOrderSingle request. An empty ClOrdID is generated.
type NewOrder struct {
	ClOrdID     string
	Symbol      string
	Side        Side
	Qty         int64
	OrdType     OrdType
	Price       float64
	TimeInForce TimeInForce
	ExpireTime  time.Time
}

// CancelRequest cancels a working order. It carries no quantity.
type CancelRequest struct {
	ClOrdID     string
	OrigClOrdID string
	Symbol      string
	Side        Side
}

// ReplaceRequest amends quantity, price or time-in-force of a working order
type ReplaceRequest struct {
	ClOrdID     string
	OrigClOrdID string
	Symbol      string
	Side        Side
	Qty         int64
	OrdType     OrdType
	Price       float64
	TimeInForce TimeInForce
	ExpireTime  time.Time
}

// MarketDataRequest asks for book or trade data on one or more symbols
type MarketDataRequest struct {
	ReqID      string
	Symbols    []string
	Depth      MarketDepth
	UpdateType UpdateType
	EntryTypes []EntryType
}

// Router validates requests, builds their messages and hands them to the session
type Router struct {
	sender Sender
	logger *zap.Logger
	newID  func() string
	now    func() time.Time
}

// New creates a router writing through sender
func New(sender Sender, logger *zap.Logger) *Router {
	return &Router{
		sender: sender,
		logger: logger,
		newID:  NewID,
		now:    time.Now,
	}
}

// NewID returns a fresh 16-character correlation identifier
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// PlaceOrder sends a NewOrderSingle and returns its ClOrdID
func (r *Router) PlaceOrder(o NewOrder) (string, error) {
	if o.ClOrdID == "" {
		o.ClOrdID = r.newID()
	}
	m, err := BuildNewOrder(o, r.now())
	if err != nil {
		return "", err
	}
	if err := r.send(m); err != nil {
		return "", err
	}
	r.logger.Info("order sent",
		zap.String("cl_ord_id", o.ClOrdID),
		zap.String("symbol", o.Symbol),
		zap.String("side", string(o.Side)),
		zap.Int64("qty", o.Qty),
		zap.Float64("price", o.Price),
		zap.String("ord_type", string(o.OrdType)),
	)
	return o.ClOrdID, nil
}

// CancelOrder sends an OrderCancelRequest and returns the cancel's own ClOrdID
func (r *Router) CancelOrder(c CancelRequest) (string, error) {
	if c.ClOrdID == "" {
		c.ClOrdID = r.newID()
	}
	m, err := BuildCancel(c, r.now())
	if err != nil {
		return "", err
	}
	if err := r.send(m); err != nil {
		return "", err
	}
	r.logger.Info("cancel sent",
		zap.String("cl_ord_id", c.ClOrdID),
		zap.String("orig_cl_ord_id", c.OrigClOrdID),
	)
	return c.ClOrdID, nil
}

// ReplaceOrder sends an OrderCancelReplaceRequest and returns the replacement ClOrdID
func (r *Router) ReplaceOrder(rr ReplaceRequest) (string, error) {
	if rr.ClOrdID == "" {
		rr.ClOrdID = r.newID()
	}
	m, err := BuildReplace(rr, r.now())
	if err != nil {
		return "", err
	}
	if err := r.send(m); err != nil {
		return "", err
	}
	r.logger.Info("replace sent",
		zap.String("cl_ord_id", rr.ClOrdID),
		zap.String("orig_cl_ord_id", rr.OrigClOrdID),
		zap.Int64("qty", rr.Qty),
		zap.Float64("price", rr.Price),
	)
	return rr.ClOrdID, nil
}

// MarketData sends a MarketDataRequest of the given kind and returns its MDReqID.
// Unsubscribe should reuse the MDReqID of the subscription it ends.
func (r *Router) MarketData(kind SubscriptionType, req MarketDataRequest) (string, error) {
	if req.ReqID == "" {
		req.ReqID = r.newID()
	}
	m, err := BuildMarketDataRequest(kind, req)
	if err != nil {
		return "", err
	}
	if err := r.send(m); err != nil {
		return "", err
	}
	r.logger.Info("market data request sent",
		zap.String("md_req_id", req.ReqID),
		zap.String("kind", string(kind)),
		zap.Strings("symbols", req.Symbols),
	)
	return req.ReqID, nil
}

// SecurityStatus sends a SecurityStatusRequest and returns its request id
func (r *Router) SecurityStatus(kind SubscriptionType, symbol, reqID string) (string, error) {
	if reqID == "" {
		reqID = r.newID()
	}
	m, err := BuildSecurityStatusRequest(kind, symbol, reqID)
	if err != nil {
		return "", err
	}
	if err := r.send(m); err != nil {
		return "", err
	}
	r.logger.Info("security status request sent",
		zap.String("req_id", reqID),
		zap.String("kind", string(kind)),
		zap.String("symbol", symbol),
	)
	return reqID, nil
}

func (r *Router) send(m *fix.Message) error {
	if _, err := r.sender.Send(m); err != nil {
		return fmt.Errorf("failed to send %s: %w", m.MsgType(), err)
	}
	return nil
}

// BuildNewOrder validates o and returns the NewOrderSingle body
func BuildNewOrder(o NewOrder, now time.Time) (*fix.Message, error) {
	if err := validateOrder(o.ClOrdID, o.Symbol, o.Side, o.Qty, o.OrdType, o.Price, o.TimeInForce, o.ExpireTime); err != nil {
		return nil, err
	}

	m := fix.NewMessage().
		Add(fix.TagMsgType, fix.MsgTypeNewOrderSingle).
		Add(fix.TagClOrdID, o.ClOrdID).
		Add(fix.TagHandlInst, "1").
		Add(fix.TagSymbol, o.Symbol).
		Add(fix.TagSide, sideCodes[o.Side]).
		AddInt(fix.TagOrderQty, o.Qty).
		Add(fix.TagOrdType, ordTypeCodes[o.OrdType])
	if o.OrdType == OrdTypeLimit {
		m.Add(fix.TagPrice, formatPrice(o.Price))
	}
	m.Add(fix.TagTransactTime, now.UTC().Format(fix.TimestampLayout)).
		Add(fix.TagTimeInForce, tifCodes[o.TimeInForce])
	if o.TimeInForce == TIFGTD {
		m.Add(fix.TagExpireTime, o.ExpireTime.UTC().Format(fix.TimestampLayout))
	}
	return m, nil
}

// BuildCancel validates c and returns the OrderCancelRequest body
func BuildCancel(c CancelRequest, now time.Time) (*fix.Message, error) {
	if c.ClOrdID == "" {
		return nil, invalid("cl_ord_id", "must not be empty")
	}
	if c.OrigClOrdID == "" {
		return nil, invalid("orig_cl_ord_id", "must not be empty")
	}
	if c.Symbol == "" {
		return nil, invalid("symbol", "must not be empty")
	}
	if _, ok := sideCodes[c.Side]; !ok {
		return nil, invalid("side", "%q is not supported", c.Side)
	}

	return fix.NewMessage().
		Add(fix.TagMsgType, fix.MsgTypeOrderCancelRequest).
		Add(fix.TagClOrdID, c.ClOrdID).
		Add(fix.TagOrigClOrdID, c.OrigClOrdID).
		Add(fix.TagSymbol, c.Symbol).
		Add(fix.TagSide, sideCodes[c.Side]).
		Add(fix.TagTransactTime, now.UTC().Format(fix.TimestampLayout)), nil
}

// BuildReplace validates rr and returns the OrderCancelReplaceRequest body
func BuildReplace(rr ReplaceRequest, now time.Time) (*fix.Message, error) {
	if rr.OrigClOrdID == "" {
		return nil, invalid("orig_cl_ord_id", "must not be empty")
	}
	if rr.OrigClOrdID == rr.ClOrdID {
		return nil, invalid("cl_ord_id", "must differ from orig_cl_ord_id")
	}
	if err := validateOrder(rr.ClOrdID, rr.Symbol, rr.Side, rr.Qty, rr.OrdType, rr.Price, rr.TimeInForce, rr.ExpireTime); err != nil {
		return nil, err
	}

	m := fix.NewMessage().
		Add(fix.TagMsgType, fix.MsgTypeOrderCancelReplace).
		Add(fix.TagClOrdID, rr.ClOrdID).
		Add(fix.TagOrigClOrdID, rr.OrigClOrdID).
		Add(fix.TagHandlInst, "1").
		Add(fix.TagSymbol, rr.Symbol).
		Add(fix.TagSide, sideCodes[rr.Side]).
		AddInt(fix.TagOrderQty, rr.Qty).
		Add(fix.TagOrdType, ordTypeCodes[rr.OrdType])
	if rr.OrdType == OrdTypeLimit {
		m.Add(fix.TagPrice, formatPrice(rr.Price))
	}
	m.Add(fix.TagTimeInForce, tifCodes[rr.TimeInForce]).
		Add(fix.TagTransactTime, now.UTC().Format(fix.TimestampLayout))
	if rr.TimeInForce == TIFGTD {
		m.Add(fix.TagExpireTime, rr.ExpireTime.UTC().Format(fix.TimestampLayout))
	}
	return m, nil
}

// BuildMarketDataRequest validates req and returns the MarketDataRequest body.
// Entry types are deduplicated in first-seen order.
func BuildMarketDataRequest(kind SubscriptionType, req MarketDataRequest) (*fix.Message, error) {
	code, ok := subscriptionCodes[kind]
	if !ok {
		return nil, invalid("subscription_type", "%q is not supported", kind)
	}
	if req.ReqID == "" {
		return nil, invalid("md_req_id", "must not be empty")
	}
	depth, ok := depthCodes[req.Depth]
	if !ok {
		return nil, invalid("depth", "%q is not one of FULL, TOP", req.Depth)
	}
	var updateCode string
	if kind == Subscribe {
		if updateCode, ok = updateTypeCodes[req.UpdateType]; !ok {
			return nil, invalid("update_type", "%q is not one of FULL, INCREMENTAL", req.UpdateType)
		}
	}

	var entryCodes []string
	seen := make(map[EntryType]bool, len(req.EntryTypes))
	for _, et := range req.EntryTypes {
		c, ok := entryTypeCodes[et]
		if !ok {
			return nil, invalid("entry_types", "%q is not one of BID, OFFER, TRADE, LOW, HIGH, MID", et)
		}
		if seen[et] {
			continue
		}
		seen[et] = true
		entryCodes = append(entryCodes, c)
	}
	if len(entryCodes) == 0 {
		return nil, invalid("entry_types", "at least one entry type is required")
	}
	if len(req.Symbols) == 0 {
		return nil, invalid("symbols", "at least one symbol is required")
	}
	for _, s := range req.Symbols {
		if s == "" {
			return nil, invalid("symbols", "must not contain empty symbols")
		}
	}

	m := fix.NewMessage().
		Add(fix.TagMsgType, fix.MsgTypeMarketDataRequest).
		Add(fix.TagMDReqID, req.ReqID).
		Add(fix.TagSubscriptionType, code).
		Add(fix.TagMarketDepth, depth)
	if kind == Subscribe {
		m.Add(fix.TagMDUpdateType, updateCode)
	}
	m.AddInt(fix.TagNoMDEntryTypes, int64(len(entryCodes)))
	for _, c := range entryCodes {
		m.Add(fix.TagMDEntryType, c)
	}
	m.AddInt(fix.TagNoRelatedSym, int64(len(req.Symbols)))
	for _, s := range req.Symbols {
		m.Add(fix.TagSymbol, s)
	}
	return m, nil
}

// BuildSecurityStatusRequest validates and returns the SecurityStatusRequest body
func BuildSecurityStatusRequest(kind SubscriptionType, symbol, reqID string) (*fix.Message, error) {
	code, ok := subscriptionCodes[kind]
	if !ok {
		return nil, invalid("subscription_type", "%q is not supported", kind)
	}
	if reqID == "" {
		return nil, invalid("req_id", "must not be empty")
	}
	if symbol == "" {
		return nil, invalid("symbol", "must not be empty")
	}

	return fix.NewMessage().
		Add(fix.TagMsgType, fix.MsgTypeSecurityStatusRequest).
		Add(fix.TagSecStatusReq, reqID).
		Add(fix.TagSymbol, symbol).
		Add(fix.TagSubscriptionType, code), nil
}

func validateOrder(clOrdID, symbol string, side Side, qty int64, ordType OrdType, price float64, tif TimeInForce, expire time.Time) error {
	if clOrdID == "" {
		return invalid("cl_ord_id", "must not be empty")
	}
	if symbol == "" {
		return invalid("symbol", "must not be empty")
	}
	if _, ok := sideCodes[side]; !ok {
		return invalid("side", "%q is not one of BUY, SELL, SELL_SHORT, SELL_SHORT_EXEMPT", side)
	}
	if qty <= 0 {
		return invalid("qty", "must be positive, got %d", qty)
	}
	if _, ok := ordTypeCodes[ordType]; !ok {
		return invalid("ord_type", "%q is not one of MARKET, LIMIT", ordType)
	}
	if ordType == OrdTypeLimit && !(price > 0) {
		return invalid("price", "must be positive for LIMIT orders, got %v", price)
	}
	if _, ok := tifCodes[tif]; !ok {
		return invalid("time_in_force", "%q is not one of DAY, GTC, IOC, FOK, GTD", tif)
	}
	if tif == TIFGTD && expire.IsZero() {
		return invalid("expire_time", "required for GTD orders")
	}
	return nil
}

func formatPrice(p float64) string {
	return decimal.NewFromFloat(p).StringFixed(4)
}
