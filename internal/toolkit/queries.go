package toolkit

import (
	"context"
	"strings"

	"github.com/ismaiel54/agent-trading-gateway/internal/events"
	"github.com/ismaiel54/agent-trading-gateway/internal/ledger"
	"github.com/ismaiel54/agent-trading-gateway/internal/router"
)

// PollFills returns the fills applied since the last call
func (t *Toolkit) PollFills(ctx context.Context) []ledger.Fill {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step()
	t.pumpLocked(ctx)
	return take(&t.fills)
}

// PollOrderEvents returns order acknowledgements, cancels, replaces, rejects
// and business rejects received since the last call
func (t *Toolkit) PollOrderEvents(ctx context.Context) []events.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step()
	t.pumpLocked(ctx)
	return take(&t.orderEvents)
}

// PollMarketData returns snapshots, incremental updates and market data rejects
func (t *Toolkit) PollMarketData(ctx context.Context) []events.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step()
	t.pumpLocked(ctx)
	return take(&t.marketData)
}

// PollSecurityStatus returns security status updates
func (t *Toolkit) PollSecurityStatus(ctx context.Context) []events.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step()
	t.pumpLocked(ctx)
	return take(&t.securityStatus)
}

// Portfolio returns the ledger snapshot after applying pending events
func (t *Toolkit) Portfolio(ctx context.Context) ledger.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step()
	t.pumpLocked(ctx)
	return t.ledger.Snapshot()
}

// Symbols lists the venue's tradeable symbols
func (t *Toolkit) Symbols(ctx context.Context) ([]string, error) {
	t.mu.Lock()
	t.step()
	t.mu.Unlock()
	return t.venue.Symbols(ctx)
}

// LastPrice returns the symbol's most recent fill price
func (t *Toolkit) LastPrice(ctx context.Context, symbol string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step()
	t.pumpLocked(ctx)
	return t.ledger.LastPrice(symbol)
}

// MarketDataParams selects what a market data request asks for. Names are
// accepted in any case; empty fields take TOP depth, INCREMENTAL updates and
// BID/OFFER entries.
type MarketDataParams struct {
	ReqID      string   `json:"md_req_id,omitempty"`
	Symbols    []string `json:"symbols"`
	Depth      string   `json:"depth,omitempty"`
	UpdateType string   `json:"update_type,omitempty"`
	EntryTypes []string `json:"entry_types,omitempty"`
}

func (p MarketDataParams) request() router.MarketDataRequest {
	req := router.MarketDataRequest{
		ReqID:      p.ReqID,
		Symbols:    p.Symbols,
		Depth:      router.DepthTop,
		UpdateType: router.UpdateIncremental,
		EntryTypes: []router.EntryType{router.EntryBid, router.EntryOffer},
	}
	if p.Depth != "" {
		req.Depth = router.MarketDepth(strings.ToUpper(p.Depth))
	}
	if p.UpdateType != "" {
		req.UpdateType = router.UpdateType(strings.ToUpper(p.UpdateType))
	}
	if len(p.EntryTypes) > 0 {
		req.EntryTypes = nil
		for _, et := range p.EntryTypes {
			req.EntryTypes = append(req.EntryTypes, router.EntryType(strings.ToUpper(et)))
		}
	}
	return req
}

// MarketData sends a snapshot, subscribe or unsubscribe request and returns
// its MDReqID. Unsubscribe should carry the subscription's MDReqID.
func (t *Toolkit) MarketData(ctx context.Context, kind router.SubscriptionType, p MarketDataParams) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step()

	id, err := t.router.MarketData(kind, p.request())
	if err != nil {
		return "", err
	}
	t.pumpLocked(ctx)
	return id, nil
}

// SecurityStatus sends a snapshot, subscribe or unsubscribe security status
// request for symbol and returns its request id
func (t *Toolkit) SecurityStatus(ctx context.Context, kind router.SubscriptionType, symbol, reqID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.step()

	id, err := t.router.SecurityStatus(kind, symbol, reqID)
	if err != nil {
		return "", err
	}
	t.pumpLocked(ctx)
	return id, nil
}
