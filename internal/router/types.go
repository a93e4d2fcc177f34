package router

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is matched by every ValidationError
var ErrValidation = errors.New("validation failed")

// ValidationError reports a request rejected before any network I/O
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Side of an order
type Side string

const (
	SideBuy             Side = "BUY"
	SideSell            Side = "SELL"
	SideSellShort       Side = "SELL_SHORT"
	SideSellShortExempt Side = "SELL_SHORT_EXEMPT"
)

var sideCodes = map[Side]string{
	SideBuy:             "1",
	SideSell:            "2",
	SideSellShort:       "5",
	SideSellShortExempt: "6",
}

// IsBuy reports whether the side adds to a position
func (s Side) IsBuy() bool {
	return s == SideBuy
}

// OrdType is the order type
type OrdType string

const (
	OrdTypeMarket OrdType = "MARKET"
	OrdTypeLimit  OrdType = "LIMIT"
)

var ordTypeCodes = map[OrdType]string{
	OrdTypeMarket: "1",
	OrdTypeLimit:  "2",
}

// TimeInForce of an order
type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGTC TimeInForce = "GTC"
	TIFIOC TimeInForce = "IOC"
	TIFFOK TimeInForce = "FOK"
	TIFGTD TimeInForce = "GTD"
)

var tifCodes = map[TimeInForce]string{
	TIFDay: "0",
	TIFGTC: "1",
	TIFIOC: "3",
	TIFFOK: "4",
	TIFGTD: "6",
}

// SubscriptionType selects snapshot, subscribe or unsubscribe (tag 263)
type SubscriptionType string

const (
	Snapshot    SubscriptionType = "SNAPSHOT"
	Subscribe   SubscriptionType = "SUBSCRIBE"
	Unsubscribe SubscriptionType = "UNSUBSCRIBE"
)

var subscriptionCodes = map[SubscriptionType]string{
	Snapshot:    "0",
	Subscribe:   "1",
	Unsubscribe: "2",
}

// MarketDepth of a market data request (tag 264)
type MarketDepth string

const (
	DepthFull MarketDepth = "FULL"
	DepthTop  MarketDepth = "TOP"
)

var depthCodes = map[MarketDepth]string{
	DepthFull: "0",
	DepthTop:  "1",
}

// UpdateType of a market data subscription (tag 265)
type UpdateType string

const (
	UpdateFull        UpdateType = "FULL"
	UpdateIncremental UpdateType = "INCREMENTAL"
)

var updateTypeCodes = map[UpdateType]string{
	UpdateFull:        "0",
	UpdateIncremental: "1",
}

// EntryType requested in a market data request (tag 269)
type EntryType string

const (
	EntryBid   EntryType = "BID"
	EntryOffer EntryType = "OFFER"
	EntryTrade EntryType = "TRADE"
	EntryLow   EntryType = "LOW"
	EntryHigh  EntryType = "HIGH"
	EntryMid   EntryType = "MID"
)

var entryTypeCodes = map[EntryType]string{
	EntryBid:   "0",
	EntryOffer: "1",
	EntryTrade: "2",
	EntryHigh:  "7",
	EntryLow:   "8",
	EntryMid:   "H",
}

// ParseSide accepts a side name in any case
func ParseSide(s string) (Side, error) {
	side := Side(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := sideCodes[side]; !ok {
		return "", invalid("side", "%q is not one of BUY, SELL, SELL_SHORT, SELL_SHORT_EXEMPT", s)
	}
	return side, nil
}

// ParseOrdType accepts an order type name in any case
func ParseOrdType(s string) (OrdType, error) {
	t := OrdType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := ordTypeCodes[t]; !ok {
		return "", invalid("ord_type", "%q is not one of MARKET, LIMIT", s)
	}
	return t, nil
}

// ParseTimeInForce accepts a time-in-force name in any case
func ParseTimeInForce(s string) (TimeInForce, error) {
	tif := TimeInForce(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := tifCodes[tif]; !ok {
		return "", invalid("time_in_force", "%q is not one of DAY, GTC, IOC, FOK, GTD", s)
	}
	return tif, nil
}
