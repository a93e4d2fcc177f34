package venue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	// ErrUnexpectedStatus is returned for a non-2xx response
	ErrUnexpectedStatus = errors.New("unexpected venue status")
	// ErrBadPayload is returned when a response body is not the expected JSON
	ErrBadPayload = errors.New("bad venue payload")
	// ErrUnknownListing is returned when no listing carries the symbol
	ErrUnknownListing = errors.New("unknown listing")
)

const maxBody = 4 << 20

// Listing is an instrument tradeable on the venue
type Listing struct {
	ID            int64   `json:"id"`
	Symbol        string  `json:"symbol"`
	VenueID       string  `json:"venue_id,omitempty"`
	SecurityType  string  `json:"security_type,omitempty"`
	PriceTickSize float64 `json:"price_tick_size,omitempty"`
	QtyMinimum    float64 `json:"qty_minimum,omitempty"`
	QtyMaximum    float64 `json:"qty_maximum,omitempty"`
	QtyMultiple   float64 `json:"qty_multiple,omitempty"`
	Enabled       bool    `json:"enabled"`
}

// ChaosTarget names this transport for fault injection
const ChaosTarget = "venue-rest"

// Delayer injects latency before a request
type Delayer interface {
	MaybeDelay(ctx context.Context, target, op string) error
}

// Client talks to the venue's REST admin API
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	delay   Delayer
}

// Option configures a Client
type Option func(*Client)

// WithDelayer delays every request through d
func WithDelayer(d Delayer) Option {
	return func(c *Client) { c.delay = d }
}

// NewClient creates a client for baseURL
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health reports whether the venue answers its status endpoint with 200
func (c *Client) Health(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, "/api/venuestatus")
	if err != nil {
		c.logger.Debug("Venue health check failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	return resp.StatusCode == http.StatusOK
}

// Reset asks the venue to reload its market state
func (c *Client) Reset(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodPost, "/api/reset")
	if err != nil {
		c.logger.Warn("Venue reset failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Venue reset rejected", zap.Int("status", resp.StatusCode))
		return false
	}
	return true
}

// Listings returns every listing. Both {"listings": [...]} and a bare array
// are accepted.
func (c *Client) Listings(ctx context.Context) ([]Listing, error) {
	body, err := c.getJSON(ctx, "/api/listings")
	if err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(body)
	items := parsed
	if parsed.IsObject() {
		items = parsed.Get("listings")
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("%w: listings is not an array", ErrBadPayload)
	}

	var out []Listing
	items.ForEach(func(_, item gjson.Result) bool {
		l := parseListing(item)
		if l.Symbol != "" {
			out = append(out, l)
		}
		return true
	})
	return out, nil
}

// Symbols returns the symbol of every listing, in venue order
func (c *Client) Symbols(ctx context.Context) ([]string, error) {
	listings, err := c.Listings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.Symbol)
	}
	return out, nil
}

// Listing returns the full listing for symbol, including trading constraints
func (c *Client) Listing(ctx context.Context, symbol string) (Listing, error) {
	listings, err := c.Listings(ctx)
	if err != nil {
		return Listing{}, err
	}
	var found *Listing
	for i := range listings {
		if strings.EqualFold(listings[i].Symbol, symbol) {
			found = &listings[i]
			break
		}
	}
	if found == nil {
		return Listing{}, fmt.Errorf("%w: %s", ErrUnknownListing, symbol)
	}
	if found.ID == 0 {
		return *found, nil
	}

	body, err := c.getJSON(ctx, fmt.Sprintf("/api/listings/%d", found.ID))
	if err != nil {
		return Listing{}, err
	}
	detail := parseListing(gjson.ParseBytes(body))
	if detail.Symbol == "" {
		detail.Symbol = found.Symbol
	}
	return detail, nil
}

func parseListing(item gjson.Result) Listing {
	l := Listing{
		ID:            item.Get("id").Int(),
		Symbol:        item.Get("symbol").String(),
		VenueID:       item.Get("venueId").String(),
		SecurityType:  item.Get("securityType").String(),
		PriceTickSize: item.Get("priceTickSize").Float(),
		QtyMinimum:    item.Get("qtyMinimum").Float(),
		QtyMaximum:    item.Get("qtyMaximum").Float(),
		QtyMultiple:   item.Get("qtyMultiple").Float(),
		Enabled:       true,
	}
	if en := item.Get("enabled"); en.Exists() {
		l.Enabled = en.Bool()
	}
	return l
}

func (c *Client) getJSON(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: GET %s returned %d", ErrUnexpectedStatus, path, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: GET %s", ErrBadPayload, path)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	if c.delay != nil {
		if err := c.delay.MaybeDelay(ctx, ChaosTarget, method+" "+path); err != nil {
			return nil, err
		}
	}
	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("failed to build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}
