package toolkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/agent-trading-gateway/internal/events"
	"github.com/ismaiel54/agent-trading-gateway/internal/fix"
	"github.com/ismaiel54/agent-trading-gateway/internal/journal"
	"github.com/ismaiel54/agent-trading-gateway/internal/ledger"
	"github.com/ismaiel54/agent-trading-gateway/internal/router"
	"github.com/ismaiel54/agent-trading-gateway/internal/session"
)

var (
	// ErrNoEpisode is returned when grading without a started episode
	ErrNoEpisode = errors.New("no episode started")
	// ErrUnknownOrder is returned when a cancel or replace names no working order
	// and the caller did not supply symbol and side
	ErrUnknownOrder = errors.New("unknown order")
)

// Session is the protocol engine the toolkit drives
type Session interface {
	Send(m *fix.Message) (int64, error)
	Drain() ([]events.Event, error)
	Connect(ctx context.Context) error
	State() session.State
}

// Venue is the REST side of the venue
type Venue interface {
	Symbols(ctx context.Context) ([]string, error)
	Reset(ctx context.Context) bool
}

// EventSink receives everything the toolkit applies. The journal implements it.
type EventSink interface {
	BeginEpisode(ctx context.Context, ep journal.Episode) error
	RecordEvent(ctx context.Context, episode string, ev events.Event) error
	RecordFill(ctx context.Context, episode string, f ledger.Fill) error
	EndEpisode(ctx context.Context, episode string, steps int, score float64) error
}

// Config tunes the toolkit
type Config struct {
	// MaxBuffered caps each poll buffer; the oldest entries are dropped
	MaxBuffered int
	// ResetVenueOnStart asks the venue to reload its market at episode start
	ResetVenueOnStart bool
	InitialCash       float64
	// MarketSlippage widens the reference price a MARKET buy locks at,
	// as a fraction (0.05 locks 5% above the last fill)
	MarketSlippage float64
}

// DefaultConfig returns the toolkit defaults
func DefaultConfig() Config {
	return Config{MaxBuffered: 1000, InitialCash: 15_000, MarketSlippage: 0.05}
}

// Option configures a Toolkit
type Option func(*Toolkit)

// WithSink journals applied events
func WithSink(sink EventSink) Option {
	return func(t *Toolkit) { t.sink = sink }
}

// Toolkit is the callable surface an agent drives: order entry, polling,
// portfolio and episode control. One mutex serializes every call, so the
// ledger sees a single writer.
type Toolkit struct {
	mu     sync.Mutex
	cfg    Config
	sess   Session
	router *router.Router
	venue  Venue
	ledger *ledger.Ledger
	sink   EventSink
	logger *zap.Logger
	now    func() time.Time

	episode *episode

	fills          []ledger.Fill
	orderEvents    []events.Event
	marketData     []events.Event
	securityStatus []events.Event
	lastPumpErr    error
}

// New wires a toolkit over a connected session
func New(cfg Config, sess Session, venue Venue, logger *zap.Logger, opts ...Option) *Toolkit {
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = DefaultConfig().MaxBuffered
	}
	if cfg.MarketSlippage < 0 {
		cfg.MarketSlippage = 0
	}
	t := &Toolkit{
		cfg:    cfg,
		sess:   sess,
		router: router.New(sess, logger),
		venue:  venue,
		ledger: ledger.New(cfg.InitialCash),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run pumps the session every interval until ctx ends, so heartbeats are
// answered and fills land in the ledger between agent calls.
func (t *Toolkit) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.mu.Lock()
			if t.sess.State() == session.StateActive {
				t.pumpLocked(ctx)
			}
			t.mu.Unlock()
		}
	}
}

// Pump drains the session once and applies what arrived
func (t *Toolkit) Pump(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pumpLocked(ctx)
}

// pumpLocked drains the session, applies events to the ledger, journals them
// and files them into the poll buffers. Drain errors are logged and kept for
// SessionState; buffered data stays readable while disconnected.
func (t *Toolkit) pumpLocked(ctx context.Context) error {
	evs, err := t.sess.Drain()
	for _, ev := range evs {
		t.applyLocked(ctx, ev)
	}
	if err != nil && !errors.Is(err, session.ErrNotConnected) {
		t.logger.Warn("session drain failed", zap.Error(err))
	}
	t.lastPumpErr = err
	return err
}

func (t *Toolkit) applyLocked(ctx context.Context, ev events.Event) {
	before := len(t.ledger.Fills())
	changed, err := t.ledger.Apply(ev)
	if err != nil {
		t.logger.Error("failed to apply event to ledger",
			zap.String("kind", string(ev.Kind())),
			zap.Error(err),
		)
	}

	episodeID := t.episodeID()
	if t.sink != nil {
		if err := t.sink.RecordEvent(ctx, episodeID, ev); err != nil {
			t.logger.Error("failed to journal event", zap.String("kind", string(ev.Kind())), zap.Error(err))
		}
	}

	switch e := ev.(type) {
	case *events.ExecutionReport:
		if e.IsFill() {
			if changed && len(t.ledger.Fills()) > before {
				f, _ := t.ledger.LastFill()
				t.fills = appendCapped(t.fills, f, t.cfg.MaxBuffered)
				if t.sink != nil {
					if err := t.sink.RecordFill(ctx, episodeID, f); err != nil {
						t.logger.Error("failed to journal fill", zap.String("exec_id", f.ExecID), zap.Error(err))
					}
				}
			}
			return
		}
		t.orderEvents = appendCapped(t.orderEvents, ev, t.cfg.MaxBuffered)
	case *events.OrderCancelReject, *events.BusinessReject:
		t.orderEvents = appendCapped(t.orderEvents, ev, t.cfg.MaxBuffered)
	case *events.MarketDataSnapshot, *events.MarketDataUpdate, *events.MarketDataReject:
		t.marketData = appendCapped(t.marketData, ev, t.cfg.MaxBuffered)
	case *events.SecurityStatus:
		t.securityStatus = appendCapped(t.securityStatus, ev, t.cfg.MaxBuffered)
	}
}

func appendCapped[T any](buf []T, v T, max int) []T {
	buf = append(buf, v)
	if len(buf) > max {
		buf = buf[len(buf)-max:]
	}
	return buf
}

func take[T any](buf *[]T) []T {
	out := *buf
	*buf = nil
	if out == nil {
		out = []T{}
	}
	return out
}

// step counts one agent action against the running episode
func (t *Toolkit) step() {
	if t.episode != nil {
		t.episode.steps++
	}
}

func (t *Toolkit) episodeID() string {
	if t.episode == nil {
		return ""
	}
	return t.episode.id
}

// SessionStatus reports the protocol session state
type SessionStatus struct {
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
}

// SessionState returns the session state and the last drain error
func (t *Toolkit) SessionState() SessionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := SessionStatus{State: t.sess.State().String()}
	if t.lastPumpErr != nil {
		st.LastError = t.lastPumpErr.Error()
	}
	return st
}

// Reconnect logs the session on again. Working orders are kept: the venue
// does not cancel them on disconnect.
func (t *Toolkit) Reconnect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.sess.Connect(ctx); err != nil {
		return fmt.Errorf("failed to reconnect: %w", err)
	}
	t.lastPumpErr = nil
	return nil
}

// Ledger exposes the ledger to fn under the toolkit lock
func (t *Toolkit) Ledger(fn func(*ledger.Ledger)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.ledger)
}
