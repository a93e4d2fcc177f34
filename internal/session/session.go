package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/ismaiel54/agent-trading-gateway/internal/events"
	"github.com/ismaiel54/agent-trading-gateway/internal/fix"
	"go.uber.org/zap"
)

var (
	ErrNotConnected     = errors.New("session not connected")
	ErrAlreadyConnected = errors.New("session already connected")
	ErrDisconnected     = errors.New("session disconnected")
	ErrLogonTimeout     = errors.New("logon acknowledgement timeout")
)

// State is the connection state of the session
type State int32

const (
	StateDisconnected State = iota
	StateLoggingOn
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateLoggingOn:
		return "LOGGING_ON"
	case StateActive:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// DialFunc opens the transport connection
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Option configures a Session
type Option func(*Session)

// WithDialer replaces the TCP dialer
func WithDialer(dial DialFunc) Option {
	return func(s *Session) { s.dial = dial }
}

// WithConnWrapper wraps every connection after it is dialed
func WithConnWrapper(wrap func(net.Conn) net.Conn) Option {
	return func(s *Session) { s.wrap = wrap }
}

// WithStateListener is called on every state transition, with the session lock held
func WithStateListener(fn func(State)) Option {
	return func(s *Session) { s.onState = fn }
}

// Session owns the venue connection and the outbound sequence counter.
// All methods are safe for concurrent use; writes are serialized so that
// sequence order equals wire order.
type Session struct {
	cfg    Config
	logger *zap.Logger
	dial   DialFunc
	wrap   func(net.Conn) net.Conn

	onState func(State)

	mu      sync.Mutex
	conn    net.Conn
	state   State
	nextSeq int64
	dec     fix.Decoder
	pending []events.Event
	readBuf []byte
}

// New creates a disconnected session. The sequence counter starts at 1 and is
// never reset for the lifetime of the Session, including across reconnects.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:     cfg,
		logger:  logger,
		nextSeq: 1,
		readBuf: make([]byte, 4096),
	}
	s.dial = (&net.Dialer{Timeout: cfg.DialTimeout}).DialContext
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current connection state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextSeqNum returns the sequence number the next outbound message will carry
func (s *Session) NextSeqNum() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq
}

// Connect dials the venue, sends Logon and waits up to LogonTimeout for the
// acknowledgement. Without RequireLogonAck a missing ack is logged and the
// session becomes Active anyway.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateDisconnected {
		return ErrAlreadyConnected
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()
	conn, err := s.dial(dialCtx, "tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to dial venue %s: %w", s.cfg.Addr(), err)
	}
	if s.wrap != nil {
		conn = s.wrap(conn)
	}

	s.conn = conn
	s.dec.Reset()
	s.setState(StateLoggingOn)

	logon := fix.NewMessage().
		Add(fix.TagMsgType, fix.MsgTypeLogon).
		Add(fix.TagEncryptMethod, "0").
		Add(fix.TagHeartBtInt, strconv.Itoa(s.cfg.HeartBtInt)).
		Add(fix.TagDefaultApplVerID, s.cfg.DefaultApplVerID)
	if _, err := s.sendLocked(logon); err != nil {
		s.closeLocked()
		return fmt.Errorf("failed to send logon: %w", err)
	}

	acked, err := s.awaitLogonAck(ctx)
	if err != nil {
		return err
	}
	if !acked {
		if s.cfg.RequireLogonAck {
			s.closeLocked()
			return fmt.Errorf("%w after %s", ErrLogonTimeout, s.cfg.LogonTimeout)
		}
		s.logger.Warn("logon ack not received, proceeding anyway",
			zap.String("target", s.cfg.TargetCompID),
			zap.Duration("timeout", s.cfg.LogonTimeout),
		)
	} else {
		s.logger.Info("logon acknowledged", zap.String("target", s.cfg.TargetCompID))
	}

	s.setState(StateActive)
	return nil
}

// awaitLogonAck reads until a Logon arrives or the timeout passes. Other
// messages received meanwhile are queued for the next Drain.
func (s *Session) awaitLogonAck(ctx context.Context) (bool, error) {
	deadline := time.Now().Add(s.cfg.LogonTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	acked := false
	for !acked {
		if err := ctx.Err(); err != nil {
			s.closeLocked()
			return false, err
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}

		if err := s.conn.SetReadDeadline(deadline); err != nil {
			s.closeLocked()
			return false, fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
		n, err := s.conn.Read(s.readBuf)
		if n > 0 {
			msgs, decErr := s.dec.Feed(s.readBuf[:n])
			if decErr != nil {
				s.logger.Warn("dropped undecodable frames", zap.Error(decErr))
			}
			rest := msgs[:0]
			for _, m := range msgs {
				if m.MsgType() == fix.MsgTypeLogon && !acked {
					acked = true
					continue
				}
				rest = append(rest, m)
			}
			if err := s.handleBatchLocked(rest); err != nil {
				return false, err
			}
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			s.closeLocked()
			return false, fmt.Errorf("%w during logon: %v", ErrDisconnected, err)
		}
	}
	return true, nil
}

// Send stamps the session header onto m, serializes it and writes it as one
// unit. m carries MsgType and body fields; any header fields it holds are
// replaced. Returns the sequence number the message was sent with.
func (s *Session) Send(m *fix.Message) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return 0, ErrNotConnected
	}
	return s.sendLocked(m)
}

func (s *Session) sendLocked(m *fix.Message) (int64, error) {
	msgType := m.MsgType()
	if msgType == "" {
		return 0, fmt.Errorf("%w: missing MsgType", fix.ErrMalformed)
	}

	seq := s.nextSeq
	out := fix.NewMessage().
		Add(fix.TagBeginString, s.cfg.BeginString).
		Add(fix.TagMsgType, msgType).
		Add(fix.TagSenderCompID, s.cfg.SenderCompID).
		Add(fix.TagTargetCompID, s.cfg.TargetCompID).
		AddInt(fix.TagMsgSeqNum, seq).
		Add(fix.TagSendingTime, time.Now().UTC().Format(fix.TimestampLayout))
	for _, f := range m.Fields {
		switch f.Tag {
		case fix.TagBeginString, fix.TagBodyLength, fix.TagCheckSum, fix.TagMsgType,
			fix.TagSenderCompID, fix.TagTargetCompID, fix.TagMsgSeqNum, fix.TagSendingTime:
			continue
		}
		out.Add(f.Tag, f.Value)
	}

	data, err := fix.Encode(out)
	if err != nil {
		return 0, fmt.Errorf("failed to encode message: %w", err)
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		s.closeLocked()
		return 0, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	if _, err := s.conn.Write(data); err != nil {
		s.closeLocked()
		s.logger.Error("session write failed", zap.String("msg_type", msgType), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}

	// The number is consumed only once the venue could have seen it
	s.nextSeq++
	s.logger.Debug("sent", zap.Int64("seq", seq), zap.Stringer("msg", out))
	return seq, nil
}

// Disconnect sends Logout when possible and closes the connection.
// Outstanding orders are left working at the venue.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	if _, err := s.sendLocked(fix.NewMessage().Add(fix.TagMsgType, fix.MsgTypeLogout)); err != nil {
		s.logger.Warn("failed to send logout", zap.Error(err))
	}
	s.closeLocked()
	return nil
}

// Close implements io.Closer
func (s *Session) Close() error {
	return s.Disconnect()
}

func (s *Session) closeLocked() {
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("close error", zap.Error(err))
		}
		s.conn = nil
	}
	s.dec.Reset()
	s.setState(StateDisconnected)
}

func (s *Session) setState(state State) {
	if s.state == state {
		return
	}
	s.logger.Info("session state changed",
		zap.Stringer("from", s.state),
		zap.Stringer("to", state),
	)
	s.state = state
	if s.onState != nil {
		s.onState(state)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
