package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/ismaiel54/agent-trading-gateway/internal/events"
	"github.com/ismaiel54/agent-trading-gateway/internal/fix"
	"go.uber.org/zap"
)

// Drain reads whatever the venue has sent, decodes it and returns the
// translated domain events. It returns as soon as a read times out; no data
// is not an error. A hard read error closes the session and is returned
// together with the events decoded before it.
func (s *Session) Drain() ([]events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		if len(s.pending) > 0 {
			return s.takePending(), nil
		}
		return nil, ErrNotConnected
	}

	for i := 0; i < s.cfg.MaxReadsPerDrain && s.conn != nil; i++ {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.PollTimeout)); err != nil {
			s.closeLocked()
			return s.takePending(), fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
		n, err := s.conn.Read(s.readBuf)
		if n > 0 {
			msgs, decErr := s.dec.Feed(s.readBuf[:n])
			if decErr != nil {
				s.logger.Warn("dropped undecodable frames", zap.Error(decErr))
			}
			if herr := s.handleBatchLocked(msgs); herr != nil {
				return s.takePending(), herr
			}
		}
		if err != nil {
			if isTimeout(err) {
				break
			}
			s.closeLocked()
			s.logger.Error("session read failed", zap.Error(err))
			return s.takePending(), fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
	}

	return s.takePending(), nil
}

func (s *Session) takePending() []events.Event {
	out := s.pending
	s.pending = nil
	return out
}

// handleBatchLocked handles a decoded batch in order. Once a message fails,
// the application messages after it are still queued; the first error is
// returned.
func (s *Session) handleBatchLocked(msgs []*fix.Message) error {
	var first error
	for _, m := range msgs {
		if first != nil {
			if !isSessionLevel(m.MsgType()) {
				if err := s.queueLocked(m); err != nil {
					s.logger.Warn("failed to translate message", zap.Error(err))
				}
			}
			continue
		}
		first = s.handleLocked(m)
	}
	return first
}

func isSessionLevel(msgType string) bool {
	switch msgType {
	case fix.MsgTypeHeartbeat, fix.MsgTypeTestRequest, fix.MsgTypeLogout, fix.MsgTypeReject,
		fix.MsgTypeLogon, fix.MsgTypeResendRequest, fix.MsgTypeSequenceReset:
		return true
	}
	return false
}

// handleLocked absorbs session-level messages and queues application events
func (s *Session) handleLocked(m *fix.Message) error {
	s.logger.Debug("received", zap.Int64("seq", m.SeqNum()), zap.Stringer("msg", m))

	switch m.MsgType() {
	case fix.MsgTypeHeartbeat:
		return nil
	case fix.MsgTypeTestRequest:
		reply := fix.NewMessage().Add(fix.TagMsgType, fix.MsgTypeHeartbeat)
		if id, ok := m.Get(fix.TagTestReqID); ok {
			reply.Add(fix.TagTestReqID, id)
		}
		if _, err := s.sendLocked(reply); err != nil {
			return err
		}
		return nil
	case fix.MsgTypeLogout:
		text, _ := m.Get(fix.TagText)
		s.logger.Error("venue logged out the session", zap.String("text", text))
		s.closeLocked()
		return fmt.Errorf("%w: venue logout %q", ErrDisconnected, text)
	case fix.MsgTypeReject:
		reason, _ := m.Get(fix.TagSessionRejectRsn)
		ref, _ := m.Get(fix.TagRefSeqNum)
		text, _ := m.Get(fix.TagText)
		s.logger.Warn("session reject",
			zap.String("ref_seq_num", ref),
			zap.Stringer("reason", events.SessionRejectReason(reason)),
			zap.String("text", text),
		)
		return nil
	case fix.MsgTypeLogon:
		s.logger.Info("late logon ack received")
		return nil
	case fix.MsgTypeResendRequest, fix.MsgTypeSequenceReset:
		s.logger.Warn("ignoring sequence recovery message", zap.String("msg_type", m.MsgType()))
		return nil
	}

	return s.queueLocked(m)
}

// queueLocked translates an application message onto the pending queue
func (s *Session) queueLocked(m *fix.Message) error {
	ev, err := events.Translate(m)
	if err != nil {
		if errors.Is(err, events.ErrUnsupportedMessage) {
			s.logger.Warn("dropping unsupported message", zap.String("msg_type", m.MsgType()))
			return nil
		}
		return err
	}
	s.pending = append(s.pending, ev)
	return nil
}
