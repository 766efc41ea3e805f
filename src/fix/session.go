package fix

import (
	"strconv"
	"sync"
	"time"
)

const (
	ExchangeCompID           = "EXCHANGE"
	DefaultHeartbeatInterval = 30 * time.Second
	sendingTimeLayout        = "20060102-15:04:05.000"
)

// Session stamps outgoing messages with comp ids and a gapless sequence
// number and tracks when the next heartbeat is owed.
type Session struct {
	SenderCompID      string
	TargetCompID      string
	HeartbeatInterval time.Duration

	mu       sync.Mutex
	outSeq   int64
	inSeq    int64
	lastSent time.Time
	now      func() time.Time
}

func NewSession(sender, target string, heartbeat time.Duration) *Session {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	s := &Session{
		SenderCompID:      sender,
		TargetCompID:      target,
		HeartbeatInterval: heartbeat,
		now:               time.Now,
	}
	s.lastSent = s.now()
	return s
}

// Stamp fills in the standard header and consumes one sequence number.
func (s *Session) Stamp(m *Message) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outSeq++
	now := s.now()
	s.lastSent = now

	m.Set(TagSenderCompID, s.SenderCompID)
	m.Set(TagTargetCompID, s.TargetCompID)
	m.SetInt(TagMsgSeqNum, s.outSeq)
	m.Set(TagSendingTime, now.UTC().Format(sendingTimeLayout))
	return m
}

// Received records the peer's sequence number from an inbound message.
func (s *Session) Received(m *Message) {
	v, ok := m.Get(TagMsgSeqNum)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return
	}
	s.mu.Lock()
	if n > s.inSeq {
		s.inSeq = n
	}
	s.mu.Unlock()
}

func (s *Session) NextSeqNum() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outSeq + 1
}

func (s *Session) LastReceivedSeqNum() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inSeq
}

func (s *Session) Heartbeat() *Message {
	m := NewMessage(MsgTypeHeartbeat)
	m.SetInt(TagHeartBtInt, int64(s.HeartbeatInterval/time.Second))
	return s.Stamp(m)
}

// HeartbeatDue reports whether nothing has been sent for a full interval.
func (s *Session) HeartbeatDue(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSent) >= s.HeartbeatInterval
}
