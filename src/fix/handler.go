package fix

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func (e *FixEngine) session(source string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[source]
	if !ok {
		s = NewSession(ExchangeCompID, source, e.heartbeat)
		e.sessions[source] = s
	}
	return s
}

// HandleMessage is the wire entry point. It decodes one inbound message,
// executes it and returns the encoded replies addressed to the sender.
func (e *FixEngine) HandleMessage(raw []byte) ([][]byte, error) {
	msg, err := ParseMessage(raw)
	if err != nil {
		e.log.Warn().Err(err).Msg("Dropping inbound message")
		return nil, err
	}

	source, _ := msg.Get(TagSource)
	if source == "" {
		source, _ = msg.Get(TagSenderCompID)
	}
	if source == "" {
		return nil, fmt.Errorf("no source or SenderCompID: %w", ErrMissingField)
	}

	sess := e.session(source)
	sess.Received(msg)
	log := e.log.With().Str("session", source).Logger()
	log.Debug().Str("dir", "IN").Msg(msg.String())

	var reports []ExecutionReport
	switch msg.MsgType() {
	case MsgTypeHeartbeat:
		hb := sess.Heartbeat()
		log.Debug().Str("dir", "OUT").Msg(hb.String())
		return [][]byte{hb.Encode()}, nil

	case MsgTypeNewOrderSingle:
		req, err := ParseOrderRequest(msg)
		req.Source = source
		if err != nil {
			reports = e.reject(uuid.New().String(), req, err)
		} else {
			reports = e.SubmitOrder(req)
		}

	case MsgTypeOrderCancelRequest:
		req, err := ParseCancelRequest(msg)
		req.Source = source
		if err != nil {
			reports = []ExecutionReport{e.cancelReject(req, OrderView{Source: source, Symbol: req.Symbol}, err)}
		} else {
			reports = []ExecutionReport{e.CancelOrder(req)}
		}

	default:
		log.Warn().Str("msg_type", msg.MsgType()).Msg("Unsupported message type")
		return nil, fmt.Errorf("msg type %q: %w", msg.MsgType(), ErrUnsupportedMsgType)
	}

	return e.encodeFor(sess, source, reports, log), nil
}

func (e *FixEngine) encodeFor(sess *Session, source string, reports []ExecutionReport, log zerolog.Logger) [][]byte {
	out := make([][]byte, 0, len(reports))
	for _, r := range reports {
		if r.Source != source {
			continue
		}
		m := sess.Stamp(r.ToMessage())
		log.Debug().Str("dir", "OUT").Msg(m.String())
		out = append(out, m.Encode())
	}
	return out
}
