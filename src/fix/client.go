package fix

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fix-match-engine/src/engine"
)

var ErrNoReports = errors.New("no execution reports returned")

// Transport delivers one encoded message to the exchange and returns the
// encoded replies.
type Transport interface {
	HandleMessage(raw []byte) ([][]byte, error)
}

// Client is a participant's session with the exchange. It speaks only the
// wire format so strategies exercise the same path as any external peer.
type Client struct {
	source    string
	session   *Session
	transport Transport
	log       zerolog.Logger
}

func NewClient(source string, t Transport, heartbeat time.Duration, log zerolog.Logger) *Client {
	return &Client{
		source:    source,
		session:   NewSession(source, ExchangeCompID, heartbeat),
		transport: t,
		log:       log,
	}
}

func (c *Client) Source() string {
	return c.source
}

// NewOrder sends a NewOrderSingle and returns the reports addressed to this
// client. Rejections are reports, not errors.
func (c *Client) NewOrder(symbol string, side engine.Side, price decimal.Decimal, qty int64) ([]ExecutionReport, error) {
	req := OrderRequest{
		Source:        c.source,
		Symbol:        symbol,
		Side:          side,
		Price:         price,
		Quantity:      qty,
		ClientOrderID: uuid.New().String(),
	}
	return c.send(req.ToMessage())
}

func (c *Client) Cancel(orderID string) (ExecutionReport, error) {
	req := CancelRequest{
		Source:        c.source,
		OrderID:       orderID,
		ClientOrderID: uuid.New().String(),
	}
	reports, err := c.send(req.ToMessage())
	if err != nil {
		return ExecutionReport{}, err
	}
	if len(reports) == 0 {
		return ExecutionReport{}, fmt.Errorf("cancel %s: %w", orderID, ErrNoReports)
	}
	return reports[0], nil
}

func (c *Client) HeartbeatDue(now time.Time) bool {
	return c.session.HeartbeatDue(now)
}

func (c *Client) Heartbeat() error {
	_, err := c.roundTrip(c.session.Heartbeat())
	return err
}

func (c *Client) send(m *Message) ([]ExecutionReport, error) {
	return c.roundTrip(c.session.Stamp(m))
}

func (c *Client) roundTrip(m *Message) ([]ExecutionReport, error) {
	c.log.Debug().Str("dir", "OUT").Msg(m.String())

	replies, err := c.transport.HandleMessage(m.Encode())
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", m.MsgType(), err)
	}

	reports := make([]ExecutionReport, 0, len(replies))
	for _, raw := range replies {
		reply, err := ParseMessage(raw)
		if err != nil {
			return reports, err
		}
		c.session.Received(reply)
		c.log.Debug().Str("dir", "IN").Msg(reply.String())

		if reply.MsgType() == MsgTypeHeartbeat {
			continue
		}
		r, err := ParseExecutionReport(reply)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}
