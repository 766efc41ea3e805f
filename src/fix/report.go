package fix

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"fix-match-engine/src/engine"
)

type ExecType string

const (
	ExecTypeNew      ExecType = "0"
	ExecTypeCanceled ExecType = "4"
	ExecTypeRejected ExecType = "8"
	ExecTypeTrade    ExecType = "F"
)

func (e ExecType) String() string {
	switch e {
	case ExecTypeNew:
		return "NEW"
	case ExecTypeCanceled:
		return "CANCELED"
	case ExecTypeRejected:
		return "REJECTED"
	case ExecTypeTrade:
		return "TRADE"
	default:
		return "UNKNOWN(" + string(e) + ")"
	}
}

type OrdStatus string

const (
	OrdStatusNew             OrdStatus = "0"
	OrdStatusPartiallyFilled OrdStatus = "1"
	OrdStatusFilled          OrdStatus = "2"
	OrdStatusCanceled        OrdStatus = "4"
	OrdStatusRejected        OrdStatus = "8"
)

func OrdStatusFor(s engine.OrderStatus) OrdStatus {
	switch s {
	case engine.StatusPartiallyFilled:
		return OrdStatusPartiallyFilled
	case engine.StatusFilled:
		return OrdStatusFilled
	case engine.StatusCanceled:
		return OrdStatusCanceled
	case engine.StatusRejected:
		return OrdStatusRejected
	default:
		return OrdStatusNew
	}
}

func (s OrdStatus) OrderStatus() engine.OrderStatus {
	switch s {
	case OrdStatusPartiallyFilled:
		return engine.StatusPartiallyFilled
	case OrdStatusFilled:
		return engine.StatusFilled
	case OrdStatusCanceled:
		return engine.StatusCanceled
	case OrdStatusRejected:
		return engine.StatusRejected
	default:
		return engine.StatusNew
	}
}

// ExecutionReport is one order-state transition. Reports are immutable once
// generated and carry a sequence number in generation order.
type ExecutionReport struct {
	Sequence      uint64          `json:"seq"`
	ExecID        string          `json:"exec_id"`
	OrderID       string          `json:"order_id"`
	ClientOrderID string          `json:"client_order_id"`
	Source        string          `json:"source"`
	Symbol        string          `json:"symbol"`
	Side          engine.Side     `json:"side"`
	ExecType      ExecType        `json:"exec_type"`
	OrdStatus     OrdStatus       `json:"ord_status"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int64           `json:"order_qty"`
	LastQty       int64           `json:"last_qty"`
	LastPx        decimal.Decimal `json:"last_px"`
	CumQty        int64           `json:"cum_qty"`
	LeavesQty     int64           `json:"leaves_qty"`
	RejectReason  RejectReason    `json:"reject_reason,omitempty"`
	Text          string          `json:"text,omitempty"`
	Timestamp     time.Time       `json:"time"`
}

func (r ExecutionReport) IsFill() bool {
	return r.ExecType == ExecTypeTrade
}

func (r ExecutionReport) IsTerminal() bool {
	return r.OrdStatus.OrderStatus().IsTerminal()
}

// ToMessage renders the report body. Header fields are added by a Session.
func (r ExecutionReport) ToMessage() *Message {
	m := NewMessage(MsgTypeExecutionReport)
	m.Set(TagClOrdID, r.ClientOrderID)
	m.Set(TagOrderID, r.OrderID)
	m.Set(TagExecID, r.ExecID)
	m.Set(TagOrdStatus, string(r.OrdStatus))
	m.Set(TagExecType, string(r.ExecType))
	m.Set(TagSymbol, r.Symbol)
	m.Set(TagSide, encodeSide(r.Side))
	m.SetInt(TagOrderQty, r.Quantity)
	m.SetInt(TagLastQty, r.LastQty)
	m.Set(TagLastPx, formatPrice(r.LastPx))
	m.SetInt(TagLeavesQty, r.LeavesQty)
	m.SetInt(TagCumQty, r.CumQty)
	m.Set(TagPrice, formatPrice(r.Price))
	if r.Source != "" {
		m.Set(TagSource, r.Source)
	}
	m.Set(TagTransactTime, r.Timestamp.UTC().Format(sendingTimeLayout))
	if r.Text != "" {
		m.Set(TagText, r.Text)
	}
	if r.RejectReason != "" {
		m.Set(TagOrdRejReason, string(r.RejectReason))
	}
	return m
}

func ParseExecutionReport(m *Message) (ExecutionReport, error) {
	var r ExecutionReport
	if m.MsgType() != MsgTypeExecutionReport {
		return r, fmt.Errorf("msg type %q: %w", m.MsgType(), ErrUnsupportedMsgType)
	}

	var err error
	if r.OrderID, err = m.Require(TagOrderID); err != nil {
		return r, err
	}
	if r.ExecID, err = m.Require(TagExecID); err != nil {
		return r, err
	}
	r.ClientOrderID, _ = m.Get(TagClOrdID)
	r.Symbol, _ = m.Get(TagSymbol)
	r.Source, _ = m.Get(TagSource)
	r.Text, _ = m.Get(TagText)

	execType, _ := m.Get(TagExecType)
	r.ExecType = ExecType(execType)
	status, _ := m.Get(TagOrdStatus)
	r.OrdStatus = OrdStatus(status)
	reason, _ := m.Get(TagOrdRejReason)
	r.RejectReason = RejectReason(reason)

	if side, ok := m.Get(TagSide); ok && side != "" {
		if r.Side, err = decodeSide(side); err != nil {
			return r, err
		}
	}

	for tag, dst := range map[Tag]*int64{
		TagOrderQty:  &r.Quantity,
		TagLastQty:   &r.LastQty,
		TagCumQty:    &r.CumQty,
		TagLeavesQty: &r.LeavesQty,
	} {
		v, ok := m.Get(tag)
		if !ok {
			continue
		}
		if *dst, err = strconv.ParseInt(v, 10, 64); err != nil {
			return r, fmt.Errorf("tag %d=%q: %w", tag, v, ErrMalformedMessage)
		}
	}
	for tag, dst := range map[Tag]*decimal.Decimal{
		TagPrice:  &r.Price,
		TagLastPx: &r.LastPx,
	} {
		v, ok := m.Get(tag)
		if !ok {
			continue
		}
		if *dst, err = decimal.NewFromString(v); err != nil {
			return r, fmt.Errorf("tag %d=%q: %w", tag, v, ErrMalformedMessage)
		}
	}

	if ts, ok := m.Get(TagTransactTime); ok {
		if t, perr := time.Parse(sendingTimeLayout, ts); perr == nil {
			r.Timestamp = t
		}
	}
	return r, nil
}

// Trade is the decimal view of an engine trade.
type Trade struct {
	Sequence     uint64          `json:"seq"`
	ID           string          `json:"trade_id"`
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int64           `json:"qty"`
	Side         engine.Side     `json:"side"`
	TakerOrderID string          `json:"taker_order_id"`
	MakerOrderID string          `json:"maker_order_id"`
	TakerSource  string          `json:"source"`
	MakerSource  string          `json:"maker_source"`
	Timestamp    time.Time       `json:"time"`
}

func (c PriceCodec) trade(t engine.Trade) Trade {
	return Trade{
		Sequence:     t.Sequence,
		ID:           t.ID,
		Symbol:       t.Symbol,
		Price:        c.FromTicks(t.Price),
		Quantity:     t.Quantity,
		Side:         t.TakerSide,
		TakerOrderID: t.TakerOrderID,
		MakerOrderID: t.MakerOrderID,
		TakerSource:  t.TakerSource,
		MakerSource:  t.MakerSource,
		Timestamp:    t.Timestamp,
	}
}
