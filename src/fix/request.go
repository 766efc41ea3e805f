package fix

import (
	"strconv"

	"github.com/shopspring/decimal"

	"fix-match-engine/src/engine"
)

// OrderRequest is a NewOrderSingle intent. Only limit orders are supported.
type OrderRequest struct {
	Source        string
	Symbol        string
	Side          engine.Side
	Price         decimal.Decimal
	Quantity      int64
	ClientOrderID string
}

func (r OrderRequest) ToMessage() *Message {
	m := NewMessage(MsgTypeNewOrderSingle)
	m.Set(TagClOrdID, r.ClientOrderID)
	m.Set(TagSymbol, r.Symbol)
	m.Set(TagSide, encodeSide(r.Side))
	m.Set(TagOrdType, "2")
	m.Set(TagPrice, formatPrice(r.Price))
	m.SetInt(TagOrderQty, r.Quantity)
	m.Set(TagSource, r.Source)
	return m
}

func ParseOrderRequest(m *Message) (OrderRequest, error) {
	var req OrderRequest
	if m.MsgType() != MsgTypeNewOrderSingle {
		return req, ErrUnsupportedMsgType
	}

	req.ClientOrderID, _ = m.Get(TagClOrdID)
	req.Source, _ = m.Get(TagSource)
	req.Symbol, _ = m.Get(TagSymbol)

	if ordType, ok := m.Get(TagOrdType); ok && ordType != "2" {
		return req, &ValidationError{Field: "ord_type", Reason: "only limit orders (40=2) are accepted"}
	}

	side, err := m.Require(TagSide)
	if err != nil {
		return req, &ValidationError{Field: "side", Reason: err.Error()}
	}
	if req.Side, err = decodeSide(side); err != nil {
		return req, err
	}

	px, err := m.Require(TagPrice)
	if err != nil {
		return req, &ValidationError{Field: "price", Reason: err.Error()}
	}
	if req.Price, err = decimal.NewFromString(px); err != nil {
		return req, &ValidationError{Field: "price", Reason: "tag 44 is not a number"}
	}

	qty, err := m.Require(TagOrderQty)
	if err != nil {
		return req, &ValidationError{Field: "quantity", Reason: err.Error()}
	}
	if req.Quantity, err = strconv.ParseInt(qty, 10, 64); err != nil {
		return req, &ValidationError{Field: "quantity", Reason: "tag 38 is not an integer"}
	}
	return req, nil
}

// CancelRequest identifies the order by OrderID or, failing that, by the
// ClOrdID the source originally used.
type CancelRequest struct {
	Source            string
	OrderID           string
	OrigClientOrderID string
	ClientOrderID     string
	Symbol            string
}

func (r CancelRequest) ToMessage() *Message {
	m := NewMessage(MsgTypeOrderCancelRequest)
	m.Set(TagClOrdID, r.ClientOrderID)
	if r.OrderID != "" {
		m.Set(TagOrderID, r.OrderID)
	}
	if r.OrigClientOrderID != "" {
		m.Set(TagOrigClOrdID, r.OrigClientOrderID)
	}
	if r.Symbol != "" {
		m.Set(TagSymbol, r.Symbol)
	}
	m.Set(TagSource, r.Source)
	return m
}

func ParseCancelRequest(m *Message) (CancelRequest, error) {
	var req CancelRequest
	if m.MsgType() != MsgTypeOrderCancelRequest {
		return req, ErrUnsupportedMsgType
	}
	req.ClientOrderID, _ = m.Get(TagClOrdID)
	req.OrderID, _ = m.Get(TagOrderID)
	req.OrigClientOrderID, _ = m.Get(TagOrigClOrdID)
	req.Symbol, _ = m.Get(TagSymbol)
	req.Source, _ = m.Get(TagSource)
	if req.OrderID == "" && req.OrigClientOrderID == "" {
		return req, &ValidationError{Field: "order_id", Reason: "tag 37 or 41 is required"}
	}
	return req, nil
}
