package fix

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	BeginString = "FIX.4.4"
	soh         = '\x01'
)

type Tag int

const (
	TagAvgPx        Tag = 6
	TagBeginString  Tag = 8
	TagBodyLength   Tag = 9
	TagCheckSum     Tag = 10
	TagClOrdID      Tag = 11
	TagCumQty       Tag = 14
	TagExecID       Tag = 17
	TagLastPx       Tag = 31
	TagLastQty      Tag = 32
	TagMsgSeqNum    Tag = 34
	TagMsgType      Tag = 35
	TagOrderID      Tag = 37
	TagOrderQty     Tag = 38
	TagOrdStatus    Tag = 39
	TagOrdType      Tag = 40
	TagOrigClOrdID  Tag = 41
	TagPrice        Tag = 44
	TagSenderCompID Tag = 49
	TagSendingTime  Tag = 52
	TagSide         Tag = 54
	TagSymbol       Tag = 55
	TagTargetCompID Tag = 56
	TagText         Tag = 58
	TagTransactTime Tag = 60
	TagOrdRejReason Tag = 103
	TagHeartBtInt   Tag = 108
	TagExecType     Tag = 150
	TagLeavesQty    Tag = 151
	TagSource       Tag = 6007 // custom: participant identity
)

const (
	MsgTypeHeartbeat          = "0"
	MsgTypeExecutionReport    = "8"
	MsgTypeNewOrderSingle     = "D"
	MsgTypeOrderCancelRequest = "F"
)

var (
	ErrMalformedMessage   = errors.New("malformed FIX message")
	ErrUnsupportedMsgType = errors.New("unsupported FIX message type")
	ErrMissingField       = errors.New("missing required field")
)

type Field struct {
	Tag   Tag
	Value string
}

// Message is an ordered list of body fields. BeginString, BodyLength and
// CheckSum are computed by Encode and never stored.
type Message struct {
	fields []Field
}

func NewMessage(msgType string) *Message {
	m := &Message{}
	m.Set(TagMsgType, msgType)
	return m
}

// Set replaces the first occurrence of tag or appends it.
func (m *Message) Set(tag Tag, value string) *Message {
	for i := range m.fields {
		if m.fields[i].Tag == tag {
			m.fields[i].Value = value
			return m
		}
	}
	m.fields = append(m.fields, Field{Tag: tag, Value: value})
	return m
}

func (m *Message) SetInt(tag Tag, v int64) *Message {
	return m.Set(tag, strconv.FormatInt(v, 10))
}

func (m *Message) Get(tag Tag) (string, bool) {
	for _, f := range m.fields {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return "", false
}

// Require returns the value of tag or an ErrMissingField error.
func (m *Message) Require(tag Tag) (string, error) {
	v, ok := m.Get(tag)
	if !ok || v == "" {
		return "", fmt.Errorf("tag %d: %w", tag, ErrMissingField)
	}
	return v, nil
}

func (m *Message) GetInt(tag Tag) (int64, error) {
	v, err := m.Require(tag)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("tag %d=%q: %w", tag, v, ErrMalformedMessage)
	}
	return n, nil
}

func (m *Message) MsgType() string {
	v, _ := m.Get(TagMsgType)
	return v
}

func (m *Message) Fields() []Field {
	out := make([]Field, len(m.fields))
	copy(out, m.fields)
	return out
}

func (m *Message) body() []byte {
	var buf bytes.Buffer
	// MsgType must lead the body
	if t, ok := m.Get(TagMsgType); ok {
		writeField(&buf, TagMsgType, t)
	}
	for _, f := range m.fields {
		if f.Tag == TagMsgType {
			continue
		}
		writeField(&buf, f.Tag, f.Value)
	}
	return buf.Bytes()
}

// Encode renders the message in tag=value form with BodyLength and CheckSum.
func (m *Message) Encode() []byte {
	body := m.body()

	var buf bytes.Buffer
	writeField(&buf, TagBeginString, BeginString)
	writeField(&buf, TagBodyLength, strconv.Itoa(len(body)))
	buf.Write(body)
	writeField(&buf, TagCheckSum, fmt.Sprintf("%03d", checksum(buf.Bytes())))
	return buf.Bytes()
}

// String renders the encoded message with '|' in place of SOH for logs.
func (m *Message) String() string {
	return strings.ReplaceAll(string(m.Encode()), string(soh), "|")
}

// ParseMessage decodes one complete message and verifies its framing.
func ParseMessage(raw []byte) (*Message, error) {
	if len(raw) == 0 || raw[len(raw)-1] != soh {
		return nil, fmt.Errorf("unterminated message: %w", ErrMalformedMessage)
	}

	parts := bytes.Split(raw[:len(raw)-1], []byte{soh})
	if len(parts) < 4 {
		return nil, fmt.Errorf("too few fields: %w", ErrMalformedMessage)
	}

	fields := make([]Field, 0, len(parts))
	for _, p := range parts {
		tag, value, ok := bytes.Cut(p, []byte{'='})
		if !ok {
			return nil, fmt.Errorf("field %q: %w", p, ErrMalformedMessage)
		}
		n, err := strconv.Atoi(string(tag))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("tag %q: %w", tag, ErrMalformedMessage)
		}
		fields = append(fields, Field{Tag: Tag(n), Value: string(value)})
	}

	if fields[0].Tag != TagBeginString || fields[0].Value != BeginString {
		return nil, fmt.Errorf("begin string %q: %w", fields[0].Value, ErrMalformedMessage)
	}
	if fields[1].Tag != TagBodyLength {
		return nil, fmt.Errorf("body length must be second: %w", ErrMalformedMessage)
	}
	last := fields[len(fields)-1]
	if last.Tag != TagCheckSum {
		return nil, fmt.Errorf("checksum must be last: %w", ErrMalformedMessage)
	}

	trailerAt := bytes.LastIndex(raw, []byte("\x0110=")) + 1
	headerEnd := bytes.IndexByte(raw, soh) + 1
	headerEnd += bytes.IndexByte(raw[headerEnd:], soh) + 1

	declared, err := strconv.Atoi(fields[1].Value)
	if err != nil || declared != trailerAt-headerEnd {
		return nil, fmt.Errorf("body length %s, have %d: %w", fields[1].Value, trailerAt-headerEnd, ErrMalformedMessage)
	}
	if want := fmt.Sprintf("%03d", checksum(raw[:trailerAt])); want != last.Value {
		return nil, fmt.Errorf("checksum %s, computed %s: %w", last.Value, want, ErrMalformedMessage)
	}

	m := &Message{fields: fields[2 : len(fields)-1]}
	if m.MsgType() == "" {
		return nil, fmt.Errorf("no MsgType: %w", ErrMalformedMessage)
	}
	return m, nil
}

func writeField(buf *bytes.Buffer, tag Tag, value string) {
	buf.WriteString(strconv.Itoa(int(tag)))
	buf.WriteByte('=')
	buf.WriteString(value)
	buf.WriteByte(soh)
}

func checksum(b []byte) int {
	var sum int
	for _, c := range b {
		sum += int(c)
	}
	return sum % 256
}
