package fix

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fix-match-engine/src/engine"
)

func TestClientOrderAndCancel(t *testing.T) {
	fe, _ := newTestEngine(t)
	c := NewClient("my_strategy", fe, time.Second, zerolog.Nop())

	reports, err := c.NewOrder("AAPL", engine.SideBuy, px("100.50"), 7)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, ExecTypeNew, reports[0].ExecType)
	assert.Equal(t, "my_strategy", reports[0].Source)
	assert.True(t, px("100.5").Equal(reports[0].Price))

	canceled, err := c.Cancel(reports[0].OrderID)
	require.NoError(t, err)
	assert.Equal(t, ExecTypeCanceled, canceled.ExecType)
	assert.Equal(t, int64(0), canceled.LeavesQty)
}

func TestClientReceivesOnlyItsOwnReports(t *testing.T) {
	fe, _ := newTestEngine(t)
	fe.SubmitOrder(limit("alice", engine.SideSell, "100", 5))

	c := NewClient("bob", fe, time.Second, zerolog.Nop())
	reports, err := c.NewOrder("AAPL", engine.SideBuy, px("100"), 5)
	require.NoError(t, err)

	require.Len(t, reports, 2, "New and the taker fill; the maker fill belongs to alice")
	for _, r := range reports {
		assert.Equal(t, "bob", r.Source)
	}
	assert.Equal(t, OrdStatusFilled, reports[1].OrdStatus)
}

func TestClientRejectionIsAReport(t *testing.T) {
	fe, state := newTestEngine(t)
	state.SetHalted(true)
	c := NewClient("bob", fe, time.Second, zerolog.Nop())

	reports, err := c.NewOrder("AAPL", engine.SideBuy, px("100"), 5)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, ExecTypeRejected, reports[0].ExecType)
	assert.Equal(t, ReasonHalted, reports[0].RejectReason)
}

func TestHandleMessage(t *testing.T) {
	fe, _ := newTestEngine(t)

	t.Run("heartbeat", func(t *testing.T) {
		in := NewSession("peer", ExchangeCompID, time.Second).Heartbeat().Encode()
		out, err := fe.HandleMessage(in)
		require.NoError(t, err)
		require.Len(t, out, 1)
		msg, err := ParseMessage(out[0])
		require.NoError(t, err)
		assert.Equal(t, MsgTypeHeartbeat, msg.MsgType())
		target, _ := msg.Get(TagTargetCompID)
		assert.Equal(t, "peer", target)
	})

	t.Run("bad field becomes a reject", func(t *testing.T) {
		m := NewMessage(MsgTypeNewOrderSingle).
			Set(TagSenderCompID, "peer").
			Set(TagSymbol, "AAPL").
			Set(TagSide, "1").
			Set(TagPrice, "1x").
			Set(TagOrderQty, "1")
		out, err := fe.HandleMessage(m.Encode())
		require.NoError(t, err)
		require.Len(t, out, 1)
		msg, _ := ParseMessage(out[0])
		r, err := ParseExecutionReport(msg)
		require.NoError(t, err)
		assert.Equal(t, ExecTypeRejected, r.ExecType)
		assert.Equal(t, ReasonValidation, r.RejectReason)
	})

	t.Run("unsupported type", func(t *testing.T) {
		m := NewMessage("A").Set(TagSenderCompID, "peer")
		_, err := fe.HandleMessage(m.Encode())
		assert.True(t, errors.Is(err, ErrUnsupportedMsgType))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := fe.HandleMessage([]byte("8=FIX.4.4\x01"))
		assert.True(t, errors.Is(err, ErrMalformedMessage))
	})

	t.Run("sequence numbers per session", func(t *testing.T) {
		sess := NewSession("seq", ExchangeCompID, time.Second)
		var last int64
		for i := 0; i < 3; i++ {
			out, err := fe.HandleMessage(sess.Heartbeat().Encode())
			require.NoError(t, err)
			msg, _ := ParseMessage(out[0])
			n, err := msg.GetInt(TagMsgSeqNum)
			require.NoError(t, err)
			assert.Equal(t, last+1, n)
			last = n
		}
		assert.Equal(t, 2, fe.Stats().Sessions, "peer and seq")
	})
}
