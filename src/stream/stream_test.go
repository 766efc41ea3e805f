package stream

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fix-match-engine/src/control"
	"fix-match-engine/src/engine"
	"fix-match-engine/src/fix"
)

func TestHubDropsForSlowSubscribers(t *testing.T) {
	h := NewHub[int]()
	fast := h.Subscribe(4)
	slow := h.Subscribe(1)
	assert.Equal(t, 2, h.Len())

	for i := 0; i < 3; i++ {
		h.Broadcast(i)
	}
	assert.Equal(t, 0, <-fast.C)
	assert.Equal(t, 1, <-fast.C)
	assert.Equal(t, 2, <-fast.C)
	assert.Equal(t, 0, <-slow.C)
	assert.Equal(t, uint64(2), h.Dropped())

	h.Unsubscribe(slow)
	h.Unsubscribe(slow)
	_, ok := <-slow.C
	assert.False(t, ok)
	assert.Equal(t, 1, h.Len())
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestServerStreamsEngineEvents(t *testing.T) {
	s := NewServer(16, zerolog.Nop())
	fe := fix.NewFixEngine(engine.NewMatcher([]string{"AAPL", "MSFT"}),
		control.NewTradingState(zerolog.Nop()), fix.WithObserver(s))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	trades := dial(t, srv, "/ws/trades?symbol=AAPL")
	reports := dial(t, srv, "/ws/reports?source=bob")
	require.Eventually(t, func() bool {
		tr, rp := s.Subscribers()
		return tr == 1 && rp == 1
	}, 2*time.Second, 5*time.Millisecond)

	req := func(source, symbol string, side engine.Side, qty int64) fix.OrderRequest {
		return fix.OrderRequest{Source: source, Symbol: symbol, Side: side, Price: decimal.NewFromInt(100), Quantity: qty}
	}
	fe.SubmitOrder(req("alice", "MSFT", engine.SideBuy, 1))
	fe.SubmitOrder(req("alice", "MSFT", engine.SideSell, 1))
	fe.SubmitOrder(req("alice", "AAPL", engine.SideBuy, 5))
	fe.SubmitOrder(req("bob", "AAPL", engine.SideSell, 3))

	f := read(t, trades)
	assert.Equal(t, "trade", f.Type)
	var trade fix.Trade
	require.NoError(t, json.Unmarshal(f.Data, &trade))
	assert.Equal(t, "AAPL", trade.Symbol, "MSFT trade filtered out")
	assert.Equal(t, int64(3), trade.Quantity)
	assert.Equal(t, engine.SideSell, trade.Side)

	var got []fix.ExecutionReport
	for i := 0; i < 2; i++ {
		f := read(t, reports)
		assert.Equal(t, "execution_report", f.Type)
		var r fix.ExecutionReport
		require.NoError(t, json.Unmarshal(f.Data, &r))
		got = append(got, r)
	}
	assert.Equal(t, "bob", got[0].Source)
	assert.Equal(t, fix.ExecTypeNew, got[0].ExecType)
	assert.Equal(t, fix.ExecTypeTrade, got[1].ExecType)
	assert.Equal(t, fix.OrdStatusFilled, got[1].OrdStatus)
}

func TestServerReleasesSubscriptionOnClose(t *testing.T) {
	s := NewServer(0, zerolog.Nop())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv, "/ws/trades")
	require.Eventually(t, func() bool { n, _ := s.Subscribers(); return n == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
	require.Eventually(t, func() bool { n, _ := s.Subscribers(); return n == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestListenAndServeStopsWithContext(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := NewServer(0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, addr, time.Second) }()

	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
