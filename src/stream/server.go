package stream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"fix-match-engine/src/fix"
)

const (
	DefaultBuffer = 64
	writeWait     = 5 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = pongWait * 9 / 10
)

type envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Server pushes trades and execution reports to WebSocket clients. It is
// registered on the FixEngine as an Observer.
type Server struct {
	trades   *Hub[fix.Trade]
	reports  *Hub[fix.ExecutionReport]
	upgrader websocket.Upgrader
	buffer   int
	log      zerolog.Logger
}

func NewServer(buffer int, log zerolog.Logger) *Server {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Server{
		trades:   NewHub[fix.Trade](),
		reports:  NewHub[fix.ExecutionReport](),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		buffer:   buffer,
		log:      log,
	}
}

func (s *Server) ObserveTrade(t fix.Trade) {
	s.trades.Broadcast(t)
}

func (s *Server) ObserveReport(r fix.ExecutionReport) {
	s.reports.Broadcast(r)
}

func (s *Server) Subscribers() (trades, reports int) {
	return s.trades.Len(), s.reports.Len()
}

// Handler serves /ws/trades and /ws/reports. Both accept a symbol query
// filter; reports also accept source.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/trades", s.handleTrades)
	mux.HandleFunc("/ws/reports", s.handleReports)
	return mux
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	serve(s, w, r, s.trades, "trade", func(t fix.Trade) bool {
		return symbol == "" || t.Symbol == symbol
	})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	source := r.URL.Query().Get("source")
	serve(s, w, r, s.reports, "execution_report", func(rep fix.ExecutionReport) bool {
		return (symbol == "" || rep.Symbol == symbol) && (source == "" || rep.Source == source)
	})
}

func serve[T any](s *Server, w http.ResponseWriter, r *http.Request, h *Hub[T], kind string, keep func(T) bool) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Str("path", r.URL.Path).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.Subscribe(s.buffer)
	defer h.Unsubscribe(sub)

	log := s.log.With().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Logger()
	log.Info().Msg("Stream client connected")
	defer log.Info().Msg("Stream client disconnected")

	// The read loop only services control frames and notices the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case v, ok := <-sub.C:
			if !ok {
				return
			}
			if !keep(v) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(envelope{Type: kind, Data: v}); err != nil {
				log.Debug().Err(err).Msg("Stream write failed")
				return
			}
		}
	}
}

// ListenAndServe runs the stream endpoint until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Stream server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
