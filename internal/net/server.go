package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"LocalInk/internal/worker"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 20
)

// ServerOptions configure a Server.
type ServerOptions struct {
	// Path is where the worker WebSocket endpoint is mounted.
	Path string

	// Pool sizes the worker contexts started for every session.
	Pool worker.PoolConfig

	Handler *worker.Handler
	Metrics *worker.Metrics
	Logger  *zap.Logger
}

// Server exposes worker contexts over WebSocket. Every connection gets its
// own pool, so sessions never wait on each other.
type Server struct {
	opts     ServerOptions
	sessions *SessionManager
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer returns a server for opts.
func NewServer(opts ServerOptions) *Server {
	return &Server{
		opts:     opts,
		sessions: NewSessionManager(opts.Metrics, opts.Logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 << 10,
			WriteBufferSize: 16 << 10,
			// The drawing front end is served from file:// or another
			// origin, so every origin is accepted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: opts.Logger,
	}
}

// Routes returns the HTTP handler with the worker endpoint, /metrics and
// /healthz.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.opts.Path, s.serveWorker)
	if s.opts.Metrics != nil {
		mux.Handle("/metrics", s.opts.Metrics.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.sessions.Count())
	})
	return mux
}

// Sessions returns the manager of open connections.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Serve accepts connections on l until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(l)
	}()
	s.logger.Info("[HOST] worker server listening",
		zap.String("addr", l.Addr().String()),
		zap.String("path", s.opts.Path))

	select {
	case err := <-errc:
		s.sessions.CloseAll()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.sessions.CloseAll()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

func (s *Server) serveWorker(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("[HOST] upgrade failed", zap.Error(err))
		return
	}

	pool := worker.NewPool(s.opts.Handler, s.opts.Pool, s.logger)
	sess := newSession(conn, pool, s.logger)
	s.sessions.Add(sess)
	go sess.writePump()
	sess.readPump()
	s.sessions.Remove(sess)
}

// session is one connected caller with its private pool.
type session struct {
	id     string
	conn   *websocket.Conn
	pool   *worker.Pool
	errs   chan worker.Result
	logger *zap.Logger
}

func newSession(conn *websocket.Conn, pool *worker.Pool, logger *zap.Logger) *session {
	id := newSessionID()
	return &session{
		id:     id,
		conn:   conn,
		pool:   pool,
		errs:   make(chan worker.Result, 16),
		logger: logger.With(zap.String("session", id), zap.String("remote", conn.RemoteAddr().String())),
	}
}

// readPump decodes requests and hands them to the pool. It returns when the
// connection fails, and then shuts the pool down, which ends writePump.
func (s *session) readPump() {
	defer s.pool.Close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := context.Background()
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("[HOST] read failed", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			s.logger.Debug("[HOST] ignoring binary message")
			continue
		}

		var req worker.Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.reject(requestIDOf(data), worker.InvalidArgument("malformed request", err))
			continue
		}
		if err := s.pool.Send(ctx, req); err != nil {
			return
		}
	}
}

// requestIDOf recovers the request id of a frame that did not decode as a
// whole, so the caller can match the error to its call. It is empty when the
// id itself is unreadable.
func requestIDOf(data []byte) string {
	var head struct {
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ""
	}
	return head.RequestID
}

func (s *session) reject(requestID string, e *worker.Error) {
	res := worker.Result{RequestID: requestID, Error: e, CompletedAt: time.Now()}
	select {
	case s.errs <- res:
	default:
		s.logger.Warn("[HOST] dropping error reply, queue full")
	}
}

// writePump is the only writer of the connection. When it gives up it also
// stops the pool so readPump cannot block on a queue nobody drains.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		s.pool.Close()
	}()

	results := s.pool.Results()
	for {
		var res worker.Result
		select {
		case r, ok := <-results:
			if !ok {
				s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			res = r
		case r := <-s.errs:
			res = r
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteJSON(res); err != nil {
			s.logger.Warn("[HOST] write failed", zap.Error(err))
			return
		}
	}
}

func (s *session) close() {
	s.conn.Close()
}
