// Package statusfeed broadcasts sync outcomes to WebSocket clients so a UI
// can show the state of the local replica live.
package statusfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/models"
)

type MessageType string

const (
	// MessageTypeHello is sent once per connection and carries the last
	// known result, if any.
	MessageTypeHello MessageType = "hello"
	// MessageTypeSyncResult carries the outcome of one sync pass.
	MessageTypeSyncResult MessageType = "sync_result"
)

type Message struct {
	Type      MessageType        `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Data      *models.SyncResult `json:"data,omitempty"`
}

const writeTimeout = 5 * time.Second

// Server manages WebSocket connections and broadcasts status messages.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message
	last      *models.SyncResult
	lastMu    sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log logging.Logger
}

func NewServer(addr string, log logging.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 64),
		ctx:       ctx,
		cancel:    cancel,
		log:       log,
	}
}

// Handler exposes /ws and /health. It can be mounted without Start.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start listens on the configured address and starts broadcasting.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.Run()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info(s.ctx, "status feed listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(s.ctx, "status feed server error", "error", err)
		}
	}()
	return nil
}

// Run starts only the broadcast loop, for use with Handler.
func (s *Server) Run() {
	s.wg.Add(1)
	go s.broadcastLoop()
}

func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("status feed shutdown error: %w", err)
		}
	}

	s.wg.Wait()
	return nil
}

// Publish queues a sync result for every connected client. It never blocks;
// when the queue is full the message is dropped.
func (s *Server) Publish(res models.SyncResult) {
	s.lastMu.Lock()
	s.last = &res
	s.lastMu.Unlock()

	msg := Message{Type: MessageTypeSyncResult, Timestamp: time.Now().UTC(), Data: &res}
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.log.Warn(s.ctx, "status feed queue full, dropping message")
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				s.log.Error(s.ctx, "failed to marshal status message", "error", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				if err := s.write(conn, data); err != nil {
					s.log.Debug(s.ctx, "dropping status client", "error", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn(s.ctx, "websocket upgrade failed", "error", err)
		return
	}

	s.lastMu.RLock()
	hello := Message{Type: MessageTypeHello, Timestamp: time.Now().UTC(), Data: s.last}
	s.lastMu.RUnlock()
	data, _ := json.Marshal(hello)
	if err := s.write(conn, data); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "")
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.log.Debug(s.ctx, "status client connected", "clients", count)

	go s.readLoop(conn)
}

// readLoop only watches for the client going away.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)
	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	count := len(s.clients)
	s.clientsMu.Unlock()

	if ok {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.log.Debug(s.ctx, "status client disconnected", "clients", count)
	}
}

func (s *Server) write(conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
