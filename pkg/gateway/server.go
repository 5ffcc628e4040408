// Package gateway exposes conversations over WebSocket. Each connection
// becomes one conversation on the bus; the browser sends plain text
// frames and receives JSON envelopes.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dotsetgreg/parley/pkg/bus"
	"github.com/dotsetgreg/parley/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	maxMessageSize = 16 * 1024
)

// Envelope is the JSON frame written to clients.
type Envelope struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Config holds the listen address.
type Config struct {
	Host string
	Port int
}

// Server upgrades HTTP connections to WebSocket and bridges frames onto
// the message bus. Outbound routing goes through per-conversation
// delivery handlers registered on the bus.
type Server struct {
	cfg      Config
	bus      *bus.MessageBus
	upgrader websocket.Upgrader
	srv      *http.Server

	mu    sync.Mutex
	conns map[string]*websocket.Conn

	onDisconnect func(conversationID string)
}

func NewServer(cfg Config, b *bus.MessageBus, onDisconnect func(conversationID string)) *Server {
	s := &Server{
		cfg: cfg,
		bus: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns:        make(map[string]*websocket.Conn),
		onDisconnect: onDisconnect,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	s.srv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}
	return s
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.InfoCF("gateway", "Listening",
			map[string]interface{}{"addr": s.srv.Addr})
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// PumpOutbound drains the bus outbound queue and delivers each message
// through the handler registered for its conversation. Messages for
// conversations that already disconnected are dropped.
func (s *Server) PumpOutbound(ctx context.Context) {
	for {
		msg, ok := s.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		handler, found := s.bus.GetHandler(msg.ConversationID)
		if !found {
			logger.WarnCF("gateway", "No handler for outbound message",
				map[string]interface{}{"conversation_id": msg.ConversationID})
			continue
		}
		handler(msg)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s.mu.Lock()
	n := len(s.conns)
	s.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"connections": n,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("gateway", "WebSocket upgrade failed",
			map[string]interface{}{"error": err.Error()})
		return
	}

	conversationID := uuid.NewString()
	s.mu.Lock()
	s.conns[conversationID] = conn
	s.mu.Unlock()

	writeMu := &sync.Mutex{}
	s.bus.RegisterHandler(conversationID, func(msg bus.OutboundMessage) {
		env := Envelope{Type: "assistant_message", ConversationID: msg.ConversationID, Content: msg.Content}
		if msg.Error != nil {
			env.Type = "error"
			env.Error = msg.Error.Error()
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(env); err != nil {
			logger.WarnCF("gateway", "Outbound write failed",
				map[string]interface{}{"conversation_id": conversationID, "error": err.Error()})
		}
	})

	logger.InfoCF("gateway", "Client connected",
		map[string]interface{}{"conversation_id": conversationID, "remote": r.RemoteAddr})

	greeting := Envelope{Type: "session_started", ConversationID: conversationID}
	writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(greeting)
	writeMu.Unlock()

	go s.pingLoop(conversationID, conn, writeMu)
	s.readLoop(conversationID, conn)
}

func (s *Server) readLoop(conversationID string, conn *websocket.Conn) {
	defer s.dropConn(conversationID, conn)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		text := string(data)
		if text == "" {
			continue
		}
		s.bus.PublishInbound(bus.InboundMessage{
			ConversationID: conversationID,
			SenderID:       conversationID,
			Content:        text,
			ReceivedAt:     time.Now(),
		})
	}
}

func (s *Server) pingLoop(conversationID string, conn *websocket.Conn, writeMu *sync.Mutex) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		_, alive := s.conns[conversationID]
		s.mu.Unlock()
		if !alive {
			return
		}
		writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

func (s *Server) dropConn(conversationID string, conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conversationID)
	s.mu.Unlock()

	s.bus.UnregisterHandler(conversationID)
	_ = conn.Close()
	if s.onDisconnect != nil {
		s.onDisconnect(conversationID)
	}
	logger.InfoCF("gateway", "Client disconnected",
		map[string]interface{}{"conversation_id": conversationID})
}
