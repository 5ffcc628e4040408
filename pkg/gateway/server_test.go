package gateway

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/parley/pkg/bus"
)

func dialTestServer(t *testing.T, s *Server) (*websocket.Conn, func()) {
	t.Helper()
	ts := httptest.NewServer(s.srv.Handler)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		_ = conn.Close()
		ts.Close()
	}
}

func TestServer_SessionStartedOnConnect(t *testing.T) {
	b := bus.NewMessageBus()
	s := NewServer(Config{Host: "127.0.0.1", Port: 0}, b, nil)
	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "session_started", env.Type)
	assert.NotEmpty(t, env.ConversationID)
}

func TestServer_InboundFramesReachTheBus(t *testing.T) {
	b := bus.NewMessageBus()
	s := NewServer(Config{Host: "127.0.0.1", Port: 0}, b, nil)
	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello from browser")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, env.ConversationID, msg.ConversationID)
	assert.Equal(t, "hello from browser", msg.Content)
}

func TestServer_OutboundPumpDeliversToClient(t *testing.T) {
	b := bus.NewMessageBus()
	s := NewServer(Config{Host: "127.0.0.1", Port: 0}, b, nil)
	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	var started Envelope
	require.NoError(t, conn.ReadJSON(&started))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.PumpOutbound(ctx)

	b.PublishOutbound(bus.OutboundMessage{ConversationID: started.ConversationID, Content: "assistant says hi"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "assistant_message", env.Type)
	assert.Equal(t, "assistant says hi", env.Content)
}

func TestServer_ErrorsSurfaceAsErrorEnvelopes(t *testing.T) {
	b := bus.NewMessageBus()
	s := NewServer(Config{Host: "127.0.0.1", Port: 0}, b, nil)
	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	var started Envelope
	require.NoError(t, conn.ReadJSON(&started))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.PumpOutbound(ctx)

	b.PublishOutbound(bus.OutboundMessage{
		ConversationID: started.ConversationID,
		Error:          errors.New("completion failed after 3 attempts"),
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "error", env.Type)
	assert.Contains(t, env.Error, "after 3 attempts")
}

func TestServer_DisconnectCallbackFires(t *testing.T) {
	b := bus.NewMessageBus()
	dropped := make(chan string, 1)
	s := NewServer(Config{Host: "127.0.0.1", Port: 0}, b, func(id string) {
		dropped <- id
	})
	conn, cleanup := dialTestServer(t, s)

	var started Envelope
	require.NoError(t, conn.ReadJSON(&started))

	cleanup()

	select {
	case id := <-dropped:
		assert.Equal(t, started.ConversationID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect callback never fired")
	}
}
