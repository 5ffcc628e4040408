// Package bus decouples the gateway from the session engine with bounded
// inbound/outbound queues. Publishing never blocks past a short timeout;
// overflow is counted and dropped rather than stalling a producer.
package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// InboundMessage is a user utterance arriving from a connected client.
type InboundMessage struct {
	ConversationID string
	SenderID       string
	Content        string
	ReceivedAt     time.Time
}

// OutboundMessage is an engine reply headed back to a client. Error is
// set instead of Content when the turn failed without an assistant
// reply.
type OutboundMessage struct {
	ConversationID string
	Content        string
	Error          error
}

// DeliveryHandler receives outbound messages for one conversation.
type DeliveryHandler func(msg OutboundMessage)

type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
	handlers map[string]DeliveryHandler
	closed   bool
	dropped  droppedCounters
	mu       sync.RWMutex
}

type droppedCounters struct {
	inbound  atomic.Uint64
	outbound atomic.Uint64
}

const publishTimeout = 100 * time.Millisecond

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, 100),
		outbound: make(chan OutboundMessage, 100),
		handlers: make(map[string]DeliveryHandler),
	}
}

func (mb *MessageBus) PublishInbound(msg InboundMessage) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}

	select {
	case mb.inbound <- msg:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case mb.inbound <- msg:
		case <-timer.C:
			mb.dropped.inbound.Add(1)
		}
	}
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg, ok := <-mb.inbound:
		if !ok {
			return InboundMessage{}, false
		}
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

func (mb *MessageBus) PublishOutbound(msg OutboundMessage) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}

	select {
	case mb.outbound <- msg:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case mb.outbound <- msg:
		case <-timer.C:
			mb.dropped.outbound.Add(1)
		}
	}
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg, ok := <-mb.outbound:
		if !ok {
			return OutboundMessage{}, false
		}
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

// RegisterHandler binds outbound delivery for one conversation. The
// gateway registers a handler per live connection and unregisters it on
// disconnect.
func (mb *MessageBus) RegisterHandler(conversationID string, handler DeliveryHandler) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.handlers[conversationID] = handler
}

func (mb *MessageBus) UnregisterHandler(conversationID string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	delete(mb.handlers, conversationID)
}

func (mb *MessageBus) GetHandler(conversationID string) (DeliveryHandler, bool) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	handler, ok := mb.handlers[conversationID]
	return handler, ok
}

func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.inbound)
	close(mb.outbound)
}

func (mb *MessageBus) DroppedInbound() uint64 {
	return mb.dropped.inbound.Load()
}

func (mb *MessageBus) DroppedOutbound() uint64 {
	return mb.dropped.outbound.Load()
}
