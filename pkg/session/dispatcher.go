package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dotsetgreg/parley/pkg/bus"
	"github.com/dotsetgreg/parley/pkg/logger"
)

// EngineFactory builds a fresh engine for a conversation the dispatcher
// has not seen before.
type EngineFactory func(conversationID string) *Engine

// Dispatcher pulls inbound messages off the bus, routes each one to the
// engine owning its conversation, and publishes replies back out. One
// engine per conversation id, created lazily.
type Dispatcher struct {
	bus     *bus.MessageBus
	factory EngineFactory

	mu      sync.Mutex
	engines map[string]*Engine

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewDispatcher(b *bus.MessageBus, factory EngineFactory) *Dispatcher {
	return &Dispatcher{
		bus:     b,
		factory: factory,
		engines: make(map[string]*Engine),
	}
}

// Run consumes inbound messages until the context is cancelled or the
// bus closes. Each turn runs on its own goroutine so one slow provider
// call does not stall other conversations.
func (d *Dispatcher) Run(ctx context.Context) {
	if !d.running.CompareAndSwap(false, true) {
		logger.WarnCF("dispatcher", "Run called while already running", nil)
		return
	}
	defer d.running.Store(false)

	logger.InfoCF("dispatcher", "Dispatcher started", nil)
	for {
		msg, ok := d.bus.ConsumeInbound(ctx)
		if !ok {
			break
		}
		d.wg.Add(1)
		go func(m bus.InboundMessage) {
			defer d.wg.Done()
			d.handle(ctx, m)
		}(msg)
	}
	d.wg.Wait()
	logger.InfoCF("dispatcher", "Dispatcher stopped", nil)
}

func (d *Dispatcher) handle(ctx context.Context, msg bus.InboundMessage) {
	engine := d.engineFor(msg.ConversationID)

	reply, err := engine.Send(ctx, msg.Content)
	out := bus.OutboundMessage{ConversationID: msg.ConversationID}
	if err != nil {
		out.Error = err
	} else {
		out.Content = reply.Content
	}
	d.bus.PublishOutbound(out)

	if err == nil {
		engine.TryAutoSwitch()
	}
}

func (d *Dispatcher) engineFor(conversationID string) *Engine {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.engines[conversationID]; ok {
		return e
	}
	e := d.factory(conversationID)
	d.engines[conversationID] = e
	logger.InfoCF("dispatcher", "Engine created",
		map[string]interface{}{"conversation_id": conversationID, "session_id": e.SessionID()})
	return e
}

// Drop tears down the engine for a conversation, discarding its state.
func (d *Dispatcher) Drop(conversationID string) {
	d.mu.Lock()
	e, ok := d.engines[conversationID]
	delete(d.engines, conversationID)
	d.mu.Unlock()
	if ok {
		e.Disconnect()
	}
}

// forEachEngine snapshots the engine map and invokes fn outside the
// lock, so callbacks may block on provider calls.
func (d *Dispatcher) forEachEngine(fn func(conversationID string, e *Engine)) {
	d.mu.Lock()
	snapshot := make(map[string]*Engine, len(d.engines))
	for id, e := range d.engines {
		snapshot[id] = e
	}
	d.mu.Unlock()
	for id, e := range snapshot {
		fn(id, e)
	}
}

// Engines returns the number of live conversations.
func (d *Dispatcher) Engines() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.engines)
}
