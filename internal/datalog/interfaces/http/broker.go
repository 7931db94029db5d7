package http

import (
	"context"
	"encoding/json"
	"sync"

	datalogapp "plc-datalogger/internal/datalog/application"
	"plc-datalogger/internal/eventbus"
	settings "plc-datalogger/internal/settings/domain"
)

// Event names sent to stream and socket clients.
const (
	EventRow      = "row"
	EventStarted  = "started"
	EventStopped  = "stopped"
	EventWarning  = "warning"
	EventRollover = "rollover"
	EventFlushed  = "flushed"
	EventCleared  = "cleared"
	EventSettings = "settings"
)

// Message is one encoded event.
type Message struct {
	Event   string
	Payload []byte
}

// Broker fans out logger events to connected clients. Slow clients drop messages.
type Broker struct {
	mu      sync.Mutex
	clients map[chan Message]struct{}
	closed  bool

	bus  *eventbus.InMemoryBus
	subs []eventbus.Subscription
}

// NewBroker constructs a broker.
func NewBroker() *Broker {
	return &Broker{clients: make(map[chan Message]struct{})}
}

// Attach forwards scheduler and settings events from bus.
func (b *Broker) Attach(bus *eventbus.InMemoryBus) {
	if b == nil || bus == nil {
		return
	}
	b.bus = bus
	b.subs = append(b.subs,
		forward[datalogapp.RowAppended](b, bus, EventRow),
		forward[datalogapp.LoggingStarted](b, bus, EventStarted),
		forward[datalogapp.LoggingStopped](b, bus, EventStopped),
		forward[datalogapp.LoggingWarning](b, bus, EventWarning),
		forward[datalogapp.TableRolledOver](b, bus, EventRollover),
		forward[datalogapp.TableFlushed](b, bus, EventFlushed),
		forward[datalogapp.TableCleared](b, bus, EventCleared),
		eventbus.SubscribeTo(bus, "broker:"+EventSettings, func(_ context.Context, evt settings.ConfigChanged) error {
			cfg := evt.Config
			cfg.Storage = cfg.Storage.Redacted()
			return b.Notify(EventSettings, cfg)
		}),
	)
}

func forward[T any](b *Broker, bus *eventbus.InMemoryBus, event string) eventbus.Subscription {
	return eventbus.SubscribeTo(bus, "broker:"+event, func(_ context.Context, evt T) error {
		return b.Notify(event, evt)
	})
}

// Notify encodes v and sends it to every client.
func (b *Broker) Notify(event string, v any) error {
	if b == nil {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.broadcast(Message{Event: event, Payload: payload})
	return nil
}

// Subscribe registers a new client channel. It returns nil once the broker is closed.
func (b *Broker) Subscribe() chan Message {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	ch := make(chan Message, 32)
	b.clients[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a client channel.
func (b *Broker) Unsubscribe(ch chan Message) {
	if b == nil || ch == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; !ok {
		return
	}
	delete(b.clients, ch)
	close(ch)
}

// Clients returns the number of connected clients.
func (b *Broker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broker) broadcast(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Close detaches from the bus and disconnects every client.
func (b *Broker) Close(_ context.Context) error {
	if b == nil {
		return nil
	}
	if b.bus != nil {
		for _, sub := range b.subs {
			b.bus.Unsubscribe(sub)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
	return nil
}
