package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"plc-datalogger/internal/observability/metrics"
)

// EventHandler handles a published event.
type EventHandler func(ctx context.Context, event any) error

// ErrNilEvent is returned when a nil event is published.
var ErrNilEvent = errors.New("eventbus: nil event")

// ErrInvalidEventType is returned when the event type cannot be determined.
var ErrInvalidEventType = errors.New("eventbus: invalid event type")

// ErrHandlerPanic wraps a recovered handler panic.
var ErrHandlerPanic = errors.New("eventbus: handler panic")

// Subscription identifies a registered handler.
type Subscription struct {
	ID        string
	EventType string
	Name      string
}

type subscriber struct {
	sub     Subscription
	handler EventHandler
}

// InMemoryBus is an in-process event bus. A failing handler never blocks the others.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]subscriber
	logger   *log.Logger
}

// NewInMemoryBus constructs a new in-memory bus.
func NewInMemoryBus(logger *log.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]subscriber),
		logger:   logger,
	}
}

// Publish dispatches an event to all handlers of its type.
// Handler errors and panics are logged and swallowed.
func (b *InMemoryBus) Publish(ctx context.Context, event any) error {
	if event == nil {
		return ErrNilEvent
	}

	eventType := EventType(event)
	if eventType == "" {
		return ErrInvalidEventType
	}

	b.mu.RLock()
	handlers := append([]subscriber(nil), b.handlers[eventType]...)
	b.mu.RUnlock()

	for _, s := range handlers {
		if err := dispatch(ctx, s, event); err != nil {
			metrics.IncListenerError(s.sub.Name)
			if b.logger != nil {
				b.logger.Printf("listener error: listener=%s event=%s err=%v", s.sub.Name, eventType, err)
			}
		}
	}
	return nil
}

func dispatch(ctx context.Context, s subscriber, event any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return s.handler(ctx, event)
}

// Subscribe registers a handler for an event type and returns its handle.
func (b *InMemoryBus) Subscribe(eventType, name string, handler EventHandler) Subscription {
	if eventType == "" || handler == nil {
		return Subscription{}
	}
	sub := Subscription{ID: uuid.NewString(), EventType: eventType, Name: name}

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{sub: sub, handler: handler})
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a handler. It reports whether the handle was registered.
func (b *InMemoryBus) Unsubscribe(sub Subscription) bool {
	if sub.ID == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[sub.EventType]
	for i, s := range list {
		if s.sub.ID != sub.ID {
			continue
		}
		next := make([]subscriber, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, sub.EventType)
		} else {
			b.handlers[sub.EventType] = next
		}
		return true
	}
	return false
}

// Subscribers returns the number of handlers registered for an event type.
func (b *InMemoryBus) Subscribers(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// SubscribeTo registers a typed handler for events of type T.
func SubscribeTo[T any](b *InMemoryBus, name string, handler func(ctx context.Context, event T) error) Subscription {
	if b == nil || handler == nil {
		return Subscription{}
	}
	return b.Subscribe(EventTypeOf[T](), name, func(ctx context.Context, event any) error {
		evt, ok := event.(T)
		if !ok {
			if ptr, isPtr := event.(*T); isPtr && ptr != nil {
				return handler(ctx, *ptr)
			}
			return ErrInvalidEventType
		}
		return handler(ctx, evt)
	})
}

// EventType returns the fully-qualified type name for an event instance.
func EventType(event any) string {
	if event == nil {
		return ""
	}
	t := reflect.TypeOf(event)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}

// EventTypeOf returns the fully-qualified type name for a type parameter.
func EventTypeOf[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
