package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	datalogapp "plc-datalogger/internal/datalog/application"
	"plc-datalogger/internal/eventbus"
)

const (
	DefaultExchange   = "plc-log"
	DefaultRoutingKey = "plc.row"

	dialTimeout = 3 * time.Second
	retryDelay  = 30 * time.Second
)

var ErrClosed = errors.New("amqp publisher: closed")

// Config selects the broker and exchange.
type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type session struct {
	ch    channel
	close func() error
}

// Publisher fans sample rows out to a fanout exchange.
// It connects lazily and backs off after a failed dial; a broker outage never blocks polling for long.
type Publisher struct {
	cfg    Config
	logger *log.Logger
	dial   func(cfg Config) (session, error)
	now    func() time.Time

	mu        sync.Mutex
	sess      *session
	nextRetry time.Time
	closed    bool
	sub       eventbus.Subscription
	bus       *eventbus.InMemoryBus
}

func NewPublisher(cfg Config, logger *log.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("amqp publisher: empty url")
	}
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = DefaultRoutingKey
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{cfg: cfg, logger: logger, dial: dialBroker, now: time.Now}, nil
}

func dialBroker(cfg Config) (session, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return session{}, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return session{}, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return session{}, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return session{ch: ch, close: conn.Close}, nil
}

// Attach publishes every RowAppended event seen on bus.
func (p *Publisher) Attach(bus *eventbus.InMemoryBus) {
	p.bus = bus
	p.sub = eventbus.SubscribeTo(bus, "amqp-publisher", func(ctx context.Context, evt datalogapp.RowAppended) error {
		return p.Publish(ctx, evt)
	})
}

type rowMessage struct {
	Date  string          `json:"date"`
	Count int             `json:"count"`
	Row   json.RawMessage `json:"row"`
}

// Publish sends one row. Errors drop the session so the next call reconnects.
func (p *Publisher) Publish(ctx context.Context, evt datalogapp.RowAppended) error {
	row, err := json.Marshal(evt.Row)
	if err != nil {
		return err
	}
	body, err := json.Marshal(rowMessage{Date: evt.Date, Count: evt.Count, Row: row})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if err := p.ensureLocked(); err != nil {
		return err
	}
	err = p.sess.ch.PublishWithContext(ctx, p.cfg.Exchange, p.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    evt.Row.Timestamp,
		Body:         body,
	})
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("publish row: %w", err)
	}
	return nil
}

func (p *Publisher) ensureLocked() error {
	if p.sess != nil {
		return nil
	}
	if now := p.now(); now.Before(p.nextRetry) {
		return fmt.Errorf("amqp publisher: broker unavailable until %s", p.nextRetry.Format(time.TimeOnly))
	}
	sess, err := p.dial(p.cfg)
	if err != nil {
		p.nextRetry = p.now().Add(retryDelay)
		return err
	}
	p.sess = &sess
	p.logger.Printf("amqp publisher connected: exchange=%s", p.cfg.Exchange)
	return nil
}

func (p *Publisher) resetLocked() {
	if p.sess == nil {
		return
	}
	_ = p.sess.ch.Close()
	if p.sess.close != nil {
		_ = p.sess.close()
	}
	p.sess = nil
}

// Close detaches from the bus and closes the broker connection.
func (p *Publisher) Close(_ context.Context) error {
	if p.bus != nil {
		p.bus.Unsubscribe(p.sub)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.resetLocked()
	return nil
}
