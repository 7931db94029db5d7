package application

import (
	"context"
	"errors"
	"strings"
	"sync"

	"plc-datalogger/internal/eventbus"
	settings "plc-datalogger/internal/settings/domain"
)

// Listener is notified with the current configuration after each change.
type Listener func(ctx context.Context, cfg settings.Configuration) error

// Store holds the live configuration and notifies listeners of changes.
type Store struct {
	// publishMu serializes mutate+publish sequences.
	publishMu sync.Mutex
	mu        sync.RWMutex
	cfg       settings.Configuration
	bus       *eventbus.InMemoryBus
}

// NewStore constructs a Store.
func NewStore(initial settings.Configuration, bus *eventbus.InMemoryBus) (*Store, error) {
	if bus == nil {
		return nil, errors.New("settings store: nil bus")
	}
	return &Store{cfg: initial.Clone(), bus: bus}, nil
}

// Get returns a copy of the current configuration.
func (s *Store) Get() settings.Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// SetIP stores a non-empty PLC address.
func (s *Store) SetIP(ctx context.Context, ip string) error {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return settings.ErrEmptyIP
	}
	return s.Update(ctx, func(cfg *settings.Configuration) error {
		cfg.IP = ip
		return nil
	})
}

// SetIntervalText parses and stores the polling interval.
// Invalid text clears the interval, publishes, and returns ErrInvalidInterval as a warning.
func (s *Store) SetIntervalText(ctx context.Context, text string) error {
	value, parseErr := settings.ParseInterval(text)
	if err := s.Update(ctx, func(cfg *settings.Configuration) error {
		cfg.IntervalSeconds = value
		return nil
	}); err != nil {
		return err
	}
	return parseErr
}

// SetInterval stores a numeric interval in seconds.
func (s *Store) SetInterval(ctx context.Context, seconds float64) error {
	if _, err := settings.IntervalDuration(seconds); err != nil {
		return err
	}
	return s.Update(ctx, func(cfg *settings.Configuration) error {
		cfg.IntervalSeconds = seconds
		return nil
	})
}

// SetTags replaces the monitored tag list.
func (s *Store) SetTags(ctx context.Context, tags []settings.TagSpec) error {
	for _, tag := range tags {
		if err := tag.Validate(); err != nil {
			return err
		}
	}
	tags = append([]settings.TagSpec(nil), tags...)
	return s.Update(ctx, func(cfg *settings.Configuration) error {
		cfg.Tags = tags
		return nil
	})
}

// SetTagSelection parses "Name" / "Name{n}" entries and stores them.
func (s *Store) SetTagSelection(ctx context.Context, items []string) error {
	tags, err := settings.ParseTagSelection(items)
	if err != nil {
		return err
	}
	return s.SetTags(ctx, tags)
}

// SetStorage replaces the persistence target.
func (s *Store) SetStorage(ctx context.Context, target settings.StorageTarget) error {
	if err := target.Validate(); err != nil {
		return err
	}
	return s.Update(ctx, func(cfg *settings.Configuration) error {
		cfg.Storage = target
		return nil
	})
}

// Update applies fn to a copy of the configuration and publishes once on success.
func (s *Store) Update(ctx context.Context, fn func(cfg *settings.Configuration) error) error {
	if fn == nil {
		return nil
	}
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	next := s.Get()
	if err := fn(&next); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = next
	s.mu.Unlock()

	s.publishLocked(ctx)
	return nil
}

// Subscribe registers a change listener.
func (s *Store) Subscribe(name string, listener Listener) eventbus.Subscription {
	if listener == nil {
		return eventbus.Subscription{}
	}
	return eventbus.SubscribeTo(s.bus, name, func(ctx context.Context, evt settings.ConfigChanged) error {
		return listener(ctx, evt.Config)
	})
}

// Unsubscribe removes a change listener.
func (s *Store) Unsubscribe(sub eventbus.Subscription) bool {
	return s.bus.Unsubscribe(sub)
}

// Publish notifies every listener with the current configuration.
func (s *Store) Publish(ctx context.Context) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	s.publishLocked(ctx)
}

func (s *Store) publishLocked(ctx context.Context) {
	_ = s.bus.Publish(ctx, settings.ConfigChanged{Config: s.Get()})
}
