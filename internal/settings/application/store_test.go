package application

import (
	"context"
	"errors"
	"testing"

	"plc-datalogger/internal/eventbus"
	settings "plc-datalogger/internal/settings/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(settings.Default(), eventbus.NewInMemoryBus(nil))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestSetIntervalText(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var published []float64
	store.Subscribe("recorder", func(_ context.Context, cfg settings.Configuration) error {
		published = append(published, cfg.IntervalSeconds)
		return nil
	})

	if err := store.SetIntervalText(ctx, "2.5"); err != nil {
		t.Fatalf("set interval: %v", err)
	}
	if got := store.Get().IntervalSeconds; got != 2.5 {
		t.Fatalf("expected 2.5, got %v", got)
	}

	err := store.SetIntervalText(ctx, "-1")
	if !errors.Is(err, settings.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	if _, ok := store.Get().Interval(); ok {
		t.Fatal("expected interval to become absent")
	}

	if err := store.SetIntervalText(ctx, ""); err != nil {
		t.Fatalf("blank interval should not warn: %v", err)
	}
	if len(published) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(published))
	}

	for _, text := range []string{"1e10", "1e-12"} {
		if err := store.SetIntervalText(ctx, "2"); err != nil {
			t.Fatalf("set interval: %v", err)
		}
		if err := store.SetIntervalText(ctx, text); !errors.Is(err, settings.ErrInvalidInterval) {
			t.Fatalf("%s: expected ErrInvalidInterval, got %v", text, err)
		}
		if got := store.Get().IntervalSeconds; got != 0 {
			t.Fatalf("%s: expected interval to become absent, got %v", text, got)
		}
	}
}

func TestSetIntervalRejectsOverflow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, seconds := range []float64{1e10, 1e-12, 0} {
		if err := store.SetInterval(ctx, seconds); !errors.Is(err, settings.ErrInvalidInterval) {
			t.Fatalf("%v: expected ErrInvalidInterval, got %v", seconds, err)
		}
	}
	if got := store.Get().IntervalSeconds; got != settings.DefaultIntervalSeconds {
		t.Fatalf("expected prior interval kept, got %v", got)
	}
}

func TestRejectedValuesKeepPriorState(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if err := store.SetTagSelection(ctx, []string{"Speed{3}", "Temp"}); err != nil {
		t.Fatalf("set tags: %v", err)
	}

	calls := 0
	store.Subscribe("counter", func(context.Context, settings.Configuration) error {
		calls++
		return nil
	})

	if err := store.SetTagSelection(ctx, []string{"Level", "Flow{0}"}); !errors.Is(err, settings.ErrInvalidArity) {
		t.Fatalf("expected ErrInvalidArity, got %v", err)
	}
	if err := store.SetIP(ctx, "   "); !errors.Is(err, settings.ErrEmptyIP) {
		t.Fatalf("expected ErrEmptyIP, got %v", err)
	}
	if err := store.SetStorage(ctx, settings.StorageTarget{Kind: settings.StorageSQL}); !errors.Is(err, settings.ErrInvalidStorage) {
		t.Fatalf("expected ErrInvalidStorage, got %v", err)
	}

	cfg := store.Get()
	if len(cfg.Tags) != 2 || cfg.Tags[0].Name != "Speed" || cfg.Tags[0].Elements != 3 {
		t.Fatalf("unexpected tags: %+v", cfg.Tags)
	}
	if cfg.IP != settings.DefaultIP {
		t.Fatalf("unexpected ip: %s", cfg.IP)
	}
	if calls != 0 {
		t.Fatalf("expected no notifications for rejected values, got %d", calls)
	}
}

func TestListenerFailureDoesNotBlockOthers(t *testing.T) {
	store := newTestStore(t)
	store.Subscribe("broken", func(context.Context, settings.Configuration) error {
		return errors.New("broken listener")
	})
	var seen string
	store.Subscribe("healthy", func(_ context.Context, cfg settings.Configuration) error {
		seen = cfg.IP
		return nil
	})

	if err := store.SetIP(context.Background(), "10.0.0.5"); err != nil {
		t.Fatalf("set ip: %v", err)
	}
	if seen != "10.0.0.5" {
		t.Fatalf("expected healthy listener to see new ip, got %q", seen)
	}
}

func TestUpdatePublishesOnce(t *testing.T) {
	store := newTestStore(t)
	calls := 0
	sub := store.Subscribe("counter", func(context.Context, settings.Configuration) error {
		calls++
		return nil
	})

	err := store.Update(context.Background(), func(cfg *settings.Configuration) error {
		cfg.IP = "10.1.1.1"
		cfg.IntervalSeconds = 1
		cfg.Tags = []settings.TagSpec{{Name: "A"}}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one notification, got %d", calls)
	}

	store.Unsubscribe(sub)
	store.Publish(context.Background())
	if calls != 1 {
		t.Fatalf("expected unsubscribed listener to stay quiet, got %d", calls)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	store := newTestStore(t)
	if err := store.SetTags(context.Background(), []settings.TagSpec{{Name: "A"}}); err != nil {
		t.Fatalf("set tags: %v", err)
	}
	cfg := store.Get()
	cfg.Tags[0].Name = "mutated"
	if store.Get().Tags[0].Name != "A" {
		t.Fatal("expected store to be isolated from caller mutation")
	}
}
