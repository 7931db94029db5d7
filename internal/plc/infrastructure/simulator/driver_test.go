package simulator

import (
	"context"
	"errors"
	"testing"
	"time"

	plc "plc-datalogger/internal/plc/domain"
)

func TestReadIsDeterministic(t *testing.T) {
	d := NewDriver([]string{"Temp", "PumpRunning"})
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	conn, err := d.Connect(context.Background(), "sim")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	a, err := conn.Read(context.Background(), "Temp", 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	b, _ := conn.Read(context.Background(), "Temp", 0)
	if a != b {
		t.Fatalf("expected same value at same instant, got %v and %v", a, b)
	}
	if _, ok := a.(float64); !ok {
		t.Fatalf("expected float64, got %T", a)
	}
	running, _ := conn.Read(context.Background(), "PumpRunning", 0)
	if _, ok := running.(bool); !ok {
		t.Fatalf("expected bool, got %T", running)
	}

	arr, err := conn.Read(context.Background(), "Temp", 3)
	if err != nil {
		t.Fatalf("read array: %v", err)
	}
	if values, ok := arr.([]any); !ok || len(values) != 3 {
		t.Fatalf("unexpected array: %#v", arr)
	}
}

func TestUnknownTagAndUnreachable(t *testing.T) {
	d := NewDriver(nil)
	conn, err := d.Connect(context.Background(), "sim")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := conn.Read(context.Background(), "Nope", 0); !errors.Is(err, plc.ErrUnknownTag) {
		t.Fatalf("expected ErrUnknownTag, got %v", err)
	}
	_ = conn.Close()
	if _, err := conn.Read(context.Background(), "Temperature", 0); !errors.Is(err, plc.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	d.SetReachable(false)
	if _, err := d.Connect(context.Background(), "sim"); err == nil {
		t.Fatalf("expected unreachable error")
	}
}
