package settings

import (
	"errors"
	"testing"
	"time"
)

func TestParseTagSpec(t *testing.T) {
	cases := []struct {
		in       string
		name     string
		elements int
		err      error
	}{
		{in: "Speed", name: "Speed"},
		{in: "Speed{3}", name: "Speed", elements: 3},
		{in: " Program:Main.Level{12} ", name: "Program:Main.Level", elements: 12},
		{in: "Speed{}", name: "Speed"},
		{in: "Speed{0}", err: ErrInvalidArity},
		{in: "Speed{-2}", err: ErrInvalidArity},
		{in: "Speed{2.5}", err: ErrInvalidArity},
		{in: "{3}", err: ErrEmptyTagName},
		{in: "", err: ErrEmptyTagName},
	}
	for _, tc := range cases {
		spec, err := ParseTagSpec(tc.in)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("%q: expected %v, got %v", tc.in, tc.err, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if spec.Name != tc.name || spec.Elements != tc.elements {
			t.Fatalf("%q: got %+v", tc.in, spec)
		}
	}
}

func TestExpand(t *testing.T) {
	got := TagSpec{Name: "Speed", Elements: 3}.Expand()
	want := []string{"Speed[0]", "Speed[1]", "Speed[2]"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if scalar := (TagSpec{Name: "Temp"}).Expand(); len(scalar) != 1 || scalar[0] != "Temp" {
		t.Fatalf("unexpected scalar expansion: %v", scalar)
	}
}

func TestValidateForLogging(t *testing.T) {
	cfg := Default()
	if err := cfg.ValidateForLogging(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected missing tags to fail, got %v", err)
	}
	cfg.Tags = []TagSpec{{Name: "A"}}
	if err := cfg.ValidateForLogging(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	cfg.IntervalSeconds = 0
	if err := cfg.ValidateForLogging(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected missing interval to fail, got %v", err)
	}
}

func TestParseInterval(t *testing.T) {
	for _, bad := range []string{"abc", "0", "-3", "NaN", "inf", "1e10", "9.3e9", "1e300", "1e-12", "0.0005"} {
		if _, err := ParseInterval(bad); !errors.Is(err, ErrInvalidInterval) {
			t.Fatalf("%q: expected ErrInvalidInterval, got %v", bad, err)
		}
	}
	if v, err := ParseInterval(" 0.5 "); err != nil || v != 0.5 {
		t.Fatalf("expected 0.5, got %v %v", v, err)
	}
	if v, err := ParseInterval("0.001"); err != nil || v != 0.001 {
		t.Fatalf("expected 1ms to be accepted, got %v %v", v, err)
	}
	if v, err := ParseInterval("86400"); err != nil || v != 86400 {
		t.Fatalf("expected one day to be accepted, got %v %v", v, err)
	}
}

func TestIntervalOutOfRangeIsAbsent(t *testing.T) {
	for _, seconds := range []float64{1e10, 1e-12} {
		cfg := Configuration{IntervalSeconds: seconds}
		if d, ok := cfg.Interval(); ok {
			t.Fatalf("%v: expected no interval, got %v", seconds, d)
		}
	}
	cfg := Configuration{IntervalSeconds: 2.5}
	if d, ok := cfg.Interval(); !ok || d != 2500*time.Millisecond {
		t.Fatalf("expected 2.5s, got %v %v", d, ok)
	}
}
