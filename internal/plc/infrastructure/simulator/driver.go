package simulator

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"

	plc "plc-datalogger/internal/plc/domain"
)

// DefaultTags is the tag list exposed when none is configured.
var DefaultTags = []string{"Temperature", "Pressure", "MotorSpeed", "PumpRunning", "ZoneTemps"}

// Driver is an in-process controller producing smooth synthetic signals.
// Tags whose name ends in "Running" read as booleans; every other tag is numeric.
type Driver struct {
	tags []string
	now  func() time.Time

	mu        sync.Mutex
	reachable bool
}

func NewDriver(tags []string) *Driver {
	if len(tags) == 0 {
		tags = DefaultTags
	}
	return &Driver{tags: append([]string(nil), tags...), now: time.Now, reachable: true}
}

// SetReachable toggles whether Connect succeeds.
func (d *Driver) SetReachable(ok bool) {
	d.mu.Lock()
	d.reachable = ok
	d.mu.Unlock()
}

func (d *Driver) Connect(ctx context.Context, address string) (plc.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(address) == "" {
		return nil, plc.ErrEmptyAddress
	}
	d.mu.Lock()
	ok := d.reachable
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("simulator: %s unreachable", address)
	}
	return &conn{driver: d}, nil
}

func (d *Driver) known(tag string) bool {
	for _, t := range d.tags {
		if t == tag {
			return true
		}
	}
	return false
}

type conn struct {
	driver *Driver
	closed bool
}

func (c *conn) Read(ctx context.Context, tag string, elements int) (any, error) {
	if c.closed {
		return nil, plc.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.driver.known(tag) {
		return nil, fmt.Errorf("%w: %s", plc.ErrUnknownTag, tag)
	}
	at := c.driver.now()
	if elements < 1 {
		return sample(tag, 0, at), nil
	}
	values := make([]any, elements)
	for i := range values {
		values[i] = sample(tag, i, at)
	}
	return values, nil
}

func (c *conn) ListTags(ctx context.Context) ([]string, error) {
	if c.closed {
		return nil, plc.ErrClosed
	}
	return append([]string(nil), c.driver.tags...), ctx.Err()
}

func (c *conn) Close() error {
	c.closed = true
	return nil
}

// sample is a pure function of tag, element and time.
func sample(tag string, element int, at time.Time) any {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tag))
	seed := float64(h.Sum32()%1000) / 10
	phase := float64(at.Unix()%3600)/3600*2*math.Pi + float64(element)
	if strings.HasSuffix(tag, "Running") {
		return math.Sin(phase) >= 0
	}
	return math.Round((seed+10*math.Sin(phase))*100) / 100
}
