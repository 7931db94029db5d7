package modbus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/goburrow/modbus"

	plc "plc-datalogger/internal/plc/domain"
)

const (
	// DefaultPort is the Modbus/TCP port used when the address has none.
	DefaultPort = 502

	maxRegistersPerRead = 125
	maxBitsPerRead      = 2000
)

var ErrTooManyElements = errors.New("modbus: read exceeds protocol limit")

// Config configures the Modbus/TCP driver.
type Config struct {
	UnitID  byte
	Timeout time.Duration
	Tags    TagMap
}

// Driver connects to a controller over Modbus/TCP.
type Driver struct {
	cfg    Config
	logger *log.Logger
}

func NewDriver(cfg Config, logger *log.Logger) (*Driver, error) {
	if err := cfg.Tags.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.UnitID == 0 {
		cfg.UnitID = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Driver{cfg: cfg, logger: logger}, nil
}

// Connect opens one TCP session to address ("host" or "host:port").
func (d *Driver) Connect(ctx context.Context, address string) (plc.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	handler := modbus.NewTCPClientHandler(target)
	handler.Timeout = d.cfg.Timeout
	handler.SlaveId = d.cfg.UnitID
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < handler.Timeout {
			handler.Timeout = remaining
		}
	}
	if err := handler.Connect(); err != nil {
		return nil, err
	}
	return &conn{handler: handler, client: modbus.NewClient(handler), tags: d.cfg.Tags}, nil
}

func normalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", plc.ErrEmptyAddress
	}
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address, nil
	}
	return net.JoinHostPort(address, strconv.Itoa(DefaultPort)), nil
}

type conn struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
	tags    TagMap
	closed  bool
}

func (c *conn) Read(ctx context.Context, tag string, elements int) (any, error) {
	if c.closed {
		return nil, plc.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, ok := c.tags.lookup(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %s", plc.ErrUnknownTag, tag)
	}
	count := elements
	if count < 1 {
		count = 1
	}
	values, err := c.read(def, count)
	if err != nil {
		return nil, err
	}
	if elements < 1 {
		if len(values) == 0 {
			return nil, fmt.Errorf("modbus: empty response for %s", tag)
		}
		return values[0], nil
	}
	return values, nil
}

func (c *conn) read(def TagDefinition, count int) ([]any, error) {
	switch def.Area {
	case AreaCoil, AreaDiscrete:
		if count > maxBitsPerRead {
			return nil, ErrTooManyElements
		}
		var (
			data []byte
			err  error
		)
		if def.Area == AreaCoil {
			data, err = c.client.ReadCoils(def.Address, uint16(count))
		} else {
			data, err = c.client.ReadDiscreteInputs(def.Address, uint16(count))
		}
		if err != nil {
			return nil, err
		}
		return decodeBits(data, count), nil
	default:
		quantity := count * def.Type.registers()
		if quantity > maxRegistersPerRead {
			return nil, ErrTooManyElements
		}
		var (
			data []byte
			err  error
		)
		if def.Area == AreaInput {
			data, err = c.client.ReadInputRegisters(def.Address, uint16(quantity))
		} else {
			data, err = c.client.ReadHoldingRegisters(def.Address, uint16(quantity))
		}
		if err != nil {
			return nil, err
		}
		return decodeRegisters(def, data), nil
	}
}

func (c *conn) ListTags(ctx context.Context) ([]string, error) {
	if c.closed {
		return nil, plc.ErrClosed
	}
	return c.tags.names(), ctx.Err()
}

func (c *conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.handler.Close()
}
