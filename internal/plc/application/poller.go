package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	datalog "plc-datalogger/internal/datalog/domain"
	"plc-datalogger/internal/observability/metrics"
	plc "plc-datalogger/internal/plc/domain"
	settings "plc-datalogger/internal/settings/domain"
)

// Poller samples a set of tags over a fresh connection per call.
type Poller struct {
	driver plc.Driver
	logger *log.Logger
}

// NewPoller constructs a Poller.
func NewPoller(driver plc.Driver, logger *log.Logger) (*Poller, error) {
	if driver == nil {
		return nil, errors.New("poller: nil driver")
	}
	return &Poller{driver: driver, logger: logger}, nil
}

// Poll reads every spec in order and returns one row stamped at.
// Any failure discards values already read and yields an Error row.
func (p *Poller) Poll(ctx context.Context, at time.Time, address string, specs []settings.TagSpec) datalog.Row {
	start := time.Now()
	if len(specs) == 0 {
		metrics.ObservePoll(metrics.ResultInfo, time.Since(start))
		return datalog.InfoRow(at, datalog.NoTagsInfo)
	}
	row, err := p.read(ctx, at, address, specs)
	if err != nil {
		metrics.ObservePoll(metrics.ResultError, time.Since(start))
		return datalog.ErrorRow(at, err)
	}
	metrics.ObservePoll(metrics.ResultSuccess, time.Since(start))
	return row
}

func (p *Poller) read(ctx context.Context, at time.Time, address string, specs []settings.TagSpec) (row datalog.Row, err error) {
	conn, err := p.connect(ctx, address)
	if err != nil {
		return datalog.Row{}, err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && p.logger != nil {
			p.logger.Printf("plc close error: address=%s err=%v", address, cerr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			row = datalog.Row{}
			err = fmt.Errorf("plc read panic: %v", r)
		}
	}()

	row = datalog.NewRow(at)
	for _, spec := range specs {
		value, err := conn.Read(ctx, spec.Name, spec.Elements)
		if err != nil {
			return datalog.Row{}, fmt.Errorf("read %s: %w", spec.Name, err)
		}
		p.store(&row, spec, value)
	}
	return row, nil
}

func (p *Poller) store(row *datalog.Row, spec settings.TagSpec, value any) {
	values, isList := value.([]any)
	if !isList {
		if !spec.IsArray() {
			row.Set(spec.Name, value)
			return
		}
		values = []any{value}
	}
	if !spec.IsArray() {
		// Array-valued tag selected without a length: expand what came back.
		for i, v := range values {
			row.Set(spec.ElementName(i), v)
		}
		return
	}
	if len(values) < spec.Elements && p.logger != nil {
		p.logger.Printf("plc short read: tag=%s requested=%d returned=%d", spec.Name, spec.Elements, len(values))
	}
	if len(values) > spec.Elements {
		values = values[:spec.Elements]
	}
	for i, v := range values {
		row.Set(spec.ElementName(i), v)
	}
}

func (p *Poller) connect(ctx context.Context, address string) (plc.Conn, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, plc.ErrEmptyAddress
	}
	conn, err := p.driver.Connect(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", address, err)
	}
	if conn == nil {
		return nil, fmt.Errorf("connect %s: %w", address, plc.ErrClosed)
	}
	return conn, nil
}

// ListTags connects, lists the controller's tags and disconnects.
func (p *Poller) ListTags(ctx context.Context, address string) ([]string, error) {
	conn, err := p.connect(ctx, address)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.ListTags(ctx)
}

// TestConnection checks that the controller answers. It reads nothing into the log.
func (p *Poller) TestConnection(ctx context.Context, address string) error {
	_, err := p.ListTags(ctx, address)
	return err
}
