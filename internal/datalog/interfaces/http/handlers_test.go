package http

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	datalogapp "plc-datalogger/internal/datalog/application"
	datalog "plc-datalogger/internal/datalog/domain"
	"plc-datalogger/internal/eventbus"
	settings "plc-datalogger/internal/settings/domain"
	viewapp "plc-datalogger/internal/view/application"
)

type fakeController struct {
	startErr error
	state    datalogapp.State
	cleared  int
}

func (f *fakeController) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.state = datalogapp.StateRunning
	return nil
}

func (f *fakeController) Stop(context.Context) { f.state = datalogapp.StateIdle }

func (f *fakeController) Clear(context.Context) { f.cleared++ }

func (f *fakeController) Status() datalogapp.Status {
	return datalogapp.Status{State: f.state}
}

func TestLoggingStartConflict(t *testing.T) {
	ctrl := &fakeController{startErr: fmt.Errorf("%w: no tags", settings.ErrNotConfigured), state: datalogapp.StateIdle}
	h, err := NewLoggingHandler(ctrl)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/logging/start", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	ctrl.startErr = nil
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/logging/start", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"running"`) {
		t.Fatalf("unexpected start response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/logging/clear", nil))
	if rec.Code != http.StatusOK || ctrl.cleared != 1 {
		t.Fatalf("expected clear")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logging/stop", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}

	ctrl.startErr = errors.New("boom")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/logging/start", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	ctrl.startErr = datalogapp.ErrClosed
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/logging/start", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after shutdown began, got %d", rec.Code)
	}
}

func renderedViews(t *testing.T) (*viewapp.TableProjection, *viewapp.ChartProjection) {
	t.Helper()
	day := time.Date(2024, 5, 1, 8, 0, 0, 0, time.Local)
	table := datalog.NewTable(day)
	row := datalog.NewRow(day)
	row.Set("Speed", 12.5)
	row.Set("Temp", 20)
	if _, err := table.Append(row); err != nil {
		t.Fatalf("append: %v", err)
	}
	tp := viewapp.NewTableProjection()
	cp := viewapp.NewChartProjection()
	_ = tp.Render(context.Background(), table)
	_ = cp.Render(context.Background(), table)
	return tp, cp
}

func TestTableAsMsgpack(t *testing.T) {
	tp, cp := renderedViews(t)
	h, _ := NewViewHandler(tp, cp)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/table?format=msgpack", nil))
	if rec.Header().Get("Content-Type") != contentTypeMsgpack {
		t.Fatalf("unexpected content type %s", rec.Header().Get("Content-Type"))
	}
	var state viewapp.TableState
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(state.Rows) != 1 || state.Rows[0][1] != "12.5" || state.Date != "2024-05-01" {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestChartColumnSelection(t *testing.T) {
	tp, cp := renderedViews(t)
	h, _ := NewViewHandler(tp, cp)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/chart/columns", strings.NewReader(`{"columns":["Error"]}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for reserved column, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/chart/columns", strings.NewReader(`{"columns":["Temp"]}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	chart := cp.Chart()
	if len(chart.Series) != 1 || chart.Series[0].Column != "Temp" {
		t.Fatalf("unexpected series: %+v", chart.Series)
	}
}

func TestStreamForwardsBusEvents(t *testing.T) {
	bus := eventbus.NewInMemoryBus(log.New(io.Discard, "", 0))
	broker := NewBroker()
	broker.Attach(bus)
	srv := httptest.NewServer(NewStreamHandler(broker))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)
	if line, _ := reader.ReadString('\n'); line != "event: ready\n" {
		t.Fatalf("unexpected first line %q", line)
	}
	_, _ = reader.ReadString('\n')
	_, _ = reader.ReadString('\n')

	_ = bus.Publish(context.Background(), datalogapp.LoggingWarning{Message: "no tags"})

	event, _ := reader.ReadString('\n')
	data, _ := reader.ReadString('\n')
	if event != "event: warning\n" || !strings.Contains(data, `"no tags"`) {
		t.Fatalf("unexpected event %q %q", event, data)
	}
}

func TestLiveSocketSelectsColumns(t *testing.T) {
	tp, cp := renderedViews(t)
	broker := NewBroker()
	h, err := NewLiveHandler(broker, tp, cp, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg liveMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "table" {
		t.Fatalf("expected table snapshot, got %+v err=%v", msg, err)
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "chart" {
		t.Fatalf("expected chart snapshot, got %+v err=%v", msg, err)
	}

	if err := conn.WriteJSON(liveRequest{Type: "select", Columns: []string{"Timestamp"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "error" {
		t.Fatalf("expected error reply, got %+v err=%v", msg, err)
	}

	if err := conn.WriteJSON(liveRequest{Type: "select", Columns: []string{"Speed"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "chart" {
		t.Fatalf("expected chart reply, got %+v err=%v", msg, err)
	}
	if !strings.Contains(string(msg.Payload), `"Speed"`) || strings.Contains(string(msg.Payload), `"Temp"`) {
		t.Fatalf("unexpected chart payload %s", msg.Payload)
	}
}
