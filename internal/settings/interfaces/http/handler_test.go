package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"plc-datalogger/internal/eventbus"
	settingsapp "plc-datalogger/internal/settings/application"
	settings "plc-datalogger/internal/settings/domain"
)

type fakeStarter struct {
	running bool
	calls   int
	err     error
}

func (f *fakeStarter) Start(context.Context) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.running = true
	return nil
}

func (f *fakeStarter) Running() bool { return f.running }

type fakeStorage struct {
	err error
}

func (f fakeStorage) TestConnection(context.Context) error { return f.err }

func (f fakeStorage) Describe(string) string { return "PLC_Log.xlsx" }

func newHandler(t *testing.T, starter Starter, storage ConnectionTester) (*Handler, *settingsapp.Store) {
	t.Helper()
	store, err := settingsapp.NewStore(settings.Default(), eventbus.NewInMemoryBus(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	h, err := NewHandler(store, starter, storage)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return h, store
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetSettingsRedactsPassword(t *testing.T) {
	h, store := newHandler(t, nil, nil)
	_ = store.Update(context.Background(), func(cfg *settings.Configuration) error {
		cfg.Storage.SQL.Password = "secret"
		return nil
	})

	rec := do(h, http.MethodGet, "/api/v1/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Fatalf("password leaked: %s", rec.Body.String())
	}
	var resp settingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Config.IP != settings.DefaultIP || resp.Config.IntervalSeconds != settings.DefaultIntervalSeconds {
		t.Fatalf("unexpected defaults: %+v", resp.Config)
	}
}

func TestPutIPRejectsEmpty(t *testing.T) {
	h, store := newHandler(t, nil, nil)
	rec := do(h, http.MethodPut, "/api/v1/settings/ip", `{"ip":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if store.Get().IP != settings.DefaultIP {
		t.Fatalf("prior IP must be kept")
	}
	rec = do(h, http.MethodPut, "/api/v1/settings/ip", `{"ip":"10.1.1.1"}`)
	if rec.Code != http.StatusOK || store.Get().IP != "10.1.1.1" {
		t.Fatalf("expected IP stored, code=%d ip=%s", rec.Code, store.Get().IP)
	}
}

func TestPutIntervalInvalidWarns(t *testing.T) {
	h, store := newHandler(t, nil, nil)
	rec := do(h, http.MethodPut, "/api/v1/settings/interval", `{"interval":"abc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp settingsResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Warning == "" {
		t.Fatalf("expected a warning")
	}
	if _, ok := store.Get().Interval(); ok {
		t.Fatalf("expected interval absent")
	}
}

func TestPutTagsRejectsBadArity(t *testing.T) {
	h, store := newHandler(t, nil, nil)
	rec := do(h, http.MethodPut, "/api/v1/settings/tags", `{"tags":["Speed","Temp{x}"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(store.Get().Tags) != 0 {
		t.Fatalf("selection must be rejected as a whole")
	}
}

func TestPutTagsAndStart(t *testing.T) {
	starter := &fakeStarter{}
	h, store := newHandler(t, starter, nil)
	rec := do(h, http.MethodPut, "/api/v1/settings/tags", `{"tags":["Speed","Temp{3}"],"start":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if starter.calls != 1 {
		t.Fatalf("expected start")
	}
	tags := store.Get().Tags
	if len(tags) != 2 || tags[1].Elements != 3 {
		t.Fatalf("unexpected tags: %+v", tags)
	}

	rec = do(h, http.MethodPut, "/api/v1/settings/tags", `{"tags":["Speed"],"start":true}`)
	if rec.Code != http.StatusOK || starter.calls != 1 {
		t.Fatalf("running scheduler must not be restarted, calls=%d", starter.calls)
	}
}

func TestPutTagsStartConflict(t *testing.T) {
	starter := &fakeStarter{err: errors.New("not configured")}
	h, _ := newHandler(t, starter, nil)
	rec := do(h, http.MethodPut, "/api/v1/settings/tags", `{"tags":["Speed"],"start":true}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestPutStorageKeepsRedactedPassword(t *testing.T) {
	h, store := newHandler(t, nil, nil)
	body := `{"kind":"sql","sql":{"driver":"postgres","host":"db","database":"plant","user":"u","password":"pw"}}`
	if rec := do(h, http.MethodPut, "/api/v1/settings/storage", body); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body = `{"kind":"sql","sql":{"driver":"postgres","host":"db2","database":"plant","user":"u","password":"******"}}`
	if rec := do(h, http.MethodPut, "/api/v1/settings/storage", body); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	sql := store.Get().Storage.SQL
	if sql.Host != "db2" || sql.Password != "pw" {
		t.Fatalf("unexpected sql target: %+v", sql)
	}

	if rec := do(h, http.MethodPut, "/api/v1/settings/storage", `{"kind":"sql","sql":{"driver":"oracle"}}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStorageTest(t *testing.T) {
	h, _ := newHandler(t, nil, fakeStorage{err: errors.New("connection refused")})
	if rec := do(h, http.MethodPost, "/api/v1/storage/test", ""); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	h, _ = newHandler(t, nil, fakeStorage{})
	rec := do(h, http.MethodPost, "/api/v1/storage/test", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "PLC_Log.xlsx") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}
