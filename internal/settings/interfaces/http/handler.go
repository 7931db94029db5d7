package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	datalog "plc-datalogger/internal/datalog/domain"
	settingsapp "plc-datalogger/internal/settings/application"
	settings "plc-datalogger/internal/settings/domain"
)

const redactedPassword = "******"

// Starter starts logging after a selection is saved.
type Starter interface {
	Start(ctx context.Context) error
	Running() bool
}

// ConnectionTester checks the configured storage.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
	Describe(label string) string
}

// Handler serves the settings endpoints.
type Handler struct {
	store   *settingsapp.Store
	starter Starter
	storage ConnectionTester
}

// NewHandler constructs a handler.
func NewHandler(store *settingsapp.Store, starter Starter, storage ConnectionTester) (*Handler, error) {
	if store == nil {
		return nil, errors.New("settings handler: nil store")
	}
	return &Handler{store: store, starter: starter, storage: storage}, nil
}

type settingsResponse struct {
	Config  settings.Configuration `json:"config"`
	Warning string                 `json:"warning,omitempty"`
	Started bool                   `json:"started,omitempty"`
}

// ServeHTTP handles /api/v1/settings, its subroutes and /api/v1/storage/test.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/settings":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.respond(w, http.StatusOK, settingsResponse{})
	case "/api/v1/settings/ip":
		h.put(w, r, h.handleIP)
	case "/api/v1/settings/interval":
		h.put(w, r, h.handleInterval)
	case "/api/v1/settings/tags":
		h.put(w, r, h.handleTags)
	case "/api/v1/settings/storage":
		h.put(w, r, h.handleStorage)
	case "/api/v1/storage/test":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleStorageTest(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request, fn func(http.ResponseWriter, *http.Request)) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	fn(w, r)
}

func (h *Handler) handleIP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.store.SetIP(r.Context(), req.IP); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.respond(w, http.StatusOK, settingsResponse{})
}

func (h *Handler) handleInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Interval json.RawMessage `json:"interval"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	err := h.store.SetIntervalText(r.Context(), intervalText(req.Interval))
	switch {
	case err == nil:
		h.respond(w, http.StatusOK, settingsResponse{})
	case errors.Is(err, settings.ErrInvalidInterval):
		// Stored as absent; the operator gets a warning, not a failure.
		h.respond(w, http.StatusOK, settingsResponse{Warning: err.Error()})
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// intervalText accepts the interval as a JSON string or number.
func intervalText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

func (h *Handler) handleTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags  []string `json:"tags"`
		Start bool     `json:"start"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.store.SetTagSelection(r.Context(), req.Tags); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := settingsResponse{}
	if req.Start && h.starter != nil {
		if !h.starter.Running() {
			if err := h.starter.Start(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
		}
		resp.Started = true
	}
	h.respond(w, http.StatusOK, resp)
}

func (h *Handler) handleStorage(w http.ResponseWriter, r *http.Request) {
	var target settings.StorageTarget
	if err := json.NewDecoder(r.Body).Decode(&target); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if target.SQL.Password == redactedPassword {
		target.SQL.Password = h.store.Get().Storage.SQL.Password
	}
	if err := h.store.SetStorage(r.Context(), target); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.respond(w, http.StatusOK, settingsResponse{})
}

func (h *Handler) handleStorageTest(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		http.Error(w, "storage not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.storage.TestConnection(r.Context()); err != nil {
		if errors.Is(err, settings.ErrInvalidStorage) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":          true,
		"destination": h.storage.Describe(datalog.LiveLabel),
	})
}

func (h *Handler) respond(w http.ResponseWriter, status int, resp settingsResponse) {
	cfg := h.store.Get()
	cfg.Storage = cfg.Storage.Redacted()
	resp.Config = cfg
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
