package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	settings "plc-datalogger/internal/settings/domain"
)

// Browser lists and probes controller tags.
type Browser interface {
	ListTags(ctx context.Context, address string) ([]string, error)
	TestConnection(ctx context.Context, address string) error
}

// ConfigSource returns the current configuration.
type ConfigSource interface {
	Get() settings.Configuration
}

// Handler serves the controller endpoints. Nothing here changes logging state.
type Handler struct {
	browser Browser
	cfg     ConfigSource
}

// NewHandler constructs a handler.
func NewHandler(browser Browser, cfg ConfigSource) (*Handler, error) {
	if browser == nil {
		return nil, errors.New("plc handler: nil browser")
	}
	if cfg == nil {
		return nil, errors.New("plc handler: nil config source")
	}
	return &Handler{browser: browser, cfg: cfg}, nil
}

// ServeHTTP handles /api/v1/plc/tags and /api/v1/plc/test.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/plc/tags":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleTags(w, r)
	case "/api/v1/plc/test":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleTest(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleTags(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("ip"))
	if address == "" {
		address = h.cfg.Get().IP
	}
	if address == "" {
		http.Error(w, settings.ErrEmptyIP.Error(), http.StatusBadRequest)
		return
	}
	tags, err := h.browser.ListTags(r.Context(), address)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ip":       address,
		"tags":     tags,
		"selected": h.cfg.Get().Tags,
	})
}

func (h *Handler) handleTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IP string `json:"ip"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	address := strings.TrimSpace(req.IP)
	if address == "" {
		address = h.cfg.Get().IP
	}
	if address == "" {
		http.Error(w, settings.ErrEmptyIP.Error(), http.StatusBadRequest)
		return
	}
	if err := h.browser.TestConnection(r.Context(), address); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":      true,
		"message": "Connected to PLC at " + address,
	})
}
