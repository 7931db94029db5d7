package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	datalogapp "plc-datalogger/internal/datalog/application"
	settings "plc-datalogger/internal/settings/domain"
)

// Controller drives the polling scheduler.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	Clear(ctx context.Context)
	Status() datalogapp.Status
}

// LoggingHandler serves start/stop/clear/status.
type LoggingHandler struct {
	ctrl Controller
}

// NewLoggingHandler constructs a handler.
func NewLoggingHandler(ctrl Controller) (*LoggingHandler, error) {
	if ctrl == nil {
		return nil, errors.New("logging handler: nil controller")
	}
	return &LoggingHandler{ctrl: ctrl}, nil
}

// ServeHTTP handles /api/v1/logging/*.
func (h *LoggingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/logging/status" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.respond(w)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/logging/start":
		if err := h.ctrl.Start(r.Context()); err != nil {
			if errors.Is(err, settings.ErrNotConfigured) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			if errors.Is(err, datalogapp.ErrClosed) {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	case "/api/v1/logging/stop":
		h.ctrl.Stop(r.Context())
	case "/api/v1/logging/clear":
		h.ctrl.Clear(r.Context())
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.respond(w)
}

func (h *LoggingHandler) respond(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.ctrl.Status())
}
