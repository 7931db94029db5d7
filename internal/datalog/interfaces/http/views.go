package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	viewapp "plc-datalogger/internal/view/application"
)

const contentTypeMsgpack = "application/msgpack"

// ViewHandler serves the rendered table and chart.
type ViewHandler struct {
	table *viewapp.TableProjection
	chart *viewapp.ChartProjection
}

// NewViewHandler constructs a handler.
func NewViewHandler(table *viewapp.TableProjection, chart *viewapp.ChartProjection) (*ViewHandler, error) {
	if table == nil || chart == nil {
		return nil, errors.New("view handler: nil projection")
	}
	return &ViewHandler{table: table, chart: chart}, nil
}

// ServeHTTP handles /api/v1/table, /api/v1/chart and /api/v1/chart/columns.
func (h *ViewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/table":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleTable(w, r)
	case "/api/v1/chart":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, h.chart.Chart())
	case "/api/v1/chart/columns":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, h.chart.Columns())
		case http.MethodPut:
			h.handleSelect(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ViewHandler) handleTable(w http.ResponseWriter, r *http.Request) {
	state := h.table.State()
	if !wantsMsgpack(r) {
		writeJSON(w, state)
		return
	}
	data, err := msgpack.Marshal(state)
	if err != nil {
		http.Error(w, "failed to encode msgpack", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeMsgpack)
	_, _ = w.Write(data)
}

func (h *ViewHandler) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Columns []string `json:"columns"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.chart.SetSelected(req.Columns); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, h.chart.Columns())
}

func wantsMsgpack(r *http.Request) bool {
	if r.URL.Query().Get("format") == "msgpack" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), contentTypeMsgpack)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
