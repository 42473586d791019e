// Package api vystavuje stav registru a historii měření přes HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"templine/internal/storage"
	"templine/internal/telemetry"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// StateSource je pohled do registru uzlů (telemetry.Registry).
type StateSource interface {
	Snapshot() telemetry.Snapshot
	Node(nodeID string) (telemetry.NodeState, bool)
}

// APIHandler sdružuje metody pro obsluhu HTTP požadavků.
// Drží referenci na úložiště (historie), registr (živý stav) a Logger.
type APIHandler struct {
	store   storage.Querier
	state   StateSource
	metrics http.Handler
	logger  *slog.Logger
}

// NewAPIHandler vytváří novou instanci handleru. metricsHandler může být nil.
func NewAPIHandler(store storage.Querier, state StateSource, metricsHandler http.Handler, logger *slog.Logger) *APIHandler {
	return &APIHandler{store: store, state: state, metrics: metricsHandler, logger: logger}
}

// RegisterRoutes mapuje URL cesty na konkrétní Go funkce.
// Využíváme router v Go 1.22+, který podporuje metody a wildcardy.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/temperatures/latest", h.handleLatest)
	mux.HandleFunc("GET /api/temperatures/latest/{node}", h.handleLatest)
	mux.HandleFunc("GET /api/temperatures", h.handleRecent)

	mux.HandleFunc("GET /api/status", h.handleStatus)
	mux.HandleFunc("GET /api/nodes/{node}", h.handleNode)

	// Healthcheck pro Docker/K8s
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}

// Routes vrací kompletní handler včetně CORS.
func (h *APIHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return CorsMiddleware(mux)
}

// handleLatest: GET /api/temperatures/latest[/{node}]
func (h *APIHandler) handleLatest(w http.ResponseWriter, r *http.Request) {
	// Bez {node} je PathValue prázdný = libovolný uzel.
	nodeID := r.PathValue("node")

	reading, err := h.store.QueryLatest(r.Context(), nodeID)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "No data found")
		return
	}
	if err != nil {
		h.logger.Error("Chyba při načítání posledního měření", "node", nodeID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, reading)
}

// handleRecent: GET /api/temperatures?limit=100
func (h *APIHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxLimit)
	}

	readings, err := h.store.QueryRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Chyba při načítání historie", "limit", limit, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if readings == nil {
		readings = []telemetry.Reading{}
	}

	h.writeJSON(w, http.StatusOK, readings)
}

// handleStatus: GET /api/status
func (h *APIHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.state.Snapshot())
}

// handleNode: GET /api/nodes/{node}
func (h *APIHandler) handleNode(w http.ResponseWriter, r *http.Request) {
	node, ok := h.state.Node(r.PathValue("node"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "Unknown node")
		return
	}
	h.writeJSON(w, http.StatusOK, node)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	// Nastavení hlavičky, že vracíme JSON
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Chyba při zápisu JSON odpovědi", "error", err)
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// CorsMiddleware je "obalová" funkce (Middleware).
// Přidává HTTP hlavičky, které povolí prohlížeči volat toto API z jiné domény.
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Povolíme přístup odkudkoliv (*) - v produkci zde má být konkrétní doména.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Pokud jde o "Preflight" request, odpovíme OK a končíme.
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
