package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcdev12/scopa/go/internal/table"
	"github.com/rs/zerolog/log"
)

// Session is the part of a table client the bridge exposes.
type Session interface {
	View(ctx context.Context) (table.View, error)
	SelectCard(ctx context.Context, cardID string) error
	ToggleCard(ctx context.Context, cardID string) error
	Cancel(ctx context.Context) error
	FinishDeal(ctx context.Context) error
	ConnectionStats() map[string]interface{}
}

// ViewResponse is the view plus the values derived from it, so a
// renderer never has to recompute them.
type ViewResponse struct {
	table.View
	IsLocalTurn   bool   `json:"is_local_turn"`
	CurrentPlayer string `json:"current_player"`
	Opponent      string `json:"opponent"`
}

// CardRequest names a card for select and toggle.
type CardRequest struct {
	CardID string `json:"card_id"`
}

// StatsResponse combines connection diagnostics and counters.
type StatsResponse struct {
	Connection map[string]interface{} `json:"connection"`
	Counters   map[string]uint64      `json:"counters,omitempty"`
}

// Handler serves the local view bridge.
type Handler struct {
	session  Session
	counters *table.CounterMetrics
}

// NewHandler creates a handler. counters may be nil.
func NewHandler(session Session, counters *table.CounterMetrics) *Handler {
	return &Handler{
		session:  session,
		counters: counters,
	}
}

// Register adds the bridge routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/view", h.HandleGetView)
	mux.HandleFunc("/api/stats", h.HandleGetStats)
	mux.HandleFunc("/api/select", h.HandleSelect)
	mux.HandleFunc("/api/toggle", h.HandleToggle)
	mux.HandleFunc("/api/cancel", h.HandleCancel)
	mux.HandleFunc("/api/deal/finish", h.HandleFinishDeal)
	mux.HandleFunc("/health", h.HandleHealth)
}

// HandleGetView handles GET /api/view
func (h *Handler) HandleGetView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	view, err := h.session.View(r.Context())
	if err != nil {
		writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ViewResponse{
		View:          view,
		IsLocalTurn:   view.IsLocalTurn(),
		CurrentPlayer: view.CurrentPlayer(),
		Opponent:      view.Opponent(),
	})
}

// HandleGetStats handles GET /api/stats
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := StatsResponse{Connection: h.session.ConnectionStats()}
	if h.counters != nil {
		resp.Counters = h.counters.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSelect handles POST /api/select
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	h.handleCard(w, r, h.session.SelectCard)
}

// HandleToggle handles POST /api/toggle
func (h *Handler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	h.handleCard(w, r, h.session.ToggleCard)
}

// HandleCancel handles POST /api/cancel
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.handleCommand(w, r, h.session.Cancel)
}

// HandleFinishDeal handles POST /api/deal/finish
func (h *Handler) HandleFinishDeal(w http.ResponseWriter, r *http.Request) {
	h.handleCommand(w, r, h.session.FinishDeal)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

func (h *Handler) handleCard(w http.ResponseWriter, r *http.Request, run func(context.Context, string) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.CardID == "" {
		http.Error(w, "card_id is required", http.StatusBadRequest)
		return
	}

	if err := run(r.Context(), req.CardID); err != nil {
		writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request, run func(context.Context) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := run(r.Context()); err != nil {
		writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, table.ErrUnknownCard):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, table.ErrClientClosed):
		http.Error(w, "Session closed", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "Request cancelled", http.StatusGatewayTimeout)
	default:
		log.Error().Err(err).Msg("bridge command failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
