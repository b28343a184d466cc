package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"gamesync/internal/middleware"
	"gamesync/internal/models"
	"gamesync/internal/services/collaboration"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
)

// Handler handles HTTP requests from the local UI
// Learning: Uses the SessionService INTERFACE defined in this package
type Handler struct {
	session SessionService
	history HistoryService // nil when the journal is off
}

func NewHandler(session SessionService, history HistoryService) *Handler {
	return &Handler{session: session, history: history}
}

// SessionResponse is returned by GET /api/session
type SessionResponse struct {
	GameID            string              `json:"game_id"`
	Enabled           bool                `json:"enabled"`
	ReconnectAttempts int                 `json:"reconnect_attempts"`
	State             collaboration.State `json:"state"`
}

type onlineRequest struct {
	Online *bool `json:"online"`
}

type conflictModeRequest struct {
	Mode models.ConflictMode `json:"mode"`
}

type resolveRequest struct {
	Keep string `json:"keep"` // "local" or "remote"
}

type editorRequest struct {
	Email string `json:"email"`
}

// Session handlers

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessionResponse())
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	if !h.session.Enabled() {
		http.Error(w, collaboration.ErrDisabled.Error(), http.StatusConflict)
		return
	}
	h.session.Connect()
	writeJSON(w, http.StatusAccepted, h.sessionResponse())
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.session.Disconnect()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	h.session.Leave()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetOnline(w http.ResponseWriter, r *http.Request) {
	var req onlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Online == nil {
		http.Error(w, "online is required", http.StatusBadRequest)
		return
	}

	h.session.SetOnline(*req.Online)
	writeJSON(w, http.StatusOK, h.session.State())
}

func (h *Handler) SetConflictMode(w http.ResponseWriter, r *http.Request) {
	var req conflictModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.session.SetConflictMode(req.Mode); err != nil {
		middleware.AddSpanError(r.Context(), err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.session.State())
}

func (h *Handler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var keepRemote bool
	switch req.Keep {
	case "remote":
		keepRemote = true
	case "local":
	default:
		http.Error(w, `keep must be "local" or "remote"`, http.StatusBadRequest)
		return
	}

	middleware.AddSpanEvent(r.Context(), "conflict.resolve", attribute.String("conflict.keep", req.Keep))

	if err := h.session.ResolvePendingConflict(keepRemote); err != nil {
		if errors.Is(err, collaboration.ErrNoPendingConflict) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, h.session.State())
}

// Outbound message handlers
// Learning: The body is forwarded as-is; only its JSON validity is checked here

func (h *Handler) BroadcastGameState(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, h.session.BroadcastGameState)
}

func (h *Handler) SendPlayerAction(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, h.session.SendPlayerAction)
}

func (h *Handler) SendExpenseAction(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, h.session.SendExpenseAction)
}

func (h *Handler) RequestSync(w http.ResponseWriter, r *http.Request) {
	if !h.session.RequestSync() {
		http.Error(w, collaboration.ErrNotConnected.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request, send func(any) bool) {
	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !send(payload) {
		http.Error(w, collaboration.ErrNotConnected.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Editor handlers

func (h *Handler) ListEditors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"editors": h.session.State().Editors,
	})
}

func (h *Handler) AddEditor(w http.ResponseWriter, r *http.Request) {
	var req editorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !h.session.AddEditor(req.Email) {
		http.Error(w, collaboration.ErrInvalidEmail.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"editors": h.session.State().Editors,
	})
}

func (h *Handler) RemoveEditor(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]

	if !h.session.RemoveEditor(email) {
		http.Error(w, collaboration.ErrInvalidEmail.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invite handlers

func (h *Handler) GetInviteLink(w http.ResponseWriter, r *http.Request) {
	link := h.session.GenerateInviteLink(r.URL.Query().Get("game_id"))
	writeJSON(w, http.StatusOK, map[string]string{"link": link})
}

// Journal handlers

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "snapshot journal is disabled", http.StatusNotFound)
		return
	}

	limit := 50 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	snapshots, err := h.history.ListSnapshots(r.Context(), h.session.GameID(), limit)
	if err != nil {
		middleware.AddSpanError(r.Context(), err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": snapshots,
		"limit":     limit,
	})
}

func (h *Handler) sessionResponse() SessionResponse {
	return SessionResponse{
		GameID:            h.session.GameID(),
		Enabled:           h.session.Enabled(),
		ReconnectAttempts: h.session.ReconnectAttempts(),
		State:             h.session.State(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
