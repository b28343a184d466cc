package api

import (
	"net/http"

	"gamesync/internal/middleware"

	"github.com/gorilla/mux"
)

func SetupRoutes(h *Handler) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	// Learning: Middleware runs in order - tracing first, then recovery, then CORS
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	api := r.PathPrefix("/api").Subrouter()
	// Learning: A subrouter reports a method mismatch as 404 unless it has its own handler
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	// Session lifecycle
	api.HandleFunc("/session", h.GetSession).Methods("GET")
	api.HandleFunc("/session/connect", h.Connect).Methods("POST")
	api.HandleFunc("/session/disconnect", h.Disconnect).Methods("POST")
	api.HandleFunc("/session/leave", h.Leave).Methods("POST")
	api.HandleFunc("/session/online", h.SetOnline).Methods("PUT")
	api.HandleFunc("/session/conflict-mode", h.SetConflictMode).Methods("PUT")
	api.HandleFunc("/session/conflict/resolve", h.ResolveConflict).Methods("POST")

	// Outbound game traffic
	api.HandleFunc("/game-state", h.BroadcastGameState).Methods("POST")
	api.HandleFunc("/player-actions", h.SendPlayerAction).Methods("POST")
	api.HandleFunc("/expense-actions", h.SendExpenseAction).Methods("POST")
	api.HandleFunc("/sync", h.RequestSync).Methods("POST")

	// Editors and invites
	api.HandleFunc("/editors", h.ListEditors).Methods("GET")
	api.HandleFunc("/editors", h.AddEditor).Methods("POST")
	api.HandleFunc("/editors/{email}", h.RemoveEditor).Methods("DELETE")
	api.HandleFunc("/invite", h.GetInviteLink).Methods("GET")

	// Snapshot journal
	api.HandleFunc("/history", h.ListHistory).Methods("GET")

	// Health check endpoint
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// WebSocket routes
	r.HandleFunc("/ws/state", h.HandleStateStream)

	return r
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
