package http

import (
	"encoding/json"
	"log"
	"net/http"

	"math-race-service/internal/app"
	"math-race-service/internal/domain"
)

// RESTHandler serves the read-only query surface: liveness, current question
// (never the answer), and the top-10 leaderboard.
type RESTHandler struct {
	arena *app.Arena
}

func NewRESTHandler(arena *app.Arena) *RESTHandler {
	return &RESTHandler{arena: arena}
}

func (h *RESTHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/question", h.handleQuestion)
	mux.HandleFunc("/api/leaderboard", h.handleLeaderboard)
}

func (h *RESTHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status":   "ok",
		"question": h.arena.CurrentQuestionID(),
	})
}

func (h *RESTHandler) handleQuestion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.arena.CurrentQuestion())
}

func (h *RESTHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.arena.TopScores(r.Context(), 10)
	if err != nil {
		http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []domain.HighScoreEntry{}
	}
	writeJSON(w, entries)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
