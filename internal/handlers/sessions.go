package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shouni/go-tattoo-kit/pkg/design"
	"github.com/shouni/go-tattoo-kit/pkg/domain"
)

type sessionResponse struct {
	design.Snapshot
	StoryCount int `json:"story_count"`
}

func (h *Handler) sessionView(s *design.Session) sessionResponse {
	return sessionResponse{Snapshot: s.Snapshot(), StoryCount: h.bank.StepCount()}
}

func (h *Handler) HandleQuestions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.bank)
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.factory.NewSession()
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	h.sessionStore.Set(s)
	w.Header().Set("Location", "/api/sessions/"+s.ID())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, h.sessionView(s))
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.sessionStore.Snapshots())
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, h.sessionView(s))
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.getSessionOrError(w, r); !ok {
		return
	}
	h.sessionStore.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleAnswers(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, s.Answers())
}

func (h *Handler) HandleDesigns(w http.ResponseWriter, r *http.Request) {
	if h.designs == nil {
		h.writeError(w, "Design storage is not configured", http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	filter := domain.DesignFilter{SessionID: q.Get("session_id"), Limit: 50}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, "Invalid since: "+err.Error(), http.StatusBadRequest)
			return
		}
		filter.Since = since
	}
	records, err := h.designs.ListDesigns(r.Context(), filter)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	if records == nil {
		records = []domain.DesignRecord{}
	}
	h.writeJSON(w, records)
}
