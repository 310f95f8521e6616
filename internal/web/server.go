// Package web exposes the review loop over a JSON HTTP API. The
// scheduler never reads a clock, so every review is stamped with the
// server's request-time clock.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Keeno5280/LectureLens/internal/deck"
	"github.com/Keeno5280/LectureLens/internal/domain"
	"github.com/Keeno5280/LectureLens/internal/sm2"
	"github.com/Keeno5280/LectureLens/internal/storage"
	"github.com/Keeno5280/LectureLens/internal/syncer"
)

// Server holds the dependencies for the HTTP API.
type Server struct {
	db    *storage.DB
	sched *sm2.Scheduler
	sync  *syncer.Syncer
	mux   *http.ServeMux
	clock func() time.Time
}

// NewServer creates and routes a new API server.
func NewServer(db *storage.DB, sched *sm2.Scheduler, sync *syncer.Syncer) *Server {
	s := &Server{
		db:    db,
		sched: sched,
		sync:  sync,
		mux:   http.NewServeMux(),
		clock: time.Now,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/due", s.handleDue)
	s.mux.HandleFunc("POST /api/cards", s.handleCreateCard)
	s.mux.HandleFunc("GET /api/cards/{id}", s.handleGetCard)
	s.mux.HandleFunc("POST /api/cards/{id}/review", s.handleReview)
	s.mux.HandleFunc("GET /api/cards/{id}/preview", s.handlePreview)
	s.mux.HandleFunc("GET /api/cards/{id}/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/sources", s.handleListSources)
	s.mux.HandleFunc("POST /api/sources", s.handleAddSource)
	s.mux.HandleFunc("DELETE /api/sources/{id}", s.handleDeleteSource)
	s.mux.HandleFunc("POST /api/sync", s.handleSync)
}

// handleDue returns the cards due right now, most overdue first.
func (s *Server) handleDue(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	cards, err := s.db.FetchDueCards(s.clock(), limit)
	if err != nil {
		s.internalError(w, "fetch due cards", err)
		return
	}
	if cards == nil {
		cards = []domain.ReviewCard{}
	}
	writeJSON(w, http.StatusOK, cards)
}

type createCardRequest struct {
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	Notes         string `json:"notes"`
	AutoGenerated bool   `json:"auto_generated"`
}

// handleCreateCard registers a card authored by the user or delivered
// by the external content generator.
func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Question == "" || req.Answer == "" {
		writeError(w, http.StatusBadRequest, "question and answer are required")
		return
	}

	content := domain.Content{Question: req.Question, Answer: req.Answer, Notes: req.Notes}
	hash := deck.Hash(content)
	if existing, err := s.db.FindCardByHash(hash); err != nil {
		s.internalError(w, "hash lookup", err)
		return
	} else if existing != nil {
		writeError(w, http.StatusConflict, "an identical card already exists")
		return
	}

	card := s.sched.NewCard(uuid.NewString(), content, hash, req.AutoGenerated, 0, s.clock())
	if err := s.db.InsertCard(card); err != nil {
		s.internalError(w, "insert card", err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, ok := s.lookupCard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, card)
}

type reviewRequest struct {
	Grade domain.Grade `json:"grade"`
}

// handleReview applies one graded review. The save is guarded by the
// card version read here; losing a race returns 409 and the client
// re-fetches and re-grades.
func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	card, ok := s.lookupCard(w, r)
	if !ok {
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	now := s.clock()
	updated, err := s.sched.Review(*card, req.Grade, now)
	switch {
	case errors.Is(err, sm2.ErrInvalidGrade):
		writeError(w, http.StatusBadRequest, "grade must be between 0 and 5")
		return
	case errors.Is(err, sm2.ErrInvalidState):
		// Persisted state is corrupt; surface it, never auto-correct.
		slog.Error("card state violates invariants", "id", card.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "card state is corrupt")
		return
	case err != nil:
		s.internalError(w, "schedule review", err)
		return
	}

	if err := s.db.SaveCard(updated); err != nil {
		if errors.Is(err, storage.ErrStaleCard) {
			writeError(w, http.StatusConflict, "card was reviewed concurrently; re-fetch and try again")
			return
		}
		s.internalError(w, "save card", err)
		return
	}
	if err := s.db.InsertReviewLog(domain.ReviewLog{CardID: card.ID, Grade: req.Grade, ReviewedAt: now}); err != nil {
		// The review itself committed; a missing log line is not worth
		// failing the request over.
		slog.Warn("review log not recorded", "id", card.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, updated)
}

// handlePreview shows what each grade would do to the card's schedule.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	card, ok := s.lookupCard(w, r)
	if !ok {
		return
	}
	previews, err := s.sched.Preview(*card, s.clock())
	if err != nil {
		if errors.Is(err, sm2.ErrInvalidState) {
			slog.Error("card state violates invariants", "id", card.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "card state is corrupt")
			return
		}
		s.internalError(w, "preview card", err)
		return
	}

	out := make(map[string]domain.ReviewCard, len(previews))
	for g, c := range previews {
		out[strconv.Itoa(int(g))] = c
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	card, ok := s.lookupCard(w, r)
	if !ok {
		return
	}
	logs, err := s.db.ReviewLogsByCardID(card.ID)
	if err != nil {
		s.internalError(w, "review history", err)
		return
	}
	if logs == nil {
		logs = []domain.ReviewLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats(s.clock())
	if err != nil {
		s.internalError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.db.AllSources()
	if err != nil {
		s.internalError(w, "list sources", err)
		return
	}
	if sources == nil {
		sources = []storage.Source{}
	}
	writeJSON(w, http.StatusOK, sources)
}

type addSourceRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req addSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	kind := syncer.DetectKind(req.Path)
	id, err := s.db.InsertSource(req.Path, kind)
	if err != nil {
		s.internalError(w, "insert source", err)
		return
	}
	writeJSON(w, http.StatusCreated, storage.Source{ID: id, Path: req.Path, Kind: kind})
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}
	if err := s.db.DeleteSource(id); err != nil {
		s.internalError(w, "delete source", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSync runs a full reconciliation in the foreground.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.Run(r.Context()); err != nil {
		s.internalError(w, "sync", err)
		return
	}
	stats, err := s.db.Stats(s.clock())
	if err != nil {
		s.internalError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// lookupCard resolves the {id} path segment; on failure it writes the
// response and returns ok=false.
func (s *Server) lookupCard(w http.ResponseWriter, r *http.Request) (*domain.ReviewCard, bool) {
	card, err := s.db.FindCardByID(r.PathValue("id"))
	if err != nil {
		s.internalError(w, "find card", err)
		return nil, false
	}
	if card == nil {
		writeError(w, http.StatusNotFound, "card not found")
		return nil, false
	}
	return card, true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	slog.Error(op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
