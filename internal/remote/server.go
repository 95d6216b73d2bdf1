// Package remote implements an in-memory central knowledge authority
// speaking the HTTP contract the reconciler consumes. It exists for local
// development and end-to-end testing; the production authority lives
// elsewhere and is only assumed to honor the same contract.
package remote

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	syncwire "github.com/sigil-dev/sigil/internal/sync"
)

// Server holds the in-memory pattern registry. Deduplication is keyed by
// error signature: resubmitting a known signature returns the existing id
// rather than creating a duplicate, which is what makes client retries
// idempotent.
type Server struct {
	mu        sync.Mutex
	apiKey    string
	bySig     map[string]string // signature → central pattern id
	knownIDs  map[string]bool   // issued pattern ids, for solution validation
	solutions int
}

// NewServer creates an empty authority. An empty apiKey disables auth.
func NewServer(apiKey string) *Server {
	return &Server{
		apiKey:   apiKey,
		bySig:    make(map[string]string),
		knownIDs: make(map[string]bool),
	}
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RecoveryMiddleware)
	r.Use(LoggingMiddleware)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(AuthMiddleware(s.apiKey))
		}
		r.Post("/api/v1/patterns/submit", s.handlePatternSubmit)
		r.Post("/api/v1/sync/solutions", s.handleSolutionBatch)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePatternSubmit(w http.ResponseWriter, r *http.Request) {
	var sub syncwire.PatternSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if sub.ErrorSignature == "" {
		writeError(w, http.StatusUnprocessableEntity, "error_signature is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.bySig[sub.ErrorSignature]; ok {
		writeJSON(w, http.StatusOK, map[string]string{"existing_pattern_id": existing})
		return
	}

	id := ulid.Make().String()
	s.bySig[sub.ErrorSignature] = id
	s.knownIDs[id] = true
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleSolutionBatch(w http.ResponseWriter, r *http.Request) {
	var batch []syncwire.SolutionSubmission
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var accepted, failed int
	for _, sol := range batch {
		if sol.PatternID == "" || !s.knownIDs[sol.PatternID] || sol.Title == "" {
			failed++
			continue
		}
		accepted++
	}
	s.solutions += accepted

	writeJSON(w, http.StatusOK, syncwire.BatchResult{Accepted: accepted, Failed: failed})
}

// PatternCount reports how many distinct patterns the authority holds.
func (s *Server) PatternCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bySig)
}

// SolutionCount reports how many solutions the authority has accepted.
func (s *Server) SolutionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.solutions
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": detail})
}
