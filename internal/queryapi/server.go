// Package queryapi exposes a read-only HTTP surface over a master
// catalog: health/stats endpoints and signature comparison queries. It
// never mutates a catalog; ingestion happens exclusively through
// internal/batch and internal/consolidate.
package queryapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/corvid-labs/fuzzysig/internal/catalog"
	"github.com/corvid-labs/fuzzysig/internal/similarity"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Server holds the catalog a router's handlers query against.
type Server struct {
	Master catalog.Catalog
}

// NewRouter builds the mux.Router serving s's endpoints, wrapping every
// request with a uuid-tagged access log line.
func NewRouter(s *Server) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware)

	router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", s.statsHandler).Methods(http.MethodGet)
	router.HandleFunc("/scan", s.scanHandler).Methods(http.MethodPost)
	router.HandleFunc("/similarity", s.similarityHandler).Methods(http.MethodPost)

	return router
}

type contextKey int

const requestIDKey contextKey = 0

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s %s (%s)", id, r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Master.Scan()
	if err != nil {
		http.Error(w, "failed to read master catalog", http.StatusInternalServerError)
		log.Printf("stats: scan master catalog: %v", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"master_entries": len(entries),
	})
}

// scanRequest carries a raw hex signature to compare against every entry
// in the master catalog, and an optional threshold (0 means 0.5).
type scanRequest struct {
	Signature string  `json:"signature"`
	Threshold float64 `json:"threshold"`
}

type scanMatch struct {
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Signature == "" {
		http.Error(w, "signature is required", http.StatusBadRequest)
		return
	}
	threshold := req.Threshold
	if threshold <= 0 {
		threshold = 0.5
	}

	entries, err := s.Master.Scan()
	if err != nil {
		http.Error(w, "failed to read master catalog", http.StatusInternalServerError)
		log.Printf("scan: scan master catalog: %v", err)
		return
	}

	var matches []scanMatch
	for _, e := range entries {
		if ratio := similarity.Ratio(req.Signature, e.Value); ratio > threshold {
			matches = append(matches, scanMatch{Name: e.Key, Similarity: ratio})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"matches": matches,
		"count":   len(matches),
	})
}

type similarityRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

func (s *Server) similarityHandler(w http.ResponseWriter, r *http.Request) {
	var req similarityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.A == "" || req.B == "" {
		http.Error(w, "a and b are required", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"similarity": similarity.Ratio(req.A, req.B),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
