// Package api exposes a tiny JSON-over-HTTP API for the adns daemon.
// It listens on a Unix domain socket (path comes from config) and delegates
// all resolution logic to internal/service.Service.  No third-party HTTP
// framework is used, just net/http + encoding/json, keeping the binary
// small and dependency-free.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lc/adns/internal/answer"
	"github.com/lc/adns/internal/buildinfo"
	"github.com/lc/adns/internal/service"
	"github.com/lc/adns/internal/socket"
)

// ResolveRequest represents a request to resolve a name.
// Type and Class default to "A" and "IN" when empty.
type ResolveRequest struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Class string `json:"class,omitempty"`
}

// Record is one normalized answer record.
type Record struct {
	Value string `json:"value"`
}

// ResolveResponse represents a normalized answer.
type ResolveResponse struct {
	Name    string   `json:"name"`
	Status  string   `json:"status"`
	Class   string   `json:"class"`
	Type    string   `json:"type"`
	Secure  bool     `json:"secure"`
	Bogus   string   `json:"bogus,omitempty"`
	Records []Record `json:"records"`
	Text    string   `json:"text"`
}

// StatusResponse represents the daemon status response.
type StatusResponse struct {
	Pending    int           `json:"pending"`
	Generation string        `json:"generation"`
	Uptime     time.Duration `json:"uptime"`
	Version    string        `json:"version"`
	Commit     string        `json:"commit"`
}

// -------- server -----------------------------------------------------

// Server handles HTTP API requests over a Unix domain socket.
type Server struct {
	svc   *service.Service
	start time.Time
	mux   *http.ServeMux
	srv   *http.Server
}

// New creates a new API server backed by the given query service.
// It sets up the HTTP routes and returns a server ready to listen.
func New(svc *service.Service) *Server {
	s := &Server{
		svc:   svc,
		start: time.Now(),
		mux:   http.NewServeMux(),
	}

	s.mux.HandleFunc("/v1/resolve", s.handleResolve)
	s.mux.HandleFunc("/v1/purge", s.handlePurge)
	s.mux.HandleFunc("/v1/status", s.handleStatus)

	s.srv = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe starts the Unix-socket HTTP server.
func (s *Server) ListenAndServe(path string) error {
	ln, err := socket.Listen(path)
	if err != nil {
		return err
	}
	return s.srv.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

// handleResolve runs a blocking lookup and returns the normalized answer.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	n, err := s.svc.Lookup(req.Name, req.Type, req.Class)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	if err := json.NewEncoder(w).Encode(FromNormalized(n)); err != nil {
		http.Error(w, fmt.Sprintf("Error encoding response: %v", err), http.StatusInternalServerError)
		return
	}
}

// handlePurge cancels all pending queries and rebuilds the resolver context.
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.svc.Purge()
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus returns the daemon status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := StatusResponse{
		Pending:    s.svc.Pending(),
		Generation: s.svc.Generation(),
		Uptime:     time.Since(s.start),
		Version:    buildinfo.Version,
		Commit:     buildinfo.Commit,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, fmt.Sprintf("Error encoding response: %v", err), http.StatusInternalServerError)
		return
	}
}

// FromNormalized converts a normalized answer into its API representation.
func FromNormalized(n *answer.Normalized) ResolveResponse {
	resp := ResolveResponse{
		Name:    n.Qname,
		Status:  n.Status,
		Class:   n.Class,
		Type:    n.Type,
		Secure:  n.Secure,
		Bogus:   n.BogusReason,
		Records: make([]Record, 0, len(n.Records)),
		Text:    n.String(),
	}
	for _, rec := range n.Records {
		resp.Records = append(resp.Records, Record{Value: rec.String()})
	}
	return resp
}
