package api

import (
	"net/http"

	"codescope/internal/version"
)

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/analyze", s.handleAnalyze)
	s.router.HandleFunc("/detect", s.handleDetect)
	s.router.HandleFunc("/cache/stats", s.handleCacheStats)
	s.router.HandleFunc("/cache", s.handleCacheClear) // DELETE

	s.router.HandleFunc("/", s.handleRoot)
}

// handleRoot handles requests to the root path
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	// Only handle exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		MethodNotAllowed(w, http.MethodGet)
		return
	}

	response := map[string]interface{}{
		"name":    "codescope HTTP API",
		"version": version.Version,
		"endpoints": []string{
			"GET /health - Health check with cache database state",
			"POST /analyze - Analyze a project (JSON body or query string)",
			"GET /detect?path=... - Detect project languages",
			"GET /cache/stats - Parse cache and snapshot statistics",
			"DELETE /cache - Purge cached ASTs and snapshots",
		},
	}

	WriteJSON(w, response, http.StatusOK)
}
