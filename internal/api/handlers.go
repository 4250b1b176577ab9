package api

import (
	"net/http"
	"strconv"

	"codescope/internal/errors"
	"codescope/internal/report"
)

var contentTypes = map[report.Format]string{
	report.FormatMarkdown: "text/markdown; charset=utf-8",
	report.FormatJSON:     "application/json",
	report.FormatYAML:     "application/yaml",
	report.FormatSARIF:    "application/sarif+json",
}

// handleAnalyze runs an analysis and renders the report in the requested
// format. Errors always come back as JSON.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w, http.MethodPost)
		return
	}

	req, err := ParseAnalyzeRequest(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	opts, err := req.Options()
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	rep, err := s.engine.Analyze(r.Context(), s.resolvePath(req.Path), opts)
	if err != nil {
		s.logger.Warn("Analysis failed",
			"path", req.Path,
			"code", errors.CodeOf(err),
			"requestID", GetRequestID(r.Context()),
		)
		WriteScopeError(w, err)
		return
	}

	// Format was validated by Analyze.
	format, _ := report.ParseFormat(req.Format)
	out, err := report.Render(rep, format)
	if err != nil {
		InternalError(w, "Failed to render report", err)
		return
	}

	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("X-Codescope-Run-ID", rep.Metadata.RunID)
	w.Header().Set("X-Codescope-Max-Risk", strconv.FormatFloat(rep.Summary.MaxRisk, 'f', 4, 64))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// handleDetect runs language detection only.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, http.MethodGet)
		return
	}

	det, err := s.engine.Detect(r.Context(), s.resolvePath(r.URL.Query().Get("path")))
	if err != nil {
		WriteScopeError(w, err)
		return
	}
	WriteJSON(w, det, http.StatusOK)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, http.MethodGet)
		return
	}

	stats, err := s.engine.CacheStats(r.Context())
	if err != nil {
		WriteScopeError(w, err)
		return
	}
	WriteJSON(w, stats, http.StatusOK)
}

// handleCacheClear purges both cache tiers and the snapshot store.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		MethodNotAllowed(w, http.MethodDelete)
		return
	}

	removed, err := s.engine.PurgeCache(r.Context())
	if err != nil {
		WriteScopeError(w, err)
		return
	}
	WriteJSON(w, map[string]int64{"removed": removed}, http.StatusOK)
}
