package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"codescope/internal/engine"
)

// maxBodyBytes caps request bodies; analyze requests carry options only.
const maxBodyBytes = 1 << 20

// AnalyzeRequest is the body of POST /analyze. Every field can also be
// given as a query parameter of the same name; body fields win.
type AnalyzeRequest struct {
	Path    string   `json:"path"`
	Stages  []string `json:"stages,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
	// Format defaults to json over HTTP.
	Format      string `json:"format,omitempty"`
	MaxBytes    int    `json:"maxBytes,omitempty"`
	TTL         string `json:"ttl,omitempty"`
	NoCache     bool   `json:"noCache,omitempty"`
	Workers     int    `json:"workers,omitempty"`
	Incremental bool   `json:"incremental,omitempty"`
}

// ParseAnalyzeRequest reads the query string and then overlays the JSON
// body, if any.
func ParseAnalyzeRequest(r *http.Request) (*AnalyzeRequest, error) {
	req, err := parseQuery(r)
	if err != nil {
		return nil, err
	}

	if r.Body == nil {
		return withDefaults(req), nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(req); err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
	}

	return withDefaults(req), nil
}

func withDefaults(req *AnalyzeRequest) *AnalyzeRequest {
	if req.Format == "" {
		req.Format = "json"
	}
	return req
}

func parseQuery(r *http.Request) (*AnalyzeRequest, error) {
	query := r.URL.Query()

	req := &AnalyzeRequest{
		Path:   query.Get("path"),
		Format: query.Get("format"),
		TTL:    query.Get("ttl"),
	}
	if v := query.Get("stages"); v != "" {
		req.Stages = []string{v}
	}
	if v := query.Get("exclude"); v != "" {
		req.Exclude = []string{v}
	}

	var err error
	if req.MaxBytes, err = intParam(query.Get("maxBytes"), "maxBytes"); err != nil {
		return nil, err
	}
	if req.Workers, err = intParam(query.Get("workers"), "workers"); err != nil {
		return nil, err
	}
	if req.NoCache, err = boolParam(query.Get("noCache"), "noCache"); err != nil {
		return nil, err
	}
	if req.Incremental, err = boolParam(query.Get("incremental"), "incremental"); err != nil {
		return nil, err
	}
	return req, nil
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: %w", name, err)
	}
	return n, nil
}

func boolParam(v, name string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s parameter: %w", name, err)
	}
	return b, nil
}

// Options converts the request into engine options. Range checks are
// left to the engine.
func (req *AnalyzeRequest) Options() (engine.Options, error) {
	opts := engine.Options{
		Stages:      req.Stages,
		Exclude:     req.Exclude,
		Format:      req.Format,
		MaxBytes:    req.MaxBytes,
		NoCache:     req.NoCache,
		Workers:     req.Workers,
		Incremental: req.Incremental,
	}
	if req.TTL != "" {
		ttl, err := time.ParseDuration(req.TTL)
		if err != nil {
			return opts, fmt.Errorf("invalid ttl: %w", err)
		}
		if ttl <= 0 {
			return opts, fmt.Errorf("ttl must be positive")
		}
		opts.CacheTTL = ttl
	}
	return opts, nil
}

// resolvePath maps a request path onto the server root.
func (s *Server) resolvePath(p string) string {
	p = strings.TrimSpace(p)
	switch {
	case p == "":
		return s.cfg.Root
	case filepath.IsAbs(p), s.cfg.Root == "":
		return p
	default:
		return filepath.Join(s.cfg.Root, p)
	}
}
