package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"codescope/internal/engine"
	"codescope/internal/report"
)

// MaxMessageSize is the maximum size for a single message line.
const MaxMessageSize = 1024 * 1024

// Server answers requests read from one stream on another. Requests are
// handled in arrival order.
type Server struct {
	engine *engine.Engine
	logger *slog.Logger
	root   string

	mu  sync.Mutex
	out io.Writer
}

// NewServer creates a server; root is analyzed when a request names no path.
func NewServer(eng *engine.Engine, logger *slog.Logger, root string) *Server {
	return &Server{engine: eng, logger: logger, root: root}
}

// Serve reads messages from in until EOF or ctx is done, writing responses
// to out. Malformed lines get a parse error response and do not stop the loop.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.out = out
	s.logger.Info("JSON-RPC server starting", "root", s.root)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), MaxMessageSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		s.logger.Debug("Received message", "bytes", len(line))

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			s.write(NewErrorMessage(nil, ParseError, fmt.Sprintf("Failed to parse message: %v", err), nil))
			continue
		}
		if resp := s.handleMessage(ctx, &msg); resp != nil {
			s.write(resp)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}

	s.logger.Info("JSON-RPC server shutting down (EOF)")
	return nil
}

func (s *Server) write(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Error marshaling response", "error", err)
		data, _ = json.Marshal(NewErrorMessage(msg.ID, InternalError, "failed to encode result", nil))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.out, "%s\n", data); err != nil {
		s.logger.Error("Error writing response", "error", err)
	}
}

// handleMessage returns nil for notifications.
func (s *Server) handleMessage(ctx context.Context, msg *Message) *Message {
	if msg.Jsonrpc != "2.0" {
		return NewErrorMessage(msg.ID, InvalidRequest, "Invalid message: jsonrpc must be \"2.0\"", nil)
	}
	if msg.IsNotification() {
		s.logger.Debug("Ignoring notification", "method", msg.Method)
		return nil
	}
	if !msg.IsRequest() {
		return NewErrorMessage(msg.ID, InvalidRequest, "Invalid message: not a request or notification", nil)
	}

	s.logger.Debug("Handling request", "method", msg.Method, "id", msg.ID)
	start := time.Now()

	var result interface{}
	var err error
	switch msg.Method {
	case "analyze":
		result, err = s.analyze(ctx, msg.Params)
	case "detect":
		result, err = s.detect(ctx, msg.Params)
	case "cache.stats":
		result, err = s.engine.CacheStats(ctx)
	default:
		return NewErrorMessage(msg.ID, MethodNotFound, fmt.Sprintf("Method not found: %s", msg.Method), nil)
	}

	if err != nil {
		if e, ok := err.(*Error); ok {
			return NewErrorMessage(msg.ID, e.Code, e.Message, e.Data)
		}
		s.logger.Warn("Request failed", "method", msg.Method, "error", err)
		return errorMessage(msg.ID, err)
	}
	s.logger.Info("Request handled", "method", msg.Method, "durationMs", time.Since(start).Milliseconds())
	return NewResultMessage(msg.ID, result)
}

// AnalyzeParams are the parameters of the analyze method.
type AnalyzeParams struct {
	Path        string   `json:"path,omitempty"`
	Stages      []string `json:"stages,omitempty"`
	Exclude     []string `json:"exclude,omitempty"`
	Format      string   `json:"format,omitempty"`
	MaxBytes    int      `json:"maxBytes,omitempty"`
	TTL         string   `json:"ttl,omitempty"`
	NoCache     bool     `json:"noCache,omitempty"`
	Workers     int      `json:"workers,omitempty"`
	Incremental bool     `json:"incremental,omitempty"`
}

// AnalyzeResult carries the report object for the json format and the
// rendered text for every other format.
type AnalyzeResult struct {
	RunID   string         `json:"runId"`
	Format  report.Format  `json:"format"`
	Summary report.Summary `json:"summary"`
	Report  *report.Report `json:"report,omitempty"`
	Content string         `json:"content,omitempty"`
}

func (s *Server) analyze(ctx context.Context, raw json.RawMessage) (*AnalyzeResult, error) {
	var p AnalyzeParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Format == "" {
		p.Format = string(report.FormatJSON)
	}

	opts := engine.Options{
		Stages:      p.Stages,
		Exclude:     p.Exclude,
		Format:      p.Format,
		MaxBytes:    p.MaxBytes,
		NoCache:     p.NoCache,
		Workers:     p.Workers,
		Incremental: p.Incremental,
	}
	if p.TTL != "" {
		ttl, err := time.ParseDuration(p.TTL)
		if err != nil || ttl <= 0 {
			return nil, &Error{Code: InvalidParams, Message: fmt.Sprintf("invalid ttl %q", p.TTL)}
		}
		opts.CacheTTL = ttl
	}

	rep, err := s.engine.Analyze(ctx, s.resolvePath(p.Path), opts)
	if err != nil {
		return nil, err
	}

	format, _ := report.ParseFormat(p.Format)
	res := &AnalyzeResult{RunID: rep.Metadata.RunID, Format: format, Summary: rep.Summary}
	if format == report.FormatJSON {
		res.Report = rep
		return res, nil
	}
	out, err := report.Render(rep, format)
	if err != nil {
		return nil, err
	}
	res.Content = string(out)
	return res, nil
}

type pathParams struct {
	Path string `json:"path,omitempty"`
}

func (s *Server) detect(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p pathParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return s.engine.Detect(ctx, s.resolvePath(p.Path))
}

func decodeParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &Error{Code: InvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

func (s *Server) resolvePath(p string) string {
	switch {
	case p == "":
		return s.root
	case filepath.IsAbs(p), s.root == "":
		return p
	default:
		return filepath.Join(s.root, p)
	}
}
