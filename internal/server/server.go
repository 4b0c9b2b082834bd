package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/product-overlay/internal/catalog"
	"github.com/ironsheep/product-overlay/internal/detect"
	"github.com/ironsheep/product-overlay/internal/imaging"
	"github.com/ironsheep/product-overlay/internal/overlay"
	"github.com/ironsheep/product-overlay/internal/pipeline"
)

// ServerName and Version are reported during the initialize handshake.
const (
	ServerName = "product-overlay"
	Version    = "0.1.0"
)

// Server handles MCP protocol communication
type Server struct {
	cache        *imaging.Cache
	store        catalog.Store
	detector     detect.Detector
	renderer     *overlay.Renderer
	pipeline     *pipeline.Pipeline
	log          *logrus.Logger
	maxImageSize int
}

// Option configures a Server.
type Option func(*Server)

// WithStore sets the product catalog. The default is an empty in-memory one.
func WithStore(store catalog.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithDetector sets the object detector used by the detect and annotate
// tools. Without one those tools fail.
func WithDetector(d detect.Detector) Option {
	return func(s *Server) { s.detector = d }
}

// WithRenderer sets the overlay renderer. The default writes into "uploads"
// with the bitmap font.
func WithRenderer(r *overlay.Renderer) Option {
	return func(s *Server) { s.renderer = r }
}

// WithLogger sets the logger. It must not write to stdout.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMaxImageSize bounds prepared images. Non-positive values are ignored.
func WithMaxImageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxImageSize = n
		}
	}
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance
func New(opts ...Option) *Server {
	s := &Server{
		cache:        imaging.NewCache(),
		maxImageSize: imaging.DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = catalog.NewMemory()
	}
	if s.renderer == nil {
		s.renderer = overlay.NewRenderer("uploads", nil)
	}
	if s.log == nil {
		s.log = logrus.New()
		s.log.SetOutput(io.Discard)
	}
	if s.detector != nil {
		s.pipeline = pipeline.New(s.detector, s.renderer, s.log)
	}
	return s
}

// Run serves requests from stdin until it is closed, writing responses to
// stdout.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses to w.
// It returns when r is exhausted or ctx is done.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.WithError(err).Warn("failed to parse request")
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.log.WithError(err).Error("failed to encode response")
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    ServerName,
				"version": Version,
			},
		},
	}
}
