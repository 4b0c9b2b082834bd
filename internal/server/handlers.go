package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ironsheep/product-overlay/internal/catalog"
	"github.com/ironsheep/product-overlay/internal/detect"
	"github.com/ironsheep/product-overlay/internal/imaging"
	"github.com/ironsheep/product-overlay/internal/pipeline"
)

// ErrNoDetector is returned by detection tools when the server was started
// without a detector.
var ErrNoDetector = errors.New("no object detector configured")

var validate = validator.New()

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_annotate", "catalog_create").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("tool execution failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Annotation
	case "image_prepare":
		return s.handleImagePrepare(args)
	case "image_detect_objects":
		return s.handleImageDetectObjects(ctx, args)
	case "image_annotate":
		return s.handleImageAnnotate(ctx, args)

	// Catalog
	case "catalog_list":
		return s.handleCatalogList(ctx)
	case "catalog_get":
		return s.handleCatalogGet(ctx, args)
	case "catalog_create":
		return s.handleCatalogCreate(ctx, args)
	case "catalog_update":
		return s.handleCatalogUpdate(ctx, args)
	case "catalog_delete":
		return s.handleCatalogDelete(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals args into dst and validates its struct tags.
// Empty args decode as an empty object.
func decodeArgs(args json.RawMessage, dst interface{}) error {
	if len(args) > 0 {
		if err := json.Unmarshal(args, dst); err != nil {
			return fmt.Errorf("invalid arguments: %w", err)
		}
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Image Information Handlers ===

type pathArgs struct {
	Path string `json:"path" validate:"required"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Annotation Handlers ===

type imagePrepareArgs struct {
	Path    string `json:"path" validate:"required"`
	MaxSize int    `json:"max_size" validate:"gte=0"`
}

func (s *Server) handleImagePrepare(args json.RawMessage) (interface{}, error) {
	var a imagePrepareArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.MaxSize == 0 {
		a.MaxSize = s.maxImageSize
	}
	return s.prepare(a.Path, a.MaxSize)
}

// prepare writes the resized copy and drops any stale cache entry for it.
func (s *Server) prepare(path string, maxSize int) (*imaging.Prepared, error) {
	p, err := imaging.Prepare(path, maxSize)
	if err != nil {
		return nil, err
	}
	s.cache.Evict(p.Path)
	return p, nil
}

type detectObjectsResult struct {
	Path       string             `json:"path"`
	Count      int                `json:"count"`
	Detections []detect.Detection `json:"detections"`
}

func (s *Server) handleImageDetectObjects(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if s.detector == nil {
		return nil, ErrNoDetector
	}

	dets, err := s.detector.Detect(ctx, a.Path)
	if err != nil {
		return nil, err
	}
	if dets == nil {
		dets = []detect.Detection{}
	}
	return &detectObjectsResult{Path: a.Path, Count: len(dets), Detections: dets}, nil
}

type imageAnnotateArgs struct {
	Path string `json:"path" validate:"required"`

	// Prepare resizes the image before annotating. Defaults to true.
	Prepare *bool `json:"prepare"`
}

type annotateResult struct {
	*pipeline.Result
	Prepared *imaging.Prepared `json:"prepared,omitempty"`
}

func (s *Server) handleImageAnnotate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageAnnotateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if s.pipeline == nil {
		return nil, ErrNoDetector
	}

	path := a.Path
	var prepared *imaging.Prepared
	if a.Prepare == nil || *a.Prepare {
		p, err := s.prepare(path, s.maxImageSize)
		if err != nil {
			return nil, err
		}
		prepared = p
		path = p.Path
	} else if !imaging.Allowed(path) {
		return nil, fmt.Errorf("%s: %w", path, imaging.ErrUnsupportedFormat)
	}

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	res, err := s.pipeline.Process(ctx, path, snap)
	if err != nil {
		return nil, err
	}
	s.cache.Evict(res.OutputPath)

	return &annotateResult{Result: res, Prepared: prepared}, nil
}

// === Catalog Handlers ===

type catalogIDArgs struct {
	ID string `json:"id" validate:"required"`
}

type catalogEntryArgs struct {
	Name    string   `json:"name" validate:"required"`
	Price   *float64 `json:"price" validate:"required,gte=0"`
	InStock bool     `json:"in_stock"`
}

func (a catalogEntryArgs) entry() catalog.Entry {
	return catalog.Entry{Name: a.Name, Price: *a.Price, InStock: a.InStock}
}

type catalogListResult struct {
	Count    int             `json:"count"`
	Products []catalog.Entry `json:"products"`
}

func (s *Server) handleCatalogList(ctx context.Context) (interface{}, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	return &catalogListResult{Count: len(entries), Products: entries}, nil
}

func (s *Server) handleCatalogGet(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a catalogIDArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, a.ID)
}

func (s *Server) handleCatalogCreate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a catalogEntryArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	e, err := s.store.Create(ctx, a.entry())
	if err != nil {
		return nil, err
	}
	s.log.WithField("id", e.ID).Info("product created")
	return e, nil
}

type catalogUpdateArgs struct {
	catalogIDArgs
	catalogEntryArgs
}

func (s *Server) handleCatalogUpdate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a catalogUpdateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	e, err := s.store.Update(ctx, a.ID, a.entry())
	if err != nil {
		return nil, err
	}
	s.log.WithField("id", e.ID).Info("product updated")
	return e, nil
}

func (s *Server) handleCatalogDelete(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a catalogIDArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, a.ID); err != nil {
		return nil, err
	}
	s.log.WithField("id", a.ID).Info("product deleted")
	return map[string]string{"deleted": a.ID}, nil
}
