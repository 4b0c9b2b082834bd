// Package server implements the MCP (Model Context Protocol) server for
// product overlays.
//
// The server exposes the annotation pipeline and the product catalog as MCP
// tools, so an assistant can maintain prices and stock, then ask for a photo
// to be annotated with them.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs go to stderr only; stdout is reserved for responses.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Annotation:
//   - image_prepare: Validate an upload and scale it to the working size
//   - image_detect_objects: Raw detector output
//   - image_annotate: Prepare, detect, match and draw product captions
//
// Catalog:
//   - catalog_list, catalog_get: Read products
//   - catalog_create, catalog_update, catalog_delete: Edit products
//
// Each image_annotate call reads an immutable snapshot of the catalog, so
// catalog edits made while an image is processed apply to the next call.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(
//	    server.WithStore(store),
//	    server.WithDetector(detector),
//	    server.WithRenderer(overlay.NewRenderer(workDir, text)),
//	    server.WithLogger(logger),
//	)
//	if err := srv.Run(ctx); err != nil {
//	    logger.Fatal(err)
//	}
package server
