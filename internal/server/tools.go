package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": description,
			},
		},
		"required": []string{"path"},
	}
}

func idProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Product ID, e.g. \"001\"",
	}
}

func productProperties() map[string]interface{} {
	return map[string]interface{}{
		"name": map[string]interface{}{
			"type":        "string",
			"description": "Product name. Matched case-insensitively against detected object classes (e.g. \"cat\", \"cup\")",
		},
		"price": map[string]interface{}{
			"type":        "number",
			"minimum":     0,
			"description": "Unit price",
		},
		"in_stock": map[string]interface{}{
			"type":        "boolean",
			"description": "Whether the product is in stock",
			"default":     false,
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	updateProps := productProperties()
	updateProps["id"] = idProperty()

	return []Tool{
		// Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, detected format and file size.",
			InputSchema: pathSchema("Absolute path to the image file"),
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: pathSchema("Absolute path to the image file"),
		},

		// Annotation
		{
			Name:        "image_prepare",
			Description: "Validate a PNG or JPEG upload and write a copy scaled down to fit the detector's working size, named <name>_resized<ext> next to the source.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to a .png, .jpg or .jpeg file",
					},
					"max_size": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum width and height in pixels (default: server setting, usually 1024)",
						"minimum":     0,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_detect_objects",
			Description: "Run the object detector on an image and return every detection with class name, bounding box and confidence, whether or not it is in the catalog.",
			InputSchema: pathSchema("Absolute path to the image file"),
		},
		{
			Name:        "image_annotate",
			Description: "Detect objects, match them against the product catalog and write an annotated copy (output_<name>) with colored boxes and a price/stock caption per product. Objects not in the catalog are ignored.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to a .png, .jpg or .jpeg file",
					},
					"prepare": map[string]interface{}{
						"type":        "boolean",
						"description": "Validate and resize the image before detection",
						"default":     true,
					},
				},
				"required": []string{"path"},
			},
		},

		// Catalog
		{
			Name:        "catalog_list",
			Description: "List every product in the catalog in ID order.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "catalog_get",
			Description: "Get one product by ID.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": idProperty(),
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        "catalog_create",
			Description: "Add a product. The ID is assigned sequentially (001, 002, ...).",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": productProperties(),
				"required":   []string{"name", "price"},
			},
		},
		{
			Name:        "catalog_update",
			Description: "Replace the name, price and stock flag of an existing product.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": updateProps,
				"required":   []string{"id", "name", "price"},
			},
		},
		{
			Name:        "catalog_delete",
			Description: "Remove a product by ID.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": idProperty(),
				},
				"required": []string{"id"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
