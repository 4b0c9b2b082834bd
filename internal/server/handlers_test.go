package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/product-overlay/internal/catalog"
	"github.com/ironsheep/product-overlay/internal/detect"
	"github.com/ironsheep/product-overlay/internal/overlay"
)

type fakeDetector struct {
	dets  []detect.Detection
	err   error
	paths []string
}

func (f *fakeDetector) Detect(ctx context.Context, imagePath string) ([]detect.Detection, error) {
	f.paths = append(f.paths, imagePath)
	if f.err != nil {
		return nil, f.err
	}
	return f.dets, nil
}

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, name string, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// callTool runs a tools/call request and returns the response.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()
	params := map[string]interface{}{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// callToolOK runs a tool that must succeed and decodes its text payload into out.
func callToolOK(t *testing.T, s *Server, name string, args interface{}, out interface{}) {
	t.Helper()
	resp := callTool(t, s, name, args)
	if resp.Error != nil {
		t.Fatalf("%s: unexpected error: %+v", name, resp.Error)
	}

	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("%s: unexpected content %+v", name, content)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(content[0]["text"].(string)), out); err != nil {
			t.Fatalf("%s: bad payload: %v", name, err)
		}
	}
}

// callToolErr runs a tool that must fail and returns the error data.
func callToolErr(t *testing.T, s *Server, name string, args interface{}) string {
	t.Helper()
	resp := callTool(t, s, name, args)
	if resp.Error == nil {
		t.Fatalf("%s: expected an error response", name)
	}
	if resp.Error.Code != -32000 {
		t.Errorf("%s: code got %d, want -32000", name, resp.Error.Code)
	}
	data, _ := resp.Error.Data.(string)
	return data
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New()
	resp := s.handleToolsCall(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`"not an object"`),
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected -32602, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	data := callToolErr(t, New(), "image_crop", map[string]interface{}{"path": "/x.png"})
	if !strings.Contains(data, "unknown tool") {
		t.Errorf("error data: %q", data)
	}
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := New()
	imgPath := createTestImageFile(t, "load.png", 100, 80, color.RGBA{255, 0, 0, 255})

	var info struct {
		Width, Height int
		Format        string
	}
	callToolOK(t, s, "image_load", map[string]interface{}{"path": imgPath}, &info)
	if info.Width != 100 || info.Height != 80 || info.Format != "png" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestHandleToolsCall_ImageDimensions(t *testing.T) {
	s := New()
	imgPath := createTestImageFile(t, "dims.png", 200, 150, color.RGBA{0, 255, 0, 255})

	var dims struct{ Width, Height int }
	callToolOK(t, s, "image_dimensions", map[string]interface{}{"path": imgPath}, &dims)
	if dims.Width != 200 || dims.Height != 150 {
		t.Errorf("got %dx%d, want 200x150", dims.Width, dims.Height)
	}
}

func TestHandleToolsCall_ImageErrors(t *testing.T) {
	s := New()
	callToolErr(t, s, "image_load", map[string]interface{}{"path": "/nonexistent/image.png"})

	data := callToolErr(t, s, "image_dimensions", map[string]interface{}{})
	if !strings.Contains(data, "invalid arguments") {
		t.Errorf("missing path should fail validation: %q", data)
	}
}

func TestHandleToolsCall_ImagePrepare(t *testing.T) {
	s := New(WithMaxImageSize(100))
	imgPath := createTestImageFile(t, "wide.png", 400, 100, color.White)

	var p struct {
		Path          string
		Width, Height int
		Resized       bool
	}
	callToolOK(t, s, "image_prepare", map[string]interface{}{"path": imgPath}, &p)
	if p.Width != 100 || p.Height != 25 || !p.Resized {
		t.Errorf("unexpected prepare result: %+v", p)
	}
	if p.Path != filepath.Join(filepath.Dir(imgPath), "wide_resized.png") {
		t.Errorf("path: got %s", p.Path)
	}

	callToolOK(t, s, "image_prepare", map[string]interface{}{"path": imgPath, "max_size": 200}, &p)
	if p.Width != 200 {
		t.Errorf("explicit max_size ignored: %+v", p)
	}

	gif := filepath.Join(t.TempDir(), "a.gif")
	os.WriteFile(gif, []byte("GIF89a"), 0644)
	data := callToolErr(t, s, "image_prepare", map[string]interface{}{"path": gif})
	if !strings.Contains(data, "unsupported file type") {
		t.Errorf("error data: %q", data)
	}
}

func TestHandleToolsCall_DetectObjects(t *testing.T) {
	det := &fakeDetector{dets: []detect.Detection{
		{ClassName: "person", Box: detect.BBox{XMin: 1, YMin: 2, XMax: 30, YMax: 40}, Confidence: 0.75},
	}}
	s := New(WithDetector(det))
	imgPath := createTestImageFile(t, "people.png", 50, 50, color.White)

	var res struct {
		Count      int
		Detections []detect.Detection
	}
	callToolOK(t, s, "image_detect_objects", map[string]interface{}{"path": imgPath}, &res)
	if res.Count != 1 || res.Detections[0].ClassName != "person" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Detections[0].Box != det.dets[0].Box {
		t.Errorf("box: got %+v", res.Detections[0].Box)
	}

	det.err = &detect.Error{Path: imgPath, Err: errors.New("model offline")}
	data := callToolErr(t, s, "image_detect_objects", map[string]interface{}{"path": imgPath})
	if !strings.Contains(data, "model offline") {
		t.Errorf("error data: %q", data)
	}
}

func TestHandleToolsCall_NoDetector(t *testing.T) {
	s := New()
	imgPath := createTestImageFile(t, "x.png", 10, 10, color.White)

	for _, tool := range []string{"image_detect_objects", "image_annotate"} {
		data := callToolErr(t, s, tool, map[string]interface{}{"path": imgPath})
		if !strings.Contains(data, ErrNoDetector.Error()) {
			t.Errorf("%s: error data %q", tool, data)
		}
	}
}

func TestHandleToolsCall_Annotate(t *testing.T) {
	workDir := t.TempDir()
	store := catalog.NewMemory()
	ctx := context.Background()
	store.Create(ctx, catalog.Entry{Name: "Cat", Price: 9.99, InStock: true})
	store.Create(ctx, catalog.Entry{Name: "Dog", Price: 12.5})

	det := &fakeDetector{dets: []detect.Detection{
		{ClassName: "cat", Box: detect.BBox{XMin: 10, YMin: 40, XMax: 60, YMax: 90}, Confidence: 0.9},
		{ClassName: "dog", Box: detect.BBox{XMin: 70, YMin: 50, XMax: 120, YMax: 100}, Confidence: 0.8},
		{ClassName: "person", Box: detect.BBox{XMin: 130, YMin: 10, XMax: 190, YMax: 190}, Confidence: 0.7},
	}}
	s := New(
		WithStore(store),
		WithDetector(det),
		WithRenderer(overlay.NewRenderer(workDir, overlay.BasicDrawer())),
	)
	imgPath := createTestImageFile(t, "pets.png", 200, 200, color.RGBA{90, 90, 90, 255})

	var res struct {
		RunID      string `json:"run_id"`
		OutputPath string `json:"output_path"`
		Groups     []struct {
			Key string `json:"key"`
		} `json:"groups"`
		Labels []struct {
			Text string `json:"text"`
		} `json:"labels"`
		Prepared *struct {
			Path string `json:"path"`
		} `json:"prepared"`
	}
	callToolOK(t, s, "image_annotate", map[string]interface{}{"path": imgPath}, &res)

	if res.Prepared == nil {
		t.Fatal("image should be prepared by default")
	}
	if len(det.paths) != 1 || det.paths[0] != res.Prepared.Path {
		t.Errorf("detector should see the prepared copy, saw %v", det.paths)
	}
	if res.OutputPath != filepath.Join(workDir, "output_pets_resized.png") {
		t.Errorf("output path: got %s", res.OutputPath)
	}
	if _, err := os.Stat(res.OutputPath); err != nil {
		t.Errorf("output missing: %v", err)
	}
	if res.RunID == "" {
		t.Error("missing run_id")
	}

	if len(res.Groups) != 2 || res.Groups[0].Key != "cat" || res.Groups[1].Key != "dog" {
		t.Errorf("unexpected groups: %+v", res.Groups)
	}
	want := []string{"Cat: $9.99, In Stock: Yes", "Dog: $12.5, In Stock: No"}
	if len(res.Labels) != 2 || res.Labels[0].Text != want[0] || res.Labels[1].Text != want[1] {
		t.Errorf("unexpected labels: %+v", res.Labels)
	}
}

func TestHandleToolsCall_AnnotateWithoutPrepare(t *testing.T) {
	workDir := t.TempDir()
	det := &fakeDetector{}
	s := New(WithDetector(det), WithRenderer(overlay.NewRenderer(workDir, nil)))
	imgPath := createTestImageFile(t, "raw.png", 30, 30, color.White)

	var res struct {
		OutputPath string `json:"output_path"`
		Prepared   *struct{}
	}
	callToolOK(t, s, "image_annotate", map[string]interface{}{"path": imgPath, "prepare": false}, &res)
	if res.Prepared != nil {
		t.Error("prepare=false should skip preparation")
	}
	if det.paths[0] != imgPath {
		t.Errorf("detector should see the original, saw %s", det.paths[0])
	}
	if res.OutputPath != filepath.Join(workDir, "output_raw.png") {
		t.Errorf("output path: got %s", res.OutputPath)
	}

	bmp := filepath.Join(t.TempDir(), "raw.bmp")
	os.WriteFile(bmp, []byte("BM"), 0644)
	data := callToolErr(t, s, "image_annotate", map[string]interface{}{"path": bmp, "prepare": false})
	if !strings.Contains(data, "unsupported file type") {
		t.Errorf("error data: %q", data)
	}
}

func TestHandleToolsCall_AnnotateDetectionFailure(t *testing.T) {
	workDir := t.TempDir()
	det := &fakeDetector{err: &detect.Error{Path: "x", Err: errors.New("inference timeout")}}
	s := New(WithDetector(det), WithRenderer(overlay.NewRenderer(workDir, nil)))
	imgPath := createTestImageFile(t, "fail.png", 20, 20, color.White)

	data := callToolErr(t, s, "image_annotate", map[string]interface{}{"path": imgPath})
	if !strings.Contains(data, "detection failure") || !strings.Contains(data, "inference timeout") {
		t.Errorf("error data: %q", data)
	}
	if entries, _ := os.ReadDir(workDir); len(entries) != 0 {
		t.Error("no output should be written when detection fails")
	}
}

func TestHandleToolsCall_CatalogCRUD(t *testing.T) {
	s := New()

	var created catalog.Entry
	callToolOK(t, s, "catalog_create", map[string]interface{}{"name": "Cup", "price": 3, "in_stock": true}, &created)
	if created.ID != "001" || created.Name != "Cup" || created.Price != 3 || !created.InStock {
		t.Errorf("unexpected created entry: %+v", created)
	}

	var second catalog.Entry
	callToolOK(t, s, "catalog_create", map[string]interface{}{"name": "Free sample", "price": 0}, &second)
	if second.ID != "002" || second.Price != 0 || second.InStock {
		t.Errorf("zero price should be accepted: %+v", second)
	}

	var got catalog.Entry
	callToolOK(t, s, "catalog_get", map[string]interface{}{"id": "001"}, &got)
	if got != created {
		t.Errorf("get: got %+v, want %+v", got, created)
	}

	var updated catalog.Entry
	callToolOK(t, s, "catalog_update", map[string]interface{}{"id": "001", "name": "Mug", "price": 4.5}, &updated)
	if updated.ID != "001" || updated.Name != "Mug" || updated.Price != 4.5 || updated.InStock {
		t.Errorf("unexpected update result: %+v", updated)
	}

	var list struct {
		Count    int
		Products []catalog.Entry
	}
	callToolOK(t, s, "catalog_list", nil, &list)
	if list.Count != 2 || list.Products[0].ID != "001" || list.Products[1].ID != "002" {
		t.Errorf("unexpected list: %+v", list)
	}

	var deleted map[string]string
	callToolOK(t, s, "catalog_delete", map[string]interface{}{"id": "002"}, &deleted)
	if deleted["deleted"] != "002" {
		t.Errorf("unexpected delete result: %v", deleted)
	}

	callToolOK(t, s, "catalog_list", map[string]interface{}{}, &list)
	if list.Count != 1 {
		t.Errorf("count after delete: got %d, want 1", list.Count)
	}
}

func TestHandleToolsCall_CatalogErrors(t *testing.T) {
	s := New()

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
		want string
	}{
		{"create without price", "catalog_create", map[string]interface{}{"name": "Cup"}, "invalid arguments"},
		{"create without name", "catalog_create", map[string]interface{}{"price": 1}, "invalid arguments"},
		{"create negative price", "catalog_create", map[string]interface{}{"name": "Cup", "price": -1}, "invalid arguments"},
		{"create wrong type", "catalog_create", map[string]interface{}{"name": "Cup", "price": "cheap"}, "invalid arguments"},
		{"get missing", "catalog_get", map[string]interface{}{"id": "404"}, catalog.ErrNotFound.Error()},
		{"get without id", "catalog_get", map[string]interface{}{}, "invalid arguments"},
		{"update missing", "catalog_update", map[string]interface{}{"id": "404", "name": "x", "price": 1}, catalog.ErrNotFound.Error()},
		{"update without price", "catalog_update", map[string]interface{}{"id": "001", "name": "x"}, "invalid arguments"},
		{"delete missing", "catalog_delete", map[string]interface{}{"id": "404"}, catalog.ErrNotFound.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := callToolErr(t, s, tt.tool, tt.args)
			if !strings.Contains(data, tt.want) {
				t.Errorf("error data %q does not mention %q", data, tt.want)
			}
		})
	}
}

func TestHandleToolsCall_AnnotateUsesLatestCatalog(t *testing.T) {
	workDir := t.TempDir()
	det := &fakeDetector{dets: []detect.Detection{
		{ClassName: "cup", Box: detect.BBox{XMin: 5, YMin: 20, XMax: 25, YMax: 40}, Confidence: 0.9},
	}}
	s := New(WithDetector(det), WithRenderer(overlay.NewRenderer(workDir, nil)))
	imgPath := createTestImageFile(t, "cup.png", 200, 60, color.White)

	var res struct {
		Labels []struct{ Text string } `json:"labels"`
	}
	callToolOK(t, s, "image_annotate", map[string]interface{}{"path": imgPath, "prepare": false}, &res)
	if len(res.Labels) != 0 {
		t.Fatalf("empty catalog should produce no labels, got %+v", res.Labels)
	}

	callToolOK(t, s, "catalog_create", map[string]interface{}{"name": "Cup", "price": 2.5, "in_stock": true}, nil)
	callToolOK(t, s, "image_annotate", map[string]interface{}{"path": imgPath, "prepare": false}, &res)
	if len(res.Labels) != 1 || res.Labels[0].Text != "Cup: $2.5, In Stock: Yes" {
		t.Errorf("unexpected labels: %+v", res.Labels)
	}
}
