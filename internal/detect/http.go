package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// HTTPModel runs inference on a remote service. The image is posted as the
// multipart field "file" and the service answers with
//
//	{"detections": [{"box": [x1, y1, x2, y2], "confidence": 0.9, "class": 15}]}
//
// Class indices are resolved through the local label table.
type HTTPModel struct {
	inferenceURL string
	labels       Labels
	client       *http.Client
}

var _ Model = (*HTTPModel)(nil)

// NewHTTPModel creates a model client. A nil client uses http.DefaultClient.
func NewHTTPModel(inferenceURL string, labels Labels, client *http.Client) *HTTPModel {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPModel{
		inferenceURL: inferenceURL,
		labels:       labels,
		client:       client,
	}
}

// ClassName resolves index through the label table.
func (m *HTTPModel) ClassName(index int) (string, bool) {
	return m.labels.ClassName(index)
}

// Infer uploads the image and decodes the raw detections.
func (m *HTTPModel) Infer(ctx context.Context, imagePath string) ([]RawBox, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.inferenceURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Detections []RawBox `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return result.Detections, nil
}

// CheckHealth probes <inferenceURL>/health.
func (m *HTTPModel) CheckHealth(ctx context.Context) error {
	url := strings.TrimSuffix(m.inferenceURL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
