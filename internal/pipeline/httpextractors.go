package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// HTTPOCREngine drives an external OCR sidecar over a small JSON control
// API, the same shape internal/vram/backend's OllamaManager/
// OpenAICompatManager use for their own HTTP backends: no generated
// client, a single POST, a typed response decode.
type HTTPOCREngine struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPOCREngine builds an engine against endpoint (e.g. a local
// tesseract-server or cloud OCR proxy).
func NewHTTPOCREngine(endpoint string) *HTTPOCREngine {
	return &HTTPOCREngine{Endpoint: strings.TrimRight(endpoint, "/"), Client: http.DefaultClient}
}

func (e *HTTPOCREngine) RecognizeText(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return doExtractPost(ctx, e.Client, e.Endpoint, "/ocr", data)
}

// HTTPPDFParser drives an external PDF-to-text sidecar over the same
// small JSON control API shape.
type HTTPPDFParser struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPPDFParser(endpoint string) *HTTPPDFParser {
	return &HTTPPDFParser{Endpoint: strings.TrimRight(endpoint, "/"), Client: http.DefaultClient}
}

func (p *HTTPPDFParser) ExtractText(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	return doExtractPost(ctx, p.Client, p.Endpoint, "/extract", data)
}

func doExtractPost(ctx context.Context, client *http.Client, base, path string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, strings.NewReader(string(data)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("extraction sidecar %s: status %d", base+path, resp.StatusCode)
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode extraction response: %w", err)
	}
	return out.Text, nil
}
