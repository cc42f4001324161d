package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// OllamaManager drives the Ollama control API: POST /api/generate with
// keep_alive=0 to unload, GET /api/tags to list resident models.
type OllamaManager struct {
	Endpoint string
	Client   *http.Client
	Parser   ResponseParser
}

// NewOllamaManager builds a manager against the given endpoint
// (OLLAMA_HOST env knob, spec.md §6).
func NewOllamaManager(endpoint string) *OllamaManager {
	return &OllamaManager{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Client:   http.DefaultClient,
		Parser:   OllamaParser{},
	}
}

func (o *OllamaManager) Load(ctx context.Context, modelID string) error {
	body, _ := json.Marshal(map[string]any{"model": modelID, "prompt": "", "keep_alive": -1})
	return o.post(ctx, "/api/generate", body)
}

func (o *OllamaManager) Unload(ctx context.Context, modelID string) error {
	body, _ := json.Marshal(map[string]any{"model": modelID, "prompt": "", "keep_alive": 0})
	return o.post(ctx, "/api/generate", body)
}

// Cleanup removes orphan shared-memory segments Ollama can leave behind
// after an unload (spec.md §4.2.3: "The Ollama manager additionally
// cleans orphan shared-memory segments after unload").
func (o *OllamaManager) Cleanup(ctx context.Context, modelID string) error {
	entries, err := os.ReadDir("/dev/shm")
	if err != nil {
		return nil // non-Linux or sandboxed host: nothing to clean, not an error
	}
	prefix := "ollama-" + sanitizeShmName(modelID)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			_ = os.Remove(filepath.Join("/dev/shm", e.Name()))
		}
	}
	return nil
}

func sanitizeShmName(modelID string) string {
	return strings.NewReplacer(":", "_", "/", "_").Replace(modelID)
}

func (o *OllamaManager) ListExternal(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.Endpoint+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return o.Parser.ParseModelList(raw), nil
}

func (o *OllamaManager) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.Endpoint+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check: status %d", resp.StatusCode)
	}
	return nil
}

func (o *OllamaManager) post(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ollama request to %s: status %d", path, resp.StatusCode)
	}
	return nil
}
