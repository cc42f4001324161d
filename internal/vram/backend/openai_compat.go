package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OpenAICompatManager drives SGLang/vLLM/TensorRT-LLM backends that
// expose an OpenAI-compatible control surface. These backends are
// typically started out-of-band with a fixed model, so Load/Unload are
// no-ops; ListExternal reports whatever the backend currently serves so
// the orchestrator can register it with IsExternal=true (spec.md
// §4.2.3).
type OpenAICompatManager struct {
	Endpoint      string
	HealthPath    string
	Client        *http.Client
	Parser        ResponseParser
}

// NewOpenAICompatManager builds a manager for a single-model backend
// reached at endpoint (e.g. SGLANG_ENDPOINT, spec.md §6).
func NewOpenAICompatManager(endpoint, healthPath string) *OpenAICompatManager {
	if healthPath == "" {
		healthPath = "/health"
	}
	return &OpenAICompatManager{
		Endpoint:   strings.TrimRight(endpoint, "/"),
		HealthPath: healthPath,
		Client:     http.DefaultClient,
		Parser:     OpenAIV1Parser{},
	}
}

func (m *OpenAICompatManager) Load(ctx context.Context, modelID string) error {
	return nil // externally managed process; nothing to do
}

func (m *OpenAICompatManager) Unload(ctx context.Context, modelID string) error {
	return nil
}

func (m *OpenAICompatManager) Cleanup(ctx context.Context, modelID string) error {
	return nil
}

func (m *OpenAICompatManager) ListExternal(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.Endpoint+"/v1/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return m.Parser.ParseModelList(raw), nil
}

func (m *OpenAICompatManager) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.Endpoint+m.HealthPath, nil)
	if err != nil {
		return err
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend health check at %s: status %d", m.Endpoint+m.HealthPath, resp.StatusCode)
	}
	return nil
}
