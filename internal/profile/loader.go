package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} placeholders in
// profile YAML files, following the teacher's config/envexpand.go
// convention of expanding environment references before parsing.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

func expandEnv(raw string) string {
	return envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[3]
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		return def
	})
}

// LoadDir reads every *.yaml file in dir as a Profile definition.
// Returns the parsed profiles in file order.
func LoadDir(dir string) ([]*Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading profile dir %s: %w", dir, err)
	}
	var profiles []*Profile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		p, err := loadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("loading profile %s: %w", e.Name(), err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func loadFile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := expandEnv(string(raw))
	var p Profile
	if err := yaml.Unmarshal([]byte(expanded), &p); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	return &p, nil
}

// DefaultCapabilities returns the built-in fallback roster consulted
// when a model id is absent from the active profile (spec.md §4.1).
func DefaultCapabilities() map[string]ModelCapability {
	return map[string]ModelCapability{
		"llama3.1:8b": {
			Name: "llama3.1:8b", Backend: "ollama", VRAMSizeGB: 6,
			Priority: PriorityNormal, SupportsTools: true, ContextWindow: 8192,
		},
		"qwen2.5-coder:7b": {
			Name: "qwen2.5-coder:7b", Backend: "ollama", VRAMSizeGB: 6,
			Priority: PriorityNormal, SupportsTools: true, ContextWindow: 16384,
		},
		"nomic-embed-text": {
			Name: "nomic-embed-text", Backend: "ollama", VRAMSizeGB: 1,
			Priority: PriorityLow, ContextWindow: 2048,
		},
	}
}
