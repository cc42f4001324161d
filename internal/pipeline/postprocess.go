package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// fencedCodeBlock matches a single ```lang\n...\n``` block.
var fencedCodeBlock = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\\n(.*?)```")

// ArtifactStore persists an extracted artifact and returns its id.
type ArtifactStore interface {
	Save(ctx context.Context, filename, content, artifactType string) (uuid.UUID, error)
}

// artifactPayload is the JSON object an extraction model is asked to
// produce (spec.md §4.5 (3)).
type artifactPayload struct {
	Filename     string `json:"filename"`
	Content      string `json:"content"`
	ArtifactType string `json:"artifact_type"`
}

// Postprocessor runs the pipeline's final stage: artifact extraction and
// interface-specific output chunking (spec.md §4.5 (3)).
type Postprocessor struct {
	extractionModel Model
	artifacts       ArtifactStore
}

// NewPostprocessor wires the extraction model and artifact store.
func NewPostprocessor(extractionModel Model, artifacts ArtifactStore) *Postprocessor {
	return &Postprocessor{extractionModel: extractionModel, artifacts: artifacts}
}

// Run extracts an artifact if the turn flagged intent and the response
// contains a fenced code block, then chunks the response text for
// delivery. A failed or absent extraction never fails the turn — it
// silently drops the artifact (spec.md §7: "Postprocess extraction
// errors silently drop artifacts").
func (p *Postprocessor) Run(ctx context.Context, execCtx *ExecutionContext, artifactRequested bool, responseText string) ([]uuid.UUID, []string) {
	var artifacts []uuid.UUID
	if artifactRequested && fencedCodeBlock.MatchString(responseText) {
		if id, ok := p.extractArtifact(ctx, execCtx, responseText); ok {
			artifacts = append(artifacts, id)
		}
	}

	limit := chunkLimit(execCtx.Interface)
	chunks := ChunkPreservingFences(responseText, limit)
	return artifacts, chunks
}

func (p *Postprocessor) extractArtifact(ctx context.Context, execCtx *ExecutionContext, responseText string) (uuid.UUID, bool) {
	prompt := fmt.Sprintf(
		"Extract the file the user asked for from this response. "+
			"Return only a JSON object with fields filename, content, artifact_type.\n\nResponse:\n%s",
		responseText,
	)
	text, _, err := SingleShot(ctx, p.extractionModel, GenerateRequest{
		ModelName:   execCtx.Resolved.ArtifactExtractionModel,
		Temperature: 0,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
	})
	if err != nil {
		return uuid.UUID{}, false
	}

	raw, ok := scanBalancedObject(text)
	if !ok {
		return uuid.UUID{}, false
	}

	var payload artifactPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return uuid.UUID{}, false
	}
	if payload.Filename == "" || payload.Content == "" {
		return uuid.UUID{}, false
	}

	id, err := p.artifacts.Save(ctx, payload.Filename, payload.Content, payload.ArtifactType)
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

// scanBalancedObject finds the first JSON object in s by tracking brace
// depth and string/escape state, rather than a permissive regex. Resolves
// spec.md §9's Open Question: "The source's artifact extractor uses a
// permissive regex \{.*\} with DOTALL; this fails on nested braces.
// Replace with a proper balanced scan."
func scanBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func chunkLimit(iface OutputInterface) int {
	if iface == InterfaceDiscordLike {
		return 2000
	}
	return 4000
}

// ChunkPreservingFences splits text into chunks no longer than limit,
// preferring line boundaries, then word boundaries as fallback. A single
// line exceeding limit is word-split (spec.md §4.5 (3)). Code fences are
// not tracked: a fenced block that does not fit in the current chunk is
// split at a line boundary, and no closing or reopening fence line is
// added to either chunk.
func ChunkPreservingFences(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	lines := strings.Split(text, "\n")

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, line := range lines {
		candidateLen := current.Len() + len(line) + 1
		if current.Len() > 0 && candidateLen > limit {
			flush()
		}
		if len(line) > limit {
			flush()
			chunks = append(chunks, splitByWords(line, limit)...)
			continue
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	flush()
	return chunks
}

func splitByWords(line string, limit int) []string {
	words := strings.Fields(line)
	var chunks []string
	var current strings.Builder
	for _, w := range words {
		candidateLen := current.Len() + len(w) + 1
		if current.Len() > 0 && candidateLen > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(w)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
