package pipeline

import (
	"context"
	"fmt"
	"strings"
)

// artifactLanguagePattern lists the phrases stripped from Discord-like
// prompts before routing, so the classifier sees content rather than
// format requests (spec.md §4.5).
var artifactLanguagePattern = []string{
	"as a file", "as an attachment", "downloadable", "save this as",
	"create a file", "write a file called",
}

// Preprocessor runs the pipeline's first stage: extraction, sanitization,
// artifact-intent detection, context enrichment and summarization.
type Preprocessor struct {
	extractors      *ExtractorRegistry
	detectorModel   Model
	summarizerModel Model
	summaryTokenLimit func(userID string) int
	history         ConversationStore
}

// ConversationStore is the subset of thread storage the preprocessor
// needs: reading recent messages for token accounting and rewriting them
// into a single summary once the threshold is crossed.
type ConversationStore interface {
	RecentTokenCount(ctx context.Context, threadID string) (int, error)
	Summarize(ctx context.Context, threadID string, keepLastN int, summary string) error
}

// NewPreprocessor wires the extractor registry, the two auxiliary models
// (artifact-intent detector, summarizer) and the thread store.
func NewPreprocessor(extractors *ExtractorRegistry, detector, summarizer Model, tokenLimit func(string) int, history ConversationStore) *Preprocessor {
	return &Preprocessor{
		extractors:        extractors,
		detectorModel:     detector,
		summarizerModel:   summarizer,
		summaryTokenLimit: tokenLimit,
		history:           history,
	}
}

// PreprocessResult is what the first stage hands to the agent loop.
type PreprocessResult struct {
	EnrichedMessage  string
	ArtifactRequested bool
}

// Run executes all preprocess steps in order (spec.md §4.5 (1)).
func (p *Preprocessor) Run(ctx context.Context, execCtx *ExecutionContext, userMessage string, files []FileRef) (PreprocessResult, error) {
	extractions := p.extractors.ExtractAll(ctx, files)

	sanitized := p.sanitize(execCtx.Interface, userMessage)

	artifactRequested, err := p.detectArtifactIntent(ctx, execCtx, sanitized)
	if err != nil {
		// Detection is advisory, not safety-critical; degrade to "no" rather
		// than abort the turn.
		artifactRequested = false
	}

	enriched := p.enrichWithAttachments(sanitized, extractions)

	if err := p.maybeSummarize(ctx, execCtx); err != nil {
		return PreprocessResult{}, err
	}

	return PreprocessResult{EnrichedMessage: enriched, ArtifactRequested: artifactRequested}, nil
}

// sanitize strips artifact-request language for Discord-like interfaces
// only; Terminal/IDE-like interfaces pass through unchanged (spec.md §4.5).
func (p *Preprocessor) sanitize(iface OutputInterface, message string) string {
	if iface != InterfaceDiscordLike {
		return message
	}
	lower := strings.ToLower(message)
	result := message
	for _, phrase := range artifactLanguagePattern {
		idx := strings.Index(lower, phrase)
		if idx == -1 {
			continue
		}
		result = result[:idx] + result[idx+len(phrase):]
		lower = strings.ToLower(result)
	}
	return strings.TrimSpace(result)
}

// detectArtifactIntent asks a small model a YES/NO question (spec.md §4.5).
func (p *Preprocessor) detectArtifactIntent(ctx context.Context, execCtx *ExecutionContext, message string) (bool, error) {
	prompt := fmt.Sprintf(
		"Does the user want a downloadable file as output? Answer only YES or NO.\n\nMessage: %s",
		message,
	)
	text, _, err := SingleShot(ctx, p.detectorModel, GenerateRequest{
		ModelName:   execCtx.Resolved.ArtifactDetectionModel,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(text)), "YES"), nil
}

// enrichWithAttachments appends extracted file content in the structured
// block format spec.md §4.5 prescribes.
func (p *Preprocessor) enrichWithAttachments(message string, extractions []Extraction) string {
	if len(extractions) == 0 {
		return message
	}
	var b strings.Builder
	b.WriteString(message)
	for _, e := range extractions {
		fmt.Fprintf(&b, "\n\n[Attached file: %s (%s)] Content: %s", e.File.Name, e.File.MIME, e.Text)
	}
	return b.String()
}

// maybeSummarize collapses all but the last 5 messages into a synthetic
// system summary once accumulated context tokens reach the user's
// threshold (spec.md §4.5: "inclusive (≥ threshold)").
func (p *Preprocessor) maybeSummarize(ctx context.Context, execCtx *ExecutionContext) error {
	if p.history == nil {
		return nil
	}
	tokens, err := p.history.RecentTokenCount(ctx, execCtx.ThreadID)
	if err != nil {
		return err
	}
	threshold := p.summaryTokenLimit(execCtx.UserID)
	if tokens < threshold {
		return nil
	}

	const keepLastN = 5
	summary, _, err := SingleShot(ctx, p.summarizerModel, GenerateRequest{
		ModelName:   execCtx.Resolved.SummarizationModel,
		Temperature: 0.3,
		Messages: []Message{{
			Role:    RoleUser,
			Content: "Summarize the conversation so far in a few sentences, preserving key facts and decisions.",
		}},
	})
	if err != nil {
		return err
	}
	return p.history.Summarize(ctx, execCtx.ThreadID, keepLastN, summary)
}
