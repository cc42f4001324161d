package pipeline

import (
	"context"
)

// Pipeline runs one full turn: preprocess, agent tool loop, postprocess
// (spec.md §4.5).
type Pipeline struct {
	pre  *Preprocessor
	loop *AgentLoop
	post *Postprocessor
}

// New wires the three stages into a single per-turn pipeline.
func New(pre *Preprocessor, loop *AgentLoop, post *Postprocessor) *Pipeline {
	return &Pipeline{pre: pre, loop: loop, post: post}
}

// SystemPromptFor composes the route-specific system prompt. Injected as
// a function rather than hardcoded so callers can source layered prompt
// files from config/profile data.
type SystemPromptFor func(execCtx *ExecutionContext, artifactRequested bool) string

// Run executes a full turn end to end.
func (p *Pipeline) Run(ctx context.Context, execCtx *ExecutionContext, userMessage string, files []FileRef, systemPromptFor SystemPromptFor) (Result, error) {
	pre, err := p.pre.Run(ctx, execCtx, userMessage, files)
	if err != nil {
		return Result{}, err
	}

	systemPrompt := systemPromptFor(execCtx, pre.ArtifactRequested)

	result, err := p.loop.Run(ctx, execCtx, systemPrompt, pre.EnrichedMessage)
	if err != nil {
		return Result{}, err
	}
	if result.Cancelled {
		return result, nil
	}

	artifacts, chunks := p.post.Run(ctx, execCtx, pre.ArtifactRequested, result.Text)
	result.Artifacts = artifacts
	result.Chunks = chunks
	execCtx.ArtifactsCreated = append(execCtx.ArtifactsCreated, artifacts...)
	return result, nil
}
