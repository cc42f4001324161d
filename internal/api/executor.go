package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/nexus/internal/errs"
	"github.com/nexuscore/nexus/internal/hub"
	"github.com/nexuscore/nexus/internal/pipeline"
	"github.com/nexuscore/nexus/internal/profile"
	"github.com/nexuscore/nexus/internal/queue"
	"github.com/nexuscore/nexus/internal/router"
	"github.com/nexuscore/nexus/internal/store"
	"github.com/nexuscore/nexus/internal/vram"
)

// defaultMaxIter and defaultIterTimeout bound the agent loop for every
// request; queue.Request carries no per-request value for either
// (spec.md §4.5).
const (
	defaultMaxIter     = 8
	defaultIterTimeout = 60 * time.Second
)

// TurnExecutor implements queue.Executor: it is the single place that
// turns a dequeued QueuedRequest into a classified, preference-resolved,
// VRAM-admitted pipeline run, streaming incremental events back through
// the Session Hub. Grounded on pkg/queue/chat_executor.go's role as the
// glue between the worker pool and the per-turn execution path.
type TurnExecutor struct {
	pipeline  *pipeline.Pipeline
	hub       *hub.Hub
	router    *router.Router
	resolver  *router.PreferenceResolver
	profiles  *profile.Registry
	orch      *vram.Orchestrator
	users     *store.UserRepository
	threads   *store.ThreadRepository
	reqStatus *store.RequestStatusRepository
}

// NewTurnExecutor wires every collaborator a turn needs.
func NewTurnExecutor(
	p *pipeline.Pipeline,
	h *hub.Hub,
	rt *router.Router,
	resolver *router.PreferenceResolver,
	profiles *profile.Registry,
	orch *vram.Orchestrator,
	users *store.UserRepository,
	threads *store.ThreadRepository,
	reqStatus *store.RequestStatusRepository,
) *TurnExecutor {
	return &TurnExecutor{
		pipeline: p, hub: h, router: rt, resolver: resolver,
		profiles: profiles, orch: orch, users: users, threads: threads, reqStatus: reqStatus,
	}
}

// Execute implements queue.Executor.
func (e *TurnExecutor) Execute(ctx context.Context, req *queue.Request) (result *queue.Result, err error) {
	e.recordStatus(ctx, req, "processing", nil)
	defer func() {
		if err != nil {
			msg := err.Error()
			e.recordStatus(ctx, req, "failed", &msg)
		} else {
			e.recordStatus(ctx, req, "completed", nil)
		}
	}()

	user, err := e.users.Get(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.TokensRemaining() <= 0 {
		return nil, errs.New(errs.KindTokenBudgetExceeded, "weekly token budget exhausted", nil)
	}

	classification, err := e.router.Classify(ctx, req.RawMessage)
	if err != nil {
		return nil, fmt.Errorf("classify turn: %w", err)
	}

	resolved := e.resolver.Resolve(router.RequestOverride{
		Model:           req.ModelOverride,
		Temperature:     req.TemperatureOverride,
		ThinkingEnabled: req.ThinkingOverride,
	}, router.UserPreference{
		PreferredModel:  user.Preferences.PreferredModel,
		Temperature:     user.Preferences.Temperature,
		ThinkingEnabled: user.Preferences.ThinkingEnabled,
	}, classification.Route, 0.7)

	if err := e.orch.EnsureLoaded(ctx, resolved.Model, nil); err != nil {
		return nil, fmt.Errorf("ensure model resident: %w", err)
	}

	clientID := req.BotID
	sink := &hubStreamSink{hub: e.hub, clientID: clientID, requestID: req.ID}

	execCtx := &pipeline.ExecutionContext{
		RequestID:   req.ID,
		ThreadID:    req.ThreadID,
		ChannelID:   req.ChannelID,
		UserID:      req.UserID,
		Interface:   outputInterface(req.Interface),
		Route:       classification.Route,
		Resolved:    resolved,
		Sink:        sink,
		MaxIter:     defaultMaxIter,
		IterTimeout: defaultIterTimeout,
	}
	if clientID != "" {
		execCtx.AskUser = func(ctx context.Context, requestID uuid.UUID, question string, options []string, timeout time.Duration) (string, error) {
			return e.hub.AskUser(ctx, clientID, requestID, question, options, timeout)
		}
	}

	files := make([]pipeline.FileRef, 0, len(req.FileRefs))
	for _, f := range req.FileRefs {
		files = append(files, pipeline.FileRef{Name: f.Filename, MIME: f.MIMEType, Path: f.StoragePath})
	}

	if err := e.threads.Append(ctx, store.ThreadMessage{
		ThreadID: req.ThreadID, Role: "user", Content: req.RawMessage,
	}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	turnResult, err := e.pipeline.Run(ctx, execCtx, req.RawMessage, files, e.systemPromptFor)
	if err != nil {
		return nil, err
	}
	if turnResult.Cancelled {
		return nil, errs.ErrCancelled
	}

	modelUsed := resolved.Model
	if err := e.threads.Append(ctx, store.ThreadMessage{
		ThreadID: req.ThreadID, Role: "assistant", Content: turnResult.Text,
		TokenCount: turnResult.TokensUsed, ModelUsed: &modelUsed,
	}); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	if err := e.users.ChargeTokens(ctx, req.UserID, turnResult.TokensUsed, nextMondayUTC(time.Now())); err != nil {
		return nil, fmt.Errorf("charge tokens: %w", err)
	}

	if clientID != "" {
		_ = e.hub.SendToClient(clientID, hub.Event{
			Type: hub.EventResult, RequestID: req.ID, Text: turnResult.Text,
			TokensUsed: turnResult.TokensUsed, Artifacts: turnResult.Artifacts,
		})
	}

	return &queue.Result{Text: turnResult.Text, TokensUsed: turnResult.TokensUsed, ArtifactIDs: turnResult.Artifacts}, nil
}

// recordStatus mirrors the in-memory Queue's state transition to durable
// storage (spec.md §6) so GET /status/{request_id} survives a restart.
// Best-effort: a storage error here must not fail the turn itself.
func (e *TurnExecutor) recordStatus(ctx context.Context, req *queue.Request, state string, errMsg *string) {
	if e.reqStatus == nil {
		return
	}
	row := store.RequestStatusRow{
		RequestID: req.ID, UserID: req.UserID, ThreadID: req.ThreadID,
		State: state, Attempt: req.Attempt, EnqueuedAt: req.EnqueuedAt, ErrorMessage: errMsg,
	}
	if state == "completed" || state == "failed" {
		now := time.Now()
		row.CompletedAt = &now
	}
	if err := e.reqStatus.Upsert(ctx, row); err != nil {
		slog.Warn("request status mirror failed", "request_id", req.ID, "error", err)
	}
}

// systemPromptFor composes the route-specific system prompt from a
// small set of static layers. Per-profile prompt authoring (config
// files, per-role overrides) belongs to the deployment's profile data,
// not this executor; here the layers are kept deliberately minimal so
// every route at least gets role framing, format rules, and the
// artifact-protocol layer when needed (spec.md §4.5).
func (e *TurnExecutor) systemPromptFor(execCtx *pipeline.ExecutionContext, artifactRequested bool) string {
	layers := pipeline.PromptLayers{
		Role:              routeRoleDescription(execCtx.Route),
		CriticalProtocols: "When asked to produce a file, wrap its full content in a single fenced code block tagged with its language.",
		RoutePrompt:       routePrompt(execCtx.Route),
		FormatRules:       formatRulesFor(execCtx.Interface),
		UserBasePrompt:    "",
	}
	placeholders := pipeline.DefaultPlaceholders("Use tools only when the user's request requires information or action you cannot provide directly. Call ask_user when a request is ambiguous enough that guessing risks a wrong answer.")
	return pipeline.ComposeSystemPrompt(layers, artifactRequested, placeholders)
}

func routeRoleDescription(route router.Route) string {
	switch route {
	case router.RouteMath:
		return "You are a careful, precise mathematical assistant."
	case router.RouteSimpleCode:
		return "You are a pragmatic software engineer handling a small, well-scoped coding task."
	case router.RouteComplexCode:
		return "You are a senior software engineer handling a complex or multi-file coding task."
	case router.RouteResearch:
		return "You are a research assistant synthesizing information from multiple sources."
	default:
		return "You are a helpful, direct assistant."
	}
}

func routePrompt(route router.Route) string {
	switch route {
	case router.RouteMath:
		return "Show your work only when it clarifies the answer; state the final result plainly."
	case router.RouteComplexCode:
		return "Prefer small, verifiable steps; call out any assumption you had to make."
	default:
		return ""
	}
}

func formatRulesFor(iface pipeline.OutputInterface) string {
	if iface == pipeline.InterfaceDiscordLike {
		return "Keep responses concise; this interface truncates long messages into multiple posts."
	}
	return "Long-form answers and full code listings are fine in this interface."
}

func outputInterface(raw string) pipeline.OutputInterface {
	if raw == "discord" {
		return pipeline.InterfaceDiscordLike
	}
	return pipeline.InterfaceTerminalIDELike
}

// nextMondayUTC returns the UTC instant of the next Monday 00:00 after
// now, spec.md §3's weekly token-budget rollover boundary.
func nextMondayUTC(now time.Time) time.Time {
	now = now.UTC()
	daysUntilMonday := (8 - int(now.Weekday())) % 7
	if daysUntilMonday == 0 {
		daysUntilMonday = 7
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return next.AddDate(0, 0, daysUntilMonday)
}

// hubStreamSink adapts the agent loop's pipeline.StreamSink to Session
// Hub events (spec.md §4.6).
type hubStreamSink struct {
	hub       *hub.Hub
	clientID  string
	requestID uuid.UUID
}

func (s *hubStreamSink) Token(text string) {
	if s.clientID == "" {
		return
	}
	_ = s.hub.SendToClient(s.clientID, hub.Event{Type: hub.EventToken, RequestID: s.requestID, Text: text})
}

func (s *hubStreamSink) ToolCallStarted(name string, args map[string]any) {
	if s.clientID == "" {
		return
	}
	_ = s.hub.SendToClient(s.clientID, hub.Event{Type: hub.EventToolCall, RequestID: s.requestID, Name: name, Args: args})
}

func (s *hubStreamSink) ToolCallFinished(name string, success bool) {
	if s.clientID == "" {
		return
	}
	_ = s.hub.SendToClient(s.clientID, hub.Event{Type: hub.EventToolResult, RequestID: s.requestID, Name: name, Success: success})
}

func (s *hubStreamSink) StatusRetrying() {
	if s.clientID == "" {
		return
	}
	_ = s.hub.SendToClient(s.clientID, hub.Event{Type: hub.EventEarlyStatus, RequestID: s.requestID, Content: "retrying"})
}
