// Command nexusd is the orchestrator's composition root: it wires the
// profile registry, VRAM orchestrator, request queue and worker pool,
// router/preference resolver, execution pipeline, session hub, health
// loops, and the HTTP/WS/SSE API into one running process.
//
// Grounded on test/e2e/harness.go's NewTestApp — the teacher's own
// complete construction sequence (database → event infra → domain
// services → executor → worker pool → HTTP server, each optional
// dependency wired with a Set* call, ValidateWiring() before serving).
// cmd/tarsy/main.go is not used as a model here: it is a stale,
// partially-wired placeholder (gin, hardcoded phase marker, commented-out
// service references) that predates the teacher's real pkg/api server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexuscore/nexus/internal/api"
	nexusconfig "github.com/nexuscore/nexus/internal/config"
	"github.com/nexuscore/nexus/internal/healthloop"
	"github.com/nexuscore/nexus/internal/hub"
	"github.com/nexuscore/nexus/internal/llmclient"
	"github.com/nexuscore/nexus/internal/pipeline"
	"github.com/nexuscore/nexus/internal/profile"
	"github.com/nexuscore/nexus/internal/queue"
	"github.com/nexuscore/nexus/internal/router"
	"github.com/nexuscore/nexus/internal/store"
	"github.com/nexuscore/nexus/internal/version"
	"github.com/nexuscore/nexus/internal/vram"
	"github.com/nexuscore/nexus/internal/vram/backend"
)

func main() {
	envPath := flag.String("env-file", os.Getenv("ENV_FILE"), "path to a .env file (optional)")
	flag.Parse()

	if err := run(*envPath); err != nil {
		slog.Error("nexusd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(envPath string) error {
	slog.Info("starting", "version", version.Full())

	cfg, err := nexusconfig.Load(envPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Persistence.
	st, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	users := store.NewUserRepository(st)
	threads := store.NewThreadRepository(st)
	metricsRepo := store.NewMetricsRepository(st)
	reqStatus := store.NewRequestStatusRepository(st)
	artifacts := store.NewArtifactRepository(st, os.Getenv("TEMP_ARTIFACT_DIR"))

	// 2. Profile registry.
	profiles, err := loadProfiles(cfg)
	if err != nil {
		return err
	}

	// 3. LLM backend transport, VRAM orchestrator, and the recovery
	// controller that switches profiles when a CRITICAL model's crash
	// circuit breaker trips.
	llm, err := llmclient.New(cfg.LLMBackendAddr)
	if err != nil {
		return err
	}
	defer llm.Close()

	composite := backend.NewComposite()
	composite.Register("ollama", backend.NewOllamaManager(cfg.OllamaHost))
	if cfg.SGLangEndpoint != "" {
		composite.Register("sglang", backend.NewOpenAICompatManager(cfg.SGLangEndpoint, ""))
	}

	recovery := vram.NewRecoveryController(profiles, "conservative", cfg.OllamaHost+"/api/tags", 5*time.Second)
	recovery.Start(ctx, 10*time.Second)
	defer recovery.Stop()

	orch := vram.New(vram.Config{
		Profiles:       profiles,
		Sampler:        vram.NewHostSampler(),
		Composite:      composite,
		CrashWindow:    cfg.VRAM.CrashWindow,
		CrashThreshold: cfg.VRAM.CrashThreshold,
		Fallback:       recovery,
	})

	externalSync := newExternalModelSyncer(composite, orch, profiles, 30*time.Second)
	externalSync.Start(ctx)
	defer externalSync.Stop()

	// 4. Request queue and worker pool.
	q := queue.New(cfg.Queue)
	visibility := queue.NewVisibilityMonitor(q, 10*time.Second)
	visibility.Start(ctx)
	defer visibility.Stop()

	// 5. Router and preference resolver.
	rt := router.New(newRouterClassifier(llm, profiles))
	resolver := router.NewPreferenceResolver(profiles)

	// 6. Execution pipeline: extraction registry, preprocess/agent-loop/
	// postprocess, tool registry (ask_user is the one concretely
	// implemented tool in this deployment; additional tools register
	// into the same ToolRegistry before NewAgentLoop is built).
	extractorImage := pipeline.ImageOCRExtractor{Engine: pipeline.NewHTTPOCREngine(getEnv("OCR_ENDPOINT", "http://localhost:8500"))}
	extractorPDF := pipeline.PDFExtractor{Parser: pipeline.NewHTTPPDFParser(getEnv("PDF_ENDPOINT", "http://localhost:8501"))}
	extractors := pipeline.NewExtractorRegistry(extractorImage, extractorPDF, pipeline.DirectReadExtractor{})

	tools := pipeline.NewToolRegistry()
	tools.Register(pipeline.NewAskUserTool())

	pre := pipeline.NewPreprocessor(extractors, llm, llm, func(string) int { return 4000 }, threads)
	loop := pipeline.NewAgentLoop(llm, tools)
	post := pipeline.NewPostprocessor(llm, artifacts)
	pl := pipeline.New(pre, loop, post)

	// 7. Session Hub.
	h := hub.New()

	// 8. Health loops: dependency checker, metrics writer, log cleanup.
	checker := healthloop.NewChecker(cfg.Health, healthloop.LogAlertSink{})
	checker.Register("ollama", httpProbe(cfg.OllamaHost+"/api/tags"))
	if cfg.SGLangEndpoint != "" {
		checker.Register("sglang", httpProbe(cfg.SGLangEndpoint+"/health"))
	}
	checker.Start(ctx)
	defer checker.Stop()

	metricsWriter := healthloop.NewMetricsWriter(cfg.Metrics, healthloop.HostSystemMetrics{}, checker, metricsRepo)
	metricsWriter.Start(ctx)
	defer metricsWriter.Stop()

	logCleaner := healthloop.NewLogCleaner(cfg.LogCleanup)
	logCleaner.Start(ctx)
	defer logCleaner.Stop()

	// 9. Turn executor and worker pool.
	auth := api.NewHeaderAuthenticator(users)
	executor := api.NewTurnExecutor(pl, h, rt, resolver, profiles, orch, users, threads, reqStatus)
	pool := queue.NewPool(q, executor, cfg.Pool)
	pool.Start(ctx)
	defer pool.Stop()

	// 10. HTTP/WS/SSE server.
	server := api.NewServer(q, pool, h, orch, profiles, users, reqStatus, auth)
	server.SetHealthChecker(checker)
	server.SetExecutor(executor)
	if err := server.ValidateWiring(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}
	slog.Info("nexusd listening", "addr", ln.Addr().String())

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.StartWithListener(ln) }()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// routerClassifier adapts a pipeline.Model to router.Classifier: it
// resolves the active profile's router_model role on every call so a
// profile switch (fallback or operator hot-swap) changes which model
// classifies turns without any wiring change here.
type routerClassifier struct {
	model    pipeline.Model
	profiles *profile.Registry
}

func newRouterClassifier(model pipeline.Model, profiles *profile.Registry) *routerClassifier {
	return &routerClassifier{model: model, profiles: profiles}
}

func (c *routerClassifier) Classify(ctx context.Context, userMessage string, temperature float64) (string, error) {
	modelID, _ := c.profiles.Active().ModelForRole(profile.RoleRouter)
	text, _, err := pipeline.SingleShot(ctx, c.model, pipeline.GenerateRequest{
		ModelName: modelID,
		Messages: []pipeline.Message{
			{Role: pipeline.RoleSystem, Content: "Classify the user's message into exactly one route: MATH, SIMPLE_CODE, COMPLEX_CODE, REASONING, RESEARCH, or SELF_HANDLE. Reply with only the route name."},
			{Role: pipeline.RoleUser, Content: userMessage},
		},
		Temperature: temperature,
		KeepAlive:   30,
	})
	return text, err
}

func loadProfiles(cfg *nexusconfig.Config) (*profile.Registry, error) {
	defs, err := profile.LoadDir(cfg.ProfileDir)
	if err != nil {
		return nil, err
	}
	return profile.NewRegistry(defs, cfg.ActiveProfile, profile.DefaultCapabilities())
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// httpProbe builds a healthloop.Probe hitting url and treating any 2xx
// response as healthy, mirroring the backend managers' own Health checks.
func httpProbe(url string) healthloop.Probe {
	return probeFunc(func(ctx context.Context) (bool, int, int64, error) {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false, 0, 0, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false, 0, time.Since(start).Milliseconds(), err
		}
		defer resp.Body.Close()
		return resp.StatusCode < 300, resp.StatusCode, time.Since(start).Milliseconds(), nil
	})
}

type probeFunc func(ctx context.Context) (bool, int, int64, error)

func (f probeFunc) Check(ctx context.Context) (bool, int, int64, error) { return f(ctx) }

// externalModelSyncer periodically reconciles models a backend reports as
// resident (e.g. loaded by an operator running `ollama run` directly, or
// preloaded outside the orchestrator) into the VRAM orchestrator's own
// state, via backend.Composite.ListExternal + vram.Orchestrator.
// RegisterExternal (spec.md §4.2.3 "externally loaded" models). Shaped
// after healthloop.LogCleaner's Start/Stop/loop.
type externalModelSyncer struct {
	composite *backend.Composite
	orch      *vram.Orchestrator
	profiles  *profile.Registry
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func newExternalModelSyncer(c *backend.Composite, o *vram.Orchestrator, p *profile.Registry, interval time.Duration) *externalModelSyncer {
	return &externalModelSyncer{composite: c, orch: o, profiles: p, interval: interval}
}

func (s *externalModelSyncer) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

func (s *externalModelSyncer) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *externalModelSyncer) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncOnce(ctx)
		}
	}
}

func (s *externalModelSyncer) syncOnce(ctx context.Context) {
	for backendType, modelIDs := range s.composite.ListExternal(ctx) {
		for _, modelID := range modelIDs {
			sizeGB := s.profiles.Capability(modelID).VRAMSizeGB
			s.orch.RegisterExternal(modelID, backendType, sizeGB)
		}
	}
}
