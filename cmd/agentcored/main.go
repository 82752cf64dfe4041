// Command agentcored runs the Agent Memory Engine, Webhook Trigger
// Pipeline, and Skill Registry as a single process: the Memory Engine is
// exposed for future in-process callers, the webhook gateway listens over
// HTTP, and the Skill Registry index is optionally rebuilt from local
// repositories at startup. The hub client is constructed but not otherwise
// used by this binary.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/owlclaw/agentcore/internal/memory"
	"github.com/owlclaw/agentcore/internal/owlhub"
	"github.com/owlclaw/agentcore/internal/owlhub/statistics"
	"github.com/owlclaw/agentcore/internal/webhook"
	"github.com/owlclaw/agentcore/internal/webhook/notify"
	"github.com/owlclaw/agentcore/internal/webhook/transform"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	memSvc, lifecycle, err := buildMemoryService(cfg.Memory, logger.Named("memory"))
	if err != nil {
		logger.Fatal("failed to build memory service", zap.Error(err))
	}
	_ = memSvc // available to future in-process callers (e.g. an agent runtime)
	if lifecycle != nil && cfg.LifecycleCronSpec != "" {
		if err := lifecycle.Start(cfg.LifecycleCronSpec, func() []memory.Scope { return nil }); err != nil {
			logger.Error("failed to start memory lifecycle sweep", zap.Error(err))
		} else {
			logger.Info("memory lifecycle sweep scheduled", zap.String("cron", cfg.LifecycleCronSpec))
			defer lifecycle.Stop()
		}
	}

	tracker := statistics.NewTracker()
	if cfg.StatisticsDSN != "" {
		if sink, err := statistics.NewMySQLEventStore(cfg.StatisticsDSN); err != nil {
			logger.Error("failed to open statistics MySQL sink", zap.Error(err))
		} else {
			tracker.SetSink(sink)
			logger.Info("statistics persisted to MySQL")
		}
	}

	hub := owlhub.NewHubClient(cfg.Hub)
	if repos := splitRepositories(cfg.SkillRepositories); len(repos) > 0 {
		if err := rebuildSkillIndex(hub, cfg.Hub.IndexURL, repos, tracker, logger.Named("owlhub")); err != nil {
			logger.Error("failed to rebuild skill index", zap.Error(err))
		}
	}

	gateway := buildWebhookGateway(cfg.Webhook, logger.Named("webhook"))

	srv := &http.Server{
		Addr:         cfg.WebhookListenAddr,
		Handler:      gateway,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("starting agentcored",
		zap.String("webhook_addr", cfg.WebhookListenAddr),
		zap.String("hub_index", cfg.Hub.IndexURL),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("webhook gateway server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("webhook gateway shutdown error", zap.Error(err))
	}
}

// buildMemoryService wires an Embedder, fallback TF-IDF embedder, Store, and
// Lifecycle Manager from cfg, following the teacher's env-driven
// Config → concrete-backend wiring idiom (cmd/control-plane/main.go's
// loadConfig). Only the in-memory store and random embedder are reachable
// without external credentials; pgvector/qdrant and a remote embedding
// transport are named wiring points a full deployment supplies.
func buildMemoryService(cfg memory.Config, logger *zap.Logger) (*memory.Service, *memory.LifecycleManager, error) {
	var embedder memory.Embedder = memory.NewRandomEmbedder(cfg.EmbeddingDimensions)
	var tfidf memory.Embedder = memory.NewTFIDFEmbedder(cfg.EmbeddingDimensions)

	var store memory.Store
	switch cfg.VectorBackend {
	case memory.BackendInMemory, "":
		store = memory.NewInMemoryStore(cfg.EmbeddingDimensions)
	case memory.BackendPgVector:
		s, err := memory.NewPgVectorStore(context.Background(), "", cfg.EmbeddingDimensions)
		if err != nil {
			logger.Warn("pgvector backend not configured, falling back to in-memory store", zap.Error(err))
			store = memory.NewInMemoryStore(cfg.EmbeddingDimensions)
		} else {
			store = s
		}
	case memory.BackendQdrant:
		s, err := memory.NewQdrantStore("", cfg.EmbeddingDimensions)
		if err != nil {
			logger.Warn("qdrant backend not configured, falling back to in-memory store", zap.Error(err))
			store = memory.NewInMemoryStore(cfg.EmbeddingDimensions)
		} else {
			store = s
		}
	default:
		store = memory.NewInMemoryStore(cfg.EmbeddingDimensions)
	}

	svcCfg := memory.ServiceConfig{
		EnableTFIDFFallback:   cfg.EnableTFIDFFallback,
		EnableKeywordFallback: cfg.EnableKeywordFallback,
		EnableFileFallback:    cfg.EnableFileFallback,
		FileFallbackPath:      cfg.FileFallbackPath,
		RecallLimitMax:        20,
		CompactionThreshold:   cfg.CompactionThreshold,
	}
	sink := func(ev memory.DegradationEvent) {
		logger.Warn("memory degradation", zap.String("operation", ev.Operation), zap.String("strategy", string(ev.Strategy)), zap.String("reason", ev.Reason))
	}
	svc, err := memory.NewService(embedder, tfidf, store, svcCfg, logger, sink, newFlatFileAppender())
	if err != nil {
		return nil, nil, err
	}

	lifecycle := memory.NewLifecycleManager(store, cfg.MaxEntries, cfg.RetentionDays, logger, func(res memory.MaintenanceResult) {
		logger.Info("lifecycle sweep",
			zap.String("agent_id", res.AgentID),
			zap.String("tenant_id", res.TenantID),
			zap.Int("archived", res.Archived),
			zap.Int("deleted", res.Deleted),
		)
	})
	return svc, lifecycle, nil
}

// buildWebhookGateway wires the Webhook Trigger Pipeline behind an
// http.Handler. Governance is left unconfigured (permit-all) and the
// runtime invoker logs instead of calling an agent, since both are named
// external collaborators (spec §1) this binary does not itself implement.
func buildWebhookGateway(cfg WebhookConfig, logger *zap.Logger) http.Handler {
	store := webhook.NewInMemoryEndpointStore()
	manager := webhook.NewEndpointManager(store, cfg.BaseURL, cfg.TokenBytes)
	validator := webhook.NewRequestValidator(manager)
	transformer := transform.New()
	governance := webhook.NewGovernanceClient(nil, nil, time.Second)
	execution := webhook.NewExecutionTrigger(loggingRuntimeInvoker{logger: logger})
	events := webhook.NewEventLogger(webhook.NewInMemoryEventRepository())
	notifier := notify.NewNotifier()
	monitoring := webhook.NewMonitoringService(nil)

	return webhook.NewGateway(
		manager, validator, transformer, governance, execution, events, monitoring, notifier,
		webhook.DefaultGatewayConfig(), logger,
	)
}

// rebuildSkillIndex crawls repositories and writes a fresh index.json to
// path, mirroring the Skill Registry's "build from source, serve from
// static index" split (§4.14-4.16).
func rebuildSkillIndex(hub *owlhub.HubClient, path string, repositories []string, tracker *statistics.Tracker, logger *zap.Logger) error {
	_ = hub // the index file is consumed lazily by HubClient.loadIndex on next read
	builder := owlhub.NewIndexBuilder(owlhub.NewCrawler(), tracker)
	idx, err := builder.BuildIndex(repositories, statistics.NewGitHubPoller(nil))
	if err != nil {
		return err
	}
	if err := owlhub.WriteIndexFile(path, idx); err != nil {
		return err
	}
	logger.Info("skill index rebuilt", zap.Int("skills", len(idx.Skills)), zap.String("path", path))
	return nil
}
