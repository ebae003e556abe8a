package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sweetpotato0/tripflow/config"
	geminidescriber "github.com/sweetpotato0/tripflow/contrib/describer/gemini"
	openaidescriber "github.com/sweetpotato0/tripflow/contrib/describer/openai"
	"github.com/sweetpotato0/tripflow/contrib/extractor/instagram"
	"github.com/sweetpotato0/tripflow/contrib/extractor/web"
	claudeplanner "github.com/sweetpotato0/tripflow/contrib/planner/claude"
	openaiplanner "github.com/sweetpotato0/tripflow/contrib/planner/openai"
	"github.com/sweetpotato0/tripflow/describer"
	"github.com/sweetpotato0/tripflow/extractor"
	"github.com/sweetpotato0/tripflow/middleware"
	"github.com/sweetpotato0/tripflow/orchestrator"
	"github.com/sweetpotato0/tripflow/pkg/logging"
	"github.com/sweetpotato0/tripflow/pkg/telemetry"
	"github.com/sweetpotato0/tripflow/planner"
	"github.com/sweetpotato0/tripflow/server"
	"github.com/sweetpotato0/tripflow/session"
	"github.com/sweetpotato0/tripflow/session/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.Logger()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "tripflow",
		Environment: os.Getenv("TRIPFLOW_ENV"),
	})
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(context.Background())

	sessionStore, err := buildStore(cfg)
	if err != nil {
		logger.Error("session store init failed", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	sessions := session.NewManager(session.WithStore(sessionStore))

	// One connection pool for every outbound HTTP collaborator.
	httpClient := &http.Client{Timeout: 60 * time.Second}

	ext := extractor.NewRouter(web.New(web.WithHTTPClient(httpClient))).
		Route(instagram.Handles, instagram.New(cfg.ApifyToken, instagram.WithHTTPClient(httpClient)))

	desc, err := buildDescriber(cfg, httpClient)
	if err != nil {
		logger.Error("describer init failed", "provider", cfg.DescriberProvider, "error", err)
		os.Exit(1)
	}

	synth, resp, err := buildPlanner(cfg)
	if err != nil {
		logger.Error("planner init failed", "provider", cfg.PlannerProvider, "error", err)
		os.Exit(1)
	}

	chain := middleware.NewChain(
		middleware.NewRecoverer(logger),
		middleware.NewTurnLogger(logger),
		middleware.NewInputValidator(cfg.MaxInputBytes),
	)

	orch := orchestrator.New(
		orchestrator.WithSessions(sessions),
		orchestrator.WithExtractor(ext),
		orchestrator.WithAnalyzer(orchestrator.NewAnalyzer(desc, cfg.FanoutConcurrency, cfg.DescribeTimeout)),
		orchestrator.WithSynthesizer(synth),
		orchestrator.WithResponder(resp),
		orchestrator.WithMiddleware(chain),
		orchestrator.WithExtractionLimit(cfg.ExtractionLimit),
	)

	go sweepIdleSessions(ctx, sessions, cfg.SessionMaxIdle)

	srv := server.New(cfg.Addr, orch)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}

func buildStore(cfg *config.Config) (session.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		return store.NewRedisStore(&store.RedisConfig{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
			TTL:  cfg.SessionMaxIdle,
		}), nil
	case config.StorePostgres:
		return store.NewPostgresStore(&store.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			DBName:   cfg.PostgresDB,
			SSLMode:  "disable",
		})
	case config.StoreMongo:
		return store.NewMongoStore(&store.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDB,
			Collection: "sessions",
		})
	default:
		return store.NewInMemoryStore(), nil
	}
}

func buildDescriber(cfg *config.Config, httpClient *http.Client) (describer.Describer, error) {
	switch cfg.DescriberProvider {
	case config.ProviderGemini:
		gcfg := geminidescriber.DefaultConfig(cfg.GeminiAPIKey)
		gcfg.Model = cfg.GeminiModel
		return geminidescriber.New(gcfg, geminidescriber.WithHTTPClient(httpClient)), nil
	default:
		ocfg := openaidescriber.DefaultConfig()
		ocfg.APIKey = cfg.OpenAIAPIKey
		ocfg.Model = cfg.OpenAIModel
		return openaidescriber.New(ocfg), nil
	}
}

func buildPlanner(cfg *config.Config) (planner.Synthesizer, planner.Responder, error) {
	switch cfg.PlannerProvider {
	case config.ProviderClaude:
		ccfg := claudeplanner.DefaultConfig(cfg.AnthropicAPIKey)
		ccfg.Model = cfg.ClaudeModel
		p := claudeplanner.New(ccfg)
		return p, p, nil
	default:
		ocfg := openaiplanner.DefaultConfig()
		ocfg.APIKey = cfg.OpenAIAPIKey
		ocfg.Model = cfg.OpenAIModel
		p, err := openaiplanner.New(ocfg)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	}
}

func sweepIdleSessions(ctx context.Context, sessions *session.Manager, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	logger := logging.WithComponent("session_sweeper")
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sessions.CleanupIdle(ctx, maxIdle)
			if err != nil {
				logger.Warn("idle session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("idle sessions removed", "count", removed)
			}
		}
	}
}
