package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/config"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/analysis"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/cache"
	db "github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/database"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/extractor"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/llm"
	objectclient "github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/object-client"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/pipeline"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/progress"
)

// App wires the persistence, storage, AI and pipeline components
// together and owns their lifecycles.
type App struct {
	DBClient *db.DatabaseClient
	LLM      *llm.GeminiClient
	Pipeline *pipeline.Pipeline
	Hub      *progress.Hub
	Server   *Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	sugar := logger.Sugar()

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(initCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	sugar.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(initCtx, cfg, sugar)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var responseCache core.ResponseCache
	if cfg.RedisURL != "" {
		responseCache, err = cache.NewRedisCache(cfg.RedisURL, sugar)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		sugar.Info("redis response cache ready")
	} else {
		responseCache = cache.NewMemoryCache()
		sugar.Warn("REDIS_URL not set, using in-memory response cache")
	}

	gemini, err := llm.NewGeminiClient(initCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	if cfg.AIAPIKey == "" {
		sugar.Warn("GEMINI_API_KEY not set, analysis requests will fail")
	}

	hub := progress.NewHub(sugar)
	docExtractor := extractor.New(sugar)

	pipe := pipeline.New(dbClient, objClient, docExtractor, hub, sugar)
	pipe.Start(ctx, 1)

	orchestrator := analysis.NewOrchestrator(gemini, responseCache, sugar)

	server := NewServer(cfg, dbClient, objClient, pipe, hub, orchestrator, logger)

	return &App{
		DBClient: dbClient,
		LLM:      gemini,
		Pipeline: pipe,
		Hub:      hub,
		Server:   server,
	}, nil
}

func (a *App) Close() {
	if a.LLM != nil {
		_ = a.LLM.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
