package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/api/handlers"
	appMiddleware "github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/api/middlewares"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/config"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/analysis"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/pipeline"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/progress"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *zap.SugaredLogger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db core.DbClient, obj core.ObjectClient, pipe *pipeline.Pipeline, hub *progress.Hub, orchestrator *analysis.Orchestrator, logger *zap.Logger) *Server {
	docHandler := handlers.NewDocumentHandler(db, obj, pipe, hub, cfg, logger.Sugar())
	analysisHandler := handlers.NewAnalysisHandler(db, orchestrator, logger.Sugar())
	templateHandler := handlers.NewTemplateHandler(db, logger.Sugar())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(appMiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","version":"1.0.0"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/upload", docHandler.Upload)
		api.Get("/progress/{id}", docHandler.StreamProgress)
		api.Get("/documents", docHandler.List)
		api.Get("/documents/{id}", docHandler.Get)
		api.Delete("/documents/{id}", docHandler.Delete)

		api.Get("/prompt-templates", templateHandler.List)
		api.Post("/prompt-templates", templateHandler.Create)
		api.Get("/prompt-templates/{id}", templateHandler.Get)
		api.Put("/prompt-templates/{id}", templateHandler.Update)
		api.Delete("/prompt-templates/{id}", templateHandler.Delete)
		api.Post("/init-default-templates", templateHandler.InitDefaults)

		api.Post("/analyze", analysisHandler.Analyze)
		api.Get("/analyses", analysisHandler.List)
		api.Get("/analyses/{id}", analysisHandler.Get)
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
		// No WriteTimeout: the progress stream holds its connection
		// open until a terminal event or client disconnect.
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: httpSrv, logger: logger.Sugar()}
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
