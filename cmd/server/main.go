package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"legal_case_ai_go/config"
	"legal_case_ai_go/db"
	"legal_case_ai_go/handlers"
	"legal_case_ai_go/models"
	"legal_case_ai_go/services"
	"legal_case_ai_go/services/ai"
)

func main() {
	cfg := config.Load()
	config.InitLogging(cfg.Environment)
	defer zap.S().Sync()

	if cfg.ChromePath != "" {
		os.Setenv("CHROME_PATH", cfg.ChromePath)
	}

	if err := db.Initialize(cfg.DBPath, cfg.TursoDatabaseURL, cfg.TursoAuthToken, cfg.Environment); err != nil {
		zap.S().Fatalw("failed to initialize database", "error", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(&models.Case{}, &models.Analysis{}); err != nil {
		zap.S().Fatalw("failed to run migrations", "error", err)
	}

	services.InitializeStorage(cfg)

	handlers.AnalysisGateway = buildGateway(cfg)

	// Completed analyses keep the case counters in step.
	services.OnAnalysisCompleted(services.HandleAnalysisCompleted)

	scheduler, err := services.StartReconciliationJob(db.DB)
	if err != nil {
		zap.S().Fatalw("failed to start reconciliation job", "error", err)
	}
	defer scheduler.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			zap.S().Infow("request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	registerRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.ServerPort); err != nil {
			zap.S().Infow("server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		zap.S().Errorw("server shutdown failed", "error", err)
	}
}

// buildGateway wires one gateway per provider that has an API key. Providers
// without implementations stay absent so the router reports them as
// unsupported.
func buildGateway(cfg *config.Config) ai.Gateway {
	providers := map[string]ai.Gateway{}
	if cfg.OpenAIAPIKey != "" {
		providers[models.ProviderOpenAI] = ai.NewOpenAIProvider(cfg.OpenAIAPIKey)
	}
	if cfg.GroqAPIKey != "" {
		providers[models.ProviderGroq] = ai.NewGroqProvider(cfg.GroqAPIKey)
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiProvider(context.Background(), cfg.GeminiAPIKey)
		if err != nil {
			zap.S().Warnw("gemini provider unavailable", "error", err)
		} else {
			providers[models.ProviderGemini] = gemini
		}
	}
	return ai.NewRouter(cfg.AIRequestTimeout, providers)
}

func registerRoutes(e *echo.Echo) {
	api := e.Group("/api")

	cases := api.Group("/cases")
	cases.POST("", handlers.CreateCaseHandler)
	cases.GET("", handlers.GetCasesHandler)
	cases.GET("/stats/overview", handlers.GetCaseStatsHandler)
	cases.GET("/search/:query", handlers.SearchCasesHandler)
	cases.GET("/export", handlers.ExportCasesHandler)
	cases.GET("/:id", handlers.GetCaseHandler)
	cases.GET("/:id/public", handlers.GetPublicCaseHandler)
	cases.PUT("/:id", handlers.UpdateCaseHandler)
	cases.DELETE("/:id", handlers.DeleteCaseHandler)
	cases.POST("/:id/timeline", handlers.AddTimelineEventHandler)
	cases.POST("/:id/documents", handlers.AddDocumentHandler)

	analysis := api.Group("/analysis")
	analysis.POST("", handlers.RunAnalysisHandler)
	analysis.POST("/batch", handlers.RunBatchAnalysisHandler)
	analysis.GET("/stats/overview", handlers.GetAnalysisStatsHandler)
	analysis.GET("/analytics", handlers.GetAnalyticsHandler)
	analysis.GET("/performance/:provider", handlers.GetProviderPerformanceHandler)
	analysis.GET("/case/:caseId", handlers.GetCaseAnalysesHandler)
	analysis.GET("/:id", handlers.GetAnalysisHandler)
	analysis.PUT("/:id", handlers.UpdateAnalysisHandler)
	analysis.DELETE("/:id", handlers.DeleteAnalysisHandler)
	analysis.POST("/:id/feedback", handlers.AddFeedbackHandler)
	analysis.POST("/:id/review", handlers.MarkReviewedHandler)
	analysis.GET("/:id/report", handlers.GetAnalysisReportHandler)
}
