package main

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smart-tasks-backend/internal/ai"
	"smart-tasks-backend/internal/analytics"
	"smart-tasks-backend/internal/auth"
	"smart-tasks-backend/internal/config"
	"smart-tasks-backend/internal/dailycontext"
	"smart-tasks-backend/internal/db"
	"smart-tasks-backend/internal/logger"
	"smart-tasks-backend/internal/server"
	"smart-tasks-backend/internal/tasks"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("env-dir")
			app := fx.New(
				fx.Supply(envDir(dir)),
				fx.Provide(
					loadConfig,
					logger.New,
					db.Connect,
					provideTracker,
					provideScorer,
					analytics.NewRecorder,
					tasks.NewService,
					tasks.NewHandlers,
					dailycontext.NewService,
					dailycontext.NewHandlers,
					provideRouter,
					server.NewHTTPServer,
				),
				fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
					return &fxevent.ZapLogger{Logger: log.Named("fx")}
				}),
				fx.Invoke(server.Run),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

type envDir string

func loadConfig(dir envDir) (*config.Config, error) {
	return config.Load(string(dir))
}

func provideTracker(cfg *config.Config, gdb *gorm.DB, log *zap.Logger) (*ai.Tracker, error) {
	return newTracker(context.Background(), cfg, gdb, log)
}

// newTracker registers the configured provider and returns a tracker that
// attributes requests to it.
func newTracker(ctx context.Context, cfg *config.Config, gdb *gorm.DB, log *zap.Logger) (*ai.Tracker, error) {
	p, err := ai.EnsureProvider(ctx, gdb, ai.Provider{
		Name:                       cfg.AIProvider,
		Description:                "configured scoring provider",
		APIEndpoint:                cfg.AIEndpoint,
		IsActive:                   true,
		SupportsContextAnalysis:    true,
		SupportsTaskPrioritization: true,
		SupportsDeadlineSuggestion: true,
		RateLimitPerMinute:         60,
	})
	if err != nil {
		return nil, err
	}
	return ai.NewTracker(gdb, log, p, cfg.AIModel), nil
}

func provideScorer() ai.Scorer {
	return ai.NewMockScorer(time.Now)
}

func provideRouter(cfg *config.Config, gdb *gorm.DB, log *zap.Logger, tr *ai.Tracker, th *tasks.Handlers, ch *dailycontext.Handlers) http.Handler {
	return server.NewRouter(cfg, server.Deps{
		DB:       gdb,
		Log:      log,
		Tokens:   auth.Tokens{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL},
		Tracker:  tr,
		Tasks:    th,
		Contexts: ch,
	})
}
