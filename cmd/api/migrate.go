package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smart-tasks-backend/internal/ai"
	"smart-tasks-backend/internal/analytics"
	"smart-tasks-backend/internal/auth"
	"smart-tasks-backend/internal/config"
	"smart-tasks-backend/internal/dailycontext"
	"smart-tasks-backend/internal/db"
	"smart-tasks-backend/internal/logger"
	"smart-tasks-backend/internal/tasks"
)

func allModels() []any {
	models := []any{&auth.User{}, &analytics.Event{}}
	models = append(models, ai.Models()...)
	models = append(models, tasks.Models()...)
	models = append(models, dailycontext.Models()...)
	return models
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, gdb, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if err := db.Migrate(gdb, allModels()...); err != nil {
				return err
			}
			log.Info("schema migrated", zap.Int("tables", len(allModels())))
			return nil
		},
	}
}

// bootstrap loads config, logger and database for one-shot commands.
func bootstrap(cmd *cobra.Command) (*config.Config, *zap.Logger, *gorm.DB, error) {
	dir, _ := cmd.Flags().GetString("env-dir")
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := logger.New(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	gdb, err := db.Connect(cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, gdb, nil
}
