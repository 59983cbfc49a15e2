package cmd

import (
	"context"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	config "task-timer.com/task-timer/internal/configs"
	repository "task-timer.com/task-timer/internal/repositories"
	"task-timer.com/task-timer/internal/services"
)

func loadConfig() config.Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment variables")
	}

	cfg := config.Load()
	config.SetupLogging(cfg)
	return cfg
}

// migrate creates the schema. A database written before the running index
// existed may hold owners with several running tasks; those are reconciled
// first so the index can be built.
func migrate(ctx context.Context, repo *repository.TaskRepository, runs *services.RunStateController) error {
	err := repo.Migrate(ctx)
	if err == nil {
		return nil
	}
	log.WithError(err).Warn("running index could not be created, reconciling existing rows")

	reconciler := services.NewReconciler(repo, runs, 0)
	if _, err := reconciler.RunOnce(ctx); err != nil {
		return err
	}
	return repo.EnsureRunningIndex(ctx)
}
