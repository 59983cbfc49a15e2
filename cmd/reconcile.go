package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	config "task-timer.com/task-timer/internal/configs"
	repository "task-timer.com/task-timer/internal/repositories"
	"task-timer.com/task-timer/internal/services"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Pause extra running tasks and exit",
	Long:  "Runs a single reconcile pass, leaving at most one running task per owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()

		database := config.New(cfg.DatabaseDSN)
		taskRepo := repository.NewTaskRepository(database)

		devices, redisClient := config.NewDeviceTracker(cfg)
		if redisClient != nil {
			defer redisClient.Close()
		}

		runs := services.NewRunStateController(taskRepo, devices, cfg.StorageRetryAttempts)
		if err := migrate(ctx, taskRepo, runs); err != nil {
			return err
		}

		paused, err := services.NewReconciler(taskRepo, runs, 0).RunOnce(ctx)
		if err != nil {
			return err
		}

		log.WithField("paused", paused).Info("reconcile pass finished")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
