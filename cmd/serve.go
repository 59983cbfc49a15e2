package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	config "task-timer.com/task-timer/internal/configs"
	httpapi "task-timer.com/task-timer/internal/http"
	repository "task-timer.com/task-timer/internal/repositories"
	"task-timer.com/task-timer/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Starts the task timer HTTP API and the running-task reconciler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

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

		guard := services.NewConcurrencyGuard(taskRepo, devices, cfg.StorageRetryAttempts)
		taskService := services.NewTaskService(taskRepo, runs, devices, cfg.StorageRetryAttempts)
		reconciler := services.NewReconciler(taskRepo, runs, cfg.ReconcileInterval())

		e := echo.New()
		e.HideBanner = true

		handler := httpapi.NewHandler(taskService, runs, guard)
		httpapi.Register(e, handler, cfg.RateLimit)

		go func() {
			log.Printf("HTTP server listening on %s", cfg.AppURL)
			if err := e.Start(cfg.AppURL); err != nil {
				log.Printf("server stopped: %v", err)
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()

		_ = e.Shutdown(shutdownCtx)
		reconciler.Shutdown(shutdownCtx)

		log.Println("HTTP server and reconciler shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
