package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"

	"taskboard/internal/config"
	"taskboard/internal/logger"
	appMiddleware "taskboard/internal/middleware"
	"taskboard/internal/server"
	"taskboard/internal/tasks"
)

const shutdownTimeout = 15 * time.Second

// Здесь только:
// - создание зависимостей;
// - настройка middleware;
// - запуск HTTP-сервера.
func main() {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "task-server",
		Short:         "HTTP API доски задач",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", os.Getenv("TASKBOARD_CONFIG"), "path to YAML config")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "task-server:", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	log := logger.New("task-server", cfg.LogLevel, os.Stdout)

	db, err := server.OpenSQLite(cfg.Store.SQLitePath)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	// Пользователи живут в SQLite всегда, задачи выбираются по store.driver.
	store, err := server.NewTaskStore(cfg.Store, db)
	if err != nil {
		return errors.Join(err, sqlDB.Close())
	}
	authSvc, err := server.NewAuthService(cfg.Auth, db)
	if err != nil {
		return errors.Join(err, sqlDB.Close())
	}

	router := server.NewRouter(server.Deps{
		Tasks:          tasks.NewService(store),
		Auth:           authSvc,
		Metrics:        appMiddleware.NewMetrics(),
		Log:            log,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).
			WithField("store", cfg.Store.Driver).
			Info("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				log.Info("graceful shutdown initiated")
				// База закрывается только после того, как запросы дожили.
				return errors.Join(srv.Shutdown(ctx), sqlDB.Close())
			},
		},
	)

	select {
	case err := <-serveErr:
		log.WithError(err).Error("server start error")
		return errors.Join(fmt.Errorf("listen %s: %w", cfg.HTTP.Addr, err), sqlDB.Close())
	case exitCode := <-wait:
		log.WithField("code", exitCode).Info("server stopped")
		if exitCode != 0 {
			return fmt.Errorf("shutdown finished with code %d", exitCode)
		}
		return nil
	}
}
