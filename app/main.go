package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/lysyi3m/tweetshelf/app/api"
	"github.com/lysyi3m/tweetshelf/app/auth"
	"github.com/lysyi3m/tweetshelf/app/bookmarks"
	"github.com/lysyi3m/tweetshelf/app/cfg"
	"github.com/lysyi3m/tweetshelf/app/database"
	"github.com/lysyi3m/tweetshelf/app/extract"
	"github.com/lysyi3m/tweetshelf/app/feed"
	"github.com/lysyi3m/tweetshelf/app/fetch"
	"github.com/lysyi3m/tweetshelf/app/media"
	"github.com/lysyi3m/tweetshelf/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg)

	slog.Info("Starting tweetshelf", "version", appCfg.Version, "port", appCfg.Port)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	authenticator, err := auth.Load(appCfg.UsersFile)
	if err != nil {
		slog.Error("Failed to load users", "error", err)
		os.Exit(1)
	}
	if authenticator.Len() == 0 {
		slog.Warn("No users configured, every request will be rejected")
	}

	httpClient := &http.Client{Timeout: appCfg.FetchTimeout}

	mirror, err := media.NewMirror(appCfg.MediaDir, media.DefaultURLPrefix, httpClient, appCfg.UserAgent, appCfg.MirrorConcurrency)
	if err != nil {
		slog.Error("Failed to prepare media directory", "dir", appCfg.MediaDir, "error", err)
		os.Exit(1)
	}

	categoryRepo := database.NewCategoryRepository(db)
	postRepo := database.NewPostRepository(db)

	service := bookmarks.NewService(
		categoryRepo,
		postRepo,
		fetch.NewFetcher(httpClient, appCfg.UserAgent, appCfg.FetchDelay),
		extract.NewExtractor(),
		mirror,
	)

	scheduler := tasks.NewScheduler(appCfg.WorkerCount)
	if err := scheduler.AddPeriodic("remirror_media", appCfg.RemirrorSchedule, func() tasks.TaskInterface {
		return tasks.NewRemirrorTask(postRepo, mirror)
	}); err != nil {
		slog.Error("Failed to schedule task", "error", err)
		os.Exit(1)
	}
	if err := scheduler.AddPeriodic("sweep_media", appCfg.SweepSchedule, func() tasks.TaskInterface {
		return tasks.NewSweepMediaTask(postRepo, mirror, tasks.DefaultSweepGrace)
	}); err != nil {
		slog.Error("Failed to schedule task", "error", err)
		os.Exit(1)
	}

	scheduler.Start()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount)

	handler := api.NewHandler(service, feed.NewGenerator(appCfg.BaseURL, appCfg.Version), appCfg.Version)
	router := api.NewServer(handler, authenticator, api.MediaConfig{
		Dir:    mirror.Dir(),
		Prefix: mirror.URLPrefix(),
	})

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	scheduler.Stop()
	slog.Info("Background scheduler stopped")

	slog.Info("Shutdown complete")
}

func setupLogger(appCfg *cfg.Cfg) {
	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if appCfg.LogJSON {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
		})
	}

	slog.SetDefault(slog.New(handler))
}
