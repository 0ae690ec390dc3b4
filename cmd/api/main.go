package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"clipforge/internal/httpapi"
	"clipforge/internal/media"
	"clipforge/internal/pipeline"
	"clipforge/internal/pkg/env"
	"clipforge/internal/pkg/logger"
	"clipforge/internal/pkg/shutdown"
	"clipforge/internal/scheduler"
	"clipforge/internal/storage"
	"clipforge/internal/transcode"
)

func main() {
	log := logger.New(logger.Config{
		Level:       env.Get("LOG_LEVEL", "info"),
		Format:      env.Get("LOG_FORMAT", "json"),
		ServiceName: "clipforge",
		AddSource:   env.Bool("LOG_SOURCE", false),
	})

	log.Info("starting clipforge", "version", "0.1.0")

	httpPort := env.Get("HTTP_PORT", "8080")
	workRoot := env.Get("WORK_DIR", "/tmp/clipforge")
	retain := env.Int("JOB_RETENTION", 256)

	if err := os.MkdirAll(workRoot, 0o755); err != nil {
		log.LogFatal("failed to create work dir", err, "path", workRoot)
	}

	ctx := context.Background()

	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	log.Info("initializing object store")
	store, err := storage.NewStore(ctx)
	if err != nil {
		log.LogFatal("failed to initialize object store", err)
	}
	log.Info("object store initialized", "provider", store.Provider())

	pipe := pipeline.New(pipeline.Deps{
		Store:      store,
		Inspector:  media.NewProber(log),
		Transcoder: transcode.NewFFmpeg(log),
		WorkRoot:   workRoot,
		Log:        log,
	})

	sched := scheduler.New(ctx, pipe, log, scheduler.Config{RetainTerminal: retain})
	shutdownMgr.Register("scheduler", func(ctx context.Context) error {
		return sched.Shutdown(ctx)
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Sched:    sched,
		Store:    store,
		WorkRoot: workRoot,
		Log:      log,
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + httpPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening",
			"addr", server.Addr,
			"port", httpPort,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}
