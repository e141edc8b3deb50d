// Command aphrodited runs the poster badging daemon: the job engine, the
// cron scheduler, and the HTTP control API.
package main

import (
	"context"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/daemon"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	hub := logging.NewStreamHub(1024)
	archive, err := logging.NewEventArchive(filepath.Join(cfg.Paths.LogDir, "events.ndjson"))
	if err != nil {
		log.Fatalf("init log archive: %v", err)
	}
	hub.AddSink(archive)

	logger, err := logging.NewFromConfig(cfg, hub)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     cfg.Paths.LogDir,
		Pattern: "*.log",
		Exclude: []string{"aphrodite.log"},
	})

	d, err := daemon.New(cfg, logger)
	if err != nil {
		logger.Error("create daemon", logging.FieldErrorHint, err.Error())
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()
	d.AttachLogStream(hub, archive)

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.FieldErrorHint, err.Error())
		log.Fatalf("start daemon: %v", err)
	}

	<-ctx.Done()
	logger.Info("aphrodited shutting down")
}
