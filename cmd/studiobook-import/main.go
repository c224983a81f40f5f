package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"studiobook/backend/internal/bootstrap"
	"studiobook/backend/internal/config"
	"studiobook/backend/internal/seed"
	"studiobook/backend/internal/service/studio"
)

const serviceName = "studiobook-import"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		path   string
		dryRun bool
	)
	flag.StringVar(&path, "file", "", "path to the YAML seed file")
	flag.BoolVar(&dryRun, "dry-run", false, "validate the seed file without writing")
	flag.Parse()

	if path == "" && flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "usage: studiobook-import [-dry-run] -file studio.yaml")
		return 2
	}

	log := bootstrap.NewLogger(os.Stderr, "info", serviceName)
	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		return 1
	}
	log = bootstrap.NewLogger(os.Stderr, cfg.LogLevel, serviceName)
	slog.SetDefault(log)

	f, err := seed.Load(path)
	if err != nil {
		log.Error("seed file invalid", slog.Any("err", err), slog.String("path", path))
		return 1
	}
	if dryRun {
		log.Info(
			"seed file valid",
			slog.String("path", path),
			slog.Int("instructors", len(f.Instructors)),
			slog.Int("clients", len(f.Clients)),
			slog.Int("bookings", len(f.Bookings)),
		)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error("store open failed", slog.Any("err", err), slog.String("store_driver", cfg.StoreDriver))
		return 1
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("store close failed", slog.Any("err", err))
		}
	}()

	svc := studio.NewService(repo, studio.WithLocation(cfg.Location), studio.WithWindowDays(cfg.WindowDays))
	if _, err := seed.Apply(ctx, svc, f, log); err != nil {
		log.Error("seed import failed", slog.Any("err", err), slog.String("path", path))
		return 1
	}
	return 0
}
