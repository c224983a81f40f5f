package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"

	"studiobook/backend/internal/bootstrap"
	"studiobook/backend/internal/calendar"
	"studiobook/backend/internal/config"
	"studiobook/backend/internal/service/studio"
	grpcTransport "studiobook/backend/internal/transport/grpc"
	"studiobook/backend/internal/transport/rest"
)

const serviceName = "studiobook-server"

func main() {
	os.Exit(run())
}

// run returns the process exit code. Deferred cleanup has finished by the
// time it returns.
func run() int {
	log := bootstrap.NewLogger(os.Stdout, "info", serviceName)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		return 1
	}

	log = bootstrap.NewLogger(os.Stdout, cfg.LogLevel, serviceName)
	slog.SetDefault(log)

	log.Info(
		"starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr),
		slog.Bool("grpc_enabled", cfg.GRPCEnabled),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("timezone", cfg.Location.String()),
		slog.String("log_level", cfg.LogLevel),
	)

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

	svc := studio.NewService(repo,
		studio.WithLocation(cfg.Location),
		studio.WithWindowDays(cfg.WindowDays),
	)
	feed := calendar.FeedOptions{Name: cfg.CalendarName, EventDuration: cfg.CalendarEventDuration}

	if cfg.CalendarPublishPath != "" {
		publisher := calendar.NewPublisher(svc, cfg.CalendarPublishPath, feed, cfg.Location, log)
		if err := publisher.Start(ctx, cfg.CalendarPublishCron); err != nil {
			log.Error("calendar publisher start failed", slog.Any("err", err))
			return 1
		}
		defer publisher.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: rest.NewRouter(svc, rest.Options{
			CORSOrigins:        cfg.CORSOrigins,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
			Calendar:           feed,
		}, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var (
		grpcServer *grpc.Server
		grpcLis    net.Listener
	)
	if cfg.GRPCEnabled {
		grpcLis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr))
			return 1
		}
		grpcServer = grpc.NewServer(
			grpc.UnaryInterceptor(grpcTransport.DefaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout)),
		)
		grpcTransport.RegisterStudioServiceServer(grpcServer, grpcTransport.NewStudioServer(svc, log))
	}

	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- err
			}
		}()
		log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr))
	}

	code := 0
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("server stopped with error", slog.Any("err", err))
		stop()
		code = 1
	}
	shutdown(log, httpServer, grpcServer, cfg.ShutdownTimeout)
	return code
}

func shutdown(log *slog.Logger, hs *http.Server, gs *grpc.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := hs.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed; closing", slog.Any("err", err))
		_ = hs.Close()
	} else {
		log.Info("http server stopped")
	}

	if gs == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		gs.Stop()
	}
}
