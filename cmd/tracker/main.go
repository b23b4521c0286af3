package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/orbitmr/shuttle/internal/shared/config"
	"github.com/orbitmr/shuttle/internal/shared/logging"
	"github.com/orbitmr/shuttle/internal/tracker/api/rest"
	"github.com/orbitmr/shuttle/internal/tracker/dfs"
	"github.com/orbitmr/shuttle/internal/tracker/jobtracker"
	"github.com/orbitmr/shuttle/internal/tracker/rpc"
	"github.com/orbitmr/shuttle/internal/tracker/storage"
)

func main() {
	configPath := os.Getenv("SHUTTLE_TRACKER_CONFIG")
	cfg, err := config.LoadTracker(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := logging.NewSlogLogger(level)

	store, err := buildStore(cfg.Store)
	if err != nil {
		logger.Fatal("build store failed", "err", err)
	}

	localDFS, err := dfs.NewLocal(cfg.Store.Dir + "/scratch")
	if err != nil {
		logger.Fatal("build dfs failed", "err", err)
	}

	minionClient := rpc.NewMinionClient(5*time.Second, logger)

	host := NewHost(cfg, store, localDFS, minionClient, logger)

	grpcServer := grpc.NewServer()
	rpc.RegisterTrackerServiceServer(grpcServer, &rpc.TrackerService{Jobs: host})

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		logger.Fatal("grpc listen failed", "addr", cfg.GRPC.Addr, "err", err)
	}
	go func() {
		logger.Info("grpc server listening", "addr", cfg.GRPC.Addr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server stopped", "err", err)
		}
	}()

	httpServer := rest.NewServer(cfg.REST.Addr, host, host, logger)
	go func() {
		logger.Info("rest server listening", "addr", cfg.REST.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err.Error() != "http: Server closed" {
			logger.Fatal("rest server error", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down tracker")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("rest shutdown error", "err", err)
	}
	grpcServer.GracefulStop()

	logger.Info("tracker stopped")
}

func buildStore(cfg config.StoreConfig) (jobtracker.Store, error) {
	switch cfg.Kind {
	case "file":
		return storage.NewFile(cfg.Dir)
	case "memory", "":
		return storage.NewInMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}
