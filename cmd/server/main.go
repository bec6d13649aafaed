// Command nexus-server starts the REST API backend.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nexushub/nexus/internal/kvstore"
	"github.com/nexushub/nexus/internal/server"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, opens the storage medium, and serves until a
// termination signal arrives.
func main() {
	// Flags
	addr := flag.String("addr", ":8080", "listen address")
	dbPath := flag.String("db", "nexus.db", "SQLite database path")
	jwtKey := flag.String("jwt-key", "", "HS256 signing key (required)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	if *jwtKey == "" {
		logger.Fatal("missing jwt signing key (--jwt-key)")
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := kvstore.NewSQLite(*dbPath, kvstore.DefaultQuota)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer kv.Close()

	srv := server.New(kv, logger, []byte(*jwtKey))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.Listen(*addr)
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		done := make(chan struct{})
		go func() {
			_ = srv.Shutdown()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
