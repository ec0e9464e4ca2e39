// Command reactord is the process entry point: it loads configuration,
// wires the reactor's collaborators, and runs until SIGINT or SIGTERM
// triggers the cooperative shutdown sequence.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hyperreactor/reactord/internal/apistatus"
	"github.com/hyperreactor/reactord/internal/cache"
	"github.com/hyperreactor/reactord/internal/config"
	"github.com/hyperreactor/reactord/internal/conntable"
	"github.com/hyperreactor/reactord/internal/fileserver"
	"github.com/hyperreactor/reactord/internal/ratelimit"
	"github.com/hyperreactor/reactord/internal/reactor"
	"github.com/hyperreactor/reactord/internal/rlog"
	"github.com/hyperreactor/reactord/internal/workerpool"
)

// defaultRateTokensPerSec and defaultRateBurst bound the per-client
// token bucket.
const (
	defaultRateTokensPerSec = 50.0
	defaultRateBurst        = 100.0
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := rlog.Default()

	cfg := config.Default()
	config.LoadConfigFile(cfg, "config.json", logger)
	config.ParseArgs(cfg, os.Args[1:], logger)

	if err := ensureDocumentRoot(cfg.DocumentRoot, logger); err != nil {
		logger.Errorf("fatal: document root %q: %v", cfg.DocumentRoot, err)
		return 1
	}

	contentCache := cache.New(cfg.CacheSizeByte, config.DefaultCacheTTL, logger)

	files, err := fileserver.New(cfg.DocumentRoot, cfg.IndexFile, cfg.MaxFileSizeByte, contentCache, logger)
	if err != nil {
		logger.Errorf("fatal: document root %q: %v", cfg.DocumentRoot, err)
		return 1
	}

	table := conntable.New(cfg.MaxConnections)
	pool := workerpool.New(cfg.ThreadCount, logger)
	limiter := ratelimit.New(defaultRateTokensPerSec, defaultRateBurst, true)
	api := apistatus.New(apistatus.Dependencies{
		Pool: pool, Table: table, Cache: contentCache, DocumentRoot: cfg.DocumentRoot,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	rx, err := reactor.New(reactor.DefaultConfig(), addr, reactor.Dependencies{
		Table: table, Pool: pool, Limiter: limiter, Files: files, API: api, Logger: logger,
	})
	if err != nil {
		logger.Errorf("fatal: failed to start listening on %s: %v", addr, err)
		return 1
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := rx.Run(); err != nil {
			logger.Errorf("reactor loop exited: %v", err)
		}
	}()

	logger.Printf("listening on %s (document_root=%s, workers=%d, max_connections=%d)",
		addr, cfg.DocumentRoot, pool.Stats().NumWorkers, cfg.MaxConnections)

	awaitSignal(logger)

	logger.Printf("shutting down: draining worker pool")
	pool.Shutdown()

	logger.Printf("shutting down: stopping reactor and closing connections")
	rx.Shutdown()
	<-done

	return 0
}

func awaitSignal(logger *rlog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Printf("signal received: %v", sig)
}

// ensureDocumentRoot creates the default document root with a minimal
// placeholder index when it doesn't exist yet, so a fresh checkout has
// something to serve. A non-default root that's missing is left for
// fileserver.New to reject as a fatal startup error.
func ensureDocumentRoot(root string, logger *rlog.Logger) error {
	if root != config.DefaultDocumentRoot {
		return nil
	}
	if _, err := os.Stat(root); err == nil {
		return nil
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	placeholder := []byte("<!DOCTYPE html><html><head><title>reactord</title></head>" +
		"<body><h1>It works.</h1><p>Drop files into " + root + " to serve them.</p></body></html>")
	indexPath := root + string(os.PathSeparator) + "index.html"
	if err := os.WriteFile(indexPath, placeholder, 0o644); err != nil {
		return err
	}
	logger.Printf("created default document root %s with a placeholder index.html", root)
	return nil
}
