// Command cliboard runs the host-side control plane: it spawns,
// attaches to, and reaps short-lived containerized CLI-agent sessions
// over an HTTP/SSE/WebSocket surface.
//
// Logger construction, fatal-on-init-error, and http.ListenAndServe
// follow agents/dashboard/main.go's shape. Graceful shutdown on
// SIGINT/SIGTERM is new: this process owns child containers that must
// be torn down, so every live Run is closed before exit.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Mgeezy9/CLIBoard/internal/artifact"
	"github.com/Mgeezy9/CLIBoard/internal/config"
	"github.com/Mgeezy9/CLIBoard/internal/dockerdriver"
	"github.com/Mgeezy9/CLIBoard/internal/eventbus"
	"github.com/Mgeezy9/CLIBoard/internal/httpapi"
	"github.com/Mgeezy9/CLIBoard/internal/orchestrator"
	"github.com/Mgeezy9/CLIBoard/internal/reaper"
	"github.com/Mgeezy9/CLIBoard/internal/warmpool"
)

func main() {
	logger := log.New(os.Stdout, "cliboard ", log.LstdFlags|log.LUTC)

	cfg := config.Load()
	if cfg.Image == "" {
		logger.Fatalf("CLI_RUNNER_IMAGE is required")
	}

	dockerClient, err := dockerdriver.NewClient()
	if err != nil {
		logger.Fatalf("docker client init: %v", err)
	}
	defer dockerClient.Close()

	pool := warmpool.New(dockerClient, cfg.Image)
	scanner := artifact.New()
	bus := eventbus.New(256)
	orch := orchestrator.New(dockerClient, pool, scanner, bus, cfg.Image, logger)
	idleReaper := reaper.New(orch, cfg.IdleTimeoutSec, logger)
	server := httpapi.New(cfg, dockerClient, orch, pool, bus, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go idleReaper.Run(ctx)

	httpServer := &http.Server{
		Addr:    cfg.BindHost + ":" + strconv.Itoa(cfg.Port),
		Handler: server,
	}

	go func() {
		logger.Printf("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutdown signal received")

	// Run history is not persisted across restarts, so shutdown
	// abandons the registry rather than trying to reconcile it on the
	// next start; each live Run is torn down via Close so fresh
	// containers don't leak and warm containers survive for the next
	// process to find.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, runID := range orch.RunningIDs() {
		if _, err := orch.Close(shutdownCtx, runID); err != nil {
			logger.Printf("shutdown: close run %s: %v", runID, err)
		}
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown: %v", err)
	}
}
