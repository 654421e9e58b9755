package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/messenger-cosmos-public/bridge/internal/config"
	bridgehttp "github.com/messenger-cosmos-public/bridge/internal/http"
	"github.com/messenger-cosmos-public/bridge/internal/http/middleware"
	"github.com/messenger-cosmos-public/bridge/internal/logger"
	"github.com/messenger-cosmos-public/bridge/internal/metrics"
	"github.com/messenger-cosmos-public/bridge/internal/presence"
	"github.com/messenger-cosmos-public/bridge/internal/realtime"
	"github.com/messenger-cosmos-public/bridge/internal/validation"
)

func main() {
	configPath := flag.String("config", os.Getenv("BRIDGE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The gauges read the router's registries, which only exist once the hub
	// they report through has been built.
	var router *presence.Router
	m := metrics.New(
		func() int { return router.Clients().Len() },
		func() int { return router.Groups().Len() },
	)
	hub := realtime.NewHub(log, m)
	router = presence.NewRouter(hub,
		presence.WithLogger(log),
		presence.WithInvariantChecks(cfg.Debug),
	)

	validator := validation.New()
	origins := middleware.NewOriginPolicy(cfg.AllowedOriginHosts)
	endpoint := realtime.NewEndpoint(realtime.EndpointDeps{
		Hub:         hub,
		Router:      router,
		Validator:   validator,
		Metrics:     m,
		Config:      cfg,
		CheckOrigin: origins.CheckOrigin,
		Logger:      log,
	})

	engine := bridgehttp.NewRouter(bridgehttp.RouterDeps{
		Handler: bridgehttp.NewHandler(router, validator),
		Hub:     endpoint,
		Metrics: m.Handler(),
		Origins: origins,
		Config:  cfg,
		Logger:  log,
	})

	srv := &http.Server{Addr: cfg.Address, Handler: engine}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("bridge listening", zap.String("addr", srv.Addr), zap.String("hub_path", cfg.HubPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	stop()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown.
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ensure gin uses release mode in production
func init() {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}
